// Package listingCache stores resolved file listings per owner and filter.
//
// Keys are {owner}:all or {owner}:filter:{sha256(descriptor)}. Every write to
// an owner's files invalidates all of that owner's keys; entries are never
// patched. Invalidation also bumps a per-owner version kept outside the
// {owner}: namespace, and a listing built on a miss is only stored when the
// version it started from is still current. A miss that raced a mutation
// therefore cannot put pre-mutation data back after the purge.
package listingCache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"file-sharing-service/internal/model/fileInfo"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 5 * time.Minute

	versionKeyPrefix = "listing-version:"
	// a version key outlives every entry written under it
	versionTTLFactor = 10
	scanBatch        = 100
)

var errVersionMoved = errors.New("listing version moved")

type ListingCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ListingCache{Client: client, TTL: ttl}
}

// Key derives the cache key for an owner and a filter descriptor as produced
// by fileInfo.Filter.Descriptor.
func Key(ownerID uuid.UUID, descriptor string) string {
	if descriptor == fileInfo.AllFiles {
		return ownerID.String() + ":" + fileInfo.AllFiles
	}
	sum := sha256.Sum256([]byte(descriptor))
	return ownerID.String() + ":filter:" + hex.EncodeToString(sum[:])
}

func ownerPattern(ownerID uuid.UUID) string {
	return ownerID.String() + ":*"
}

func versionKey(ownerID uuid.UUID) string {
	return versionKeyPrefix + ownerID.String()
}

// Get returns the listing stored under key. found is false on a miss.
func (c *ListingCache) Get(ctx context.Context, key string) (files []fileInfo.FileDetail, found bool, err error) {
	data, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return files, true, nil
}

// Version returns the owner's current listing version. Call it before
// reading the database on a miss and hand the result to SetIfUnchanged.
func (c *ListingCache) Version(ctx context.Context, ownerID uuid.UUID) (string, error) {
	v, err := c.Client.Get(ctx, versionKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache version %s: %w", ownerID, err)
	}
	return v, nil
}

// SetIfUnchanged stores files under key with the cache TTL, unless the owner
// has been invalidated since version was read. stored reports whether the
// entry was written; a skipped write is not an error.
func (c *ListingCache) SetIfUnchanged(ctx context.Context, ownerID uuid.UUID, key, version string, files []fileInfo.FileDetail) (stored bool, err error) {
	data, err := json.Marshal(files)
	if err != nil {
		return false, fmt.Errorf("cache encode %s: %w", key, err)
	}

	vKey := versionKey(ownerID)
	err = c.Client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vKey).Result()
		if errors.Is(err, redis.Nil) {
			current = "0"
		} else if err != nil {
			return err
		}
		if current != version {
			return errVersionMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.TTL)
			return nil
		})
		return err
	}, vKey)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errVersionMoved), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
}

// Invalidate bumps the owner's version and removes every {owner}:* key.
func (c *ListingCache) Invalidate(ctx context.Context, ownerID uuid.UUID) error {
	var errs []error
	vKey := versionKey(ownerID)
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vKey)
		pipe.Expire(ctx, vKey, versionTTLFactor*c.TTL)
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("cache bump version: %w", err))
	}
	if _, err := c.deletePattern(ctx, ownerPattern(ownerID)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *ListingCache) deletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.Client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.Client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("cache delete %s: %w", pattern, err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (c *ListingCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
