package refreshToken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RefreshTokenRepo struct {
	Client *redis.Client
}

func New(client *redis.Client) *RefreshTokenRepo {
	return &RefreshTokenRepo{Client: client}
}

func (r *RefreshTokenRepo) buildKey(userID uuid.UUID) string {
	return fmt.Sprintf("refresh:%s", userID)
}

func (r *RefreshTokenRepo) SaveToken(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	key := r.buildKey(userID)
	return r.Client.Set(ctx, key, token, ttl).Err()
}

func (r *RefreshTokenRepo) GetToken(ctx context.Context, userID uuid.UUID) (string, error) {
	key := r.buildKey(userID)
	return r.Client.Get(ctx, key).Result()
}

func (r *RefreshTokenRepo) DeleteToken(ctx context.Context, userID uuid.UUID) error {
	key := r.buildKey(userID)
	return r.Client.Del(ctx, key).Err()
}

// ValidateToken reports whether token is the one stored for userID. A missing
// token is not an error, just invalid.
func (r *RefreshTokenRepo) ValidateToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	storedToken, err := r.GetToken(ctx, userID)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return storedToken == token, nil
}
