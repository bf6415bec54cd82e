package cleanup

import (
	"context"

	"file-sharing-service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Invalidator interface {
	Invalidate(ctx context.Context, ownerID uuid.UUID) error
}

type Enqueuer interface {
	Enqueue(key string)
}

// PostDeleteHook implements hooks.DeleteHook: it purges the owner's cached
// listings and schedules one blob deletion per removed row.
type PostDeleteHook struct {
	cache Invalidator
	queue Enqueuer
	log   *logger.Logger
}

func NewPostDeleteHook(cache Invalidator, queue Enqueuer, log *logger.Logger) *PostDeleteHook {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostDeleteHook{cache: cache, queue: queue, log: log}
}

func (h *PostDeleteHook) FilesDeleted(ctx context.Context, ownerID uuid.UUID, storageKeys []string) {
	// The delete has committed; a dropped client connection must not skip
	// the purge.
	ctx = context.WithoutCancel(ctx)
	if err := h.cache.Invalidate(ctx, ownerID); err != nil {
		h.log.Error("listing cache invalidation failed",
			zap.String("owner_id", ownerID.String()), zap.Error(err))
	}
	for _, key := range storageKeys {
		h.queue.Enqueue(key)
	}
	if len(storageKeys) > 0 {
		h.log.Debug("blob cleanup scheduled",
			zap.String("owner_id", ownerID.String()), zap.Int("count", len(storageKeys)))
	}
}
