// Package hooks defines what runs after file rows have been deleted.
package hooks

import (
	"context"

	"github.com/google/uuid"
)

// DeleteHook is called once per committed statement that removed file rows,
// whichever path removed them: single delete, bulk delete or the cascade from
// a user delete. storageKeys lists the blobs that are now unreferenced.
// Implementations must not fail: the delete is already durable.
type DeleteHook interface {
	FilesDeleted(ctx context.Context, ownerID uuid.UUID, storageKeys []string)
}

type DeleteHookFunc func(ctx context.Context, ownerID uuid.UUID, storageKeys []string)

func (f DeleteHookFunc) FilesDeleted(ctx context.Context, ownerID uuid.UUID, storageKeys []string) {
	f(ctx, ownerID, storageKeys)
}

// Chain runs hooks in order.
type Chain []DeleteHook

func (c Chain) FilesDeleted(ctx context.Context, ownerID uuid.UUID, storageKeys []string) {
	for _, h := range c {
		if h != nil {
			h.FilesDeleted(ctx, ownerID, storageKeys)
		}
	}
}
