// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// URLRepository provides access to a user's saved URL collection.
// Mutations for a single user are serialized by the implementation.
type URLRepository interface {
	// AddBatch inserts already-normalized items in submitted order, skipping
	// duplicates of live rows and evicting the oldest auto row when the user
	// is at capacity. The whole batch is atomic: on errs.ErrCapacity nothing
	// is inserted or evicted. Returns the rows actually inserted.
	AddBatch(ctx context.Context, userID uuid.UUID, items []model.NewURL) ([]model.SavedURL, error)

	// DeleteBatch tombstones every matching live row. Ids that match nothing
	// are ignored.
	DeleteBatch(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error

	// ListActive returns all live rows, newest first.
	ListActive(ctx context.Context, userID uuid.UUID) ([]model.SavedURL, error)
}
