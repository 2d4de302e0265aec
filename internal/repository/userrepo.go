package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// UserRepository resolves accounts coming out of the identity provider flow.
type UserRepository interface {
	// GetOrCreateByEmail returns the user with the given email, creating it
	// on first sight.
	GetOrCreateByEmail(ctx context.Context, email, provider string) (*model.User, error)
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}
