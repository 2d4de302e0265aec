package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const selUserByEmail = `
SELECT id, email, provider, created_at FROM users WHERE email=$1`

// GetOrCreateByEmail returns the account for email, inserting it on first
// sight. A concurrent insert of the same email loses the unique-index race
// and falls back to the select.
func (r *UserRepo) GetOrCreateByEmail(ctx context.Context, email, provider string) (*model.User, error) {
	var u model.User
	err := r.db.Pool.QueryRow(ctx, selUserByEmail, email).
		Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const ins = `
INSERT INTO users (id, email, provider)
VALUES ($1,$2,$3)
RETURNING id, email, provider, created_at`
	err = r.db.Pool.QueryRow(ctx, ins, id, email, provider).
		Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	if err == nil {
		return &u, nil
	}
	if isUniqueViolation(err) {
		if selErr := r.db.Pool.QueryRow(ctx, selUserByEmail, email).
			Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt); selErr == nil {
			return &u, nil
		}
	}
	return nil, err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT id, email, provider, created_at FROM users WHERE id=$1`
	var u model.User
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
