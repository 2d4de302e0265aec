package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// URLRepo implements URLRepository using PostgreSQL.
type URLRepo struct{ db *DB }

// NewURLRepo constructs a URL repository.
func NewURLRepo(db *DB) *URLRepo { return &URLRepo{db: db} }

const (
	// Serializes all URL mutations for one user; concurrent batches for
	// different users take different locks and proceed independently.
	lockUser = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`

	selDup          = `SELECT id FROM urls WHERE user_id=$1 AND url=$2 AND deleted_at IS NULL`
	selCount        = `SELECT COUNT(*) FROM urls WHERE user_id=$1 AND deleted_at IS NULL`
	evictOldestAuto = `
UPDATE urls SET deleted_at = NOW()
WHERE id = (
  SELECT id FROM urls
  WHERE user_id=$1 AND deleted_at IS NULL AND source='auto'
  ORDER BY created_at ASC LIMIT 1
)`
	insURL = `
INSERT INTO urls (id, user_id, url, title, source)
VALUES ($1,$2,$3,$4,$5)
RETURNING created_at`
)

// AddBatch applies the whole batch in one transaction under a per-user
// advisory lock: dedupe against live rows, evict the oldest auto row at
// capacity, insert. A manual item that finds no evictable slot fails the
// batch; an auto item in the same position is skipped.
func (r *URLRepo) AddBatch(
	ctx context.Context, userID uuid.UUID, items []model.NewURL,
) (inserted []model.SavedURL, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if _, err = tx.Exec(ctx, lockUser, userID); err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	inserted = make([]model.SavedURL, 0, len(items))
	for _, it := range items {
		var dupID uuid.UUID
		scanErr := tx.QueryRow(ctx, selDup, userID, it.URL).Scan(&dupID)
		switch {
		case scanErr == nil:
			continue // live row already present, idempotent no-op
		case errors.Is(scanErr, pgx.ErrNoRows):
		default:
			return nil, scanErr
		}

		var count int
		if err = tx.QueryRow(ctx, selCount, userID).Scan(&count); err != nil {
			return nil, err
		}
		if count >= model.MaxURLs {
			tag, evictErr := tx.Exec(ctx, evictOldestAuto, userID)
			if evictErr != nil {
				err = evictErr
				return nil, err
			}
			if tag.RowsAffected() == 0 {
				// Capacity filled entirely by manual entries.
				if it.Source == model.SourceManual {
					err = errs.ErrCapacity
					return nil, err
				}
				continue
			}
		}

		id, idErr := uuid.NewV4()
		if idErr != nil {
			err = idErr
			return nil, err
		}
		row := model.SavedURL{ID: id, UserID: userID, URL: it.URL, Title: it.Title, Source: it.Source}
		if err = tx.QueryRow(ctx, insURL, id, userID, it.URL, it.Title, it.Source).Scan(&row.CreatedAt); err != nil {
			return nil, err
		}
		inserted = append(inserted, row)
	}
	return inserted, nil
}

// DeleteBatch tombstones every live row matching one of ids. Missing or
// already-deleted ids affect nothing; deletion is idempotent.
func (r *URLRepo) DeleteBatch(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	const q = `UPDATE urls SET deleted_at = NOW() WHERE user_id=$1 AND id = ANY($2) AND deleted_at IS NULL`
	_, err := r.db.Pool.Exec(ctx, q, userID, ids)
	return err
}

// ListActive returns the user's live rows, newest first.
func (r *URLRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]model.SavedURL, error) {
	const q = `
SELECT id, user_id, url, title, source, created_at
FROM urls
WHERE user_id=$1 AND deleted_at IS NULL
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SavedURL
	for rows.Next() {
		var u model.SavedURL
		if err = rows.Scan(&u.ID, &u.UserID, &u.URL, &u.Title, &u.Source, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
