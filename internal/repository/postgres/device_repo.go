package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// DeviceRepo implements DeviceRepository using PostgreSQL.
type DeviceRepo struct{ db *DB }

// NewDeviceRepo constructs a device repository.
func NewDeviceRepo(db *DB) *DeviceRepo { return &DeviceRepo{db: db} }

// Upsert refreshes the row named by info.DeviceID when it belongs to
// userID, otherwise inserts a fresh device. An unknown or foreign device
// id silently falls through to insert, so a stale cached id on the client
// heals itself with a new registration.
func (r *DeviceRepo) Upsert(ctx context.Context, userID uuid.UUID, info model.DeviceInfo) (*model.Device, error) {
	if info.DeviceID != nil {
		const upd = `
UPDATE devices SET last_seen = NOW(), name=$1, browser=$2, platform=$3
WHERE id=$4 AND user_id=$5
RETURNING id, user_id, name, browser, platform, last_seen`
		var d model.Device
		err := r.db.Pool.QueryRow(ctx, upd, info.Name, info.Browser, info.Platform, *info.DeviceID, userID).
			Scan(&d.ID, &d.UserID, &d.Name, &d.Browser, &d.Platform, &d.LastSeen)
		if err == nil {
			return &d, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const ins = `
INSERT INTO devices (id, user_id, name, browser, platform)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, user_id, name, browser, platform, last_seen`
	var d model.Device
	err = r.db.Pool.QueryRow(ctx, ins, id, userID, info.Name, info.Browser, info.Platform).
		Scan(&d.ID, &d.UserID, &d.Name, &d.Browser, &d.Platform, &d.LastSeen)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns the user's devices ordered by last_seen descending.
func (r *DeviceRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	const q = `
SELECT id, user_id, name, browser, platform, last_seen
FROM devices WHERE user_id=$1
ORDER BY last_seen DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err = rows.Scan(&d.ID, &d.UserID, &d.Name, &d.Browser, &d.Platform, &d.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
