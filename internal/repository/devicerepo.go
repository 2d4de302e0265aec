package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// DeviceRepository tracks the client installations of a user.
type DeviceRepository interface {
	// Upsert updates the device named by info.DeviceID if it exists and
	// belongs to userID, refreshing last_seen and the descriptive fields;
	// otherwise it inserts a new device. Returns the resulting row.
	Upsert(ctx context.Context, userID uuid.UUID, info model.DeviceInfo) (*model.Device, error)

	// List returns the user's devices, most recently seen first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Device, error)
}
