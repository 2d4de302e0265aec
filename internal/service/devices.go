package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/event"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
	"github.com/Anshumanformal/Tab-SyncAR/internal/repository"
)

// DeviceService registers client installations and lists them for resync.
type DeviceService interface {
	// Register upserts the device and announces it as online. The returned
	// row carries the id the client should cache for later registrations.
	Register(ctx context.Context, userID uuid.UUID, info model.DeviceInfo) (*model.Device, error)
	// List returns the user's devices, most recently seen first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Device, error)
}

type DeviceServiceImpl struct {
	repo repository.DeviceRepository
	bus  Publisher
	log  *zap.Logger
}

// NewDeviceService constructs DeviceService.
func NewDeviceService(repo repository.DeviceRepository, bus Publisher, log *zap.Logger) *DeviceServiceImpl {
	return &DeviceServiceImpl{repo: repo, bus: bus, log: log}
}

// Register upserts and publishes DEVICE_ONLINE after the row is stored.
func (s *DeviceServiceImpl) Register(ctx context.Context, userID uuid.UUID, info model.DeviceInfo) (*model.Device, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	if info.Name == "" {
		return nil, errors.New("validation: empty device name")
	}

	d, err := s.repo.Upsert(ctx, userID, info)
	if err != nil {
		return nil, err
	}

	msg, err := event.DeviceOnline(*d)
	if err != nil {
		s.log.Error("encode event", zap.String("type", event.TypeDeviceOnline), zap.Error(err))
		return d, nil
	}
	s.bus.Publish(userID, msg)
	return d, nil
}

// List returns the device roster for resync.
func (s *DeviceServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.repo.List(ctx, userID)
}
