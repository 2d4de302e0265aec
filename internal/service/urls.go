// Package service contains application services for authentication, URLs and devices.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/event"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
	"github.com/Anshumanformal/Tab-SyncAR/internal/repository"
	"github.com/Anshumanformal/Tab-SyncAR/internal/urlx"
)

// Publisher fans a serialized event out to a user's live connections.
// Satisfied by *bus.Bus.
type Publisher interface {
	Publish(userID uuid.UUID, message []byte)
}

// URLService applies add/delete mutations to the saved URL collection and
// announces committed changes on the event bus.
type URLService interface {
	// Add normalizes and stores items, returning the rows actually inserted.
	Add(ctx context.Context, userID uuid.UUID, items []model.NewURL) ([]model.SavedURL, error)
	// Delete tombstones the given ids; unknown ids are not an error.
	Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
	// List returns the authoritative live collection, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]model.SavedURL, error)
}

type URLServiceImpl struct {
	repo repository.URLRepository
	bus  Publisher
	log  *zap.Logger
}

// NewURLService constructs URLService.
func NewURLService(repo repository.URLRepository, bus Publisher, log *zap.Logger) *URLServiceImpl {
	return &URLServiceImpl{repo: repo, bus: bus, log: log}
}

// Add normalizes each item in submitted order, drops the malformed ones,
// and applies the rest as one atomic batch. A URL_ADDED event goes out
// only after the batch has committed and only when rows were inserted.
func (s *URLServiceImpl) Add(ctx context.Context, userID uuid.UUID, items []model.NewURL) ([]model.SavedURL, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	if len(items) == 0 {
		return []model.SavedURL{}, nil
	}

	normalized := make([]model.NewURL, 0, len(items))
	for _, it := range items {
		norm, err := urlx.Normalize(it.URL)
		if err != nil {
			s.log.Debug("skipping malformed url", zap.String("url", it.URL), zap.Error(err))
			continue
		}
		if !it.Source.Valid() {
			it.Source = model.SourceAuto
		}
		normalized = append(normalized, model.NewURL{URL: norm, Title: it.Title, Source: it.Source})
	}
	if len(normalized) == 0 {
		return []model.SavedURL{}, nil
	}

	inserted, err := s.repo.AddBatch(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	if len(inserted) > 0 {
		s.publish(userID, event.TypeURLAdded, func() ([]byte, error) { return event.URLAdded(inserted) })
	}
	return inserted, nil
}

// Delete tombstones matching live rows and always announces the requested
// ids verbatim, so every client converges even for ids that were already gone.
func (s *URLServiceImpl) Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if userID == uuid.Nil {
		return errors.New("validation: empty userID")
	}
	if len(ids) == 0 {
		return nil
	}
	for i := range ids {
		if ids[i] == uuid.Nil {
			return fmt.Errorf("validation: id[%d] empty", i)
		}
	}
	if err := s.repo.DeleteBatch(ctx, userID, ids); err != nil {
		return err
	}
	s.publish(userID, event.TypeURLDeleted, func() ([]byte, error) { return event.URLDeleted(ids) })
	return nil
}

// List returns the live collection for resync.
func (s *URLServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.SavedURL, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	return s.repo.ListActive(ctx, userID)
}

func (s *URLServiceImpl) publish(userID uuid.UUID, typ string, encode func() ([]byte, error)) {
	msg, err := encode()
	if err != nil {
		s.log.Error("encode event", zap.String("type", typ), zap.Error(err))
		return
	}
	s.bus.Publish(userID, msg)
}
