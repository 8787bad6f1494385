// Package possessionreports derives read-only views of possession records: timelines,
// statistics, proximity search, overdue lists and tabular reports. It never writes.
package possessionreports

import (
	"context"
	"errors"
	"time"

	"estate-backend/internal/application/possessions"
	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/persistence"

	"github.com/google/uuid"
)

// DefaultOverdueDays applies when neither the caller nor the service sets a threshold.
const DefaultOverdueDays = 30

type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Possession, error)
	FindAll(ctx context.Context, f persistence.PossessionFilter) ([]domain.Possession, error)
	FindInBox(ctx context.Context, statuses []domain.PossessionStatus, minLat, maxLat, minLon, maxLon float64) ([]domain.Possession, error)
	CountByStatus(ctx context.Context, f persistence.PossessionFilter) ([]persistence.StatusCount, error)
	CountLetterCollected(ctx context.Context, f persistence.PossessionFilter) (int64, error)
}

type Service struct {
	Store       Store
	Now         func() time.Time
	OverdueDays int
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Possession, error) {
	p, err := s.Store.FindByID(ctx, id)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, &possessions.NotFoundError{Key: id.String()}
	}
	return p, err
}

func invalid(field, message string) error {
	return &possessions.ValidationError{Fields: []possessions.FieldError{{Field: field, Message: message}}}
}
