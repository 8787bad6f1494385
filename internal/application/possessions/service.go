package possessions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/codes"
	"estate-backend/internal/infrastructure/persistence"
	"estate-backend/internal/metrics"
	"estate-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Store is the persistence the service needs; *persistence.PossessionStore satisfies it.
type Store interface {
	Create(ctx context.Context, p *domain.Possession) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Possession, error)
	FindByCode(ctx context.Context, code string) (*domain.Possession, error)
	FindActiveByPlot(ctx context.Context, plotID string) (*domain.Possession, error)
	Update(ctx context.Context, id uuid.UUID, version int, changes map[string]interface{}) (*domain.Possession, error)
	SoftDelete(ctx context.Context, id uuid.UUID, version int, actor string, at time.Time) error
	Query(ctx context.Context, f persistence.PossessionFilter) ([]domain.Possession, int64, error)
	FindAll(ctx context.Context, f persistence.PossessionFilter) ([]domain.Possession, error)
}

// CodeReserver hands insert a fresh code until insert stops reporting codes.ErrCodeTaken.
type CodeReserver interface {
	Reserve(ctx context.Context, insert func(code string) error) (string, error)
}

// Service is the possession lifecycle: creation, transitions, collector updates and the handover gate.
// It holds no records between calls.
type Service struct {
	Store     Store
	Codes     CodeReserver
	Plots     domain.PlotDirectory
	Files     domain.FileDirectory
	Officers  domain.OfficerDirectory
	Documents domain.DocumentStore
	Metrics   *metrics.Metrics
	Now       func() time.Time

	// RequireHandoverGate makes Transition into HANDED_OVER fail unless ValidateHandover passes.
	RequireHandoverGate bool
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type CreateInput struct {
	FileID            string
	PlotID            string
	HandoverOfficerID *string
	InitDate          *time.Time
	Remarks           *string
	Latitude          *float64
	Longitude         *float64
}

func (in CreateInput) validate(now time.Time, actor string) error {
	var errs fieldErrors
	if strings.TrimSpace(in.FileID) == "" {
		errs.add("fileId", "is required")
	}
	if strings.TrimSpace(in.PlotID) == "" {
		errs.add("plotId", "is required")
	}
	if strings.TrimSpace(actor) == "" {
		errs.add("actor", "is required")
	}
	if in.InitDate != nil && in.InitDate.After(now) {
		errs.add("initDate", "cannot be in the future")
	}
	checkRemarks(&errs, "remarks", in.Remarks)
	checkLocation(&errs, in.Latitude, in.Longitude)
	return errs.err()
}

// Create opens a REQUESTED possession for a plot that has no active one.
func (s *Service) Create(ctx context.Context, in CreateInput, actor string) (*domain.Possession, error) {
	now := s.now()
	if err := in.validate(now, actor); err != nil {
		return nil, err
	}
	plotID := strings.TrimSpace(in.PlotID)
	if err := s.ensurePlotFree(ctx, plotID); err != nil {
		return nil, err
	}

	initDate := now
	if in.InitDate != nil {
		initDate = in.InitDate.UTC()
	}
	p := &domain.Possession{
		FileID:            strings.TrimSpace(in.FileID),
		PlotID:            plotID,
		HandoverOfficerID: in.HandoverOfficerID,
		Status:            domain.StatusRequested,
		InitDate:          initDate,
		LetterCollected:   false,
		Remarks:           in.Remarks,
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		CreatedBy:         actor,
		UpdatedBy:         actor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err := s.Codes.Reserve(ctx, func(code string) error {
		p.PossessionCode = code
		err := s.Store.Create(ctx, p)
		if errors.Is(err, persistence.ErrDuplicateCode) {
			return codes.ErrCodeTaken
		}
		return err
	})
	if err != nil {
		if errors.Is(err, codes.ErrExhausted) {
			log.Error().Str("plot_id", plotID).Msg("possession code allocation exhausted")
			return nil, fmt.Errorf("%w: plot %s", ErrCodeAllocationExhausted, plotID)
		}
		return nil, s.translate(ctx, plotID, plotID, err)
	}

	s.Metrics.IncCreated()
	log.Info().Str("code", p.PossessionCode).Str("plot_id", plotID).Str("actor", actor).Msg("possession created")
	return p, nil
}

// ensurePlotFree fails with DuplicateActivePossessionError if plotID already has an active possession.
func (s *Service) ensurePlotFree(ctx context.Context, plotID string) error {
	existing, err := s.Store.FindActiveByPlot(ctx, plotID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &DuplicateActivePossessionError{PlotID: plotID, ExistingCode: existing.PossessionCode}
}

// translate maps store sentinels onto the service's typed errors. key names the record in NotFound.
func (s *Service) translate(ctx context.Context, key, plotID string, err error) error {
	switch {
	case errors.Is(err, persistence.ErrRecordNotFound):
		return &NotFoundError{Key: key}
	case errors.Is(err, persistence.ErrVersionConflict):
		return fmt.Errorf("%w: %s", ErrConflictingConcurrentUpdate, key)
	case errors.Is(err, persistence.ErrActivePlotConflict):
		// Lost the race at the unique index; report whoever won.
		if dupErr := s.ensurePlotFree(ctx, plotID); dupErr != nil {
			return dupErr
		}
		return &DuplicateActivePossessionError{PlotID: plotID}
	}
	return err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Possession, error) {
	p, err := s.Store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, id.String(), "", err)
	}
	return p, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Possession, error) {
	p, err := s.Store.FindByCode(ctx, code)
	if err != nil {
		return nil, s.translate(ctx, code, "", err)
	}
	return p, nil
}

type ListFilter struct {
	PlotID          string
	FileID          string
	Statuses        []domain.PossessionStatus
	LetterCollected *bool
	CollectorName   string
	InitFrom        *time.Time
	InitTo          *time.Time
	MinDurationDays *int
	MaxDurationDays *int
	Page            int
	Limit           int
}

type Page struct {
	Items []View `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Pages int    `json:"pages"`
}

// List returns one page of possessions, newest first. Duration bounds are derived values,
// so when either is set the page is cut in memory.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	var errs fieldErrors
	for _, st := range f.Statuses {
		if !st.Valid() {
			errs.add("status", fmt.Sprintf("unknown status %q", st))
		}
	}
	if f.Page < 0 {
		errs.add("page", "must be at least 1")
	}
	if f.Limit < 0 || f.Limit > MaxPageLimit {
		errs.add("limit", fmt.Sprintf("must be between 1 and %d", MaxPageLimit))
	}
	if f.InitFrom != nil && f.InitTo != nil && f.InitTo.Before(*f.InitFrom) {
		errs.add("initTo", "must not be before initFrom")
	}
	if f.MinDurationDays != nil && f.MaxDurationDays != nil && *f.MaxDurationDays < *f.MinDurationDays {
		errs.add("maxDurationDays", "must not be below minDurationDays")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	page, limit := f.Page, f.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}

	now := s.now()
	sf := persistence.PossessionFilter{
		PlotID:          f.PlotID,
		FileID:          f.FileID,
		Statuses:        f.Statuses,
		LetterCollected: f.LetterCollected,
		CollectorName:   f.CollectorName,
		InitFrom:        f.InitFrom,
		InitTo:          f.InitTo,
	}

	var rows []domain.Possession
	var total int64
	if f.MinDurationDays == nil && f.MaxDurationDays == nil {
		sf.Offset, sf.Limit = (page-1)*limit, limit
		var err error
		if rows, total, err = s.Store.Query(ctx, sf); err != nil {
			return nil, err
		}
	} else {
		all, err := s.Store.FindAll(ctx, sf)
		if err != nil {
			return nil, err
		}
		matched := all[:0]
		for _, p := range all {
			d := p.DurationDays(now)
			if f.MinDurationDays != nil && d < *f.MinDurationDays {
				continue
			}
			if f.MaxDurationDays != nil && d > *f.MaxDurationDays {
				continue
			}
			matched = append(matched, p)
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
		total = int64(len(matched))
		start := min((page-1)*limit, len(matched))
		end := min(start+limit, len(matched))
		rows = matched[start:end]
	}

	items := make([]View, 0, len(rows))
	for i := range rows {
		items = append(items, NewView(&rows[i], now))
	}
	return &Page{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

type AllowedTransitions struct {
	Current domain.PossessionStatus   `json:"current"`
	Next    []domain.PossessionStatus `json:"next"`
}

func (s *Service) AllowedTransitions(ctx context.Context, id uuid.UUID) (*AllowedTransitions, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AllowedTransitions{Current: p.Status, Next: domain.NextStatuses(p.Status)}, nil
}

// Delete soft-deletes a possession. A handed-over possession that produced a certificate is kept.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	if strings.TrimSpace(actor) == "" {
		return &ValidationError{Fields: []FieldError{{Field: "actor", Message: "is required"}}}
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusHandedOver && p.CertificateRef != nil {
		return &ValidationError{Fields: []FieldError{{
			Field:   "status",
			Message: "a handed-over possession with a certificate cannot be deleted",
		}}}
	}
	if err := s.Store.SoftDelete(ctx, p.ID, p.Version, actor, s.now()); err != nil {
		return s.translate(ctx, id.String(), p.PlotID, err)
	}
	log.Info().Str("code", p.PossessionCode).Str("actor", actor).Msg("possession deleted")
	return nil
}

func checkRemarks(errs *fieldErrors, field string, v *string) {
	if v != nil && !validation.WithinLength(*v, validation.MaxRemarksLength) {
		errs.add(field, fmt.Sprintf("must be at most %d characters", validation.MaxRemarksLength))
	}
}

func checkLocation(errs *fieldErrors, lat, lon *float64) {
	if (lat == nil) != (lon == nil) {
		errs.add("location", "latitude and longitude must be given together")
		return
	}
	if lat != nil && !validation.IsValidLatitude(*lat) {
		errs.add("latitude", "must be between -90 and 90")
	}
	if lon != nil && !validation.IsValidLongitude(*lon) {
		errs.add("longitude", "must be between -180 and 180")
	}
}
