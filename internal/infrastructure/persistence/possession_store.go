package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrRecordNotFound     = errors.New("possession record not found")
	ErrVersionConflict    = errors.New("possession record was modified concurrently")
	ErrDuplicateCode      = errors.New("possession code already exists")
	ErrActivePlotConflict = errors.New("plot already has an active possession")
)

// PossessionFilter narrows store queries. Zero values mean "no constraint".
type PossessionFilter struct {
	PlotID          string
	FileID          string
	Statuses        []domain.PossessionStatus
	LetterCollected *bool
	CollectorName   string
	InitFrom        *time.Time
	InitTo          *time.Time
	HasLocation     bool
	Offset          int
	Limit           int
}

// PossessionStore persists possession records. Soft-deleted rows are invisible to every read.
type PossessionStore struct {
	DB *gorm.DB
}

func (s *PossessionStore) Create(ctx context.Context, p *domain.Possession) error {
	if p.Version == 0 {
		p.Version = 1
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (s *PossessionStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Possession, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *PossessionStore) FindByCode(ctx context.Context, code string) (*domain.Possession, error) {
	return s.first(ctx, "possession_code = ?", code)
}

// FindActiveByPlot returns the plot's possession that is neither cancelled nor handed over.
func (s *PossessionStore) FindActiveByPlot(ctx context.Context, plotID string) (*domain.Possession, error) {
	return s.first(ctx, "plot_id = ? AND status NOT IN ?", plotID, domain.InactiveStatuses)
}

func (s *PossessionStore) first(ctx context.Context, query string, args ...interface{}) (*domain.Possession, error) {
	var p domain.Possession
	err := s.DB.WithContext(ctx).Where("is_deleted = ?", false).Where(query, args...).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update applies changes to the record if it is still at version, bumping the version.
// Returns ErrVersionConflict when another writer got there first.
func (s *PossessionStore) Update(ctx context.Context, id uuid.UUID, version int, changes map[string]interface{}) (*domain.Possession, error) {
	if _, ok := changes["updated_at"]; !ok {
		changes["updated_at"] = time.Now()
	}
	changes["version"] = gorm.Expr("version + 1")

	res := s.DB.WithContext(ctx).Model(&domain.Possession{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false).
		Updates(changes)
	if res.Error != nil {
		return nil, translateWriteError(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrVersionConflict
	}
	return s.FindByID(ctx, id)
}

// SoftDelete hides the record from every read. The row and its code are kept.
func (s *PossessionStore) SoftDelete(ctx context.Context, id uuid.UUID, version int, actor string, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&domain.Possession{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, version, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": at,
			"updated_by": actor,
			"updated_at": at,
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("possession store: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

// Query returns one page of matching records (newest first) and the total match count.
func (s *PossessionStore) Query(ctx context.Context, f PossessionFilter) ([]domain.Possession, int64, error) {
	var total int64
	if err := s.filtered(ctx, f).Model(&domain.Possession{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := s.filtered(ctx, f).Order("created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var out []domain.Possession
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindAll returns every matching record, ignoring pagination, ordered by init date.
func (s *PossessionStore) FindAll(ctx context.Context, f PossessionFilter) ([]domain.Possession, error) {
	var out []domain.Possession
	if err := s.filtered(ctx, f).Order("init_date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindInBox returns records in statuses whose coordinates lie inside the bounding box.
func (s *PossessionStore) FindInBox(ctx context.Context, statuses []domain.PossessionStatus, minLat, maxLat, minLon, maxLon float64) ([]domain.Possession, error) {
	var out []domain.Possession
	err := s.filtered(ctx, PossessionFilter{Statuses: statuses, HasLocation: true}).
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLon, maxLon).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StatusCount is one row of a count-by-status aggregate.
type StatusCount struct {
	Status domain.PossessionStatus
	Count  int64
}

// CountByStatus groups matching records by status.
func (s *PossessionStore) CountByStatus(ctx context.Context, f PossessionFilter) ([]StatusCount, error) {
	var rows []StatusCount
	err := s.filtered(ctx, f).Model(&domain.Possession{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountLetterCollected counts matching records whose possession letter was collected.
func (s *PossessionStore) CountLetterCollected(ctx context.Context, f PossessionFilter) (int64, error) {
	var n int64
	err := s.filtered(ctx, f).Model(&domain.Possession{}).Where("letter_collected = ?", true).Count(&n).Error
	return n, err
}

// MaxCodeSuffix returns the highest numeric suffix among codes starting with prefix+"-", 0 if none.
// Soft-deleted rows still hold their code, so they are included.
func (s *PossessionStore) MaxCodeSuffix(ctx context.Context, prefix string) (int, error) {
	var codes []string
	err := s.DB.WithContext(ctx).Model(&domain.Possession{}).
		Where("possession_code LIKE ?", prefix+"-%").
		Pluck("possession_code", &codes).Error
	if err != nil {
		return 0, err
	}
	max := 0
	for _, code := range codes {
		n, err := strconv.Atoi(strings.TrimPrefix(code, prefix+"-"))
		if err == nil && n > max {
			max = n
		}
	}
	return max, nil
}

func (s *PossessionStore) filtered(ctx context.Context, f PossessionFilter) *gorm.DB {
	q := s.DB.WithContext(ctx).Where("is_deleted = ?", false)
	if f.PlotID != "" {
		q = q.Where("plot_id = ?", f.PlotID)
	}
	if f.FileID != "" {
		q = q.Where("file_id = ?", f.FileID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.LetterCollected != nil {
		q = q.Where("letter_collected = ?", *f.LetterCollected)
	}
	if f.CollectorName != "" {
		q = q.Where("LOWER(collector_name) LIKE ?", "%"+strings.ToLower(f.CollectorName)+"%")
	}
	if f.InitFrom != nil {
		q = q.Where("init_date >= ?", *f.InitFrom)
	}
	if f.InitTo != nil {
		q = q.Where("init_date <= ?", *f.InitTo)
	}
	if f.HasLocation {
		q = q.Where("latitude IS NOT NULL AND longitude IS NOT NULL")
	}
	return q
}

// translateWriteError maps unique violations onto store sentinels; anything else is wrapped.
func translateWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "possession_code"):
			return ErrDuplicateCode
		case strings.Contains(pgErr.ConstraintName, "plot_id"):
			return ErrActivePlotConflict
		}
	}
	msg := err.Error()
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(msg, "UNIQUE constraint failed") {
		switch {
		case strings.Contains(msg, "possession_code"):
			return ErrDuplicateCode
		case strings.Contains(msg, "plot_id"):
			return ErrActivePlotConflict
		}
	}
	return fmt.Errorf("possession store: %w", err)
}
