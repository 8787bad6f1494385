package persistence

import (
	"context"
	"testing"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPossession(code, plot string, status domain.PossessionStatus) *domain.Possession {
	return &domain.Possession{
		PossessionCode: code,
		FileID:         "F-" + plot,
		PlotID:         plot,
		Status:         status,
		InitDate:       time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		CreatedBy:      "tester",
		UpdatedBy:      "tester",
	}
}

func TestCreate_DuplicateCode(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-001", "P1", domain.StatusRequested)))
	err := s.Create(ctx, newPossession("POS-20250101-001", "P2", domain.StatusRequested))
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestCreate_ActivePlotIndex(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-001", "P1", domain.StatusRequested)))
	err := s.Create(ctx, newPossession("POS-20250101-002", "P1", domain.StatusOnHold))
	assert.ErrorIs(t, err, ErrActivePlotConflict)

	// Inactive records do not count against the plot.
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-003", "P1", domain.StatusCancelled)))
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-004", "P1", domain.StatusHandedOver)))
}

func TestUpdate_VersionConflict(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()
	p := newPossession("POS-20250101-001", "P1", domain.StatusRequested)
	require.NoError(t, s.Create(ctx, p))

	updated, err := s.Update(ctx, p.ID, 1, map[string]interface{}{"status": domain.StatusSurveyed})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSurveyed, updated.Status)
	assert.Equal(t, 2, updated.Version)

	_, err = s.Update(ctx, p.ID, 1, map[string]interface{}{"status": domain.StatusCancelled})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestFindByID_SoftDeletedIsInvisible(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()
	p := newPossession("POS-20250101-001", "P1", domain.StatusRequested)
	require.NoError(t, s.Create(ctx, p))

	require.NoError(t, s.SoftDelete(ctx, p.ID, 1, "tester", time.Now().UTC()))

	_, err := s.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = s.FindByCode(ctx, "POS-20250101-001")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = s.FindActiveByPlot(ctx, "P1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// The plot is free again once its active record is deleted.
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-002", "P1", domain.StatusRequested)))
}

func TestQuery_FiltersAndPaginates(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()
	for i, plot := range []string{"P1", "P2", "P3", "P4"} {
		p := newPossession("POS-20250101-00"+string(rune('1'+i)), plot, domain.StatusRequested)
		if plot == "P3" {
			name := "Ayesha Malik"
			p.LetterCollected = true
			p.CollectorName = &name
		}
		require.NoError(t, s.Create(ctx, p))
	}

	page, total, err := s.Query(ctx, PossessionFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, page, 2)

	collected := true
	page, total, err = s.Query(ctx, PossessionFilter{LetterCollected: &collected, CollectorName: "malik"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "P3", page[0].PlotID)
}

func TestMaxCodeSuffix(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-009", "P1", domain.StatusRequested)))
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-1000", "P2", domain.StatusRequested)))
	require.NoError(t, s.Create(ctx, newPossession("POS-20250102-050", "P3", domain.StatusRequested)))

	n, err := s.MaxCodeSuffix(ctx, "POS-20250101")
	require.NoError(t, err)
	assert.Equal(t, 1000, n)

	n, err = s.MaxCodeSuffix(ctx, "POS-20250103")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountByStatus(t *testing.T) {
	s := &PossessionStore{DB: testutil.OpenDB(t)}
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-001", "P1", domain.StatusRequested)))
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-002", "P2", domain.StatusRequested)))
	require.NoError(t, s.Create(ctx, newPossession("POS-20250101-003", "P3", domain.StatusHandedOver)))

	rows, err := s.CountByStatus(ctx, PossessionFilter{})
	require.NoError(t, err)
	counts := map[domain.PossessionStatus]int64{}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	assert.Equal(t, int64(2), counts[domain.StatusRequested])
	assert.Equal(t, int64(1), counts[domain.StatusHandedOver])
}
