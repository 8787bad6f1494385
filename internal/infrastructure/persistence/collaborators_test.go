package persistence

import (
	"context"
	"testing"

	"estate-backend/internal/domain"
	"estate-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotReader(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, db.Create(&domain.Plot{PlotID: "P1", PlotNumber: "12-A", PossessionReadiness: domain.PlotReadinessReady}).Error)
	require.NoError(t, db.Create(&domain.Plot{PlotID: "P2", PlotNumber: "12-B", PossessionReadiness: "pending"}).Error)
	r := &PlotReader{DB: db}
	ctx := context.Background()

	ready, err := r.GetPlotReadiness(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, ready.IsReadyForPossession)

	ready, err = r.GetPlotReadiness(ctx, "P2")
	require.NoError(t, err)
	assert.False(t, ready.IsReadyForPossession)

	_, err = r.GetPlotReadiness(ctx, "P3")
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)

	summary, err := r.GetPlotSummary(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "12-A", summary.PlotNumber)
}

func TestFileReader(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, db.Create(&domain.File{FileID: "F1", FileNumber: "F-100", OwnerName: "Sana Iqbal", PaymentStatus: domain.FilePaymentCompleted}).Error)
	r := &FileReader{DB: db}

	status, err := r.GetFilePaymentStatus(context.Background(), "F1")
	require.NoError(t, err)
	assert.True(t, status.IsCompleted)

	_, err = r.GetFileSummary(context.Background(), "F2")
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
}

func TestOfficerReader(t *testing.T) {
	db := testutil.OpenDB(t)
	u := &domain.User{Fullname: "Bilal Ahmed", Email: "bilal@example.com", Role: "admin"}
	require.NoError(t, db.Create(u).Error)
	r := &OfficerReader{DB: db}

	officer, err := r.GetOfficer(context.Background(), u.UserID.String())
	require.NoError(t, err)
	assert.Equal(t, "Bilal Ahmed", officer.Fullname)

	_, err = r.GetOfficer(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
}
