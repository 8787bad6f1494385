package persistence

import (
	"context"
	"errors"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlotReader answers readiness and summary lookups from the Plots table.
type PlotReader struct {
	DB *gorm.DB
}

func (r *PlotReader) GetPlotReadiness(ctx context.Context, plotID string) (domain.PlotReadiness, error) {
	plot, err := r.find(ctx, plotID)
	if err != nil {
		return domain.PlotReadiness{}, err
	}
	return domain.PlotReadiness{IsReadyForPossession: plot.PossessionReadiness == domain.PlotReadinessReady}, nil
}

func (r *PlotReader) GetPlotSummary(ctx context.Context, plotID string) (*domain.PlotSummary, error) {
	plot, err := r.find(ctx, plotID)
	if err != nil {
		return nil, err
	}
	return &domain.PlotSummary{
		PlotID:     plot.PlotID,
		PlotNumber: plot.PlotNumber,
		Block:      plot.Block,
		Sector:     plot.Sector,
		Size:       plot.Size,
	}, nil
}

func (r *PlotReader) find(ctx context.Context, plotID string) (*domain.Plot, error) {
	var plot domain.Plot
	if err := r.DB.WithContext(ctx).Where("plot_id = ?", plotID).First(&plot).Error; err != nil {
		return nil, lookupError(err)
	}
	return &plot, nil
}

// FileReader answers payment and summary lookups from the Files table.
type FileReader struct {
	DB *gorm.DB
}

func (r *FileReader) GetFilePaymentStatus(ctx context.Context, fileID string) (domain.FilePaymentStatus, error) {
	file, err := r.find(ctx, fileID)
	if err != nil {
		return domain.FilePaymentStatus{}, err
	}
	return domain.FilePaymentStatus{IsCompleted: file.PaymentStatus == domain.FilePaymentCompleted}, nil
}

func (r *FileReader) GetFileSummary(ctx context.Context, fileID string) (*domain.FileSummary, error) {
	file, err := r.find(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &domain.FileSummary{
		FileID:     file.FileID,
		FileNumber: file.FileNumber,
		OwnerName:  file.OwnerName,
		OwnerNIC:   file.OwnerNIC,
	}, nil
}

func (r *FileReader) find(ctx context.Context, fileID string) (*domain.File, error) {
	var file domain.File
	if err := r.DB.WithContext(ctx).Where("file_id = ?", fileID).First(&file).Error; err != nil {
		return nil, lookupError(err)
	}
	return &file, nil
}

// OfficerReader resolves handover officers from Users.
type OfficerReader struct {
	DB *gorm.DB
}

func (r *OfficerReader) GetOfficer(ctx context.Context, officerID string) (*domain.OfficerSummary, error) {
	id, err := uuid.Parse(officerID)
	if err != nil {
		return nil, domain.ErrReferenceNotFound
	}
	var user domain.User
	if err := r.DB.WithContext(ctx).Where("user_id = ?", id).First(&user).Error; err != nil {
		return nil, lookupError(err)
	}
	return &domain.OfficerSummary{OfficerID: user.UserID.String(), Fullname: user.Fullname, Email: user.Email}, nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrReferenceNotFound
	}
	return err
}
