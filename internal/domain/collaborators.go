package domain

import (
	"context"
	"errors"
)

// ErrReferenceNotFound is returned by collaborator lookups for an unknown plot, file or officer.
var ErrReferenceNotFound = errors.New("referenced record not found")

type PlotReadiness struct {
	IsReadyForPossession bool `json:"is_ready_for_possession"`
}

type PlotSummary struct {
	PlotID     string  `json:"plot_id"`
	PlotNumber string  `json:"plot_number"`
	Block      *string `json:"block"`
	Sector     *string `json:"sector"`
	Size       *string `json:"size"`
}

// PlotDirectory is the plots module as seen by the possession engine.
type PlotDirectory interface {
	GetPlotReadiness(ctx context.Context, plotID string) (PlotReadiness, error)
	GetPlotSummary(ctx context.Context, plotID string) (*PlotSummary, error)
}

type FilePaymentStatus struct {
	IsCompleted bool `json:"is_completed"`
}

type FileSummary struct {
	FileID     string  `json:"file_id"`
	FileNumber string  `json:"file_number"`
	OwnerName  string  `json:"owner_name"`
	OwnerNIC   *string `json:"owner_nic"`
}

// FileDirectory is the files module as seen by the possession engine.
type FileDirectory interface {
	GetFilePaymentStatus(ctx context.Context, fileID string) (FilePaymentStatus, error)
	GetFileSummary(ctx context.Context, fileID string) (*FileSummary, error)
}

type OfficerSummary struct {
	OfficerID string `json:"officer_id"`
	Fullname  string `json:"fullname"`
	Email     string `json:"email"`
}

// OfficerDirectory resolves staff references.
type OfficerDirectory interface {
	GetOfficer(ctx context.Context, officerID string) (*OfficerSummary, error)
}

// DocumentStore keeps opaque blobs and hands back a stable reference string.
type DocumentStore interface {
	Put(ctx context.Context, name, contentType string, body []byte) (string, error)
}
