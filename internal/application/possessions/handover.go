package possessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type HandoverValidation struct {
	PossessionID  uuid.UUID    `json:"possession_id"`
	IsValid       bool         `json:"is_valid"`
	MissingFields []FieldError `json:"missing_fields"`
}

// ValidateHandover evaluates every handover precondition and reports all that fail.
// An unknown plot or file counts as a failed check, not an error.
func (s *Service) ValidateHandover(ctx context.Context, id uuid.UUID) (*HandoverValidation, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkHandover(ctx, p)
}

// checkHandover runs the readiness gate against p as given, which may carry unsaved changes.
func (s *Service) checkHandover(ctx context.Context, p *domain.Possession) (*HandoverValidation, error) {
	var plot domain.PlotReadiness
	var file domain.FilePaymentStatus
	var plotMissing, fileMissing bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		r, err := s.Plots.GetPlotReadiness(gctx, p.PlotID)
		s.Metrics.ObserveCollaboratorLatency("plot", time.Since(start))
		if errors.Is(err, domain.ErrReferenceNotFound) {
			plotMissing = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("plot readiness: %w", err)
		}
		plot = r
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		r, err := s.Files.GetFilePaymentStatus(gctx, p.FileID)
		s.Metrics.ObserveCollaboratorLatency("file", time.Since(start))
		if errors.Is(err, domain.ErrReferenceNotFound) {
			fileMissing = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("file payment status: %w", err)
		}
		file = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing fieldErrors
	switch {
	case plotMissing:
		missing.add("plotReadiness", fmt.Sprintf("plot %s not found", p.PlotID))
	case !plot.IsReadyForPossession:
		missing.add("plotReadiness", "plot is not ready for possession")
	}
	switch {
	case fileMissing:
		missing.add("filePayment", fmt.Sprintf("file %s not found", p.FileID))
	case !file.IsCompleted:
		missing.add("filePayment", "file payment is not completed")
	}
	if p.SurveyDate == nil {
		missing.add("surveyDate", "survey date is required")
	}
	if p.SurveyPerson == nil || strings.TrimSpace(*p.SurveyPerson) == "" {
		missing.add("surveyPerson", "survey person is required")
	}
	if p.CertificateRef == nil {
		missing.add("certificateAttachment", "certificate attachment is required")
	}
	if p.PhotoRef == nil {
		missing.add("sitePhotoAttachment", "site photo attachment is required")
	}

	s.Metrics.IncHandoverCheck(len(missing) == 0)
	out := make([]FieldError, 0, len(missing))
	return &HandoverValidation{
		PossessionID:  p.ID,
		IsValid:       len(missing) == 0,
		MissingFields: append(out, missing...),
	}, nil
}

type CertificateInput struct {
	// DocumentRef points at an already stored certificate. When nil the payload itself is stored.
	DocumentRef *string
	Notes       *string
}

type Certificate struct {
	CertificateNumber string                 `json:"certificate_number"`
	IssuedAt          time.Time              `json:"issued_at"`
	IssuedBy          string                 `json:"issued_by"`
	Notes             *string                `json:"notes,omitempty"`
	DocumentRef       string                 `json:"document_ref"`
	Possession        domain.Possession      `json:"possession"`
	Plot              *domain.PlotSummary    `json:"plot"`
	File              *domain.FileSummary    `json:"file"`
	Officer           *domain.OfficerSummary `json:"officer"`
}

// GenerateHandoverCertificate composes the certificate of a handed-over possession and records
// its reference in the certificate slot. That reference is the only write.
func (s *Service) GenerateHandoverCertificate(ctx context.Context, id uuid.UUID, in CertificateInput, actor string) (*Certificate, error) {
	var errs fieldErrors
	if strings.TrimSpace(actor) == "" {
		errs.add("actor", "is required")
	}
	checkRemarks(&errs, "notes", in.Notes)
	if err := errs.err(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusHandedOver {
		return nil, &ValidationError{Fields: []FieldError{{
			Field:   "status",
			Message: fmt.Sprintf("certificate requires status %s, possession is %s", domain.StatusHandedOver, p.Status),
		}}}
	}

	now := s.now()
	cert := &Certificate{
		CertificateNumber: "CERT-" + p.PossessionCode,
		IssuedAt:          now,
		IssuedBy:          actor,
		Notes:             in.Notes,
		Possession:        *p,
	}
	if err := s.gatherCertificateParties(ctx, p, cert); err != nil {
		return nil, err
	}

	ref := trimmed(in.DocumentRef)
	if ref == "" {
		if s.Documents == nil {
			return nil, &ValidationError{Fields: []FieldError{{Field: "documentRef", Message: "is required when no document store is configured"}}}
		}
		body, err := json.Marshal(cert)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("certificates/%s-%d.json", p.PossessionCode, now.Unix())
		if ref, err = s.Documents.Put(ctx, name, "application/json", body); err != nil {
			return nil, fmt.Errorf("store certificate: %w", err)
		}
	}

	updated, err := s.Store.Update(ctx, p.ID, p.Version, map[string]interface{}{
		"certificate_ref": ref,
		"updated_by":      actor,
		"updated_at":      now,
	})
	if err != nil {
		return nil, s.translate(ctx, id.String(), p.PlotID, err)
	}
	cert.DocumentRef = ref
	cert.Possession = *updated
	log.Info().Str("code", p.PossessionCode).Str("certificate", cert.CertificateNumber).Str("actor", actor).Msg("handover certificate issued")
	return cert, nil
}

// gatherCertificateParties loads plot, file and officer summaries in parallel. Unknown references
// leave the summary nil.
func (s *Service) gatherCertificateParties(ctx context.Context, p *domain.Possession, cert *Certificate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		plot, err := s.Plots.GetPlotSummary(gctx, p.PlotID)
		s.Metrics.ObserveCollaboratorLatency("plot", time.Since(start))
		if err != nil && !errors.Is(err, domain.ErrReferenceNotFound) {
			return fmt.Errorf("plot summary: %w", err)
		}
		cert.Plot = plot
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		file, err := s.Files.GetFileSummary(gctx, p.FileID)
		s.Metrics.ObserveCollaboratorLatency("file", time.Since(start))
		if err != nil && !errors.Is(err, domain.ErrReferenceNotFound) {
			return fmt.Errorf("file summary: %w", err)
		}
		cert.File = file
		return nil
	})
	if p.HandoverOfficerID != nil && s.Officers != nil {
		g.Go(func() error {
			start := time.Now()
			officer, err := s.Officers.GetOfficer(gctx, *p.HandoverOfficerID)
			s.Metrics.ObserveCollaboratorLatency("officer", time.Since(start))
			if err != nil && !errors.Is(err, domain.ErrReferenceNotFound) {
				return fmt.Errorf("officer: %w", err)
			}
			cert.Officer = officer
			return nil
		})
	}
	return g.Wait()
}

type AttachmentInput struct {
	Slot        string
	FileName    string
	ContentType string
	Body        []byte
}

// AttachDocument stores a blob and records its reference in the given slot.
func (s *Service) AttachDocument(ctx context.Context, id uuid.UUID, in AttachmentInput, actor string) (*domain.Possession, error) {
	var errs fieldErrors
	column := domain.AttachmentColumn(in.Slot)
	if column == "" {
		errs.add("slot", fmt.Sprintf("must be one of %s, %s, %s", domain.SlotCertificate, domain.SlotPhoto, domain.SlotOther))
	}
	if len(in.Body) == 0 {
		errs.add("file", "is empty")
	}
	if strings.TrimSpace(actor) == "" {
		errs.add("actor", "is required")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if s.Documents == nil {
		return nil, ErrDocumentStoreUnavailable
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Slot == domain.SlotCertificate && p.Status != domain.StatusHandedOver {
		return nil, &ValidationError{Fields: []FieldError{{
			Field:   "slot",
			Message: fmt.Sprintf("certificate can only be attached once %s", domain.StatusHandedOver),
		}}}
	}

	now := s.now()
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := fmt.Sprintf("possessions/%s/%s/%d-%s", p.PossessionCode, in.Slot, now.UnixNano(), safeFileName(in.FileName))
	ref, err := s.Documents.Put(ctx, name, contentType, in.Body)
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}
	updated, err := s.Store.Update(ctx, p.ID, p.Version, map[string]interface{}{
		column:       ref,
		"updated_by": actor,
		"updated_at": now,
	})
	if err != nil {
		return nil, s.translate(ctx, id.String(), p.PlotID, err)
	}
	log.Info().Str("code", p.PossessionCode).Str("slot", in.Slot).Str("actor", actor).Msg("possession document attached")
	return updated, nil
}

func safeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	return base
}
