package possessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TransitionInput holds the optional fields merged into the record with a status change.
// Nil fields leave the stored value alone.
type TransitionInput struct {
	SurveyPerson      *string
	SurveyDate        *time.Time
	HandoverDate      *time.Time
	HandoverOfficerID *string
	Remarks           *string
	SurveyRemarks     *string
	HandoverRemarks   *string
	CertificateRef    *string
	PhotoRef          *string
	OtherRef          *string
}

func (in TransitionInput) validate(errs *fieldErrors) {
	if in.SurveyPerson != nil && !validation.IsValidPersonName(*in.SurveyPerson) {
		errs.add("surveyPerson", fmt.Sprintf("must be a name of at most %d characters", validation.MaxNameLength))
	}
	checkRemarks(errs, "remarks", in.Remarks)
	checkRemarks(errs, "surveyRemarks", in.SurveyRemarks)
	checkRemarks(errs, "handoverRemarks", in.HandoverRemarks)
	refs := []struct {
		field string
		ref   *string
	}{{"certificateRef", in.CertificateRef}, {"photoRef", in.PhotoRef}, {"otherRef", in.OtherRef}}
	for _, r := range refs {
		if r.ref != nil && strings.TrimSpace(*r.ref) == "" {
			errs.add(r.field, "must not be blank")
		}
	}
}

// Transition moves a possession to status to. Moving to the current status is a no-op and writes nothing.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to domain.PossessionStatus, in TransitionInput, actor string) (*domain.Possession, error) {
	p, _, err := s.transition(ctx, id, to, in, actor)
	return p, err
}

// transition reports whether a write happened.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to domain.PossessionStatus, in TransitionInput, actor string) (*domain.Possession, bool, error) {
	var errs fieldErrors
	if !to.Valid() {
		errs.add("status", fmt.Sprintf("unknown status %q", to))
	}
	if strings.TrimSpace(actor) == "" {
		errs.add("actor", "is required")
	}
	in.validate(&errs)
	if err := errs.err(); err != nil {
		return nil, false, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !domain.CanTransition(p.Status, to) {
		return nil, false, &IllegalTransitionError{From: p.Status, To: to}
	}
	if p.Status == to {
		return p, false, nil
	}

	now := s.now()
	changes, err := transitionChanges(p, to, in, actor, now)
	if err != nil {
		return nil, false, err
	}
	if p.Status == domain.StatusCancelled && to == domain.StatusRequested {
		if err := s.ensurePlotFree(ctx, p.PlotID); err != nil {
			return nil, false, err
		}
	}
	if to == domain.StatusHandedOver && s.RequireHandoverGate {
		check, err := s.checkHandover(ctx, withGateFields(p, changes))
		if err != nil {
			return nil, false, err
		}
		if !check.IsValid {
			return nil, false, &ValidationError{Fields: check.MissingFields}
		}
	}

	updated, err := s.Store.Update(ctx, p.ID, p.Version, changes)
	if err != nil {
		return nil, false, s.translate(ctx, id.String(), p.PlotID, err)
	}
	s.Metrics.IncTransition(string(p.Status), string(to))
	log.Info().
		Str("code", p.PossessionCode).
		Str("from", string(p.Status)).
		Str("to", string(to)).
		Str("actor", actor).
		Msg("possession transitioned")
	return updated, true, nil
}

// transitionChanges builds the column updates for p -> to, stamping survey and handover dates
// on first entry and checking every resulting date lies between initDate and now.
func transitionChanges(p *domain.Possession, to domain.PossessionStatus, in TransitionInput, actor string, now time.Time) (map[string]interface{}, error) {
	changes := map[string]interface{}{
		"status":     to,
		"updated_by": actor,
		"updated_at": now,
	}
	var errs fieldErrors

	surveyDate := in.SurveyDate
	if surveyDate == nil && to == domain.StatusSurveyed && p.SurveyDate == nil {
		surveyDate = &now
	}
	if surveyDate != nil {
		if surveyDate.Before(p.InitDate) {
			errs.add("surveyDate", "must not be before initDate")
		}
		if surveyDate.After(now) {
			errs.add("surveyDate", "cannot be in the future")
		}
		changes["survey_date"] = surveyDate.UTC()
	}

	handoverDate := in.HandoverDate
	if handoverDate == nil && to == domain.StatusHandedOver && p.HandoverDate == nil {
		handoverDate = &now
	}
	if handoverDate != nil {
		if handoverDate.Before(p.InitDate) {
			errs.add("handoverDate", "must not be before initDate")
		}
		if handoverDate.After(now) {
			errs.add("handoverDate", "cannot be in the future")
		}
		changes["handover_date"] = handoverDate.UTC()
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	merge := func(column string, v *string) {
		if v != nil {
			changes[column] = *v
		}
	}
	if in.SurveyPerson != nil {
		trimmed := strings.TrimSpace(*in.SurveyPerson)
		merge("survey_person", &trimmed)
	}
	merge("handover_officer_id", in.HandoverOfficerID)
	merge("remarks", in.Remarks)
	merge("survey_remarks", in.SurveyRemarks)
	merge("handover_remarks", in.HandoverRemarks)
	merge(domain.AttachmentColumn(domain.SlotCertificate), in.CertificateRef)
	merge(domain.AttachmentColumn(domain.SlotPhoto), in.PhotoRef)
	merge(domain.AttachmentColumn(domain.SlotOther), in.OtherRef)
	return changes, nil
}

// withGateFields returns a copy of p with the pending survey and attachment changes applied,
// so the handover gate sees what the transition is about to write.
func withGateFields(p *domain.Possession, changes map[string]interface{}) *domain.Possession {
	next := *p
	if v, ok := changes["survey_date"].(time.Time); ok {
		next.SurveyDate = &v
	}
	if v, ok := changes["survey_person"].(string); ok {
		next.SurveyPerson = &v
	}
	if v, ok := changes[domain.AttachmentColumn(domain.SlotCertificate)].(string); ok {
		next.CertificateRef = &v
	}
	if v, ok := changes[domain.AttachmentColumn(domain.SlotPhoto)].(string); ok {
		next.PhotoRef = &v
	}
	return &next
}

type BulkResult struct {
	Matched  int      `json:"matched"`
	Modified int      `json:"modified"`
	Errors   []string `json:"errors"`
}

// BulkTransition applies Transition to each id on its own. A failing id is reported and skipped;
// ids that do not resolve are not counted as matched.
func (s *Service) BulkTransition(ctx context.Context, ids []uuid.UUID, to domain.PossessionStatus, remarks *string, actor string) (*BulkResult, error) {
	var errs fieldErrors
	if len(ids) == 0 {
		errs.add("ids", "at least one id is required")
	}
	if !to.Valid() {
		errs.add("status", fmt.Sprintf("unknown status %q", to))
	}
	if strings.TrimSpace(actor) == "" {
		errs.add("actor", "is required")
	}
	checkRemarks(&errs, "remarks", remarks)
	if err := errs.err(); err != nil {
		return nil, err
	}

	res := &BulkResult{Errors: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		_, changed, err := s.transition(ctx, id, to, TransitionInput{Remarks: remarks}, actor)
		if errors.Is(err, ErrNotFound) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		res.Matched++
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if changed {
			res.Modified++
		}
	}
	log.Info().
		Str("to", string(to)).
		Int("matched", res.Matched).
		Int("modified", res.Modified).
		Int("failed", len(res.Errors)).
		Str("actor", actor).
		Msg("bulk possession transition")
	return res, nil
}
