package possessions

import (
	"context"
	"strings"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type CollectorInput struct {
	CollectorName  *string
	CollectorNIC   *string
	Collected      bool
	CollectionDate *time.Time
}

func (in CollectorInput) validate(actor string) error {
	var errs fieldErrors
	name := trimmed(in.CollectorName)
	nic := trimmed(in.CollectorNIC)
	if in.Collected && name == "" {
		errs.add("collectorName", "is required when the letter is collected")
	} else if name != "" && !validation.IsValidPersonName(name) {
		errs.add("collectorName", "must be a name of at most 100 characters")
	}
	if in.Collected && nic == "" {
		errs.add("collectorNic", "is required when the letter is collected")
	} else if nic != "" && !validation.IsValidNIC(nic) {
		errs.add("collectorNic", "must look like 12345-1234567-1 or 13 digits")
	}
	if strings.TrimSpace(actor) == "" {
		errs.add("actor", "is required")
	}
	return errs.err()
}

// UpdateCollectorInfo records who collected the possession letter, or clears the collection.
func (s *Service) UpdateCollectorInfo(ctx context.Context, id uuid.UUID, in CollectorInput, actor string) (*domain.Possession, error) {
	if err := in.validate(actor); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	changes := map[string]interface{}{
		"letter_collected": in.Collected,
		"updated_by":       actor,
		"updated_at":       now,
	}
	if name := trimmed(in.CollectorName); name != "" {
		changes["collector_name"] = name
	}
	if nic := trimmed(in.CollectorNIC); nic != "" {
		changes["collector_nic"] = nic
	}
	if in.Collected {
		date := now
		if in.CollectionDate != nil {
			date = in.CollectionDate.UTC()
		}
		switch {
		case date.Before(p.InitDate):
			return nil, &ValidationError{Fields: []FieldError{{Field: "collectionDate", Message: "must not be before initDate"}}}
		case date.After(now):
			return nil, &ValidationError{Fields: []FieldError{{Field: "collectionDate", Message: "cannot be in the future"}}}
		}
		changes["collection_date"] = date
	} else {
		changes["collection_date"] = nil
	}

	updated, err := s.Store.Update(ctx, p.ID, p.Version, changes)
	if err != nil {
		return nil, s.translate(ctx, id.String(), p.PlotID, err)
	}
	log.Info().Str("code", p.PossessionCode).Bool("collected", in.Collected).Str("actor", actor).Msg("possession collector updated")
	return updated, nil
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
