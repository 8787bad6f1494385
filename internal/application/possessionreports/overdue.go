package possessionreports

import (
	"context"

	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/persistence"
)

type OverduePossession struct {
	domain.Possession
	PossessionDurationDays int `json:"possession_duration_days"`
	OverdueDays            int `json:"overdue_days"`
}

// Overdue lists active possessions requested more than daysThreshold days ago, oldest first.
// A non-positive threshold falls back to the service default.
func (s *Service) Overdue(ctx context.Context, daysThreshold int) ([]OverduePossession, error) {
	if daysThreshold <= 0 {
		daysThreshold = s.OverdueDays
	}
	if daysThreshold <= 0 {
		daysThreshold = DefaultOverdueDays
	}
	now := s.now()
	cutoff := now.AddDate(0, 0, -daysThreshold)

	rows, err := s.Store.FindAll(ctx, persistence.PossessionFilter{
		Statuses: activeStatuses(),
		InitTo:   &cutoff,
	})
	if err != nil {
		return nil, err
	}
	out := make([]OverduePossession, 0, len(rows))
	for _, p := range rows {
		if !p.InitDate.Before(cutoff) {
			continue
		}
		d := p.DurationDays(now)
		out = append(out, OverduePossession{
			Possession:             p,
			PossessionDurationDays: d,
			OverdueDays:            d - daysThreshold,
		})
	}
	return out, nil
}

func activeStatuses() []domain.PossessionStatus {
	var out []domain.PossessionStatus
	for _, st := range domain.AllStatuses {
		if st.Active() {
			out = append(out, st)
		}
	}
	return out
}
