package possessions

import (
	"time"

	"estate-backend/internal/domain"
)

// View is a possession plus the values derived on read.
type View struct {
	domain.Possession
	PossessionDurationDays int                       `json:"possession_duration_days"`
	AllowedTransitions     []domain.PossessionStatus `json:"allowed_transitions"`
}

func NewView(p *domain.Possession, now time.Time) View {
	return View{
		Possession:             *p,
		PossessionDurationDays: p.DurationDays(now),
		AllowedTransitions:     domain.NextStatuses(p.Status),
	}
}
