package possessionreports

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"estate-backend/internal/domain"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInitiated       EventType = "INITIATED"
	EventSurveyed        EventType = "SURVEYED"
	EventHandedOver      EventType = "HANDED_OVER"
	EventLetterCollected EventType = "LETTER_COLLECTED"
	EventUpdated         EventType = "UPDATED"
	EventCurrentStatus   EventType = "CURRENT_STATUS"
)

type Event struct {
	Type        EventType               `json:"type"`
	Date        time.Time               `json:"date"`
	Status      domain.PossessionStatus `json:"status,omitempty"`
	Description string                  `json:"description"`
}

// Timeline rebuilds the possession's history from its stored dates plus a current-status
// event stamped now, oldest first. The sequence can be ranged over any number of times.
func (s *Service) Timeline(ctx context.Context, id uuid.UUID) (iter.Seq[Event], error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return func(yield func(Event) bool) {
		for _, e := range timelineEvents(p, now) {
			if !yield(e) {
				return
			}
		}
	}, nil
}

func timelineEvents(p *domain.Possession, now time.Time) []Event {
	events := []Event{{
		Type:        EventInitiated,
		Date:        p.InitDate,
		Description: fmt.Sprintf("Possession %s requested for plot %s", p.PossessionCode, p.PlotID),
	}}
	if p.SurveyDate != nil {
		desc := "Plot surveyed"
		if p.SurveyPerson != nil {
			desc = "Plot surveyed by " + *p.SurveyPerson
		}
		events = append(events, Event{Type: EventSurveyed, Date: *p.SurveyDate, Description: desc})
	}
	if p.HandoverDate != nil {
		events = append(events, Event{Type: EventHandedOver, Date: *p.HandoverDate, Description: "Possession handed over"})
	}
	if p.LetterCollected && p.CollectionDate != nil {
		desc := "Possession letter collected"
		if p.CollectorName != nil {
			desc += " by " + *p.CollectorName
		}
		events = append(events, Event{Type: EventLetterCollected, Date: *p.CollectionDate, Description: desc})
	}
	if p.UpdatedAt.After(p.CreatedAt) {
		events = append(events, Event{
			Type:        EventUpdated,
			Date:        p.UpdatedAt,
			Status:      p.Status,
			Description: "Last updated by " + p.UpdatedBy,
		})
	}
	events = append(events, Event{
		Type:        EventCurrentStatus,
		Date:        now,
		Status:      p.Status,
		Description: "Current status: " + string(p.Status),
	})
	// Stored dates written before future dates were rejected can still lie after now.
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events
}
