package possessionreports

import (
	"context"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/persistence"
)

type DurationStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average_days"`
	Min     int     `json:"min_days"`
	Max     int     `json:"max_days"`
}

type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Statistics struct {
	Total           int64                             `json:"total"`
	ByStatus        map[domain.PossessionStatus]int64 `json:"by_status"`
	LetterCollected int64                             `json:"letter_collected"`
	Handover        DurationStats                     `json:"handover"`
	Distribution    []Bucket                          `json:"distribution"`
}

// distribution bucket upper bounds in days; the last bucket is open-ended.
var bucketBounds = []struct {
	label string
	max   int
}{
	{"0-30", 30},
	{"31-60", 60},
	{"61-90", 90},
	{"91+", -1},
}

// Statistics aggregates possessions whose init date falls in [from, to]. Either bound may be nil.
// Handover durations and the distribution only cover handed-over records.
func (s *Service) Statistics(ctx context.Context, from, to *time.Time) (*Statistics, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, invalid("endDate", "must not be before startDate")
	}
	f := persistence.PossessionFilter{InitFrom: from, InitTo: to}

	counts, err := s.Store.CountByStatus(ctx, f)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{ByStatus: make(map[domain.PossessionStatus]int64, len(domain.AllStatuses))}
	for _, st := range domain.AllStatuses {
		stats.ByStatus[st] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}
	if stats.LetterCollected, err = s.Store.CountLetterCollected(ctx, f); err != nil {
		return nil, err
	}

	f.Statuses = []domain.PossessionStatus{domain.StatusHandedOver}
	handed, err := s.Store.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}
	stats.Distribution = make([]Bucket, len(bucketBounds))
	for i, b := range bucketBounds {
		stats.Distribution[i].Label = b.label
	}
	now := s.now()
	sum := 0
	for i := range handed {
		d := handed[i].DurationDays(now)
		sum += d
		if stats.Handover.Count == 0 || d < stats.Handover.Min {
			stats.Handover.Min = d
		}
		if d > stats.Handover.Max {
			stats.Handover.Max = d
		}
		stats.Handover.Count++
		stats.Distribution[bucketFor(d)].Count++
	}
	if stats.Handover.Count > 0 {
		stats.Handover.Average = float64(sum) / float64(stats.Handover.Count)
	}
	return stats, nil
}

func bucketFor(days int) int {
	for i, b := range bucketBounds {
		if b.max < 0 || days <= b.max {
			return i
		}
	}
	return len(bucketBounds) - 1
}
