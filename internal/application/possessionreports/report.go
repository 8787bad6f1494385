package possessionreports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"estate-backend/internal/domain"
	"estate-backend/internal/infrastructure/persistence"
)

type ReportFilter struct {
	PlotID          string
	FileID          string
	Statuses        []domain.PossessionStatus
	LetterCollected *bool
	InitFrom        *time.Time
	InitTo          *time.Time
}

type ReportRow struct {
	PossessionCode         string                  `json:"possession_code"`
	PlotID                 string                  `json:"plot_id"`
	FileID                 string                  `json:"file_id"`
	Status                 domain.PossessionStatus `json:"status"`
	InitDate               time.Time               `json:"init_date"`
	SurveyDate             *time.Time              `json:"survey_date"`
	HandoverDate           *time.Time              `json:"handover_date"`
	PossessionDurationDays int                     `json:"possession_duration_days"`
	LetterCollected        bool                    `json:"letter_collected"`
	CollectorName          string                  `json:"collector_name"`
}

// Report returns one row per matching possession, oldest request first.
func (s *Service) Report(ctx context.Context, f ReportFilter) ([]ReportRow, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, invalid("status", "unknown status "+string(st))
		}
	}
	rows, err := s.Store.FindAll(ctx, persistence.PossessionFilter{
		PlotID:          f.PlotID,
		FileID:          f.FileID,
		Statuses:        f.Statuses,
		LetterCollected: f.LetterCollected,
		InitFrom:        f.InitFrom,
		InitTo:          f.InitTo,
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ReportRow, 0, len(rows))
	for i := range rows {
		p := &rows[i]
		row := ReportRow{
			PossessionCode:         p.PossessionCode,
			PlotID:                 p.PlotID,
			FileID:                 p.FileID,
			Status:                 p.Status,
			InitDate:               p.InitDate,
			SurveyDate:             p.SurveyDate,
			HandoverDate:           p.HandoverDate,
			PossessionDurationDays: p.DurationDays(now),
			LetterCollected:        p.LetterCollected,
		}
		if p.CollectorName != nil {
			row.CollectorName = *p.CollectorName
		}
		out = append(out, row)
	}
	return out, nil
}

var csvHeader = []string{
	"possession_code", "plot_id", "file_id", "status", "init_date", "survey_date",
	"handover_date", "possession_duration_days", "letter_collected", "collector_name",
}

// WriteCSV renders rows with a header line. Dates are YYYY-MM-DD, missing dates are empty.
func WriteCSV(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.PossessionCode,
			r.PlotID,
			r.FileID,
			string(r.Status),
			r.InitDate.Format(time.DateOnly),
			formatDate(r.SurveyDate),
			formatDate(r.HandoverDate),
			strconv.Itoa(r.PossessionDurationDays),
			strconv.FormatBool(r.LetterCollected),
			r.CollectorName,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
