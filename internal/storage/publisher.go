package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/radiusdt/campaign-aggregator/internal/report"
)

// Run identifies one aggregation run.
type Run struct {
	ID          string
	Input       string
	CompletedAt time.Time
}

// Publisher ships finished reports to an external store.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, run Run, reports models.Reports) error
}

// Multi publishes to each publisher in order and stops at the first failure.
type Multi []Publisher

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Publish(ctx context.Context, run Run, reports models.Reports) error {
	for _, p := range m {
		if err := p.Publish(ctx, run, reports); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// ReportRow is one ranked record in flattened form.
type ReportRow struct {
	Report string
	Rank   int
	models.CampaignMetrics
}

// CPAValue returns the CPA as a pointer, nil when absent. Drivers map a
// nil pointer to SQL NULL.
func (r ReportRow) CPAValue() *float64 {
	v, ok := r.CPA.Get()
	if !ok {
		return nil
	}
	return &v
}

// Flatten lists the rows of both reports with 1-based ranks.
func Flatten(reports models.Reports) []ReportRow {
	rows := make([]ReportRow, 0, len(reports.TopCTR)+len(reports.TopCPA))
	for i, m := range reports.TopCTR {
		rows = append(rows, ReportRow{Report: report.NameTopCTR, Rank: i + 1, CampaignMetrics: m})
	}
	for i, m := range reports.TopCPA {
		rows = append(rows, ReportRow{Report: report.NameTopCPA, Rank: i + 1, CampaignMetrics: m})
	}
	return rows
}
