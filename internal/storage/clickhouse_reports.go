package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/radiusdt/campaign-aggregator/internal/models"
)

const createCampaignReports = `
	CREATE TABLE IF NOT EXISTS campaign_reports (
		run_id       String,
		report       LowCardinality(String),
		rank         UInt32,
		campaign_id  String,
		impressions  Int64,
		clicks       Int64,
		spend        Float64,
		conversions  Int64,
		ctr          Float64,
		cpa          Nullable(Float64),
		source_file  String,
		completed_at DateTime
	)
	ENGINE = MergeTree
	ORDER BY (run_id, report, rank)
`

// ClickHouseReportStore implements Publisher by batch-inserting report rows
// into ClickHouse.
type ClickHouseReportStore struct {
	conn driver.Conn
}

// NewClickHouseReportStore creates a ClickHouse-backed report store.
func NewClickHouseReportStore(conn driver.Conn) *ClickHouseReportStore {
	return &ClickHouseReportStore{conn: conn}
}

func (s *ClickHouseReportStore) Name() string {
	return "clickhouse"
}

// EnsureSchema creates the report table if it does not exist.
func (s *ClickHouseReportStore) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createCampaignReports); err != nil {
		return fmt.Errorf("failed to create campaign_reports: %w", err)
	}
	return nil
}

// Publish sends all report rows as a single batch.
func (s *ClickHouseReportStore) Publish(ctx context.Context, run Run, reports models.Reports) error {
	rows := Flatten(reports)
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO campaign_reports")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range rows {
		if err := batch.Append(
			run.ID, r.Report, uint32(r.Rank), r.CampaignID,
			r.Impressions, r.Clicks, r.Spend, r.Conversions,
			r.CTR, r.CPAValue(), run.Input, run.CompletedAt,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("failed to append %s rank %d: %w", r.Report, r.Rank, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
