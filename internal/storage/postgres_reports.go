package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/campaign-aggregator/internal/models"
)

const createCampaignReportRows = `
	CREATE TABLE IF NOT EXISTS campaign_report_rows (
		run_id       TEXT             NOT NULL,
		report       TEXT             NOT NULL,
		rank         INTEGER          NOT NULL,
		campaign_id  TEXT             NOT NULL,
		impressions  BIGINT           NOT NULL,
		clicks       BIGINT           NOT NULL,
		spend        DOUBLE PRECISION NOT NULL,
		conversions  BIGINT           NOT NULL,
		ctr          DOUBLE PRECISION NOT NULL,
		cpa          DOUBLE PRECISION,
		source_file  TEXT             NOT NULL,
		completed_at TIMESTAMPTZ      NOT NULL,
		PRIMARY KEY (run_id, report, rank)
	)
`

const upsertCampaignReportRow = `
	INSERT INTO campaign_report_rows (
		run_id, report, rank, campaign_id, impressions, clicks, spend,
		conversions, ctr, cpa, source_file, completed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (run_id, report, rank) DO UPDATE SET
		campaign_id = EXCLUDED.campaign_id,
		impressions = EXCLUDED.impressions,
		clicks = EXCLUDED.clicks,
		spend = EXCLUDED.spend,
		conversions = EXCLUDED.conversions,
		ctr = EXCLUDED.ctr,
		cpa = EXCLUDED.cpa,
		source_file = EXCLUDED.source_file,
		completed_at = EXCLUDED.completed_at
`

// PostgresReportStore implements Publisher using PostgreSQL.
type PostgresReportStore struct {
	pool *pgxpool.Pool
}

// NewPostgresReportStore creates a PostgreSQL-backed report store.
func NewPostgresReportStore(pool *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{pool: pool}
}

func (s *PostgresReportStore) Name() string {
	return "postgres"
}

// EnsureSchema creates the report table if it does not exist.
func (s *PostgresReportStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createCampaignReportRows); err != nil {
		return fmt.Errorf("failed to create campaign_report_rows: %w", err)
	}
	return nil
}

// Publish upserts every report row in one batch.
func (s *PostgresReportStore) Publish(ctx context.Context, run Run, reports models.Reports) error {
	rows := Flatten(reports)
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertCampaignReportRow,
			run.ID, r.Report, r.Rank, r.CampaignID,
			r.Impressions, r.Clicks, r.Spend, r.Conversions,
			r.CTR, r.CPAValue(), run.Input, run.CompletedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	for _, r := range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to save %s rank %d: %w", r.Report, r.Rank, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to save report rows: %w", err)
	}
	return nil
}
