package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/radiusdt/campaign-aggregator/internal/report"
	"github.com/redis/go-redis/v9"
)

// LatestRunKey holds the ID of the most recent published run.
const LatestRunKey = "reports:latest"

// RedisLeaderboard publishes each ranking as a sorted set scored by its
// metric, plus one hash of totals per ranked campaign.
type RedisLeaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLeaderboard creates a Redis-backed publisher. Keys expire after ttl.
func NewRedisLeaderboard(client *redis.Client, ttl time.Duration) *RedisLeaderboard {
	return &RedisLeaderboard{client: client, ttl: ttl}
}

func (p *RedisLeaderboard) Name() string {
	return "redis"
}

// RankingKey returns the sorted-set key for a report of a run.
func RankingKey(runID, reportName string) string {
	return fmt.Sprintf("reports:%s:%s", runID, reportName)
}

// CampaignKey returns the hash key holding a campaign's totals for a run.
func CampaignKey(runID, campaignID string) string {
	return fmt.Sprintf("reports:%s:campaign:%s", runID, campaignID)
}

// MetaKey returns the hash key describing a run.
func MetaKey(runID string) string {
	return fmt.Sprintf("reports:%s:meta", runID)
}

// Publish writes the whole run in one MULTI/EXEC transaction.
func (p *RedisLeaderboard) Publish(ctx context.Context, run Run, reports models.Reports) error {
	pipe := p.client.TxPipeline()

	ctrKey := RankingKey(run.ID, report.NameTopCTR)
	cpaKey := RankingKey(run.ID, report.NameTopCPA)
	ranked := make(map[string]models.CampaignMetrics)

	for _, r := range Flatten(reports) {
		key := ctrKey
		score := r.CTR
		if r.Report == report.NameTopCPA {
			key = cpaKey
			score, _ = r.CPA.Get()
		}
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: r.CampaignID})
		ranked[r.CampaignID] = r.CampaignMetrics
	}
	pipe.Expire(ctx, ctrKey, p.ttl)
	pipe.Expire(ctx, cpaKey, p.ttl)

	for id, m := range ranked {
		key := CampaignKey(run.ID, id)
		pipe.HSet(ctx, key, CampaignFields(m))
		pipe.Expire(ctx, key, p.ttl)
	}

	metaKey := MetaKey(run.ID)
	pipe.HSet(ctx, metaKey, map[string]interface{}{
		"input":        run.Input,
		"completed_at": run.CompletedAt.UTC().Format(time.RFC3339),
		"campaigns":    len(ranked),
	})
	pipe.Expire(ctx, metaKey, p.ttl)
	pipe.Set(ctx, LatestRunKey, run.ID, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", run.ID, err)
	}
	return nil
}

// CampaignFields renders a record as hash fields, formatted like the CSV
// reports. An absent CPA is stored as an empty string.
func CampaignFields(m models.CampaignMetrics) map[string]interface{} {
	row := report.Row(m)
	fields := make(map[string]interface{}, len(report.Header)-1)
	for i, name := range report.Header[1:] {
		fields[name] = row[i+1]
	}
	return fields
}
