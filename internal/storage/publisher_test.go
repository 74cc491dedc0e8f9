package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	name  string
	err   error
	calls *[]string
}

func (p recordingPublisher) Name() string { return p.name }

func (p recordingPublisher) Publish(ctx context.Context, run Run, reports models.Reports) error {
	*p.calls = append(*p.calls, p.name)
	return p.err
}

func sampleReports() models.Reports {
	a := models.CampaignMetrics{
		CampaignID:  "A",
		Accumulator: models.Accumulator{Impressions: 200, Clicks: 15, Spend: 10, Conversions: 1},
		CTR:         0.075,
		CPA:         models.Some(10),
	}
	b := models.CampaignMetrics{CampaignID: "B"}
	return models.Reports{
		TopCTR: []models.CampaignMetrics{a, b},
		TopCPA: []models.CampaignMetrics{a},
	}
}

func TestFlatten(t *testing.T) {
	rows := Flatten(sampleReports())
	require.Len(t, rows, 3)

	assert.Equal(t, "top_ctr", rows[0].Report)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "A", rows[0].CampaignID)

	assert.Equal(t, "top_ctr", rows[1].Report)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Nil(t, rows[1].CPAValue())

	assert.Equal(t, "top_cpa", rows[2].Report)
	assert.Equal(t, 1, rows[2].Rank)
	require.NotNil(t, rows[2].CPAValue())
	assert.Equal(t, 10.0, *rows[2].CPAValue())

	assert.Empty(t, Flatten(models.Reports{}))
}

func TestMultiStopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("connection refused")
	m := Multi{
		recordingPublisher{name: "postgres", calls: &calls},
		recordingPublisher{name: "redis", err: boom, calls: &calls},
		recordingPublisher{name: "clickhouse", calls: &calls},
	}

	err := m.Publish(context.Background(), Run{ID: "run-1"}, sampleReports())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "redis: connection refused", err.Error())
	assert.Equal(t, []string{"postgres", "redis"}, calls)
}

func TestMultiEmpty(t *testing.T) {
	assert.NoError(t, Multi(nil).Publish(context.Background(), Run{}, sampleReports()))
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "reports:r1:top_ctr", RankingKey("r1", "top_ctr"))
	assert.Equal(t, "reports:r1:campaign:CMP001", CampaignKey("r1", "CMP001"))
	assert.Equal(t, "reports:r1:meta", MetaKey("r1"))
}

func TestCampaignFields(t *testing.T) {
	r := sampleReports()
	assert.Equal(t, map[string]interface{}{
		"impressions": "200",
		"clicks":      "15",
		"spend":       "10.0000",
		"conversions": "1",
		"ctr":         "0.0750",
		"cpa":         "10.0000",
	}, CampaignFields(r.TopCTR[0]))

	assert.Equal(t, "", CampaignFields(r.TopCTR[1])["cpa"])
}
