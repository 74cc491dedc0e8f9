package aggregate

import (
	"github.com/radiusdt/campaign-aggregator/internal/models"
)

// ComputeMetrics derives one record per campaign in t. Records are ordered
// by campaign identifier so that later stable sorts break ties the same way
// on every run.
func ComputeMetrics(t *Table) []models.CampaignMetrics {
	ids := t.IDs()
	out := make([]models.CampaignMetrics, 0, len(ids))
	for _, id := range ids {
		out = append(out, Derive(id, *t.campaigns[id]))
	}
	return out
}

// Derive computes CTR and CPA from final totals.
func Derive(campaignID string, acc models.Accumulator) models.CampaignMetrics {
	m := models.CampaignMetrics{
		CampaignID:  campaignID,
		Accumulator: acc,
	}

	// CTR
	if acc.Impressions > 0 {
		m.CTR = float64(acc.Clicks) / float64(acc.Impressions)
	}

	// CPA
	if acc.Conversions > 0 {
		m.CPA = models.Some(acc.Spend / float64(acc.Conversions))
	}

	return m
}
