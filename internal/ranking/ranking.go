// Package ranking selects the top campaigns by CTR and by CPA.
package ranking

import (
	"cmp"
	"slices"

	"github.com/radiusdt/campaign-aggregator/internal/models"
)

// DefaultLimit is the report length used by the CLI.
const DefaultLimit = 10

// Build produces both ranked views from the full record set.
func Build(records []models.CampaignMetrics, limit int) models.Reports {
	return models.Reports{
		TopCTR: TopByCTR(records, limit),
		TopCPA: TopByCPA(records, limit),
	}
}

// TopByCTR returns at most limit records ordered by CTR, highest first.
// Records with equal CTR keep their input order.
func TopByCTR(records []models.CampaignMetrics, limit int) []models.CampaignMetrics {
	return top(records, limit, nil, func(a, b models.CampaignMetrics) int {
		return cmp.Compare(b.CTR, a.CTR)
	})
}

// TopByCPA returns at most limit records that have a CPA, cheapest first.
// Records without conversions are excluded. Ties keep their input order.
func TopByCPA(records []models.CampaignMetrics, limit int) []models.CampaignMetrics {
	return top(records, limit, func(m models.CampaignMetrics) bool {
		return m.CPA.Present()
	}, func(a, b models.CampaignMetrics) int {
		av, _ := a.CPA.Get()
		bv, _ := b.CPA.Get()
		return cmp.Compare(av, bv)
	})
}

func top(
	records []models.CampaignMetrics,
	limit int,
	keep func(models.CampaignMetrics) bool,
	compare func(a, b models.CampaignMetrics) int,
) []models.CampaignMetrics {
	if limit <= 0 {
		return []models.CampaignMetrics{}
	}

	out := make([]models.CampaignMetrics, 0, len(records))
	for _, r := range records {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, compare)

	if len(out) > limit {
		out = out[:limit]
	}
	return slices.Clip(out)
}
