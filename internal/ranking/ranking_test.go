package ranking

import (
	"fmt"
	"sort"
	"testing"

	"github.com/radiusdt/campaign-aggregator/internal/aggregate"
	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(records []models.CampaignMetrics) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.CampaignID
	}
	return out
}

func withCTR(id string, ctr float64) models.CampaignMetrics {
	return models.CampaignMetrics{CampaignID: id, CTR: ctr}
}

func withCPA(id string, cpa float64) models.CampaignMetrics {
	return models.CampaignMetrics{CampaignID: id, CPA: models.Some(cpa)}
}

func TestEndToEndExample(t *testing.T) {
	table := aggregate.NewTable()
	table.Add("A", 100, 10, 5.0, 1)
	table.Add("A", 100, 5, 5.0, 0)
	table.Add("B", 0, 0, 0, 0)

	reports := Build(aggregate.ComputeMetrics(table), DefaultLimit)
	assert.Equal(t, []string{"A", "B"}, ids(reports.TopCTR))
	assert.Equal(t, []string{"A"}, ids(reports.TopCPA))
}

func TestTopByCTR(t *testing.T) {
	records := []models.CampaignMetrics{
		withCTR("low", 0.01),
		withCTR("high", 0.30),
		withCTR("tie-first", 0.10),
		withCTR("zero", 0),
		withCTR("tie-second", 0.10),
	}

	got := TopByCTR(records, 10)
	assert.Equal(t, []string{"high", "tie-first", "tie-second", "low", "zero"}, ids(got))

	// Input is left untouched.
	assert.Equal(t, "low", records[0].CampaignID)
}

func TestTopByCTRLimit(t *testing.T) {
	var records []models.CampaignMetrics
	for i := 0; i < 25; i++ {
		records = append(records, withCTR(fmt.Sprintf("C%02d", i), float64(i)/100))
	}

	got := TopByCTR(records, 10)
	require.Len(t, got, 10)
	assert.Equal(t, "C24", got[0].CampaignID)
	assert.Equal(t, "C15", got[9].CampaignID)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].CTR > got[j].CTR }))

	assert.Len(t, TopByCTR(records[:3], 10), 3)
	assert.Empty(t, TopByCTR(nil, 10))
	assert.Empty(t, TopByCTR(records, 0))
}

func TestTopByCPA(t *testing.T) {
	records := []models.CampaignMetrics{
		withCPA("pricey", 50),
		{CampaignID: "no-conversions", CTR: 0.9},
		withCPA("cheap", 2.5),
		withCPA("tie-first", 10),
		withCPA("free", 0),
		withCPA("tie-second", 10),
	}

	got := TopByCPA(records, 10)
	assert.Equal(t, []string{"free", "cheap", "tie-first", "tie-second", "pricey"}, ids(got))
	for _, r := range got {
		assert.True(t, r.CPA.Present())
	}
}

func TestTopByCPALimit(t *testing.T) {
	var records []models.CampaignMetrics
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			records = append(records, withCPA(fmt.Sprintf("C%02d", i), float64(100-i)))
		} else {
			records = append(records, models.CampaignMetrics{CampaignID: fmt.Sprintf("C%02d", i)})
		}
	}

	got := TopByCPA(records, 10)
	require.Len(t, got, 10)
	assert.Equal(t, "C28", got[0].CampaignID)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool {
		a, _ := got[i].CPA.Get()
		b, _ := got[j].CPA.Get()
		return a < b
	}))

	assert.Len(t, TopByCPA(records[:6], 10), 3)
	assert.Empty(t, TopByCPA([]models.CampaignMetrics{{CampaignID: "x"}}, 10))
}
