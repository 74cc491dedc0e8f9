package models

// ===========================================
// INPUT ROW
// ===========================================

// Column names every input file must carry. Any other column is ignored.
const (
	ColumnCampaignID  = "campaign_id"
	ColumnImpressions = "impressions"
	ColumnClicks      = "clicks"
	ColumnSpend       = "spend"
	ColumnConversions = "conversions"
)

// RequiredColumns lists the input columns aggregation reads, in report order.
var RequiredColumns = []string{
	ColumnCampaignID,
	ColumnImpressions,
	ColumnClicks,
	ColumnSpend,
	ColumnConversions,
}

// Row is one input record reduced to the columns aggregation needs.
// Values are the raw text from the file; Line is the 1-based physical
// line the record started on, header included.
type Row struct {
	Line        int
	CampaignID  string
	Impressions string
	Clicks      string
	Spend       string
	Conversions string
}

// ===========================================
// ACCUMULATOR
// ===========================================

// Accumulator holds the running totals for one campaign during the
// aggregation pass. Counters only ever grow.
type Accumulator struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
}

// Add folds one row's values into the totals.
func (a *Accumulator) Add(impressions, clicks int64, spend float64, conversions int64) {
	a.Impressions += impressions
	a.Clicks += clicks
	a.Spend += spend
	a.Conversions += conversions
}

// ===========================================
// DERIVED METRICS
// ===========================================

// OptionalFloat is a float64 that may be absent. The zero value is absent.
type OptionalFloat struct {
	value   float64
	present bool
}

// Some returns a present OptionalFloat holding v.
func Some(v float64) OptionalFloat {
	return OptionalFloat{value: v, present: true}
}

// None returns an absent OptionalFloat.
func None() OptionalFloat {
	return OptionalFloat{}
}

// Get returns the value and whether it is present.
func (o OptionalFloat) Get() (float64, bool) {
	return o.value, o.present
}

// Present reports whether a value is held.
func (o OptionalFloat) Present() bool {
	return o.present
}

// CampaignMetrics is the per-campaign record produced once aggregation is
// complete. It is never modified after creation.
type CampaignMetrics struct {
	CampaignID string `json:"campaign_id"`
	Accumulator

	// CTR is clicks / impressions, 0 when there were no impressions.
	CTR float64 `json:"ctr"`
	// CPA is spend / conversions, absent when there were no conversions.
	CPA OptionalFloat `json:"-"`
}

// Reports holds the two ranked views of a run.
type Reports struct {
	TopCTR []CampaignMetrics
	TopCPA []CampaignMetrics
}
