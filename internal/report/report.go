// Package report renders ranked campaign records as delimited tables and
// writes them to disk.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/radiusdt/campaign-aggregator/internal/models"
)

// Header is the column layout of every report.
var Header = []string{
	"campaign_id",
	"impressions",
	"clicks",
	"spend",
	"conversions",
	"ctr",
	"cpa",
}

// Decimals is the number of fractional digits shown for spend, CTR and CPA.
const Decimals = 4

// FormatDecimal renders v with exactly Decimals fractional digits.
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(Round(v), 'f', Decimals, 64)
}

// Round rounds v to Decimals fractional digits, half away from zero.
func Round(v float64) float64 {
	const scale = 1e4
	r := math.Round(v*scale) / scale
	if r == 0 {
		// Avoid "-0.0000".
		return 0
	}
	return r
}

// Row renders one record. An absent CPA becomes an empty field.
func Row(m models.CampaignMetrics) []string {
	cpa := ""
	if v, ok := m.CPA.Get(); ok {
		cpa = FormatDecimal(v)
	}
	return []string{
		m.CampaignID,
		strconv.FormatInt(m.Impressions, 10),
		strconv.FormatInt(m.Clicks, 10),
		FormatDecimal(m.Spend),
		strconv.FormatInt(m.Conversions, 10),
		FormatDecimal(m.CTR),
		cpa,
	}
}

// Rows renders records in order.
func Rows(records []models.CampaignMetrics) [][]string {
	out := make([][]string, 0, len(records))
	for _, m := range records {
		out = append(out, Row(m))
	}
	return out
}

// WriteCSV writes the header followed by one line per record.
func WriteCSV(w io.Writer, records []models.CampaignMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, m := range records {
		if err := cw.Write(Row(m)); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", m.CampaignID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
