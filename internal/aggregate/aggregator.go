// Package aggregate folds a stream of click-stream rows into per-campaign
// totals and derives CTR and CPA from them.
//
// Memory is proportional to the number of distinct campaigns: rows are
// pulled one at a time and nothing but the four counters is retained.
package aggregate

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/radiusdt/campaign-aggregator/internal/source"
	"go.uber.org/zap"
)

var (
	ErrEmptyCampaignID = errors.New("empty campaign_id")
	ErrBadNumber       = errors.New("malformed number")
	ErrNegativeValue   = errors.New("negative value")
)

// Skip reasons, used as log fields and metric labels.
const (
	ReasonEmptyCampaignID = "empty_campaign_id"
	ReasonBadNumber       = "bad_number"
	ReasonNegativeValue   = "negative_value"
	ReasonBadRecord       = "bad_record"
)

// RowError describes a row that could not be aggregated.
type RowError struct {
	Line   int
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// RowSource produces rows one at a time, returning io.EOF when exhausted.
// *source.CSVSource satisfies it.
type RowSource interface {
	Next() (models.Row, error)
}

// Options control how malformed rows are handled.
type Options struct {
	// Strict aborts on the first malformed row. Otherwise the row is skipped
	// and counted.
	Strict bool
	// LogSkippedLimit caps how many skipped rows are logged individually.
	LogSkippedLimit int
	Logger          *zap.Logger
}

// Stats summarises one aggregation pass.
type Stats struct {
	RowsRead    int64
	RowsSkipped int64
	// SkippedByReason breaks RowsSkipped down by Reason* constant.
	SkippedByReason map[string]int64
}

// Table maps campaign identifiers to their running totals.
type Table struct {
	campaigns map[string]*models.Accumulator
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{campaigns: make(map[string]*models.Accumulator)}
}

// Add folds values into the accumulator for campaignID, creating it on first sight.
func (t *Table) Add(campaignID string, impressions, clicks int64, spend float64, conversions int64) {
	acc, ok := t.campaigns[campaignID]
	if !ok {
		// Row strings share one allocation with the whole input line.
		// Clone so the key does not pin it.
		acc = &models.Accumulator{}
		t.campaigns[strings.Clone(campaignID)] = acc
	}
	acc.Add(impressions, clicks, spend, conversions)
}

// Get returns the totals for campaignID.
func (t *Table) Get(campaignID string) (models.Accumulator, bool) {
	acc, ok := t.campaigns[campaignID]
	if !ok {
		return models.Accumulator{}, false
	}
	return *acc, true
}

// Len returns the number of distinct campaigns.
func (t *Table) Len() int {
	return len(t.campaigns)
}

// IDs returns the campaign identifiers in ascending order.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.campaigns))
	for id := range t.campaigns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregate consumes src exactly once and returns the per-campaign totals.
// A failure of the underlying stream is returned as-is (wrapped); a
// malformed row is either skipped or, with opts.Strict, returned as a
// *RowError.
func Aggregate(src RowSource, opts Options) (*Table, Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	table := NewTable()
	stats := Stats{SkippedByReason: make(map[string]int64)}

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}

		var rowErr *RowError
		if err != nil {
			var recErr *source.RecordError
			if !errors.As(err, &recErr) {
				return nil, stats, fmt.Errorf("failed to read input: %w", err)
			}
			rowErr = &RowError{Line: recErr.Line, Reason: ReasonBadRecord, Err: recErr.Err}
		} else {
			stats.RowsRead++
			rowErr = addRow(table, row)
		}

		if rowErr == nil {
			continue
		}
		if opts.Strict {
			return nil, stats, rowErr
		}

		stats.RowsSkipped++
		stats.SkippedByReason[rowErr.Reason]++
		if stats.RowsSkipped <= int64(opts.LogSkippedLimit) {
			logger.Warn("skipping malformed row",
				zap.Int("line", rowErr.Line),
				zap.String("reason", rowErr.Reason),
				zap.Error(rowErr.Err),
			)
		}
	}

	if stats.RowsSkipped > 0 {
		logger.Warn("malformed rows skipped",
			zap.Int64("skipped", stats.RowsSkipped),
			zap.Int64("read", stats.RowsRead),
		)
	}

	return table, stats, nil
}

// addRow parses a row and adds it to the table. Nothing is added unless
// every field parses.
func addRow(table *Table, row models.Row) *RowError {
	id := strings.TrimSpace(row.CampaignID)
	if id == "" {
		return &RowError{Line: row.Line, Field: models.ColumnCampaignID, Reason: ReasonEmptyCampaignID, Err: ErrEmptyCampaignID}
	}

	impressions, rerr := parseCount(row.Line, models.ColumnImpressions, row.Impressions)
	if rerr != nil {
		return rerr
	}
	clicks, rerr := parseCount(row.Line, models.ColumnClicks, row.Clicks)
	if rerr != nil {
		return rerr
	}
	spend, rerr := parseAmount(row.Line, models.ColumnSpend, row.Spend)
	if rerr != nil {
		return rerr
	}
	conversions, rerr := parseCount(row.Line, models.ColumnConversions, row.Conversions)
	if rerr != nil {
		return rerr
	}

	table.Add(id, impressions, clicks, spend, conversions)
	return nil
}

func parseCount(line int, field, raw string) (int64, *RowError) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &RowError{Line: line, Field: field, Value: raw, Reason: ReasonBadNumber, Err: ErrBadNumber}
	}
	if v < 0 {
		return 0, &RowError{Line: line, Field: field, Value: raw, Reason: ReasonNegativeValue, Err: ErrNegativeValue}
	}
	return v, nil
}

func parseAmount(line int, field, raw string) (float64, *RowError) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &RowError{Line: line, Field: field, Value: raw, Reason: ReasonBadNumber, Err: ErrBadNumber}
	}
	if v < 0 {
		return 0, &RowError{Line: line, Field: field, Value: raw, Reason: ReasonNegativeValue, Err: ErrNegativeValue}
	}
	return v, nil
}
