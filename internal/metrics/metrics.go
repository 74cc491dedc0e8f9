package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for one aggregation run. All methods
// are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	RowsRead    prometheus.Counter
	RowsSkipped *prometheus.CounterVec

	// Table metrics
	Campaigns                prometheus.Gauge
	CampaignsWithConversions prometheus.Gauge

	// Report metrics
	ReportRows *prometheus.GaugeVec

	// Run metrics
	StageDuration  *prometheus.GaugeVec
	RunDuration    prometheus.Gauge
	PeakMemory     prometheus.Gauge
	InputBytes     prometheus.Gauge
	LastSuccessful prometheus.Gauge
}

// New creates all metrics on a fresh registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RowsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_read_total",
				Help:      "Input rows read",
			},
		),
		RowsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_skipped_total",
				Help:      "Malformed input rows skipped",
			},
			[]string{"reason"},
		),

		Campaigns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "campaigns",
				Help:      "Distinct campaigns aggregated",
			},
		),
		CampaignsWithConversions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "campaigns_with_conversions",
				Help:      "Campaigns eligible for CPA ranking",
			},
		),

		ReportRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_rows",
				Help:      "Rows written per report",
			},
			[]string{"report"},
		),

		StageDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall-clock time spent per pipeline stage",
			},
			[]string{"stage"},
		),
		RunDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock time of the full run",
			},
		),
		PeakMemory: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peak_heap_bytes",
				Help:      "Peak heap in use during the run",
			},
		),
		InputBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "input_bytes",
				Help:      "Size of the input file",
			},
		),
		LastSuccessful: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time the last successful run finished",
			},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRows records rows read and skipped, by reason.
func (m *Metrics) RecordRows(read int64, skippedByReason map[string]int64) {
	if m == nil {
		return
	}
	m.RowsRead.Add(float64(read))
	for reason, n := range skippedByReason {
		m.RowsSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordTable records campaign counts.
func (m *Metrics) RecordTable(campaigns, withConversions int) {
	if m == nil {
		return
	}
	m.Campaigns.Set(float64(campaigns))
	m.CampaignsWithConversions.Set(float64(withConversions))
}

// RecordReport records how many rows a report holds.
func (m *Metrics) RecordReport(report string, rows int) {
	if m == nil {
		return
	}
	m.ReportRows.WithLabelValues(report).Set(float64(rows))
}

// RecordStage records the duration of a pipeline stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// RecordInput records the input size.
func (m *Metrics) RecordInput(bytes int64) {
	if m == nil {
		return
	}
	m.InputBytes.Set(float64(bytes))
}

// RecordRun records whole-run measurements and marks the run successful.
func (m *Metrics) RecordRun(elapsed time.Duration, peakHeapBytes uint64, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(elapsed.Seconds())
	m.PeakMemory.Set(float64(peakHeapBytes))
	m.LastSuccessful.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// for pickup by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
