// Package pipeline runs one aggregation pass: read the click-stream, fold
// it into per-campaign totals, rank, and write the reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/radiusdt/campaign-aggregator/internal/aggregate"
	"github.com/radiusdt/campaign-aggregator/internal/metrics"
	"github.com/radiusdt/campaign-aggregator/internal/models"
	"github.com/radiusdt/campaign-aggregator/internal/ranking"
	"github.com/radiusdt/campaign-aggregator/internal/report"
	"github.com/radiusdt/campaign-aggregator/internal/source"
	"github.com/radiusdt/campaign-aggregator/internal/storage"
	"go.uber.org/zap"
)

// Stage names a step of the run. Every error returned by Run carries one.
type Stage string

const (
	StageRead    Stage = "read"
	StageParse   Stage = "parse"
	StageWrite   Stage = "write"
	StagePublish Stage = "publish"
)

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf reports the stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Step identifies a progress notification.
type Step int

const (
	StepAggregate Step = iota + 1
	StepMetrics
	StepWrite
)

// Steps is the number of progress steps reported per run.
const Steps = 3

// Options configure a single run.
type Options struct {
	Input     string
	OutputDir string

	TopN            int
	Strict          bool
	LogSkippedLimit int

	// Writer defaults to report.NewFileWriter().
	Writer *report.FileWriter
	// Publisher, when set, receives the reports after they are written.
	Publisher storage.Publisher

	Logger  *zap.Logger
	Metrics *metrics.Metrics
	RunID   string
	// Progress is called as each step starts.
	Progress func(Step)
}

// Result describes a completed run.
type Result struct {
	RunID      string
	Campaigns  int
	Stats      aggregate.Stats
	Reports    models.Reports
	Files      []string
	InputBytes int64
}

// Run executes the pipeline once. The input is opened before anything is
// written, so a missing input leaves the output directory untouched.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", opts.RunID))

	writer := opts.Writer
	if writer == nil {
		writer = report.NewFileWriter()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = ranking.DefaultLimit
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(Step) {}
	}

	info, err := os.Stat(opts.Input)
	if err != nil {
		return nil, &StageError{Stage: StageRead, Err: fmt.Errorf("failed to open input: %w", err)}
	}
	if info.IsDir() {
		return nil, &StageError{Stage: StageRead, Err: fmt.Errorf("input %s is a directory", opts.Input)}
	}
	opts.Metrics.RecordInput(info.Size())

	src, err := source.Open(opts.Input)
	if err != nil {
		return nil, &StageError{Stage: StageRead, Err: err}
	}
	defer src.Close()

	result := &Result{RunID: opts.RunID, InputBytes: info.Size()}

	progress(StepAggregate)
	logger.Info("aggregating input", zap.String("input", opts.Input), zap.Int64("bytes", info.Size()))
	start := time.Now()
	table, stats, err := aggregate.Aggregate(src, aggregate.Options{
		Strict:          opts.Strict,
		LogSkippedLimit: opts.LogSkippedLimit,
		Logger:          logger,
	})
	result.Stats = stats
	opts.Metrics.RecordRows(stats.RowsRead, stats.SkippedByReason)
	if err != nil {
		var rowErr *aggregate.RowError
		if errors.As(err, &rowErr) {
			return nil, &StageError{Stage: StageParse, Err: err}
		}
		return nil, &StageError{Stage: StageRead, Err: err}
	}
	opts.Metrics.RecordStage(string(StageRead), time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageRead, Err: err}
	}

	progress(StepMetrics)
	start = time.Now()
	records := aggregate.ComputeMetrics(table)
	result.Campaigns = len(records)
	result.Reports = ranking.Build(records, topN)
	opts.Metrics.RecordTable(len(records), countWithConversions(records))
	opts.Metrics.RecordStage("rank", time.Since(start))
	logger.Info("aggregation complete",
		zap.Int("campaigns", result.Campaigns),
		zap.Int64("rows_read", stats.RowsRead),
		zap.Int64("rows_skipped", stats.RowsSkipped),
	)

	progress(StepWrite)
	start = time.Now()
	files, err := writer.Write(opts.OutputDir, result.Reports)
	result.Files = files
	if err != nil {
		return nil, &StageError{Stage: StageWrite, Err: err}
	}
	opts.Metrics.RecordReport(report.NameTopCTR, len(result.Reports.TopCTR))
	opts.Metrics.RecordReport(report.NameTopCPA, len(result.Reports.TopCPA))
	opts.Metrics.RecordStage(string(StageWrite), time.Since(start))
	logger.Info("reports written", zap.Strings("files", files))

	if opts.Publisher != nil {
		start = time.Now()
		run := storage.Run{ID: opts.RunID, Input: opts.Input, CompletedAt: time.Now().UTC()}
		if err := opts.Publisher.Publish(ctx, run, result.Reports); err != nil {
			return nil, &StageError{Stage: StagePublish, Err: err}
		}
		opts.Metrics.RecordStage(string(StagePublish), time.Since(start))
		logger.Info("reports published", zap.String("publisher", opts.Publisher.Name()))
	}

	return result, nil
}

func countWithConversions(records []models.CampaignMetrics) int {
	n := 0
	for _, m := range records {
		if m.CPA.Present() {
			n++
		}
	}
	return n
}
