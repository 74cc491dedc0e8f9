package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/campaign-aggregator/internal/config"
	"github.com/radiusdt/campaign-aggregator/internal/database"
	"github.com/radiusdt/campaign-aggregator/internal/instrument"
	"github.com/radiusdt/campaign-aggregator/internal/logging"
	"github.com/radiusdt/campaign-aggregator/internal/metrics"
	"github.com/radiusdt/campaign-aggregator/internal/pipeline"
	"github.com/radiusdt/campaign-aggregator/internal/report"
	"github.com/radiusdt/campaign-aggregator/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runFlags struct {
	input   string
	output  string
	strict  bool
	top     int
	formats []string
}

func newRootCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "adagg --input <file>",
		Short: "aggregate ad click-stream data into campaign rankings",
		Long: `
Reads a click-stream CSV with campaign_id, impressions, clicks, spend and
conversions columns, totals each campaign, and writes the ten campaigns
with the highest CTR and the ten with the lowest CPA.

Environment variables prefixed with ADAGG_ configure logging, report
formats and the optional PostgreSQL, Redis and ClickHouse publishers.
`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runAggregate(cmd.Context(), cmd.OutOrStdout(), cfg, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.input, "input", "i", "", "path to the input CSV (.gz accepted)")
	f.StringVarP(&flags.output, "output", "o", "output", "directory for the report files")
	f.BoolVar(&flags.strict, "strict", false, "abort on the first malformed row instead of skipping it")
	f.IntVar(&flags.top, "top", 0, "number of campaigns per ranking (default from ADAGG_PIPELINE_TOP_N)")
	f.StringSliceVar(&flags.formats, "format", nil, "report formats: csv, xlsx (default from ADAGG_REPORT_FORMATS)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// apply overlays explicitly set flags onto the environment configuration.
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("strict") {
		cfg.Pipeline.Strict = f.strict
	}
	if cmd.Flags().Changed("top") {
		cfg.Pipeline.TopN = f.top
	}
	if cmd.Flags().Changed("format") {
		cfg.Report.Formats = config.NormalizeFormats(f.formats)
	}
	return cfg.Validate()
}

func runAggregate(ctx context.Context, out io.Writer, cfg *config.Config, flags runFlags) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	publisher, closeAll, err := connectPublishers(ctx, cfg, logger)
	if err != nil {
		return &pipeline.StageError{Stage: pipeline.StagePublish, Err: err}
	}
	defer closeAll()

	writer := report.NewFileWriter()
	writer.CTRFile = cfg.Report.CTRFile
	writer.CPAFile = cfg.Report.CPAFile
	writer.XLSXFile = cfg.Report.XLSXFile
	writer.CSV = cfg.WantsFormat("csv")
	writer.XLSX = cfg.WantsFormat("xlsx")

	m := metrics.New(cfg.Metrics.Namespace)

	fmt.Fprintln(out, "Campaign aggregator")
	fmt.Fprintf(out, "Input: %s\n", flags.input)

	var result *pipeline.Result
	measurement, err := instrument.Measure(func() error {
		var runErr error
		result, runErr = pipeline.Run(ctx, pipeline.Options{
			Input:           flags.input,
			OutputDir:       flags.output,
			TopN:            cfg.Pipeline.TopN,
			Strict:          cfg.Pipeline.Strict,
			LogSkippedLimit: cfg.Pipeline.LogSkippedLimit,
			Writer:          writer,
			Publisher:       publisher,
			Logger:          logger,
			Metrics:         m,
			RunID:           runID,
			Progress:        func(s pipeline.Step) { printStep(out, s) },
		})
		return runErr
	})
	if err != nil {
		return err
	}

	m.RecordRun(measurement.Elapsed, measurement.PeakHeapBytes, time.Now())
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile", zap.Error(err))
	}

	fmt.Fprintf(out, "Campaigns: %d\n", result.Campaigns)
	if result.Stats.RowsSkipped > 0 {
		fmt.Fprintf(out, "Skipped rows: %d\n", result.Stats.RowsSkipped)
	}
	for _, path := range result.Files {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	fmt.Fprintln(out, instrument.Summary(result.InputBytes, measurement))
	return nil
}

func printStep(out io.Writer, s pipeline.Step) {
	var label string
	switch s {
	case pipeline.StepAggregate:
		label = "Aggregating data..."
	case pipeline.StepMetrics:
		label = "Computing metrics..."
	case pipeline.StepWrite:
		label = "Writing reports..."
	}
	fmt.Fprintf(out, "[%d/%d] %s\n", s, pipeline.Steps, label)
}

// connectPublishers opens every enabled store and returns them as one
// publisher. The returned func closes whatever was opened.
func connectPublishers(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Publisher, func(), error) {
	var (
		pubs    storage.Multi
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Postgres.Enabled {
		db, err := database.NewPostgresDB(ctx, cfg.Postgres, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		store := storage.NewPostgresReportStore(db.Pool)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		pubs = append(pubs, store)
	}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { rdb.Close() })
		pubs = append(pubs, storage.NewRedisLeaderboard(rdb.Client, cfg.Redis.TTL))
	}

	if cfg.ClickHouse.Enabled {
		ch, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { ch.Close() })
		store := storage.NewClickHouseReportStore(ch.Conn)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		pubs = append(pubs, store)
	}

	if len(pubs) == 0 {
		return nil, closeAll, nil
	}
	return pubs, closeAll, nil
}
