package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Pipeline.TopN)
	assert.False(t, cfg.Pipeline.Strict)
	assert.Equal(t, 10, cfg.Pipeline.LogSkippedLimit)
	assert.Equal(t, []string{"csv"}, cfg.Report.Formats)
	assert.Equal(t, "top10_ctr.csv", cfg.Report.CTRFile)
	assert.Equal(t, "top10_cpa.csv", cfg.Report.CPAFile)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 168*time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.ClickHouse.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ADAGG_PIPELINE_TOP_N", "5")
	t.Setenv("ADAGG_PIPELINE_STRICT", "true")
	t.Setenv("ADAGG_REPORT_FORMATS", "CSV, xlsx")
	t.Setenv("ADAGG_LOG_FORMAT", "console")
	t.Setenv("ADAGG_REDIS_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.TopN)
	assert.True(t, cfg.Pipeline.Strict)
	assert.Equal(t, []string{"csv", "xlsx"}, cfg.Report.Formats)
	assert.True(t, cfg.WantsFormat("xlsx"))
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:      LogConfig{Level: "info", Format: "json"},
			Pipeline: PipelineConfig{TopN: 10},
			Report:   ReportConfig{Formats: []string{"csv"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero top n", mutate: func(c *Config) { c.Pipeline.TopN = 0 }, wantErr: "TOP_N"},
		{name: "negative skip limit", mutate: func(c *Config) { c.Pipeline.LogSkippedLimit = -1 }, wantErr: "LOG_SKIPPED_LIMIT"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log format"},
		{name: "no formats", mutate: func(c *Config) { c.Report.Formats = nil }, wantErr: "at least one format"},
		{name: "unknown format", mutate: func(c *Config) { c.Report.Formats = []string{"parquet"} }, wantErr: "parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	d := PostgresConfig{User: "u", Password: "p", Host: "db", Port: 5433, DBName: "reports", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/reports?sslmode=require", d.DSN())
}

func TestNormalizeFormats(t *testing.T) {
	assert.Equal(t, []string{"csv", "xlsx"}, NormalizeFormats([]string{" CSV", "", "Xlsx "}))
	assert.Empty(t, NormalizeFormats(nil))
}
