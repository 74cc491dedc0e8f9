package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "ADAGG"

// Config holds all configuration for the campaign aggregator.
type Config struct {
	Log        LogConfig        `envconfig:"LOG"`
	Pipeline   PipelineConfig   `envconfig:"PIPELINE"`
	Report     ReportConfig     `envconfig:"REPORT"`
	Metrics    MetricsConfig    `envconfig:"METRICS"`
	Postgres   PostgresConfig   `envconfig:"POSTGRES"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
}

type LogConfig struct {
	Level  string `default:"info"`
	Format string `default:"json"`
}

// PipelineConfig controls the aggregation pass.
type PipelineConfig struct {
	TopN int `envconfig:"TOP_N" default:"10"`
	// Strict aborts the run on the first malformed row instead of skipping it.
	Strict bool `default:"false"`
	// LogSkippedLimit caps how many skipped rows are logged individually.
	LogSkippedLimit int `envconfig:"LOG_SKIPPED_LIMIT" default:"10"`
}

type ReportConfig struct {
	Formats  []string `default:"csv"`
	CTRFile  string   `envconfig:"CTR_FILE" default:"top10_ctr.csv"`
	CPAFile  string   `envconfig:"CPA_FILE" default:"top10_cpa.csv"`
	XLSXFile string   `envconfig:"XLSX_FILE" default:"top10.xlsx"`
}

// MetricsConfig configures Prometheus metric export. The CLI has no
// scrape endpoint, so metrics are written in text exposition format.
type MetricsConfig struct {
	Namespace string `default:"adagg"`
	Textfile  string
}

type PostgresConfig struct {
	Enabled  bool   `default:"false"`
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"adagg"`
	Password string
	DBName   string `default:"adagg"`
	SSLMode  string `default:"disable"`
	MaxConns int    `envconfig:"MAX_CONNS" default:"4"`
}

// DSN returns the PostgreSQL connection string.
func (d PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `default:"false"`
	Addr     string `default:"localhost:6379"`
	Password string
	DB       int `default:"0"`
	// TTL bounds how long published leaderboards live.
	TTL time.Duration `default:"168h"`
}

type ClickHouseConfig struct {
	Enabled  bool   `default:"false"`
	Addr     string `default:"localhost:9000"`
	Database string `default:"default"`
	Username string `default:"default"`
	Password string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.Report.Formats = NormalizeFormats(cfg.Report.Formats)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Pipeline.TopN < 1 {
		return fmt.Errorf("%s_PIPELINE_TOP_N must be at least 1, got %d", EnvPrefix, c.Pipeline.TopN)
	}
	if c.Pipeline.LogSkippedLimit < 0 {
		return fmt.Errorf("%s_PIPELINE_LOG_SKIPPED_LIMIT must not be negative", EnvPrefix)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if len(c.Report.Formats) == 0 {
		return fmt.Errorf("%s_REPORT_FORMATS must name at least one format", EnvPrefix)
	}
	for _, f := range c.Report.Formats {
		if f != "csv" && f != "xlsx" {
			return fmt.Errorf("unknown report format %q", f)
		}
	}
	return nil
}

// WantsFormat reports whether the named report format is enabled.
func (c *Config) WantsFormat(name string) bool {
	for _, f := range c.Report.Formats {
		if f == name {
			return true
		}
	}
	return false
}

// NormalizeFormats lowercases and trims format names, dropping empty ones.
func NormalizeFormats(in []string) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
