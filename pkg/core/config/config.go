// Package config loads run configuration. Sources, lowest precedence first:
// struct defaults, .env files, SHAREX_* environment variables, then an
// optional YAML file. DATABASE_URL is honoured when SHAREX_DATABASE_URL is
// unset.
package config

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"

	"github.com/duneshique/sharex-settlement/pkg/core/utils"
)

// EnvPrefix prefixes every environment variable, e.g. SHAREX_SETTLEMENT_MODE.
const EnvPrefix = "SHAREX"

// Config is the complete run configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Settlement SettlementConfig `yaml:"settlement" envconfig:"SETTLEMENT"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DATABASE"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Metrics    MetricsConfig    `yaml:"metrics" envconfig:"METRICS"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	InputDir      string `yaml:"input_dir" envconfig:"INPUT_DIR" default:"data/input" validate:"required"`
	OutputDir     string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"data/output" validate:"required"`
	Courses       string `yaml:"courses" envconfig:"COURSES" default:"config/course_mapping.json" validate:"required"`
	Companies     string `yaml:"companies" envconfig:"COMPANIES" default:"config/company_info.json" validate:"required"`
	CampaignRules string `yaml:"campaign_rules" envconfig:"CAMPAIGN_RULES" default:"config/campaign_rules.yaml"`
	Reference     string `yaml:"reference" envconfig:"REFERENCE"`
	Ledger        string `yaml:"ledger" envconfig:"LEDGER"`
	RunDir        string `yaml:"run_dir" envconfig:"RUN_DIR" default:".cache/settlement_runs"`
}

// SettlementConfig tunes the calculation.
type SettlementConfig struct {
	// Mode is "engine" (sales and campaign costs) or "rows" (statement rows).
	Mode                string  `yaml:"mode" envconfig:"MODE" default:"engine" validate:"oneof=engine rows"`
	Tolerance           float64 `yaml:"tolerance" envconfig:"TOLERANCE" default:"1.0" validate:"gt=0"`
	Workers             int     `yaml:"workers" envconfig:"WORKERS" default:"4" validate:"min=1,max=64"`
	MatchThreshold      float64 `yaml:"match_threshold" envconfig:"MATCH_THRESHOLD" default:"0.85" validate:"gt=0,lte=1"`
	RevenueShareRatio   float64 `yaml:"revenue_share_ratio" envconfig:"REVENUE_SHARE_RATIO" validate:"gte=0,lte=1"`
	UnionPayoutRatio    float64 `yaml:"union_payout_ratio" envconfig:"UNION_PAYOUT_RATIO" validate:"gte=0,lte=1"`
	TotalCourseOverride int     `yaml:"total_course_override" envconfig:"TOTAL_COURSE_OVERRIDE" validate:"gte=0"`
	ExportXLSX          bool    `yaml:"export_xlsx" envconfig:"EXPORT_XLSX" default:"true"`
	HTMLReport          bool    `yaml:"html_report" envconfig:"HTML_REPORT" default:"true"`
}

// DatabaseConfig enables the Postgres run archive when URL is set.
type DatabaseConfig struct {
	URL string `yaml:"url" envconfig:"URL"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"text" validate:"oneof=text json"`
}

// MetricsConfig writes Prometheus metrics to a textfile after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" envconfig:"TEXTFILE"`
}

// Load builds the configuration. file may be empty. Missing .env files are
// ignored.
func Load(file string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "failed to load .env")
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, eris.Wrap(err, "failed to load config from env")
	}

	if file != "" {
		if err := overlay(file, &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, eris.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// overlay applies the keys present in a YAML file on top of cfg.
func overlay(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return eris.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// NewLogger builds the process logger. w defaults to stderr.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
