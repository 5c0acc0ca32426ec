// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/classification"
	"github.com/aristath/hxzfactors/internal/modules/factors"
	"github.com/aristath/hxzfactors/internal/modules/ingest"
	"github.com/aristath/hxzfactors/internal/modules/panel"
)

// Config holds application configuration
type Config struct {
	DataDir  string `validate:"required"` // Base directory for the results database (always absolute)
	Workbook string // Default workbook for scheduled and API-triggered runs
	Sheets   map[domain.Dataset]string

	Rebalance        string `validate:"oneof=monthly annual"`
	AnchorMonth      int    `validate:"min=1,max=12"`
	AbsentPolicy     string `validate:"oneof=propagate exclude"`
	FillFundamentals string `validate:"oneof=none forward"`
	FillMaxMonths    int    `validate:"gte=0"`
	Workers          int    `validate:"min=1"`

	// RecomputeSchedule is a cron spec with seconds; empty disables scheduled runs
	RecomputeSchedule string

	LogLevel string `validate:"oneof=debug info warn warning error"`
	Port     int    `validate:"min=1,max=65535"`
	DevMode  bool
}

// scheduleParser matches the scheduler's seconds-enabled cron
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HXZ_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Workbook: getEnv("HXZ_WORKBOOK", filepath.Join(absDataDir, "DataSet.xlsx")),
		Sheets: map[domain.Dataset]string{
			domain.DatasetPrices:    getEnv("HXZ_SHEET_PRICES", ingest.DefaultSheets[domain.DatasetPrices]),
			domain.DatasetDividends: getEnv("HXZ_SHEET_DIVIDENDS", ingest.DefaultSheets[domain.DatasetDividends]),
			domain.DatasetAssets:    getEnv("HXZ_SHEET_ASSETS", ingest.DefaultSheets[domain.DatasetAssets]),
			domain.DatasetROE:       getEnv("HXZ_SHEET_ROE", ingest.DefaultSheets[domain.DatasetROE]),
			domain.DatasetMarketCap: getEnv("HXZ_SHEET_MARKETCAP", ingest.DefaultSheets[domain.DatasetMarketCap]),
		},
		Rebalance:         strings.ToLower(getEnv("HXZ_REBALANCE", string(classification.CadenceMonthly))),
		AnchorMonth:       getEnvAsInt("HXZ_ANCHOR_MONTH", int(time.June)),
		AbsentPolicy:      strings.ToLower(getEnv("HXZ_ABSENT_POLICY", string(factors.AbsentPropagate))),
		FillFundamentals:  strings.ToLower(getEnv("HXZ_FILL_FUNDAMENTALS", "none")),
		FillMaxMonths:     getEnvAsInt("HXZ_FILL_MAX_MONTHS", 12),
		Workers:           getEnvAsInt("HXZ_WORKERS", runtime.NumCPU()),
		RecomputeSchedule: getEnv("HXZ_RECOMPUTE_SCHEDULE", ""),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Port:              getEnvAsInt("GO_PORT", 8001),
		DevMode:           getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the recompute schedule
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.RecomputeSchedule != "" {
		if _, err := scheduleParser.Parse(c.RecomputeSchedule); err != nil {
			return fmt.Errorf("invalid HXZ_RECOMPUTE_SCHEDULE %q: %w", c.RecomputeSchedule, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the results database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "factors.db")
}

// PipelineOptions maps the configuration onto factor run options
func (c *Config) PipelineOptions() factors.Options {
	opts := factors.DefaultOptions()
	opts.Classification = classification.Policy{
		Cadence:     classification.Cadence(c.Rebalance),
		AnchorMonth: time.Month(c.AnchorMonth),
	}
	opts.AbsentPolicy = factors.AbsentPolicy(c.AbsentPolicy)
	opts.Workers = c.Workers
	if c.FillFundamentals == "forward" {
		opts.Panel = panel.Options{MaxFillMonths: c.FillMaxMonths}
	}
	return opts
}

// IngestOptions maps the configuration onto workbook loader options
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{Sheets: c.Sheets}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
