// Package config loads service configuration from a file and RECURRING_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

// EnvPrefix is prepended to every environment override, e.g.
// RECURRING_STORAGE_DRIVER or RECURRING_DETECTION_MIN_CONFIDENCE.
const EnvPrefix = "RECURRING"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverBigQuery = "bigquery"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	Detection DetectionConfig `mapstructure:"detection"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Log       LogConfig       `mapstructure:"log"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StorageConfig selects where obligations and transactions live.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // memory, sqlite, bigquery
	SQLitePath string `mapstructure:"sqlite_path"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
}

// BigQueryConfig holds the warehouse location.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
}

// DetectionConfig tunes the detector gates.
type DetectionConfig struct {
	MinOutflows         int     `mapstructure:"min_outflows"`
	MinOccurrences      int     `mapstructure:"min_occurrences"`
	MinConfidence       float64 `mapstructure:"min_confidence"`
	Quarterly           bool    `mapstructure:"quarterly"`
	UpcomingHorizonDays int     `mapstructure:"upcoming_horizon_days"`
	LookbackDays        int     `mapstructure:"lookback_days"`
}

// GeminiConfig enables model-based obligation classification.
type GeminiConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// NotionConfig holds the Notion integration settings.
type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// WorkerConfig drives the periodic scanner.
type WorkerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Users     []string      `mapstructure:"users"`
	QueueSize int           `mapstructure:"queue_size"`
	Workers   int           `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.sqlite_path", "recurring.db")
	v.SetDefault("storage.gcs_bucket", "")

	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "finance")

	v.SetDefault("detection.min_outflows", 3)
	v.SetDefault("detection.min_occurrences", 3)
	v.SetDefault("detection.min_confidence", 0.5)
	v.SetDefault("detection.quarterly", false)
	v.SetDefault("detection.upcoming_horizon_days", 14)
	v.SetDefault("detection.lookback_days", 455)

	v.SetDefault("gemini.enabled", false)
	v.SetDefault("gemini.model", "gemini-2.5-flash")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)

	v.SetDefault("worker.interval", 24*time.Hour)
	v.SetDefault("worker.users", []string{})
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.workers", 5)
}

// Load reads configuration from path (YAML, TOML or JSON by extension),
// applies RECURRING_* environment overrides and validates the result.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("Load: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case DriverBigQuery:
		if c.BigQuery.ProjectID == "" {
			errs = append(errs, errors.New("bigquery.project_id is required for the bigquery driver"))
		}
		if c.BigQuery.Dataset == "" {
			errs = append(errs, errors.New("bigquery.dataset is required for the bigquery driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, sqlite, bigquery", c.Storage.Driver))
	}

	if c.Detection.MinOccurrences < 2 {
		errs = append(errs, errors.New("detection.min_occurrences must be at least 2"))
	}
	if c.Detection.MinOutflows < 1 {
		errs = append(errs, errors.New("detection.min_outflows must be positive"))
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		errs = append(errs, errors.New("detection.min_confidence must be within [0, 1]"))
	}
	if c.Detection.UpcomingHorizonDays <= 0 {
		errs = append(errs, errors.New("detection.upcoming_horizon_days must be positive"))
	}
	if c.Worker.Workers <= 0 {
		errs = append(errs, errors.New("worker.workers must be positive"))
	}

	return errors.Join(errs...)
}

// DetectionOptions returns the detector gates configured in the detection section.
func (c *Config) DetectionOptions() recurring.Options {
	return recurring.Options{
		MinOutflows:    c.Detection.MinOutflows,
		MinOccurrences: c.Detection.MinOccurrences,
		MinConfidence:  c.Detection.MinConfidence,
		Quarterly:      c.Detection.Quarterly,
	}
}

// LoggerConfig converts the log section for logger.NewWithConfig.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		FilePath:   c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAge,
	}
}
