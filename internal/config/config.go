// Package config loads the YAML configuration for the dispatcher.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Poller   PollerConfig   `yaml:"poller"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StorageConfig locates the content store and the dispatch journal
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	QueuePath    string `yaml:"queue_path"`
}

// SMTPConfig describes the smarthost deliveries are submitted to
type SMTPConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Encryption string        `yaml:"encryption"` // starttls, tls or none
	Timeout    time.Duration `yaml:"timeout"`
}

// PollerConfig controls the daily feed ingestion
type PollerConfig struct {
	Hour           int           `yaml:"hour"`
	Minute         int           `yaml:"minute"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
}

// DispatchConfig controls the delivery consumer
type DispatchConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 = unlimited
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when a field is left unset
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Storage: StorageConfig{
			DatabasePath: "/var/lib/mailfan/mailfan.db",
			QueuePath:    "/var/lib/mailfan/dispatch.db",
		},
		SMTP: SMTPConfig{
			Port:       587,
			Encryption: "starttls",
			Timeout:    30 * time.Second,
		},
		Poller: PollerConfig{
			Hour:           15,
			Minute:         0,
			FetchTimeout:   30 * time.Second,
			MaxConcurrency: 4,
		},
		Dispatch: DispatchConfig{
			PollInterval:  time.Second,
			RatePerSecond: 0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file and applies defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the process cannot run with
func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.Storage.QueuePath == "" {
		return fmt.Errorf("storage.queue_path is required")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.Poller.Hour < 0 || c.Poller.Hour > 23 {
		return fmt.Errorf("poller.hour must be between 0 and 23")
	}
	if c.Poller.Minute < 0 || c.Poller.Minute > 59 {
		return fmt.Errorf("poller.minute must be between 0 and 59")
	}
	switch c.SMTP.Encryption {
	case "starttls", "tls", "none":
	default:
		return fmt.Errorf("smtp.encryption must be starttls, tls or none")
	}
	return nil
}
