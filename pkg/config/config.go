// Package config provides the configuration for tickfold's ambient
// concerns: logging, tracing, store compression and batch concurrency.
// Engine semantics are never configured here; they come exclusively from
// the explicit parameters of each resample request.
//
// Example usage:
//
//	cfg := config.Default()
//	if err := config.Load("tickfold.yaml", cfg); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"

	"go.uber.org/multierr"
)

// Config is the root configuration structure.
type Config struct {
	// Logging configures the global zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	// Tracing configures OpenTelemetry span export
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
	// Store configures the segment store
	Store StoreConfig `yaml:"store" json:"store"`
	// Batch configures batched resample evaluation
	Batch BatchConfig `yaml:"batch" json:"batch"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is the minimum level emitted (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables colored, stack-traced output
	Development bool `yaml:"development" json:"development"`
	// OutputPaths overrides where log entries go
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled turns span export on
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName identifies this process in exported spans
	ServiceName string `yaml:"service_name" json:"service_name"`
	// PrettyPrint formats exporter output for humans
	PrettyPrint bool `yaml:"pretty_print" json:"pretty_print"`
}

// StoreConfig configures the segment store.
type StoreConfig struct {
	// Compression selects the at-rest block codec
	// (none, gzip, snappy, lz4, zstd, s2)
	Compression string `yaml:"compression" json:"compression"`
}

// BatchConfig configures batched evaluation.
type BatchConfig struct {
	// Concurrency bounds how many requests run at once; 0 means one per
	// CPU
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "tickfold",
		},
		Store: StoreConfig{
			Compression: "lz4",
		},
		Batch: BatchConfig{
			Concurrency: runtime.NumCPU(),
		},
	}
}

// Validate checks the configuration, reporting every violation at once
func (c *Config) Validate() error {
	var errs error

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = multierr.Append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		errs = multierr.Append(errs, fmt.Errorf("logging.encoding must be json or console, got %q", c.Logging.Encoding))
	}
	switch c.Store.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd", "s2":
	default:
		errs = multierr.Append(errs, fmt.Errorf("store.compression %q is not a known codec", c.Store.Compression))
	}
	if c.Batch.Concurrency < 0 {
		errs = multierr.Append(errs, fmt.Errorf("batch.concurrency must not be negative, got %d", c.Batch.Concurrency))
	}
	return errs
}
