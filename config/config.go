// Package config loads taskloopctl settings from a TOML file.
//
// Missing keys keep the values from Default, so a file only needs the
// settings it changes:
//
//	[pool]
//	max_threads = 4
//
//	[metrics]
//	enabled = true
//	listen = ":9090"
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete taskloopctl configuration.
type Config struct {
	Pool    PoolConfig    `toml:"pool"`
	Metrics MetricsConfig `toml:"metrics"`
	Log     LogConfig     `toml:"log"`
}

// PoolConfig configures the shared task pool.
type PoolConfig struct {
	Name string `toml:"name"`
	// MaxThreads bounds the worker count; 0 means unbounded.
	MaxThreads int `toml:"max_threads"`
	// LockOSThread pins every worker to its own OS thread.
	LockOSThread bool `toml:"lock_os_thread"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	Enabled      bool     `toml:"enabled"`
	Namespace    string   `toml:"namespace"`
	Listen       string   `toml:"listen"`
	PollInterval Duration `toml:"poll_interval"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `toml:"level"`
	// Development selects zap's console development logger over JSON output.
	Development bool `toml:"development"`
}

// Duration is a time.Duration written as a string such as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Name:       "shared-pool",
			MaxThreads: 1,
		},
		Metrics: MetricsConfig{
			Namespace:    "taskloop",
			Listen:       ":9090",
			PollInterval: Duration{time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError reports one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every setting and joins all problems into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.Pool.MaxThreads < 0 {
		errs = append(errs, ValidationError{"pool.max_threads", "must not be negative"})
	}
	if c.Metrics.Enabled {
		if c.Metrics.Listen == "" {
			errs = append(errs, ValidationError{"metrics.listen", "required when metrics are enabled"})
		}
		if c.Metrics.PollInterval.Duration <= 0 {
			errs = append(errs, ValidationError{"metrics.poll_interval", "must be positive"})
		}
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q", c.Log.Level)})
	}
	return errors.Join(errs...)
}
