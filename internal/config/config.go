// Package config loads sizestream settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/containerd/errdefs"
	"github.com/pelletier/go-toml"
	"github.com/sadopc/sizestream/internal/model"
	"github.com/sadopc/sizestream/internal/scanner"
)

// Config holds every tunable. Zero values are never valid; start from
// Default.
type Config struct {
	Scan   ScanConfig   `toml:"scan"`
	Log    LogConfig    `toml:"log"`
	Remote RemoteConfig `toml:"remote"`
	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string `toml:"metrics_addr"`
}

type ScanConfig struct {
	BatchSize         int `toml:"batch_size"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	MaxDepth          int `toml:"max_depth"`
	// Concurrency of 0 picks a value from the CPU count.
	Concurrency int `toml:"concurrency"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type RemoteConfig struct {
	Port      int    `toml:"port"`
	BatchMode bool   `toml:"batch_mode"`
	Timeout   string `toml:"timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			BatchSize:         scanner.DefaultBatchSize,
			HeartbeatInterval: scanner.DefaultHeartbeatInterval,
			MaxDepth:          model.DefaultMaxDepth,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Remote: RemoteConfig{
			Port:    22,
			Timeout: "10s",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/sizestream/config.toml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "sizestream", "config.toml")
}

// Load reads the file at path over the defaults. An empty path means
// DefaultPath, and a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the scanner cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Scan.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.Scan.BatchSize))
	}
	if c.Scan.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat_interval must be positive, got %d", c.Scan.HeartbeatInterval))
	}
	if c.Scan.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.Scan.MaxDepth))
	}
	if c.Scan.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Scan.Concurrency))
	}
	if c.Remote.Port < 1 || c.Remote.Port > 65535 {
		errs = append(errs, fmt.Errorf("remote port out of range: %d", c.Remote.Port))
	}
	if _, err := c.RemoteTimeout(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errdefs.ErrInvalidArgument, errors.Join(errs...))
}

// RemoteTimeout parses Remote.Timeout.
func (c Config) RemoteTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Remote.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid remote timeout %q: %w", c.Remote.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("remote timeout must be positive, got %s", d)
	}
	return d, nil
}

// ScanOptions converts the scan section for the scanner.
func (c Config) ScanOptions() scanner.Options {
	return scanner.Options{
		BatchSize:         c.Scan.BatchSize,
		HeartbeatInterval: c.Scan.HeartbeatInterval,
		MaxDepth:          c.Scan.MaxDepth,
		Concurrency:       c.Scan.Concurrency,
	}
}
