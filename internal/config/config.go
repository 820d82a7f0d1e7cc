// Package config defines gateway configuration and its loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// BackendURL is the base URL of the platform REST API.
	BackendURL string `koanf:"backend_url"`

	// BackendTimeoutMS bounds a single platform API request.
	BackendTimeoutMS int `koanf:"backend_timeout_ms"`

	// AccessToken and RefreshToken authenticate against the platform API.
	AccessToken  string `koanf:"access_token"`
	RefreshToken string `koanf:"refresh_token"`

	// RateLimitRPS and RateLimitBurst throttle outbound platform requests.
	// A non-positive RPS disables throttling.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// QueueSize bounds the in-memory fill reading queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of workers pushing readings upstream.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many reading IDs are remembered for duplicate detection.
	DedupeSize int `koanf:"dedupe_size"`

	// RefreshIntervalMS sets how often the attention and available views are
	// re-fetched. Zero disables the periodic refresh.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// PickupThreshold is the fill percentage at which a bin needs pickup.
	PickupThreshold int `koanf:"pickup_threshold"`

	// AbortOnShutdown cancels in-flight platform calls when the service stops.
	AbortOnShutdown bool `koanf:"abort_on_shutdown"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshMS sets how often system and service gauges are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		BackendURL:        "http://localhost:8000/api",
		BackendTimeoutMS:  10_000,
		RateLimitRPS:      50,
		RateLimitBurst:    10,
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU() * 2,
		DedupeSize:        100_000,
		RefreshIntervalMS: 30_000,
		PickupThreshold:   80,
		MetricsEnabled:    true,
		MetricsRefreshMS:  10_000,
	}
}

// BackendTimeout returns BackendTimeoutMS as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutMS) * time.Millisecond
}

// RefreshInterval returns RefreshIntervalMS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}
