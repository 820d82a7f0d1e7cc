// Package sensorsim drives the gateway with simulated bin sensor readings.
package sensorsim

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults used when a field is left at its zero value.
const (
	DefaultBaseURL  = "http://localhost:9080"
	DefaultBins     = 50
	DefaultReadings = 5_000
	DefaultTimeout  = 10 * time.Second
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulator config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	Readings       int           `yaml:"readings"`        // readings to submit in total
	DuplicateRatio float64       `yaml:"duplicate_ratio"` // share of submissions that resend an earlier reading
	Workers        int           `yaml:"workers"`
	Timeout        time.Duration `yaml:"timeout"`
	Seed           uint64        `yaml:"seed"`
	OutputFile     string        `yaml:"output"`
	Verbose        bool          `yaml:"verbose"`
	Bins           []BinProfile  `yaml:"bins"`
}

// BinProfile describes how one simulated bin fills up.
type BinProfile struct {
	ID    string `yaml:"id"`
	Start int    `yaml:"start"` // initial fill level, percent
	Rate  int    `yaml:"rate"`  // fill gained per reading, percent
}

// DefaultConfig returns a Config with DefaultBins generated bins.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Readings: DefaultReadings,
		Workers:  runtime.NumCPU() * 2,
		Timeout:  DefaultTimeout,
		Bins:     GenerateBins(DefaultBins),
	}
}

// GenerateBins returns n bin profiles with staggered start levels.
func GenerateBins(n int) []BinProfile {
	bins := make([]BinProfile, n)
	for i := range bins {
		bins[i] = BinProfile{
			ID:    fmt.Sprintf("bin-%03d", i+1),
			Start: (i * 7) % 60,
			Rate:  1 + i%5,
		}
	}
	return bins
}

// LoadScenario reads a YAML scenario file over base. Fields absent from
// the file keep base's values.
func LoadScenario(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read scenario %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return base, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before a run.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base_url is required", ErrInvalidConfig)
	case c.Readings <= 0:
		return fmt.Errorf("%w: readings must be positive, got %d", ErrInvalidConfig, c.Readings)
	case c.DuplicateRatio < 0 || c.DuplicateRatio >= 1:
		return fmt.Errorf("%w: duplicate_ratio must be within [0,1), got %g", ErrInvalidConfig, c.DuplicateRatio)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case len(c.Bins) == 0:
		return fmt.Errorf("%w: at least one bin is required", ErrInvalidConfig)
	}
	for _, b := range c.Bins {
		if b.ID == "" {
			return fmt.Errorf("%w: bin without id", ErrInvalidConfig)
		}
		if b.Start < 0 || b.Start > 100 {
			return fmt.Errorf("%w: bin %s start must be within 0..100, got %d", ErrInvalidConfig, b.ID, b.Start)
		}
	}
	return nil
}

// Stats holds the outcome of a run.
type Stats struct {
	Generated   int           `json:"generated"`
	Duplicates  int           `json:"duplicates_sent"`
	Submitted   int           `json:"submitted"`
	Accepted    int           `json:"accepted"`
	Deduped     int           `json:"deduped"`
	Throttled   int           `json:"throttled"`
	Rejected    int           `json:"rejected"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
	GatewayView *GatewayStats `json:"gateway,omitempty"`
}

// GatewayStats is the subset of GET /stats the report shows.
type GatewayStats struct {
	QueueLength       int    `json:"queue_length"`
	ReadingsApplied   int64  `json:"readings_applied"`
	AttentionPhase    string `json:"attention_phase"`
	BinsNeedingPickup int    `json:"bins_needing_pickup"`
	PickupsAvailable  int    `json:"pickups_available"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}
