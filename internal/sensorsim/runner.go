package sensorsim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/logger"
)

const directoryPermission = 0o750

// Run executes a simulation: health check, generation, concurrent
// submission and a final read of the gateway's own stats.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	stats := &Stats{}

	log.Info(ctx, "starting sensor simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("bins", len(cfg.Bins)),
		logger.Int("readings", cfg.Readings),
		logger.Float64("duplicateRatio", cfg.DuplicateRatio),
		logger.Int("workers", cfg.Workers),
	)

	client := &http.Client{Timeout: cfg.Timeout}
	if err := getJSON(ctx, client, cfg.BaseURL+"/healthz", nil); err != nil {
		return nil, fmt.Errorf("gateway health check failed: %w", err)
	}

	readings, dups, err := Generate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stats.Generated = len(readings)
	stats.Duplicates = dups

	var c counters
	s := newSubmitter(cfg.BaseURL, cfg.Timeout, log)
	err = s.submitAll(ctx, readings, cfg.Workers, &c)
	c.fill(stats)
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, fmt.Errorf("submission interrupted: %w", err)
	}

	var gw GatewayStats
	if err := getJSON(ctx, client, cfg.BaseURL+"/stats", &gw); err != nil {
		log.Warn(ctx, "could not read gateway stats", logger.Error(err))
	} else {
		stats.GatewayView = &gw
	}

	if cfg.OutputFile != "" {
		if err := saveReadings(cfg.OutputFile, readings); err != nil {
			log.Warn(ctx, "failed to save readings", logger.Error(err))
		} else {
			log.Info(ctx, "readings saved", logger.String("file", cfg.OutputFile))
		}
	}

	log.Info(ctx, "simulation finished",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("deduped", stats.Deduped),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}

func saveReadings(path string, readings []model.FillReading) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(readings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// WriteReport prints a human-readable summary of stats to w.
func WriteReport(w io.Writer, stats *Stats) {
	var rate float64
	if stats.Duration > 0 {
		rate = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	fmt.Fprintf(w, "Sensor simulation summary\n")
	fmt.Fprintf(w, "  generated:   %d (%d resends)\n", stats.Generated, stats.Duplicates)
	fmt.Fprintf(w, "  submitted:   %d in %s (%.0f/s)\n", stats.Submitted, stats.Duration.Round(time.Millisecond), rate)
	fmt.Fprintf(w, "  accepted:    %d\n", stats.Accepted)
	fmt.Fprintf(w, "  duplicate:   %d\n", stats.Deduped)
	fmt.Fprintf(w, "  throttled:   %d\n", stats.Throttled)
	fmt.Fprintf(w, "  rejected:    %d\n", stats.Rejected)
	fmt.Fprintf(w, "  failed:      %d\n", stats.Failed)
	if gw := stats.GatewayView; gw != nil {
		fmt.Fprintf(w, "Gateway\n")
		fmt.Fprintf(w, "  queue:       %d\n", gw.QueueLength)
		fmt.Fprintf(w, "  applied:     %d\n", gw.ReadingsApplied)
		fmt.Fprintf(w, "  attention:   %d bins (%s)\n", gw.BinsNeedingPickup, gw.AttentionPhase)
		fmt.Fprintf(w, "  available:   %d pickups\n", gw.PickupsAvailable)
	}
}
