package service

import (
	"time"

	"github.com/okian/klynaa/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of workers pushing readings upstream.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued readings.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many reading IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithPickupThreshold sets the fill percentage at which a bin needs pickup.
func WithPickupThreshold(threshold int) Option {
	return func(s *Service) {
		if threshold >= 0 && threshold <= 100 {
			s.threshold = threshold
		}
	}
}

// WithRefreshInterval sets how often the attention and available views are
// re-fetched. Zero disables the periodic refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithAbortOnStop cancels in-flight platform calls when the service stops.
func WithAbortOnStop(abort bool) Option {
	return func(s *Service) {
		s.abortOnStop = abort
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
