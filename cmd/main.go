package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/klynaa/internal/adapters/backend"
	"github.com/okian/klynaa/internal/adapters/http/api"
	"github.com/okian/klynaa/internal/adapters/http/swagger"
	service "github.com/okian/klynaa/internal/app"
	"github.com/okian/klynaa/internal/config"
	"github.com/okian/klynaa/pkg/logger"
	"github.com/okian/klynaa/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "gateway failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run loads configuration, starts the dispatch service and serves HTTP
// until ctx is cancelled.
func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Init(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	)

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if metrics.Enabled() {
		go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
		go startServiceMetricsUpdater(ctx, svc, metrics.RefreshInterval())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the platform client and the dispatch service from cfg.
func newService(cfg *config.Config, log logger.Logger) (*service.Service, error) {
	client, err := backend.New(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout()),
		backend.WithTokens(cfg.AccessToken, cfg.RefreshToken),
		backend.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		backend.WithLogger(log.Named("backend")),
	)
	if err != nil {
		return nil, fmt.Errorf("platform client: %w", err)
	}
	return service.New(client,
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithPickupThreshold(cfg.PickupThreshold),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithAbortOnStop(cfg.AbortOnShutdown),
	), nil
}

// newHandler registers the docs and gateway routes.
func newHandler(ctx context.Context, svc api.Dependencies, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, log.Named("http")).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics publishes the service snapshot as gauges.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	st := svc.Stats(ctx)
	if !st.Started {
		return
	}
	metrics.UpdateQueueSize(st.QueueLength)
	metrics.UpdateQueueCapacity(st.QueueCapacity)
	metrics.UpdateWorkerActiveCount(st.Workers)
	metrics.UpdateBinsNeedingPickup(st.BinsNeedingPickup)
	metrics.UpdatePickupsAvailable(st.PickupsAvailable)
}
