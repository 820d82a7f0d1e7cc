// Package service runs the dispatch gateway: it keeps the list of bins that
// need pickup and the list of available pickups fresh, accepts pickups on a
// worker's behalf and forwards sensor fill readings to the platform.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/klynaa/internal/adapters/mq/queue"
	workerpool "github.com/okian/klynaa/internal/adapters/mq/worker"
	"github.com/okian/klynaa/internal/domain/dedupe"
	"github.com/okian/klynaa/internal/domain/executor"
	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/logger"
	"github.com/okian/klynaa/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Platform is the subset of the platform API the service needs.
type Platform interface {
	BinsRequiringPickup(ctx context.Context, threshold int) ([]model.Bin, error)
	AvailablePickups(ctx context.Context, near *model.Location) ([]model.Pickup, error)
	AcceptPickup(ctx context.Context, id string) (model.Pickup, error)
	UpdateFillLevel(ctx context.Context, id string, fillLevel int) (model.Bin, error)
}

// Outcome is the result of submitting a reading.
type Outcome int

// Submit outcomes.
const (
	OutcomeAccepted Outcome = iota
	OutcomeDuplicate
)

func (o Outcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}
	return "accepted"
}

// Stats is a point-in-time view of the service for monitoring.
type Stats struct {
	Started           bool   `json:"started"`
	Workers           int    `json:"workers"`
	QueueLength       int    `json:"queue_length"`
	QueueCapacity     int    `json:"queue_capacity"`
	DedupeSize        int    `json:"dedupe_size"`
	ReadingsApplied   int64  `json:"readings_applied"`
	PickupThreshold   int    `json:"pickup_threshold"`
	AttentionPhase    string `json:"attention_phase"`
	AvailablePhase    string `json:"available_phase"`
	BinsNeedingPickup int    `json:"bins_needing_pickup"`
	PickupsAvailable  int    `json:"pickups_available"`
}

// Service composes the executors, the reading queue and its workers.
type Service struct {
	mu sync.RWMutex

	platform Platform

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	threshold       int
	refreshInterval time.Duration
	abortOnStop     bool

	// Components, built by Start
	scope     *executor.Scope
	attention *executor.Request[[]model.Bin]
	available *executor.Request[[]model.Pickup]
	accept    *executor.Mutation[string, model.Pickup]
	fill      *executor.Mutation[model.FillReading, model.Bin]
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool

	// State
	started bool
	stopCh  chan struct{}
	loops   sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service bound to platform.
func New(platform Platform, opts ...Option) *Service {
	s := &Service{
		platform:        platform,
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       10_000,
		dedupeSize:      100_000,
		threshold:       80,
		refreshInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the executors, fires the initial fetches and starts the
// workers and the refresh loop. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.platform == nil {
		return fmt.Errorf("%w: no platform client", ErrNotStarted)
	}
	if s.logger == nil {
		s.logger = logger.GetOr(logger.Nop())
	}
	s.logger.Info(ctx, "starting dispatch service...")

	s.scope = executor.NewScope(context.Background())
	s.buildExecutors()

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	fill := s.fill
	s.pool = workerpool.NewPool(s.workerCount, s.queue,
		workerpool.ApplierFunc(func(ctx context.Context, r model.FillReading) error {
			return applyReading(ctx, fill, r)
		}),
		workerpool.WithPoolLogger(s.logger.Named("workers")),
	)
	s.pool.Start(s.scope.Context())

	s.stopCh = make(chan struct{})
	if s.refreshInterval > 0 {
		s.loops.Add(1)
		go s.refreshLoop(s.scope.Context(), s.stopCh, s.refreshInterval)
	}

	s.started = true
	s.logger.Info(ctx, "dispatch service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("threshold", s.threshold),
		logger.Duration("refreshInterval", s.refreshInterval),
	)
	return nil
}

func (s *Service) buildExecutors() {
	log := s.logger.Named("executor")
	threshold := s.threshold

	s.attention = executor.NewRequest(s.scope,
		func(ctx context.Context) ([]model.Bin, error) {
			return s.platform.BinsRequiringPickup(ctx, threshold)
		},
		executor.WithName[[]model.Bin]("attention"),
		executor.WithLogger[[]model.Bin](log),
		executor.WithAbortOnClose[[]model.Bin](s.abortOnStop),
		executor.WithOnSuccess(func(bins []model.Bin) {
			metrics.UpdateBinsNeedingPickup(len(bins))
		}),
		executor.WithImmediate[[]model.Bin](true),
	)

	s.available = executor.NewRequest(s.scope,
		func(ctx context.Context) ([]model.Pickup, error) {
			return s.platform.AvailablePickups(ctx, nil)
		},
		executor.WithName[[]model.Pickup]("available"),
		executor.WithLogger[[]model.Pickup](log),
		executor.WithAbortOnClose[[]model.Pickup](s.abortOnStop),
		executor.WithOnSuccess(func(pickups []model.Pickup) {
			metrics.UpdatePickupsAvailable(len(pickups))
		}),
		executor.WithImmediate[[]model.Pickup](true),
	)

	s.accept = executor.NewMutation(s.scope, s.platform.AcceptPickup,
		executor.WithName[model.Pickup]("accept"),
		executor.WithLogger[model.Pickup](log),
		executor.WithAbortOnClose[model.Pickup](s.abortOnStop),
	)

	s.fill = executor.NewMutation(s.scope,
		func(ctx context.Context, r model.FillReading) (model.Bin, error) {
			return s.platform.UpdateFillLevel(ctx, r.BinID, r.FillLevel)
		},
		executor.WithName[model.Bin]("fill"),
		executor.WithLogger[model.Bin](log),
		executor.WithAbortOnClose[model.Bin](s.abortOnStop),
	)
}

// Stop stops the refresh loop, lets the workers drain the reading queue and
// then closes the executor scope. Pending executor results arriving after
// that are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stopCh, pool, scope := s.stopCh, s.pool, s.scope
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping dispatch service...")

	close(stopCh)
	s.loops.Wait()

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}
	scope.Close()

	s.logger.Info(ctx, "dispatch service stopped")
}

func (s *Service) refreshLoop(ctx context.Context, stop <-chan struct{}, every time.Duration) {
	defer s.loops.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrNotStarted) {
				s.logger.Warn(ctx, "periodic refresh failed", logger.Error(err))
			}
		}
	}
}

// Refresh re-fetches the attention and available views concurrently and
// returns the first failure, if any. Both views are always attempted.
func (s *Service) Refresh(ctx context.Context) error {
	attention, available, err := s.requests()
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.Go(func() error {
		_, err := attention.Execute(ctx)
		return err
	})
	g.Go(func() error {
		_, err := available.Execute(ctx)
		return err
	})
	return g.Wait()
}

// Attention returns the state of the bins-needing-pickup view.
func (s *Service) Attention() (executor.State[[]model.Bin], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return executor.State[[]model.Bin]{}, ErrNotStarted
	}
	return s.attention.State(), nil
}

// Available returns the state of the available-pickups view.
func (s *Service) Available() (executor.State[[]model.Pickup], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return executor.State[[]model.Pickup]{}, ErrNotStarted
	}
	return s.available.State(), nil
}

// Accept accepts a pickup. On success the available view is re-fetched so
// the accepted pickup drops out of it.
func (s *Service) Accept(ctx context.Context, pickupID string) (model.Pickup, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return model.Pickup{}, ErrNotStarted
	}
	accept, available := s.accept, s.available
	s.mu.RUnlock()

	p, err := accept.Mutate(ctx, pickupID)
	if err != nil {
		return model.Pickup{}, err
	}
	if _, err := available.Execute(ctx); err != nil {
		s.logger.Debug(ctx, "available refresh after accept failed", logger.Error(err))
	}
	return p, nil
}

// AcceptState returns the state of the last accept call.
func (s *Service) AcceptState() (executor.State[model.Pickup], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return executor.State[model.Pickup]{}, ErrNotStarted
	}
	return s.accept.State(), nil
}

// FillState returns the state of the last fill level push.
func (s *Service) FillState() (executor.State[model.Bin], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return executor.State[model.Bin]{}, ErrNotStarted
	}
	return s.fill.State(), nil
}

// Submit validates a sensor reading and queues it for the workers.
// A reading whose ID was seen recently is reported as a duplicate and not
// queued again. When the queue is full the ID is forgotten so the sensor can
// retry, and ErrBackpressure is returned.
func (s *Service) Submit(ctx context.Context, r model.FillReading) (Outcome, error) { //nolint:gocritic // hugeParam: readings are passed by value
	if err := r.Validate(); err != nil {
		metrics.RecordReadingRejected("invalid")
		return OutcomeAccepted, err
	}

	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		metrics.RecordReadingRejected("not_started")
		return OutcomeAccepted, ErrNotStarted
	}
	deduper, q := s.deduper, s.queue
	s.mu.RUnlock()

	if deduper.SeenAndRecord(ctx, r.ReadingID) {
		metrics.RecordReadingDuplicate()
		s.logger.Debug(ctx, "duplicate reading skipped",
			logger.String("reading_id", r.ReadingID),
			logger.String("bin_id", r.BinID),
		)
		return OutcomeDuplicate, nil
	}

	if !q.Enqueue(ctx, r) {
		deduper.Unrecord(ctx, r.ReadingID)
		if q.IsClosed() {
			// Stop closed the queue after the started check.
			metrics.RecordReadingRejected("not_started")
			return OutcomeAccepted, ErrNotStarted
		}
		metrics.RecordReadingRejected("backpressure")
		return OutcomeAccepted, ErrBackpressure
	}
	metrics.RecordReadingAccepted()
	return OutcomeAccepted, nil
}

func applyReading(ctx context.Context, fill *executor.Mutation[model.FillReading, model.Bin], r model.FillReading) error { //nolint:gocritic // hugeParam: readings are passed by value
	_, err := fill.Mutate(ctx, r)
	if errors.Is(err, executor.ErrScopeClosed) {
		return fmt.Errorf("%w: reading %s dropped", err, r.ReadingID)
	}
	return err
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:         s.started,
		Workers:         s.workerCount,
		QueueCapacity:   s.queueSize,
		PickupThreshold: s.threshold,
	}
	if !s.started {
		return st
	}

	st.Workers = s.pool.Size()
	st.QueueLength = s.queue.Len(ctx)
	st.DedupeSize = s.deduper.Size()
	st.ReadingsApplied = s.pool.Processed()

	a := s.attention.State()
	st.AttentionPhase = a.Phase.String()
	if bins, ok := a.Value(); ok {
		st.BinsNeedingPickup = len(bins)
	}
	p := s.available.State()
	st.AvailablePhase = p.Phase.String()
	if pickups, ok := p.Value(); ok {
		st.PickupsAvailable = len(pickups)
	}
	return st
}

// Wait blocks until the initial fetches fired by Start have returned.
func (s *Service) Wait(ctx context.Context) error {
	attention, available, err := s.requests()
	if err != nil {
		return err
	}
	if err := attention.Wait(ctx); err != nil {
		return err
	}
	return available.Wait(ctx)
}

func (s *Service) requests() (*executor.Request[[]model.Bin], *executor.Request[[]model.Pickup], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.attention, s.available, nil
}
