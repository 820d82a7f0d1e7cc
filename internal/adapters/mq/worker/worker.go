// Package worker drains the reading queue and applies each reading through
// an Applier.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/logger"
	"github.com/okian/klynaa/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Applier pushes one reading to its destination.
type Applier interface {
	Apply(ctx context.Context, r model.FillReading) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, r model.FillReading) error

// Apply calls f.
func (f ApplierFunc) Apply(ctx context.Context, r model.FillReading) error { return f(ctx, r) } //nolint:gocritic // hugeParam: readings are passed by value

// Queue defines how workers receive readings.
type Queue interface {
	Next(ctx context.Context) (model.FillReading, bool)
}

// InMemoryWorker takes readings off the queue one at a time.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	logger  logger.Logger

	processed *atomic.Int64
	done      chan struct{}
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		applier:   applier,
		name:      "worker",
		logger:    logger.Nop(),
		processed: new(atomic.Int64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes readings until the queue is drained after Close, or ctx is
// canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		r, ok := w.queue.Next(ctx)
		if !ok {
			return
		}
		if err := w.process(ctx, r); err != nil {
			w.logger.Error(ctx, "error applying reading", logger.Error(err))
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, r model.FillReading) error { //nolint:gocritic // hugeParam: readings are passed by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.applier.Apply(ctx, r); err != nil {
		metrics.RecordReadingFailed()
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply reading %s for bin %s: %w", r.ReadingID, r.BinID, err)
	}
	metrics.RecordReadingApplied()
	w.processed.Add(1)
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger

	processed atomic.Int64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a worker pool. A workerCount below 1 means
// 2 x runtime.NumCPU().
func NewPool(workerCount int, q Queue, applier Applier, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := range p.workers {
		w := NewInMemoryWorker(q, applier,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
		w.processed = &p.processed
		p.workers[i] = w
	}

	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerMessagesPerSecond(0.0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many readings were applied successfully.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start launches all workers. Canceling ctx stops them without draining.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		for _, w := range p.workers {
			p.wg.Add(1)
			go func(w *InMemoryWorker) {
				defer p.wg.Done()
				w.Run(ctx)
			}(w)
		}
		metrics.UpdateWorkerActiveCount(len(p.workers))

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.reportRate(ctx)
		}()
	})
}

func (p *Pool) reportRate(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	last := p.processed.Load()
	lastAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cur := p.processed.Load()
			if secs := now.Sub(lastAt).Seconds(); secs > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(cur-last) / secs)
			}
			last, lastAt = cur, now
		}
	}
}

// Shutdown closes the queue (when it can be closed), lets the workers drain
// what is left and waits for them. If ctx ends first the workers are
// canceled and an error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(cerr))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		defer cancel()

		for i, w := range p.workers {
			if p.cancel == nil {
				break
			}
			select {
			case <-w.Done():
			case <-shutdownCtx.Done():
				p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
			}
			if err != nil {
				break
			}
		}

		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		metrics.UpdateWorkerActiveCount(0)
	})
	return err
}
