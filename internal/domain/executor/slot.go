// Package executor wraps asynchronous operations in observable slots.
//
// A Request runs a zero-argument producer, optionally once on creation, and
// a Mutation runs a one-argument function on demand. Both expose the same
// state: data, loading, error and phase (idle, loading, success, error).
// State belongs to a Scope; once the scope is closed, calls that are still
// pending return normally to their caller but no longer write state.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/pkg/logger"
	"github.com/okian/klynaa/pkg/metrics"
)

const (
	kindRequest  = "request"
	kindMutation = "mutation"

	outcomeSuccess  = "success"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

// slot holds the state machine shared by Request and Mutation.
type slot[T any] struct {
	kind  string
	scope *Scope

	mu       sync.Mutex
	cfg      settings[T]
	state    State[T]
	inFlight int

	// background counts calls the executor started on its own; idle is
	// closed while none is running.
	background int
	idle       chan struct{}
}

func newSlot[T any](scope *Scope, kind string, opts []Option[T]) *slot[T] {
	if scope == nil {
		scope = NewScope(context.Background())
	}
	idle := make(chan struct{})
	close(idle)
	s := &slot[T]{
		kind:  kind,
		scope: scope,
		idle:  idle,
		cfg: settings[T]{
			name: kind,
			log:  logger.Nop(),
		},
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// Configure applies options after construction. It never triggers a call:
// WithImmediate is ignored here.
func (s *slot[T]) Configure(opts ...Option[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	immediate := s.cfg.immediate
	for _, opt := range opts {
		opt(&s.cfg)
	}
	s.cfg.immediate = immediate
}

// Name returns the executor's label.
func (s *slot[T]) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.name
}

func (s *slot[T]) currentLogger() logger.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.log
}

// State returns a snapshot of the current state.
func (s *slot[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Data returns a copy of the current data and whether any is present.
func (s *slot[T]) Data() (T, bool) {
	return s.State().Value()
}

// Loading reports whether any call is in flight.
func (s *slot[T]) Loading() bool {
	return s.State().Loading
}

// Err returns the normalised error of the last failed call, if it still
// stands.
func (s *slot[T]) Err() *apierror.Error {
	return s.State().Err
}

// Phase returns the current phase.
func (s *slot[T]) Phase() Phase {
	return s.State().Phase
}

// Wait blocks until calls started by the executor itself (the immediate
// call) have returned, or ctx is done. It starts no goroutine.
func (s *slot[T]) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", s.Name(), ctx.Err())
	}
}

// goBackground runs fn on its own goroutine and tracks it for Wait.
func (s *slot[T]) goBackground(fn func()) {
	s.mu.Lock()
	if s.background == 0 {
		s.idle = make(chan struct{})
	}
	s.background++
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.background--
			if s.background == 0 {
				close(s.idle)
			}
			s.mu.Unlock()
		}()
		fn()
	}()
}

// begin moves the slot to Loading. It reports false when the scope is
// closed, in which case nothing is written.
func (s *slot[T]) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scope.Alive() {
		return false
	}
	s.inFlight++
	s.state.Loading = true
	s.state.Err = nil
	s.state.Phase = PhaseLoading
	s.emit()
	metrics.UpdateExecutorInFlight(s.cfg.name, s.inFlight)
	return true
}

// settle records the outcome of one call. Data and error follow the last
// call to settle; loading and phase only leave Loading once no call is in
// flight. Nothing is written, and no callback runs, once the scope is closed.
// Callbacks run outside the lock, so the scope is checked again right before
// them; a Close that lands after that check does not stop the callback.
func (s *slot[T]) settle(ctx context.Context, v T, callErr *apierror.Error, took time.Duration) {
	s.mu.Lock()
	s.inFlight--
	cfg := s.cfg
	metrics.UpdateExecutorInFlight(cfg.name, s.inFlight)
	metrics.RecordExecutorLatency(cfg.name, s.kind, float64(took.Milliseconds()))

	outcome := outcomeSuccess
	if callErr != nil {
		outcome = outcomeError
	}
	metrics.RecordExecutorCall(cfg.name, s.kind, outcome)

	if !s.scope.Alive() {
		s.mu.Unlock()
		metrics.RecordExecutorSuppressed(cfg.name)
		cfg.log.Debug(ctx, "scope closed; dropping settlement",
			logger.String("executor", cfg.name),
			logger.String("outcome", outcome),
		)
		return
	}

	if callErr != nil {
		s.state.Err = callErr
	} else {
		d := v
		s.state.Data = &d
		s.state.Err = nil
	}
	if s.inFlight == 0 {
		s.state.Loading = false
		if callErr != nil {
			s.state.Phase = PhaseError
		} else {
			s.state.Phase = PhaseSuccess
		}
	}
	s.emit()
	s.mu.Unlock()

	if !s.scope.Alive() {
		metrics.RecordExecutorSuppressed(cfg.name)
		return
	}
	if callErr != nil {
		cfg.log.Warn(ctx, "call failed",
			logger.String("executor", cfg.name),
			logger.Int("status", callErr.Status),
			logger.Error(callErr),
		)
		if cfg.onError != nil {
			cfg.onError(callErr)
		}
		return
	}
	cfg.log.Debug(ctx, "call succeeded",
		logger.String("executor", cfg.name),
		logger.Duration("took", took),
	)
	if cfg.onSuccess != nil {
		cfg.onSuccess(v)
	}
}

// reset returns the slot to Idle with the given data. It is a no-op once
// the scope is closed.
func (s *slot[T]) reset(data *T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.scope.Alive() {
		return
	}
	s.state = State[T]{Data: clone(data), Phase: PhaseIdle}
	s.emit()
	metrics.RecordExecutorReset(s.cfg.name)
}

// emit notifies the state hook. Callers hold s.mu.
func (s *slot[T]) emit() {
	if s.cfg.stateHook != nil {
		s.cfg.stateHook(s.state)
	}
}

// callContext derives the context handed to the producer. With abortOnClose
// it is also canceled when the scope closes.
func (s *slot[T]) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	abort := s.cfg.abortOnClose
	s.mu.Unlock()
	if !abort {
		return ctx, func() {}
	}
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.scope.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

// invoke runs fn through the Loading -> Success/Error transition and returns
// its own result regardless of whether the state write was applied.
func invoke[T any](ctx context.Context, s *slot[T], fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !s.begin() {
		metrics.RecordExecutorCall(s.Name(), s.kind, outcomeRejected)
		return zero, ErrScopeClosed
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	start := time.Now()
	v, err := guarded(callCtx, fn)
	took := time.Since(start)

	if err != nil {
		apiErr := apierror.Normalize(err)
		s.settle(callCtx, zero, apiErr, took)
		return zero, apiErr
	}
	s.settle(callCtx, v, nil, took)
	return v, nil
}

// guarded turns a producer panic into an error so the slot never stays
// stuck in Loading.
func guarded[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panic: %v", r)
		}
	}()
	return fn(ctx)
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
