package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/klynaa/pkg/logger"
)

// Producer performs the actual request. It receives the caller's context,
// or a derived one when WithAbortOnClose is set.
type Producer[T any] func(ctx context.Context) (T, error)

// Request is an executor for a zero-argument operation.
type Request[T any] struct {
	*slot[T]

	producer  Producer[T]
	immediate sync.Once
}

// NewRequest binds producer to scope. With WithImmediate(true) it starts
// exactly one call in the background before returning; the outcome of that
// call is only observable through the executor's state.
func NewRequest[T any](scope *Scope, producer Producer[T], opts ...Option[T]) *Request[T] {
	r := &Request[T]{
		slot:     newSlot(scope, kindRequest, opts),
		producer: producer,
	}
	r.state.Data = clone(r.cfg.initialData)
	if r.cfg.immediate {
		r.runImmediate()
	}
	return r
}

// Execute runs the producer once and returns its result. On failure the
// returned error is an *apierror.Error.
func (r *Request[T]) Execute(ctx context.Context) (T, error) {
	r.mu.Lock()
	producer := r.producer
	r.mu.Unlock()
	if producer == nil {
		var zero T
		return zero, ErrNoProducer
	}
	return invoke[T](ctx, r.slot, producer)
}

// Reset restores the initial data, clears the error and returns to Idle.
func (r *Request[T]) Reset() {
	r.mu.Lock()
	initial := r.cfg.initialData
	r.mu.Unlock()
	r.reset(initial)
}

// SetProducer swaps the operation. It never triggers a call.
func (r *Request[T]) SetProducer(producer Producer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producer = producer
}

func (r *Request[T]) runImmediate() {
	r.immediate.Do(func() {
		r.goBackground(func() {
			ctx := context.Background()
			if _, err := r.Execute(ctx); err != nil && !errors.Is(err, ErrScopeClosed) {
				r.currentLogger().Debug(ctx, "immediate call failed; kept in state",
					logger.String("executor", r.Name()),
					logger.Error(err),
				)
			}
		})
	})
}
