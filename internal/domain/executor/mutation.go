package executor

import "context"

// MutateFunc performs a change parameterised by variables.
type MutateFunc[V, T any] func(ctx context.Context, variables V) (T, error)

// Mutation is an executor for an operation that takes input and only runs
// when asked. Overlapping calls are not de-duplicated; the last one to
// settle decides data and error, and every call returns its own result.
type Mutation[V, T any] struct {
	*slot[T]

	fn MutateFunc[V, T]
}

// NewMutation binds fn to scope. WithImmediate and WithInitialData have no
// effect on mutations.
func NewMutation[V, T any](scope *Scope, fn MutateFunc[V, T], opts ...Option[T]) *Mutation[V, T] {
	m := &Mutation[V, T]{
		slot: newSlot(scope, kindMutation, opts),
		fn:   fn,
	}
	m.cfg.immediate = false
	m.cfg.initialData = nil
	return m
}

// Mutate runs fn with variables and returns its result. On failure the
// returned error is an *apierror.Error.
func (m *Mutation[V, T]) Mutate(ctx context.Context, variables V) (T, error) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn == nil {
		var zero T
		return zero, ErrNoProducer
	}
	return invoke[T](ctx, m.slot, func(ctx context.Context) (T, error) {
		return fn(ctx, variables)
	})
}

// Reset clears data and error and returns to Idle.
func (m *Mutation[V, T]) Reset() {
	m.reset(nil)
}

// SetFunc swaps the operation. It never triggers a call.
func (m *Mutation[V, T]) SetFunc(fn MutateFunc[V, T]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
}
