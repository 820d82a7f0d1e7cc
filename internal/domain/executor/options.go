package executor

import (
	"github.com/okian/klynaa/internal/domain/apierror"
	"github.com/okian/klynaa/pkg/logger"
)

type settings[T any] struct {
	name         string
	initialData  *T
	immediate    bool
	onSuccess    func(T)
	onError      func(*apierror.Error)
	stateHook    func(State[T])
	abortOnClose bool
	log          logger.Logger
}

// Option applies a configuration option to a Request or Mutation.
type Option[T any] func(*settings[T])

// WithName labels the executor in logs and metrics.
func WithName[T any](name string) Option[T] {
	return func(s *settings[T]) {
		if name != "" {
			s.name = name
		}
	}
}

// WithInitialData sets the data a Request starts with and returns to on
// Reset. Mutations ignore it.
func WithInitialData[T any](data T) Option[T] {
	return func(s *settings[T]) {
		d := data
		s.initialData = &d
	}
}

// WithImmediate makes a Request execute once as soon as it is built.
// Mutations ignore it, and so does Configure.
func WithImmediate[T any](immediate bool) Option[T] {
	return func(s *settings[T]) {
		s.immediate = immediate
	}
}

// WithOnSuccess registers a callback run after a successful call is applied.
func WithOnSuccess[T any](fn func(T)) Option[T] {
	return func(s *settings[T]) {
		s.onSuccess = fn
	}
}

// WithOnError registers a callback run after a failed call is applied.
func WithOnError[T any](fn func(*apierror.Error)) Option[T] {
	return func(s *settings[T]) {
		s.onError = fn
	}
}

// WithStateHook registers an observer called with a snapshot after every
// state write. It runs with the executor lock held and must not call back
// into the executor.
func WithStateHook[T any](fn func(State[T])) Option[T] {
	return func(s *settings[T]) {
		s.stateHook = fn
	}
}

// WithAbortOnClose cancels the context handed to in-flight producers when
// the owning scope closes. By default producers run to completion and only
// their state writes are dropped.
func WithAbortOnClose[T any](abort bool) Option[T] {
	return func(s *settings[T]) {
		s.abortOnClose = abort
	}
}

// WithLogger sets the logger used for transition and failure records.
func WithLogger[T any](l logger.Logger) Option[T] {
	return func(s *settings[T]) {
		if l != nil {
			s.log = l
		}
	}
}
