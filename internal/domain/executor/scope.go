package executor

import "context"

// Scope is the lifetime that executor state belongs to. Once a scope is
// closed, or its parent context is done, executors bound to it stop writing
// state and stop invoking callbacks. Calls already in flight still return
// their result to whoever awaits them.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScope returns an open scope that also closes when parent is done.
func NewScope(parent context.Context) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Close tears the scope down. It is safe to call more than once.
func (s *Scope) Close() { s.cancel() }

// Alive reports whether the scope is still open.
func (s *Scope) Alive() bool { return s.ctx.Err() == nil }

// Done is closed when the scope is torn down.
func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Context returns the scope's context. It is canceled on Close.
func (s *Scope) Context() context.Context { return s.ctx }
