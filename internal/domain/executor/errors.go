package executor

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrScopeClosed is returned by Execute/Mutate once the owning scope has
	// been torn down. The producer is not invoked.
	ErrScopeClosed = errors.New("executor scope closed")
	// ErrNoProducer is returned when an executor was built without a function.
	ErrNoProducer = errors.New("executor has no producer")
)
