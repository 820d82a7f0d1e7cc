package executor

import "github.com/okian/klynaa/internal/domain/apierror"

// State is a point-in-time snapshot of an executor slot.
//
// Data is nil until a call succeeds (or initial data was given). Err is nil
// unless the last settled call failed and no later call has started.
type State[T any] struct {
	Data    *T              `json:"data"`
	Loading bool            `json:"loading"`
	Err     *apierror.Error `json:"error"`
	Phase   Phase           `json:"phase"`
}

// Value returns the data and whether any is present.
func (s State[T]) Value() (T, bool) {
	if s.Data == nil {
		var zero T
		return zero, false
	}
	return *s.Data, true
}
