// Package dedupe remembers recently seen reading IDs so a sensor retry is
// applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records seen reading IDs.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a reading that could not be queued can be
	// submitted again.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of remembered IDs.
	Size() int
}

// window is a bounded FIFO set: when full, the oldest recorded ID is
// forgotten first. With maxSize <= 0 it never forgets.
type window struct {
	mu      sync.Mutex
	maxSize int
	seen    map[string]*list.Element
	order   *list.List // front = oldest
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	w := &window{maxSize: 50_000}
	for _, opt := range opts {
		opt(w)
	}
	w.seen = make(map[string]*list.Element)
	w.order = list.New()
	return w
}

func (w *window) SeenAndRecord(_ context.Context, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}
	if w.maxSize > 0 && w.order.Len() >= w.maxSize {
		oldest := w.order.Front()
		w.order.Remove(oldest)
		delete(w.seen, oldest.Value.(string))
	}
	w.seen[id] = w.order.PushBack(id)
	return false
}

func (w *window) Unrecord(_ context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.seen[id]; ok {
		w.order.Remove(e)
		delete(w.seen, id)
	}
}

func (w *window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}
