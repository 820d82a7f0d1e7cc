// Package queue buffers fill readings between the HTTP intake and the
// workers that push them to the platform.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/klynaa/internal/domain/model"
	"github.com/okian/klynaa/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10_000
)

// Reading is the payload type flowing through the queue.
type Reading = model.FillReading

// Queue provides non-blocking enqueue and blocking dequeue.
type Queue interface {
	// Enqueue adds a reading. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, r Reading) bool

	// Next blocks until a reading is available. It returns false once the
	// queue is closed and drained, or ctx is done.
	Next(ctx context.Context) (Reading, bool)

	// Len returns the number of queued readings.
	Len(ctx context.Context) int

	// Close stops intake. Readings already queued can still be taken.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Reading
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Reading, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a reading without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Reading) bool { //nolint:gocritic // hugeParam: readings are passed by value through the channel
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	select {
	case q.items <- r:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Next takes the oldest reading.
func (q *InMemoryQueue) Next(ctx context.Context) (Reading, bool) {
	select {
	case r, ok := <-q.items:
		if !ok {
			return Reading{}, false
		}
		metrics.RecordQueueDequeue()
		q.observe()
		return r, true
	case <-ctx.Done():
		return Reading{}, false
	}
}

// Len returns the current number of queued readings.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.items)
}

// Capacity returns the maximum number of queued readings.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops intake.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
