// Package queue hands accepted scan requests to the worker lane.
//
// The in-memory implementation is a bounded channel. Requests carry only the
// scan identifier; the job row written at trigger time holds everything else.
package queue

import (
	"context"
	"sync"

	"github.com/okian/painpoint/pkg/metrics"
)

const defaultQueueCapacity = 16

// Request asks the worker to run one scan.
type Request struct {
	ScanID string
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. It never blocks; a full queue returns ErrFull.
	Enqueue(ctx context.Context, r Request) error

	// Dequeue returns the channel requests are delivered on. It is closed
	// when the queue is closed.
	Dequeue() <-chan Request

	// Len returns the current number of queued requests.
	Len() int

	// Close stops accepting requests and closes the dequeue channel.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan Request
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// Option tunes an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds how many scans may wait behind the running one.
// Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// NewInMemoryQueue returns an open queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan Request, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a request to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	default:
	}

	select {
	case q.requests <- r:
		metrics.UpdateQueueSize(len(q.requests))
		return nil
	default:
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns the request channel.
func (q *InMemoryQueue) Dequeue() <-chan Request {
	return q.requests
}

// Len returns the current number of queued requests.
func (q *InMemoryQueue) Len() int {
	size := len(q.requests)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
