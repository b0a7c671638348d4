// Package worker runs queued scans one at a time.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/okian/painpoint/internal/adapters/mq/queue"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/okian/painpoint/pkg/metrics"
)

// Runner executes one scan to a terminal state.
type Runner interface {
	RunScan(ctx context.Context, scanID string) error
}

// Queue defines how the worker receives requests.
type Queue interface {
	Dequeue() <-chan queue.Request
}

// Worker consumes scan requests.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops taking new requests and waits for the current scan.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is the single scan lane. Requests are processed strictly
// one after another.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, r Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		runner:   r,
		name:     "scan-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, req); err != nil {
				w.logger.Error(ctx, "scan run failed",
					logger.String("scan_id", req.ScanID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process runs one scan. A panic is converted to an error so the lane
// survives.
func (w *InMemoryWorker) process(ctx context.Context, req queue.Request) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "scan panicked",
				logger.String("scan_id", req.ScanID),
				logger.Any("panic", p),
				logger.String("stack", string(debug.Stack())))
			err = fmt.Errorf("scan %s panicked: %v", req.ScanID, p)
		}
	}()

	w.logger.Debug(ctx, "scan picked up", logger.String("scan_id", req.ScanID))
	if err := w.runner.RunScan(ctx, req.ScanID); err != nil {
		metrics.RecordErrorByComponent("worker", "run_error")
		return fmt.Errorf("run scan %s: %w", req.ScanID, err)
	}
	w.logger.Debug(ctx, "scan finished",
		logger.String("scan_id", req.ScanID),
		logger.Int("elapsed_ms", int(time.Since(start).Milliseconds())))
	return nil
}
