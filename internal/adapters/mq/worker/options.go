// Package worker runs queued scans one at a time.
package worker

import (
	"github.com/okian/painpoint/pkg/logger"
)

// Option tunes an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName names the lane in logs and error metrics.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the parent logger; the lane derives a named child from it.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
