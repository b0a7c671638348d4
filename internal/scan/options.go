package scan

import (
	"time"

	"github.com/okian/painpoint/internal/domain/cluster"
	"github.com/okian/painpoint/pkg/logger"
	"golang.org/x/time/rate"
)

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithSourceOrder sets the processing order of sources. Names not listed run
// after the listed ones, alphabetically.
func WithSourceOrder(order []string) Option {
	return func(o *Orchestrator) { o.order = order }
}

// WithFilter sets the mention filter applied before clustering.
func WithFilter(f *cluster.Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

// WithTriggerRate allows perHour triggers per hour with a matching burst.
// Zero or negative disables the limit.
func WithTriggerRate(perHour int) Option {
	return func(o *Orchestrator) {
		if perHour <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour)
	}
}

// WithLeaseTTL sets how long the scan lane survives without a checkpoint.
func WithLeaseTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.leaseTTL = d
		}
	}
}

// WithMinClusterMentions sets the consensus size for a new opportunity.
func WithMinClusterMentions(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.minClusterMentions = n
		}
	}
}

// WithReviewTTL sets how long unplaced mentions stay in the review queue.
func WithReviewTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.reviewTTL = d
		}
	}
}

// WithTerminalWriteAttempts bounds retries of the terminal status write.
func WithTerminalWriteAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.terminalAttempts = n
		}
	}
}

// WithRetryBackoff sets the first delay between terminal write attempts.
// Later attempts double it.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.retryBackoff = d
		}
	}
}

// WithDedupeSize bounds the per scan mention deduper.
func WithDedupeSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.dedupeSize = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides scan and opportunity id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}
