// Package scheduler runs periodic scans and housekeeping on cron specs.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/scan"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
)

// DefaultSweepSpec expires review entries and stale progress once a day.
const DefaultSweepSpec = "@daily"

// Triggerer starts scans.
type Triggerer interface {
	Trigger(ctx context.Context, caller scan.Caller, req scan.TriggerRequest) (model.Snapshot, error)
}

// Sweeper drops expired review entries and progress snapshots.
type Sweeper interface {
	ExpireReview(ctx context.Context) (int, error)
	SweepProgress() int
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron      *cron.Cron
	triggerer Triggerer
	sweeper   Sweeper
	scanSpec  string
	sweepSpec string
	log       logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSweepSpec overrides the housekeeping schedule.
func WithSweepSpec(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.sweepSpec = spec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// New registers the jobs. An empty scanSpec disables automatic scans.
func New(scanSpec string, t Triggerer, sw Sweeper, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		triggerer: t,
		sweeper:   sw,
		scanSpec:  scanSpec,
		sweepSpec: DefaultSweepSpec,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{log: s.log}
	s.cron = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))

	if s.scanSpec != "" && t != nil {
		if _, err := s.cron.AddFunc(s.scanSpec, s.RunScan); err != nil {
			return nil, eris.Wrapf(err, "scheduler: scan spec %q", s.scanSpec)
		}
	}
	if sw != nil {
		if _, err := s.cron.AddFunc(s.sweepSpec, s.RunSweep); err != nil {
			return nil, eris.Wrapf(err, "scheduler: sweep spec %q", s.sweepSpec)
		}
	}
	return s, nil
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(context.Background(), "scheduler started",
		logger.String("scan_spec", s.scanSpec),
		logger.String("sweep_spec", s.sweepSpec),
		logger.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the loop and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info(ctx, "scheduler stopped")
}

// RunScan triggers a full scan as the system principal. A scan already in
// progress is not an error here.
func (s *Scheduler) RunScan() {
	ctx := context.Background()
	snap, err := s.triggerer.Trigger(ctx, scan.SystemCaller(), scan.TriggerRequest{Origin: scan.OriginScheduler})
	switch {
	case errors.Is(err, scan.ErrScanInProgress):
		s.log.Info(ctx, "scheduled scan skipped, another scan is active")
	case err != nil:
		s.log.Error(ctx, "scheduled scan failed to start", logger.Error(err))
	default:
		s.log.Info(ctx, "scheduled scan triggered", logger.String("scan_id", snap.ID))
	}
}

// RunSweep expires review entries and stale progress snapshots.
func (s *Scheduler) RunSweep() {
	ctx := context.Background()
	n, err := s.sweeper.ExpireReview(ctx)
	if err != nil {
		s.log.Error(ctx, "review sweep failed", logger.Error(err))
	}
	dropped := s.sweeper.SweepProgress()
	s.log.Info(ctx, "sweep finished", logger.Int("review_expired", n), logger.Int("progress_dropped", dropped))
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(context.Background(), "cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(context.Background(), "cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
