// Package scan owns the lifecycle of one scan execution: trigger, the single
// worker lane, progress reporting, cancellation and the terminal commit.
//
// A scan moves pending -> running -> completed | failed | cancelled. The
// identifier minted by Trigger is the only one used for the job row, the
// progress cache key, the queue request and every later write.
package scan

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/painpoint/internal/adapters/mq/queue"
	"github.com/okian/painpoint/internal/adapters/repository"
	"github.com/okian/painpoint/internal/adapters/sources"
	"github.com/okian/painpoint/internal/domain/cluster"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/okian/painpoint/pkg/metrics"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Trigger origins.
const (
	OriginAPI       = "api"
	OriginScheduler = "scheduler"
	OriginCLI       = "cli"
)

// RoleAdmin is the role allowed to run elevated operations.
const RoleAdmin = "admin"

// Caller is the identity supplied by the auth layer.
type Caller struct {
	ID   string
	Role string
}

// SystemCaller is the principal used by the scheduler and the CLI.
func SystemCaller() Caller { return Caller{ID: "system", Role: RoleAdmin} }

// IsAdmin reports whether the caller holds the elevated role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

func (c Caller) isSystem() bool { return c.ID == "system" }

// TriggerRequest selects the sources of a scan. Empty Sources means the
// admin enabled set.
type TriggerRequest struct {
	Sources []string
	Origin  string
}

// Store is the persistence the orchestrator needs.
type Store interface {
	CreateScan(ctx context.Context, job *model.ScanJob) error
	UpdateScan(ctx context.Context, job *model.ScanJob) error
	GetScan(ctx context.Context, id string) (*model.ScanJob, error)
	ListScans(ctx context.Context, limit int) ([]model.ScanJob, error)
	ScanStats(ctx context.Context, since time.Time) (model.ScanStats, error)
	AbandonScans(ctx context.Context, reason string) (int, error)
	CommitScan(ctx context.Context, c repository.ScanCommit) error
	OpportunitiesByKeys(ctx context.Context, keys []string) (map[string]*model.Opportunity, error)
	LinkedMentions(ctx context.Context, keys []string) (map[string]string, error)
}

// Progress is the low latency snapshot store polled by clients.
type Progress interface {
	Put(ctx context.Context, s model.Snapshot)
	Get(ctx context.Context, id string) (model.Snapshot, bool)
}

// Settings exposes the admin controlled values read at scan start.
type Settings interface {
	ScoringConfig(ctx context.Context) (model.ScoringConfig, error)
	EnabledSources(ctx context.Context) ([]string, error)
}

// Enricher attaches competitive signal to clusters, in cluster order.
type Enricher interface {
	EnrichAll(ctx context.Context, clusters []*model.Cluster) ([]model.Enrichment, int)
}

// Queue hands accepted scans to the worker lane.
type Queue interface {
	Enqueue(ctx context.Context, r queue.Request) error
}

// Deps are the required collaborators.
type Deps struct {
	Store    Store
	Progress Progress
	Settings Settings
	Sources  *sources.Registry
	Strategy cluster.Strategy
	Enricher Enricher
	Queue    Queue
}

// active is the job holding the lane. job is guarded by Orchestrator.mu.
type active struct {
	job       *model.ScanJob
	cancelled atomic.Bool
}

// Orchestrator implements trigger, status, cancel and the worker's RunScan.
type Orchestrator struct {
	store    Store
	progress Progress
	settings Settings
	registry *sources.Registry
	strategy cluster.Strategy
	enricher Enricher
	queue    Queue
	filter   *cluster.Filter

	order              []string
	limiter            *rate.Limiter
	leaseTTL           time.Duration
	minClusterMentions int
	reviewTTL          time.Duration
	terminalAttempts   int
	retryBackoff       time.Duration
	dedupeSize         int
	now                func() time.Time
	newID              func() string
	log                logger.Logger

	mu     sync.Mutex
	active *active
	lease  *Lease
}

// New builds an Orchestrator.
func New(d Deps, opts ...Option) (*Orchestrator, error) {
	if d.Store == nil || d.Progress == nil || d.Settings == nil || d.Sources == nil ||
		d.Strategy == nil || d.Enricher == nil || d.Queue == nil {
		return nil, eris.New("scan: missing dependency")
	}
	o := &Orchestrator{
		store:              d.Store,
		progress:           d.Progress,
		settings:           d.Settings,
		registry:           d.Sources,
		strategy:           d.Strategy,
		enricher:           d.Enricher,
		queue:              d.Queue,
		leaseTTL:           10 * time.Minute,
		minClusterMentions: 2,
		reviewTTL:          30 * 24 * time.Hour,
		terminalAttempts:   5,
		retryBackoff:       50 * time.Millisecond,
		dedupeSize:         50000,
		now:                func() time.Time { return time.Now().UTC() },
		newID:              uuid.NewString,
		log:                logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.lease = NewLease(o.leaseTTL, o.now)
	return o, nil
}

// Recover fails jobs left non-terminal by a previous process. Call it before
// the worker starts.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	n, err := o.store.AbandonScans(ctx, "interrupted by restart")
	if err != nil {
		return 0, eris.Wrapf(ErrPersistence, "abandon scans: %v", err)
	}
	if n > 0 {
		o.log.Warn(ctx, "failed scans left over from a previous run", logger.Int("count", n))
	}
	return n, nil
}

// Trigger accepts a scan and returns its pending snapshot without waiting for
// the pipeline. A trigger while another scan is pending or running is
// rejected with ErrScanInProgress.
func (o *Orchestrator) Trigger(ctx context.Context, caller Caller, req TriggerRequest) (model.Snapshot, error) {
	if !caller.IsAdmin() {
		metrics.RecordScanRejected("permission_denied")
		return model.Snapshot{}, eris.Wrapf(ErrPermissionDenied, "caller %q may not trigger scans", caller.ID)
	}
	names, err := o.resolveSources(ctx, req.Sources)
	if err != nil {
		metrics.RecordScanRejected("bad_sources")
		return model.Snapshot{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if holder, busy := o.lease.Holder(); busy {
		metrics.RecordScanRejected("scan_in_progress")
		return model.Snapshot{}, eris.Wrapf(ErrScanInProgress, "scan %s is active", holder)
	}
	if o.limiter != nil && !caller.isSystem() && !o.limiter.Allow() {
		metrics.RecordScanRejected("rate_limited")
		return model.Snapshot{}, eris.Wrap(ErrRateLimited, "too many scans this hour")
	}

	id := o.newID()
	expired, ok := o.lease.Acquire(id)
	if !ok {
		metrics.RecordScanRejected("scan_in_progress")
		return model.Snapshot{}, eris.Wrap(ErrScanInProgress, "lane taken")
	}
	if expired != "" && o.active != nil && o.active.job.ID == expired {
		o.abandonLocked(ctx, "scan lease expired")
	}

	origin := req.Origin
	if origin == "" {
		origin = OriginAPI
	}
	job := &model.ScanJob{
		ID:          id,
		Status:      model.ScanPending,
		Requested:   names,
		Origin:      origin,
		TriggeredBy: caller.ID,
		CreatedAt:   o.now(),
	}
	if err := o.store.CreateScan(ctx, job); err != nil {
		o.lease.Release(id)
		return model.Snapshot{}, eris.Wrapf(ErrPersistence, "create scan %s: %v", id, err)
	}
	o.active = &active{job: job}
	o.progress.Put(ctx, job.Snapshot())

	if err := o.queue.Enqueue(ctx, queue.Request{ScanID: id}); err != nil {
		job.Status = model.ScanFailed
		job.Error = "could not enqueue scan: " + err.Error()
		job.CompletedAt = o.now()
		_ = o.finishLocked(ctx, o.active)
		return job.Snapshot(), eris.Wrapf(err, "enqueue scan %s", id)
	}

	metrics.RecordScanTriggered(origin)
	metrics.UpdateActiveScans(1)
	o.log.Info(ctx, "scan triggered",
		logger.String("scan_id", id),
		logger.String("origin", origin),
		logger.String("caller", caller.ID),
		logger.Any("sources", names))
	return job.Snapshot(), nil
}

// GetStatus returns the snapshot of any issued scan. ErrNotFound is reserved
// for identifiers that were never issued.
func (o *Orchestrator) GetStatus(ctx context.Context, id string) (model.Snapshot, error) {
	if id == "" {
		return model.Snapshot{}, eris.Wrap(ErrNotFound, "empty scan id")
	}
	o.mu.Lock()
	if o.active != nil && o.active.job.ID == id {
		s := o.active.job.Snapshot()
		o.mu.Unlock()
		return s, nil
	}
	o.mu.Unlock()

	if s, ok := o.progress.Get(ctx, id); ok {
		return s, nil
	}
	job, err := o.store.GetScan(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Snapshot{}, eris.Wrapf(ErrNotFound, "scan %s", id)
	}
	if err != nil {
		return model.Snapshot{}, eris.Wrapf(ErrPersistence, "load scan %s: %v", id, err)
	}
	s := job.Snapshot()
	o.progress.Put(ctx, s)
	return s, nil
}

// Get returns the full job row.
func (o *Orchestrator) Get(ctx context.Context, id string) (*model.ScanJob, error) {
	o.mu.Lock()
	if o.active != nil && o.active.job.ID == id {
		j := copyJob(o.active.job)
		o.mu.Unlock()
		return &j, nil
	}
	o.mu.Unlock()

	job, err := o.store.GetScan(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "scan %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrPersistence, "load scan %s: %v", id, err)
	}
	return job, nil
}

// Cancel moves a non-terminal scan to cancelled. A pending scan is cancelled
// at once; a running scan stops at its next checkpoint. Cancelling a
// terminal scan is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, caller Caller, id string) (model.Snapshot, error) {
	if !caller.IsAdmin() {
		return model.Snapshot{}, eris.Wrapf(ErrPermissionDenied, "caller %q may not cancel scans", caller.ID)
	}

	o.mu.Lock()
	if a := o.active; a != nil && a.job.ID == id {
		a.cancelled.Store(true)
		if a.job.Status == model.ScanPending {
			a.job.Status = model.ScanCancelled
			a.job.CompletedAt = o.now()
			err := o.finishLocked(ctx, a)
			s := a.job.Snapshot()
			o.mu.Unlock()
			o.log.Info(ctx, "pending scan cancelled", logger.String("scan_id", id))
			return s, err
		}
		s := a.job.Snapshot()
		o.mu.Unlock()
		o.log.Info(ctx, "cancellation requested", logger.String("scan_id", id))
		return s, nil
	}
	o.mu.Unlock()

	job, err := o.Get(ctx, id)
	if err != nil {
		return model.Snapshot{}, err
	}
	if job.Status.Terminal() {
		return job.Snapshot(), nil
	}
	// A non-terminal row nobody owns, left by a crashed process.
	job.Status = model.ScanCancelled
	job.CompletedAt = o.now()
	if err := o.writeTerminal(ctx, job); err != nil {
		return job.Snapshot(), err
	}
	o.progress.Put(ctx, job.Snapshot())
	return job.Snapshot(), nil
}

// List returns recent scans, newest first.
func (o *Orchestrator) List(ctx context.Context, limit int) ([]model.ScanJob, error) {
	jobs, err := o.store.ListScans(ctx, limit)
	if err != nil {
		return nil, eris.Wrapf(ErrPersistence, "list scans: %v", err)
	}
	return jobs, nil
}

// Stats aggregates scan history over all time and the last 24 hours.
func (o *Orchestrator) Stats(ctx context.Context) (model.ScanStats, error) {
	stats, err := o.store.ScanStats(ctx, o.now().Add(-24*time.Hour))
	if err != nil {
		return stats, eris.Wrapf(ErrPersistence, "scan stats: %v", err)
	}
	return stats, nil
}

// Active reports the id of the scan holding the lane.
func (o *Orchestrator) Active() (string, bool) {
	return o.lease.Holder()
}

// Hold takes the scan lane for a non-scan job such as a rescore. The
// returned release func must be called when done.
func (o *Orchestrator) Hold(holder string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if current, busy := o.lease.Holder(); busy {
		return nil, eris.Wrapf(ErrScanInProgress, "lane held by %s", current)
	}
	if _, ok := o.lease.Acquire(holder); !ok {
		return nil, eris.Wrap(ErrScanInProgress, "lane taken")
	}
	return func() { o.lease.Release(holder) }, nil
}

// resolveSources validates names against the registry and orders them.
func (o *Orchestrator) resolveSources(ctx context.Context, requested []string) ([]string, error) {
	names := requested
	if len(names) == 0 {
		enabled, err := o.settings.EnabledSources(ctx)
		if err != nil {
			return nil, eris.Wrapf(ErrPersistence, "enabled sources: %v", err)
		}
		names = enabled
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		if _, ok := o.registry.Get(n); !ok {
			return nil, eris.Wrapf(ErrUnknownSource, "%q", n)
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, ErrNoSources
	}

	rank := func(n string) int {
		if i := slices.Index(o.order, n); i >= 0 {
			return i
		}
		return len(o.order)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		if ri == len(o.order) {
			return out[i] < out[j]
		}
		return false
	})
	return out, nil
}

// abandonLocked fails the active job after its lease expired.
func (o *Orchestrator) abandonLocked(ctx context.Context, reason string) {
	a := o.active
	a.cancelled.Store(true)
	a.job.Status = model.ScanFailed
	a.job.Error = reason
	a.job.CompletedAt = o.now()
	o.log.Warn(ctx, "abandoning scan", logger.String("scan_id", a.job.ID), logger.String("reason", reason))
	if err := o.writeTerminal(ctx, copyJobPtr(a.job)); err != nil {
		o.log.Error(ctx, "terminal write failed", logger.String("scan_id", a.job.ID), logger.Error(err))
	}
	o.progress.Put(ctx, a.job.Snapshot())
	o.active = nil
	metrics.RecordScanFinished(string(model.ScanFailed), 0)
}

// finishLocked persists the terminal state of a, publishes it and frees the
// lane. The caller has already set the terminal status.
func (o *Orchestrator) finishLocked(ctx context.Context, a *active) error {
	job := a.job
	err := o.writeTerminal(ctx, copyJobPtr(job))
	o.progress.Put(ctx, job.Snapshot())
	if o.active == a {
		o.active = nil
	}
	o.lease.Release(job.ID)
	o.recordFinished(job)
	return err
}

// writeTerminal retries the terminal row write. It ignores ctx cancellation
// so shutdown cannot leave a job looking active.
func (o *Orchestrator) writeTerminal(ctx context.Context, job *model.ScanJob) error {
	ctx = context.WithoutCancel(ctx)
	backoff := o.retryBackoff
	var err error
	for attempt := 1; attempt <= o.terminalAttempts; attempt++ {
		if err = o.store.UpdateScan(ctx, job); err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrConflict) {
			o.log.Warn(ctx, "scan already terminal", logger.String("scan_id", job.ID), logger.Error(err))
			return nil
		}
		o.log.Warn(ctx, "terminal write failed",
			logger.String("scan_id", job.ID),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if attempt < o.terminalAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	metrics.RecordErrorByComponent("scan", "terminal_write")
	return eris.Wrapf(ErrPersistence, "terminal write for scan %s: %v", job.ID, err)
}

func (o *Orchestrator) recordFinished(job *model.ScanJob) {
	var seconds float64
	if !job.StartedAt.IsZero() && !job.CompletedAt.IsZero() {
		seconds = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	metrics.RecordScanFinished(string(job.Status), seconds)
	metrics.UpdateActiveScans(0)
}

func copyJob(j *model.ScanJob) model.ScanJob {
	c := *j
	c.Requested = slices.Clone(j.Requested)
	c.Sources = slices.Clone(j.Sources)
	return c
}

func copyJobPtr(j *model.ScanJob) *model.ScanJob {
	c := copyJob(j)
	return &c
}
