package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/painpoint/internal/adapters/repository"
	"github.com/okian/painpoint/internal/domain/dedupe"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/scoring"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/okian/painpoint/pkg/metrics"
	"github.com/rotisserie/eris"
)

// Progress checkpoints. Collection spreads over progressStarted..progressCollected.
const (
	progressStarted   = 5
	progressCollected = 50
	progressPrepared  = 55
	progressClustered = 60
	progressPlanned   = 65
	progressEnriched  = 85
	progressScored    = 95
	progressDone      = 100
)

// run is one pipeline execution.
type run struct {
	o   *Orchestrator
	a   *active
	id  string
	cfg model.ScoringConfig
	log logger.Logger
}

// candidate is a cluster that will produce an opportunity write.
type candidate struct {
	cluster  *model.Cluster
	fresh    []model.RawMention // members not linked to any opportunity yet
	existing *model.Opportunity // nil for a new opportunity
}

type plan struct {
	candidates []candidate
	review     []model.ReviewItem
}

// RunScan executes a pending scan. It is called by the worker lane and
// returns nil when the scan was cancelled or abandoned before it started.
func (o *Orchestrator) RunScan(ctx context.Context, id string) (err error) {
	o.mu.Lock()
	a := o.active
	if a == nil || a.job.ID != id || a.job.Status != model.ScanPending {
		o.mu.Unlock()
		o.log.Debug(ctx, "skipping scan that is no longer pending", logger.String("scan_id", id))
		return nil
	}
	a.job.Status = model.ScanRunning
	a.job.StartedAt = o.now()
	o.mu.Unlock()

	r := &run{o: o, a: a, id: id, log: o.log}
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordErrorByComponent("scan", "panic")
			r.log.Error(ctx, "scan panicked", logger.String("scan_id", id), logger.Any("panic", p))
			err = r.finish(ctx, model.ScanFailed, fmt.Sprintf("internal error: %v", p), nil)
			if err == nil {
				err = eris.Errorf("scan %s panicked: %v", id, p)
			}
		}
	}()

	r.log.Info(ctx, "scan started", logger.String("scan_id", id))
	r.checkpoint(ctx, progressStarted, nil)
	return r.execute(ctx)
}

func (r *run) execute(ctx context.Context) error {
	cfg, err := r.o.settings.ScoringConfig(ctx)
	if err != nil {
		return r.finish(ctx, model.ScanFailed, "load scoring config: "+err.Error(), nil)
	}
	r.cfg = cfg

	mentions, err := r.collect(ctx)
	switch {
	case r.cancelled():
		return r.finish(ctx, model.ScanCancelled, "", nil)
	case ctx.Err() != nil:
		return r.finish(ctx, model.ScanFailed, "interrupted: "+ctx.Err().Error(), nil)
	case err != nil:
		return r.finish(ctx, model.ScanFailed, err.Error(), nil)
	}

	kept := r.prepare(ctx, mentions)
	clusters := r.o.strategy.Group(kept)
	metrics.UpdateClustersFormed(len(clusters))
	r.checkpoint(ctx, progressClustered, func(j *model.ScanJob) { j.Summary.Clusters = len(clusters) })

	p, err := r.plan(ctx, clusters)
	if err != nil {
		return r.finish(ctx, model.ScanFailed, "load existing opportunities: "+err.Error(), nil)
	}
	if r.cancelled() {
		return r.finish(ctx, model.ScanCancelled, "", &repository.ScanCommit{Review: p.review})
	}

	enrichments := r.enrich(ctx, p.candidates)
	if r.cancelled() {
		return r.finish(ctx, model.ScanCancelled, "", &repository.ScanCommit{Review: p.review})
	}

	upserts := r.score(ctx, p.candidates, enrichments)
	status := model.ScanCompleted
	if r.cancelled() {
		// Scored clusters are kept even when cancellation arrived late.
		status = model.ScanCancelled
	}
	return r.finish(ctx, status, "", &repository.ScanCommit{Upserts: upserts, Review: p.review})
}

// collect fetches every requested source in order. A failing source is
// recorded as skipped; only a scan where every source failed is an error.
func (r *run) collect(ctx context.Context) ([]model.RawMention, error) {
	collectors, err := r.o.registry.Ordered(r.a.job.Requested)
	if err != nil {
		return nil, eris.Wrap(err, "resolve collectors")
	}

	var (
		all       []model.RawMention
		failures  []string
		succeeded int
	)
	for i, c := range collectors {
		if r.cancelled() || ctx.Err() != nil {
			return all, nil
		}
		res := model.SourceResult{Source: c.Name()}
		started := time.Now()
		mentions, err := c.FetchMentions(ctx)
		if err != nil {
			res.Skipped = true
			res.Error = err.Error()
			failures = append(failures, c.Name())
			metrics.RecordCollectorFailure(c.Name())
			r.log.Warn(ctx, "source skipped",
				logger.String("scan_id", r.id),
				logger.String("source", c.Name()),
				logger.Error(err))
		} else {
			succeeded++
			res.Mentions = len(mentions)
			all = append(all, mentions...)
			metrics.RecordMentionsCollected(c.Name(), len(mentions))
			r.log.Debug(ctx, "source collected",
				logger.String("scan_id", r.id),
				logger.String("source", c.Name()),
				logger.Int("mentions", len(mentions)),
				logger.Float64("seconds", time.Since(started).Seconds()))
		}

		pct := progressStarted + (progressCollected-progressStarted)*(i+1)/len(collectors)
		r.checkpoint(ctx, pct, func(j *model.ScanJob) {
			j.Sources = append(j.Sources, res)
			j.Summary.Collected += res.Mentions
		})
	}
	if succeeded == 0 {
		return nil, eris.Errorf("all sources unavailable (%s)", strings.Join(failures, ", "))
	}
	return all, nil
}

// prepare drops filtered mentions and duplicates within this scan.
func (r *run) prepare(ctx context.Context, mentions []model.RawMention) []model.RawMention {
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(r.o.dedupeSize))
	kept := make([]model.RawMention, 0, len(mentions))
	var filtered, duplicates int
	for _, m := range mentions {
		if r.o.filter != nil {
			if ok, reason := r.o.filter.Allow(m); !ok {
				filtered++
				r.log.Debug(ctx, "mention filtered", logger.String("mention", m.Key()), logger.String("reason", reason))
				continue
			}
		}
		if seen.SeenAndRecord(ctx, m.Key()) {
			duplicates++
			continue
		}
		kept = append(kept, m)
	}
	metrics.RecordMentionsFiltered(filtered + duplicates)
	r.checkpoint(ctx, progressPrepared, func(j *model.ScanJob) {
		j.Summary.Filtered = filtered
		j.Summary.Duplicates = duplicates
	})
	return kept
}

// plan splits clusters into opportunity writes and review entries.
func (r *run) plan(ctx context.Context, clusters []*model.Cluster) (plan, error) {
	var keys, mentionKeys []string
	for _, c := range clusters {
		if !c.Singleton() {
			keys = append(keys, c.Key)
		}
		for _, m := range c.Members {
			mentionKeys = append(mentionKeys, m.Key())
		}
	}
	existing, err := r.o.store.OpportunitiesByKeys(ctx, keys)
	if err != nil {
		return plan{}, err
	}
	linked, err := r.o.store.LinkedMentions(ctx, mentionKeys)
	if err != nil {
		return plan{}, err
	}

	now := r.o.now()
	var p plan
	for _, c := range clusters {
		fresh := make([]model.RawMention, 0, len(c.Members))
		for _, m := range c.Members {
			if _, done := linked[m.Key()]; !done {
				fresh = append(fresh, m)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		prev := existing[c.Key]
		switch {
		case c.Singleton():
			p.review = append(p.review, r.reviewItems(c, fresh, model.ReviewNoTrigger, now)...)
		case prev == nil && len(fresh) < r.o.minClusterMentions:
			p.review = append(p.review, r.reviewItems(c, fresh, model.ReviewNoConsensus, now)...)
		default:
			p.candidates = append(p.candidates, candidate{cluster: c, fresh: fresh, existing: prev})
		}
	}

	r.checkpoint(ctx, progressPlanned, func(j *model.ScanJob) { j.Summary.Reviewed = len(p.review) })
	return p, nil
}

func (r *run) reviewItems(c *model.Cluster, ms []model.RawMention, reason string, now time.Time) []model.ReviewItem {
	signature := c.Key
	if c.Singleton() {
		signature = ""
	}
	out := make([]model.ReviewItem, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.ReviewItem{
			MentionKey: m.Key(),
			ScanID:     r.id,
			Source:     m.Source,
			Signature:  signature,
			Reason:     reason,
			Text:       truncate(m.Content(), maxReviewText),
			URL:        m.URL,
			CreatedAt:  now,
			ExpiresAt:  now.Add(r.o.reviewTTL),
		})
	}
	return out
}

// enrich looks up competitors for every candidate, in candidate order.
func (r *run) enrich(ctx context.Context, cands []candidate) []model.Enrichment {
	if len(cands) == 0 {
		r.checkpoint(ctx, progressEnriched, nil)
		return nil
	}
	clusters := make([]*model.Cluster, len(cands))
	for i, c := range cands {
		clusters[i] = c.cluster
	}

	stop := r.heartbeat(ctx)
	results, failed := r.o.enricher.EnrichAll(ctx, clusters)
	stop()

	if failed > 0 {
		r.log.Warn(ctx, "enrichment degraded",
			logger.String("scan_id", r.id),
			logger.Int("failed", failed),
			logger.Int("clusters", len(clusters)))
	}
	r.checkpoint(ctx, progressEnriched, func(j *model.ScanJob) { j.Summary.EnrichFailed = failed })
	return results
}

// heartbeat keeps the lease alive through a long stage.
func (r *run) heartbeat(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(r.o.leaseTTL / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if !r.o.lease.Extend(r.id) {
					r.a.cancelled.Store(true)
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// score builds and assesses one opportunity per candidate.
func (r *run) score(ctx context.Context, cands []candidate, enrichments []model.Enrichment) []repository.Upsert {
	now := r.o.now()
	upserts := make([]repository.Upsert, 0, len(cands))
	var created, updated int
	for i, c := range cands {
		e := model.UnknownEnrichment()
		if i < len(enrichments) {
			e = enrichments[i]
		}
		o := buildOpportunity(c, e, r.o.newID, now)
		scoring.Assess(o, r.cfg)
		metrics.RecordScore(o.Score)

		kind := "updated"
		if c.existing == nil {
			kind = "new"
			created++
		} else {
			updated++
		}
		metrics.RecordOpportunityUpserted(kind)

		keys := make([]string, len(c.fresh))
		for j, m := range c.fresh {
			keys[j] = m.Key()
		}
		upserts = append(upserts, repository.Upsert{Opportunity: o, MentionKeys: keys})
	}
	r.checkpoint(ctx, progressScored, func(j *model.ScanJob) {
		j.Summary.New = created
		j.Summary.Updated = updated
	})
	return upserts
}

func (r *run) cancelled() bool { return r.a.cancelled.Load() }

// checkpoint applies update to the job, raises progress monotonically,
// publishes the snapshot and persists it best effort.
func (r *run) checkpoint(ctx context.Context, pct int, update func(*model.ScanJob)) {
	o := r.o
	o.mu.Lock()
	if o.active != r.a {
		o.mu.Unlock()
		return
	}
	if update != nil {
		update(r.a.job)
	}
	if pct > r.a.job.Progress {
		r.a.job.Progress = pct
	}
	snap := copyJobPtr(r.a.job)
	o.mu.Unlock()

	o.progress.Put(ctx, snap.Snapshot())
	if !o.lease.Extend(r.id) {
		r.a.cancelled.Store(true)
	}
	// A lease expiry may have written the terminal row since the unlock; the
	// store refuses to overwrite it.
	switch err := o.store.UpdateScan(ctx, snap); {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		r.a.cancelled.Store(true)
		r.log.Debug(ctx, "checkpoint after terminal write dropped", logger.String("scan_id", r.id))
	default:
		r.log.Warn(ctx, "checkpoint write failed", logger.String("scan_id", r.id), logger.Error(err))
	}
}

// finish moves the job to its terminal status. With a commit, the
// opportunity writes and the job row land in one transaction; a failed
// commit turns the job into failed.
func (r *run) finish(ctx context.Context, status model.ScanStatus, msg string, commit *repository.ScanCommit) error {
	o := r.o
	o.mu.Lock()
	if o.active != r.a {
		o.mu.Unlock()
		r.log.Warn(ctx, "scan lost the lane, dropping results", logger.String("scan_id", r.id))
		return eris.Wrapf(ErrScanInProgress, "scan %s was abandoned", r.id)
	}
	job := r.a.job
	job.Status = status
	job.Error = msg
	if status == model.ScanCompleted {
		job.Progress = progressDone
	}
	if commit != nil {
		job.Found = len(commit.Upserts)
	}
	job.CompletedAt = o.now()
	final := copyJobPtr(job)
	o.mu.Unlock()

	wctx := context.WithoutCancel(ctx)
	var err error
	if commit != nil {
		commit.Job = final
		if cerr := o.store.CommitScan(wctx, *commit); cerr != nil {
			metrics.RecordErrorByComponent("scan", "commit")
			r.log.Error(ctx, "scan commit failed", logger.String("scan_id", r.id), logger.Error(cerr))
			err = eris.Wrapf(ErrPersistence, "commit scan %s: %v", r.id, cerr)

			o.mu.Lock()
			job.Status = model.ScanFailed
			job.Error = "persistence failure: " + cerr.Error()
			job.Found = 0
			final = copyJobPtr(job)
			o.mu.Unlock()
			commit = nil
		}
	}
	if commit == nil {
		if werr := o.writeTerminal(wctx, final); werr != nil && err == nil {
			err = werr
		}
	}

	o.progress.Put(wctx, final.Snapshot())
	o.mu.Lock()
	if o.active == r.a {
		o.active = nil
	}
	o.mu.Unlock()
	o.lease.Release(r.id)
	o.recordFinished(final)

	r.log.Info(ctx, "scan finished",
		logger.String("scan_id", r.id),
		logger.String("status", string(final.Status)),
		logger.Int("found", final.Found),
		logger.Any("summary", final.Summary))
	return err
}
