// Package enrich attaches competitor and revenue signal to clusters using a
// search collaborator. Lookups that fail degrade to unknown signals.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/okian/painpoint/pkg/metrics"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrEnrichmentUnavailable marks a lookup that fell back to unknown signals.
var ErrEnrichmentUnavailable = eris.New("enrichment unavailable")

// Hit is one search result.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher is the search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Enricher turns search hits into model.Enrichment.
type Enricher struct {
	searcher    Searcher
	limiter     *rate.Limiter
	concurrency int
	suffix      string
	log         logger.Logger
}

// Option configures Enricher.
type Option func(*Enricher)

// WithRate throttles lookups to perSecond with a burst of one.
// Zero or negative disables throttling.
func WithRate(perSecond float64) Option {
	return func(e *Enricher) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			e.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithConcurrency bounds parallel lookups.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithQuerySuffix changes the words appended to each phrase.
func WithQuerySuffix(s string) Option {
	return func(e *Enricher) { e.suffix = s }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Enricher) { e.log = l }
}

// New builds an Enricher over s.
func New(s Searcher, opts ...Option) *Enricher {
	e := &Enricher{
		searcher:    s,
		limiter:     rate.NewLimiter(rate.Limit(1), 1),
		concurrency: 2,
		suffix:      "tool software SaaS",
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query builds the search query for a core phrase.
func (e *Enricher) Query(phrase string) string {
	if e.suffix == "" {
		return phrase
	}
	return phrase + " " + e.suffix
}

// Enrich looks up one phrase. On failure it returns model.UnknownEnrichment
// together with an error wrapping ErrEnrichmentUnavailable.
func (e *Enricher) Enrich(ctx context.Context, phrase string) (model.Enrichment, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return model.UnknownEnrichment(), eris.Wrapf(ErrEnrichmentUnavailable, "rate wait: %v", err)
	}
	start := time.Now()
	hits, err := e.searcher.Search(ctx, e.Query(phrase))
	metrics.RecordEnrichmentLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.UnknownEnrichment(), eris.Wrapf(ErrEnrichmentUnavailable, "search %q: %v", phrase, err)
	}
	return Extract(hits), nil
}

// EnrichAll enriches clusters concurrently and returns results in cluster
// order plus the number of lookups that degraded to unknown. It never fails:
// per cluster errors become unknown signals. A cancelled ctx stops new lookups.
func (e *Enricher) EnrichAll(ctx context.Context, clusters []*model.Cluster) ([]model.Enrichment, int) {
	out := make([]model.Enrichment, len(clusters))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range clusters {
		g.Go(func() error {
			res, err := e.Enrich(gctx, c.Phrase)
			if err != nil {
				failed.Add(1)
				metrics.RecordEnrichmentFailure()
				e.log.Warn(gctx, "enrichment degraded to unknown",
					logger.String("cluster", c.Key), logger.Error(err))
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return out, int(failed.Load())
}
