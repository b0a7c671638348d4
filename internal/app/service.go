// Package service wires the scan pipeline together and provides the
// operations consumed by the HTTP API and the CLI.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/okian/painpoint/internal/adapters/mq/queue"
	"github.com/okian/painpoint/internal/adapters/mq/worker"
	"github.com/okian/painpoint/internal/adapters/progress"
	"github.com/okian/painpoint/internal/adapters/repository"
	"github.com/okian/painpoint/internal/adapters/search"
	"github.com/okian/painpoint/internal/adapters/sources"
	"github.com/okian/painpoint/internal/config"
	"github.com/okian/painpoint/internal/domain/cluster"
	"github.com/okian/painpoint/internal/enrich"
	"github.com/okian/painpoint/internal/scan"
	"github.com/okian/painpoint/internal/scheduler"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/okian/painpoint/pkg/metrics"
	"github.com/rotisserie/eris"
)

// Service owns the long lived components of the process.
type Service struct {
	mu sync.RWMutex

	cfg        *config.Config
	store      repository.Store
	ownsStore  bool
	collectors []sources.Collector
	searcher   enrich.Searcher
	schedule   bool
	now        func() time.Time

	// Built by Start
	registry     *sources.Registry
	settings     *Settings
	progress     *progress.Cache
	queue        *queue.InMemoryQueue
	orchestrator *scan.Orchestrator
	worker       *worker.InMemoryWorker
	scheduler    *scheduler.Scheduler
	cancel       context.CancelFunc

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the process configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore uses an already opened store. The caller keeps ownership.
func WithStore(st repository.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithCollectors replaces the configured collectors.
func WithCollectors(cs ...sources.Collector) Option {
	return func(s *Service) { s.collectors = cs }
}

// WithSearcher replaces the web search used for enrichment.
func WithSearcher(se enrich.Searcher) Option {
	return func(s *Service) { s.searcher = se }
}

// WithScheduler enables or disables cron jobs.
func WithScheduler(enabled bool) Option {
	return func(s *Service) { s.schedule = enabled }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:      config.New(),
		schedule: true,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, recovers abandoned scans and starts the worker lane
// and the scheduler.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting painpoint service...")

	if s.store == nil {
		st, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN,
			repository.WithLogger(s.logger.Named("store")))
		if err != nil {
			return err
		}
		s.store = st
		s.ownsStore = true
	}
	defer func() {
		if err != nil && s.ownsStore {
			_ = s.store.Close()
			s.store = nil
		}
	}()
	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	collectors := s.collectors
	if collectors == nil {
		collectors = buildCollectors(cfg, s.now, s.logger)
	}
	s.registry = sources.NewRegistry(collectors...)
	s.settings = NewSettings(s.store, cfg, func(name string) bool {
		_, ok := s.registry.Get(name)
		return ok
	}, s.now)

	strategy := cluster.NewRuleBased(cfg.Clustering.Triggers,
		cluster.WithSynonyms(cfg.Clustering.Synonyms),
		cluster.WithStopwords(cfg.Clustering.Stopwords),
		cluster.WithMaxWords(cfg.Clustering.MaxPhraseWords),
	)
	filter, err := cluster.NewFilter(cluster.FilterRules{
		ExcludeKeywords: cfg.Filter.ExcludeKeywords,
		RequireKeywords: cfg.Filter.RequireKeywords,
		ExcludeRegex:    cfg.Filter.ExcludeRegex,
		MinUpvotes:      cfg.Filter.MinUpvotes,
		MinComments:     cfg.Filter.MinComments,
	}, strategy.Matches)
	if err != nil {
		return err
	}

	searcher := s.searcher
	if searcher == nil {
		searcher = search.NewDuckDuckGo(
			search.WithEndpoint(cfg.Search.Endpoint),
			search.WithUserAgent(cfg.Search.UserAgent),
			search.WithTimeout(cfg.Search.Timeout),
			search.WithMaxResults(cfg.Search.MaxResults),
		)
	}
	enricher := enrich.New(searcher,
		enrich.WithRate(cfg.Search.RatePerSecond),
		enrich.WithConcurrency(cfg.Search.Concurrency),
		enrich.WithLogger(s.logger.Named("enrich")),
	)

	s.progress = progress.New(progress.WithTTL(cfg.ProgressTTL), progress.WithClock(s.now))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))

	s.orchestrator, err = scan.New(scan.Deps{
		Store:    s.store,
		Progress: s.progress,
		Settings: s.settings,
		Sources:  s.registry,
		Strategy: strategy,
		Enricher: enricher,
		Queue:    s.queue,
	},
		scan.WithSourceOrder(cfg.Sources.Order),
		scan.WithFilter(filter),
		scan.WithTriggerRate(cfg.Scan.TriggerPerHour),
		scan.WithLeaseTTL(cfg.Scan.LeaseTTL),
		scan.WithMinClusterMentions(cfg.Scan.MinClusterMentions),
		scan.WithReviewTTL(cfg.Scan.ReviewTTL),
		scan.WithTerminalWriteAttempts(cfg.Scan.TerminalWriteAttempts),
		scan.WithDedupeSize(cfg.Filter.DedupeSize),
		scan.WithClock(s.now),
		scan.WithLogger(s.logger.Named("scan")),
	)
	if err != nil {
		return err
	}
	if _, err := s.orchestrator.Recover(ctx); err != nil {
		return err
	}

	// The lane outlives the start request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.worker = worker.NewInMemoryWorker(s.queue, s.orchestrator,
		worker.WithName("scan-lane"),
		worker.WithLogger(s.logger))
	go s.worker.Run(runCtx)

	if s.schedule {
		sch, err := scheduler.New(cfg.Scan.Schedule, s.orchestrator, s,
			scheduler.WithLogger(s.logger.Named("scheduler")))
		if err != nil {
			cancel()
			return err
		}
		s.scheduler = sch
		s.scheduler.Start()
	}

	s.started = true
	s.logger.Info(ctx, "painpoint service started",
		logger.String("store", cfg.Store.Driver),
		logger.Any("sources", s.registry.Names()),
		logger.Int("queueSize", cfg.QueueSize),
		logger.String("schedule", cfg.Scan.Schedule),
	)
	return nil
}

// Stop gracefully shuts down the service. A running scan gets a grace
// period before its context is cancelled.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info(ctx, "stopping painpoint service...")

	if s.scheduler != nil {
		s.scheduler.Stop(ctx)
	}
	if s.worker != nil {
		if err := s.worker.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker did not stop in time", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "close store", logger.Error(err))
		}
		s.store = nil
	}

	s.started = false
	s.logger.Info(ctx, "painpoint service stopped")
}

// Ready reports whether the store answers.
func (s *Service) Ready(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return eris.Wrap(s.store.Ping(ctx), "store ping")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
	}
	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["progressEntries"] = s.progress.Len()
		stats["sources"] = s.registry.Names()
		if id, busy := s.orchestrator.Active(); busy {
			stats["activeScan"] = id
		}
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// components returns the started components or ErrNotStarted.
func (s *Service) components() (*scan.Orchestrator, repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.orchestrator, s.store, nil
}

func buildCollectors(cfg *config.Config, now func() time.Time, l logger.Logger) []sources.Collector {
	queries := cfg.Clustering.Triggers
	return []sources.Collector{
		sources.NewHackerNews(queries,
			sources.WithHNBaseURL(cfg.Sources.HackerNews.BaseURL),
			sources.WithHNPerQuery(cfg.Sources.HackerNews.PerQuery),
			sources.WithHNLookback(cfg.Sources.HackerNews.Lookback),
			sources.WithHNTimeout(cfg.Sources.HackerNews.Timeout),
			sources.WithHNClock(now),
			sources.WithHNLogger(l.Named("hackernews")),
		),
		sources.NewReddit(queries,
			sources.WithRedditBaseURL(cfg.Sources.Reddit.BaseURL),
			sources.WithSubreddits(cfg.Sources.Reddit.Subreddits),
			sources.WithRedditPerQuery(cfg.Sources.Reddit.PerQuery),
			sources.WithRedditUserAgent(cfg.Sources.Reddit.UserAgent),
			sources.WithRedditTimeout(cfg.Sources.Reddit.Timeout),
			sources.WithRedditLogger(l.Named("reddit")),
		),
		sources.NewFixture(cfg.Sources.Fixture.Seed, cfg.Sources.Fixture.Count, now),
	}
}
