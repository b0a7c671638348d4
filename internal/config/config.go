// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the encoder: json or console.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CORSOrigins lists origins allowed by the HTTP API.
	CORSOrigins []string `koanf:"cors_origins"`

	// QueueSize bounds the in-memory scan request queue.
	QueueSize int `koanf:"queue_size"`

	// ProgressTTL is how long scan snapshots stay in the progress cache.
	ProgressTTL time.Duration `koanf:"progress_ttl"`

	Store      StoreConfig      `koanf:"store"`
	Scan       ScanConfig       `koanf:"scan"`
	Sources    SourcesConfig    `koanf:"sources"`
	Search     SearchConfig     `koanf:"search"`
	Clustering ClusteringConfig `koanf:"clustering"`
	Filter     FilterConfig     `koanf:"filter"`
	Scoring    ScoringConfig    `koanf:"scoring"`
}

// StoreConfig selects the durable store.
type StoreConfig struct {
	// Driver is sqlite or postgres.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// ScanConfig tunes the orchestrator.
type ScanConfig struct {
	// LeaseTTL expires the single scan lease if the worker stops renewing it.
	LeaseTTL time.Duration `koanf:"lease_ttl"`

	// Schedule is a cron spec for automatic scans. Empty disables it.
	Schedule string `koanf:"schedule"`

	// TriggerPerHour caps manual triggers per caller.
	TriggerPerHour int `koanf:"trigger_per_hour"`

	// MinClusterMentions is the consensus size for a new opportunity.
	MinClusterMentions int `koanf:"min_cluster_mentions"`

	// ReviewTTL expires review queue entries.
	ReviewTTL time.Duration `koanf:"review_ttl"`

	// TerminalWriteAttempts bounds retries of the terminal status write.
	TerminalWriteAttempts int `koanf:"terminal_write_attempts"`
}

// SourcesConfig lists collectors and their settings.
type SourcesConfig struct {
	// Order is the fixed processing order.
	Order []string `koanf:"order"`

	// Enabled seeds the admin-enabled set on first start.
	Enabled []string `koanf:"enabled"`

	HackerNews HackerNewsConfig `koanf:"hackernews"`
	Reddit     RedditConfig     `koanf:"reddit"`
	Fixture    FixtureConfig    `koanf:"fixture"`
}

// HackerNewsConfig configures the Algolia HN collector.
type HackerNewsConfig struct {
	BaseURL  string        `koanf:"base_url"`
	PerQuery int           `koanf:"per_query"`
	Lookback time.Duration `koanf:"lookback"`
	Timeout  time.Duration `koanf:"timeout"`
}

// RedditConfig configures the public reddit search collector.
type RedditConfig struct {
	BaseURL    string        `koanf:"base_url"`
	UserAgent  string        `koanf:"user_agent"`
	Subreddits []string      `koanf:"subreddits"`
	PerQuery   int           `koanf:"per_query"`
	Timeout    time.Duration `koanf:"timeout"`
}

// FixtureConfig configures the synthetic collector.
type FixtureConfig struct {
	Seed  int64 `koanf:"seed"`
	Count int   `koanf:"count"`
}

// SearchConfig configures the competitor search collaborator.
type SearchConfig struct {
	Endpoint      string        `koanf:"endpoint"`
	UserAgent     string        `koanf:"user_agent"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Concurrency   int           `koanf:"concurrency"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxResults    int           `koanf:"max_results"`
}

// ClusteringConfig holds the rule-based signature settings.
type ClusteringConfig struct {
	// Triggers are phrase templates in precedence order.
	Triggers []string `koanf:"triggers"`

	// Synonyms map a word to its canonical form.
	Synonyms map[string]string `koanf:"synonyms"`

	// Stopwords are skipped at the start of the phrase after a trigger.
	Stopwords []string `koanf:"stopwords"`

	// MaxPhraseWords caps the signature length.
	MaxPhraseWords int `koanf:"max_phrase_words"`
}

// FilterConfig holds pre-clustering mention filters.
type FilterConfig struct {
	ExcludeKeywords []string `koanf:"exclude_keywords"`
	RequireKeywords []string `koanf:"require_keywords"`
	ExcludeRegex    []string `koanf:"exclude_regex"`
	MinUpvotes      int      `koanf:"min_upvotes"`
	MinComments     int      `koanf:"min_comments"`
	DedupeSize      int      `koanf:"dedupe_size"`
}

// ScoringConfig seeds the persisted scoring settings.
type ScoringConfig struct {
	DemandWeight      float64 `koanf:"demand_weight"`
	RevenueWeight     float64 `koanf:"revenue_weight"`
	CompetitionWeight float64 `koanf:"competition_weight"`
	ComplexityWeight  float64 `koanf:"complexity_weight"`

	HighScore        int `koanf:"high_score"`
	MediumScore      int `koanf:"medium_score"`
	ValidationScore  int `koanf:"validation_score"`
	MinimalDataScore int `koanf:"minimal_data_score"`

	MinCompetitors int     `koanf:"min_competitors"`
	MaxCompetitors int     `koanf:"max_competitors"`
	MinRevenueMRR  float64 `koanf:"min_revenue_mrr"`
	MinMentions    int     `koanf:"min_mentions"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "json",
		Addr:        ":9080",
		CORSOrigins: []string{"*"},
		QueueSize:   16,
		ProgressTTL: 24 * time.Hour,
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "file:painpoint.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		Scan: ScanConfig{
			LeaseTTL:              10 * time.Minute,
			Schedule:              "@every 6h",
			TriggerPerHour:        3,
			MinClusterMentions:    2,
			ReviewTTL:             30 * 24 * time.Hour,
			TerminalWriteAttempts: 5,
		},
		Sources: SourcesConfig{
			Order:   []string{"hackernews", "reddit", "fixture"},
			Enabled: []string{"hackernews", "reddit"},
			HackerNews: HackerNewsConfig{
				BaseURL:  "https://hn.algolia.com/api/v1",
				PerQuery: 50,
				Lookback: 7 * 24 * time.Hour,
				Timeout:  15 * time.Second,
			},
			Reddit: RedditConfig{
				BaseURL:    "https://www.reddit.com",
				UserAgent:  "painpoint-scanner/1.0",
				Subreddits: []string{"SaaS", "smallbusiness", "Entrepreneur", "startups"},
				PerQuery:   25,
				Timeout:    15 * time.Second,
			},
			Fixture: FixtureConfig{
				Seed:  42,
				Count: 60,
			},
		},
		Search: SearchConfig{
			Endpoint:      "https://html.duckduckgo.com/html/",
			UserAgent:     "Mozilla/5.0 (compatible; painpoint/1.0)",
			RatePerSecond: 1,
			Concurrency:   2,
			Timeout:       10 * time.Second,
			MaxResults:    10,
		},
		Clustering: ClusteringConfig{
			Triggers: []string{
				"looking for a tool",
				"looking for software",
				"need a tool",
				"need software",
				"wish there was",
				"tired of manually",
				"paying too much for",
				"is there an app",
				"is there a tool",
			},
			Synonyms: map[string]string{
				"app":       "tool",
				"apps":      "tool",
				"software":  "tool",
				"platform":  "tool",
				"invoicing": "invoice",
				"invoices":  "invoice",
				"billing":   "invoice",
			},
			Stopwords: []string{
				"a", "an", "the", "to", "for", "that", "which", "some", "any", "my", "our", "me", "us",
				"with", "of", "on", "in", "and", "or", "can", "could", "would", "will", "do", "does",
				"something", "way", "tool", "tools", "software", "app", "apps", "platform", "better",
				"good", "simple", "easy", "cheap", "cheaper", "free", "just", "really", "all",
			},
			MaxPhraseWords: 3,
		},
		Filter: FilterConfig{
			ExcludeKeywords: []string{"hiring", "job posting", "who is hiring", "meetup"},
			MinUpvotes:      5,
			MinComments:     2,
			DedupeSize:      50_000,
		},
		Scoring: ScoringConfig{
			DemandWeight:      0.25,
			RevenueWeight:     0.35,
			CompetitionWeight: 0.20,
			ComplexityWeight:  0.20,
			HighScore:         80,
			MediumScore:       60,
			ValidationScore:   40,
			MinimalDataScore:  20,
			MinCompetitors:    2,
			MaxCompetitors:    5,
			MinRevenueMRR:     1000,
			MinMentions:       20,
		},
	}
}

// Validate reports the first structural problem with c.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.Store.Driver != "sqlite" && c.Store.Driver != "postgres":
		return invalid("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	case c.Store.DSN == "":
		return invalid("store.dsn must not be empty")
	case c.QueueSize <= 0:
		return invalid("queue_size must be positive")
	case c.Scan.LeaseTTL <= 0:
		return invalid("scan.lease_ttl must be positive")
	case c.Scan.MinClusterMentions < 1:
		return invalid("scan.min_cluster_mentions must be at least 1")
	case c.Scan.TerminalWriteAttempts < 1:
		return invalid("scan.terminal_write_attempts must be at least 1")
	case c.Scan.TriggerPerHour < 0:
		return invalid("scan.trigger_per_hour must not be negative")
	case c.Search.Concurrency < 1:
		return invalid("search.concurrency must be at least 1")
	case len(c.Sources.Order) == 0:
		return invalid("sources.order must list at least one source")
	}

	for name, w := range map[string]float64{
		"demand":      c.Scoring.DemandWeight,
		"revenue":     c.Scoring.RevenueWeight,
		"competition": c.Scoring.CompetitionWeight,
		"complexity":  c.Scoring.ComplexityWeight,
	} {
		if w < 0 || w > 1 {
			return invalid("scoring.%s_weight must be within [0,1]", name)
		}
	}

	known := make(map[string]bool, len(c.Sources.Order))
	for _, s := range c.Sources.Order {
		known[s] = true
	}
	for _, s := range c.Sources.Enabled {
		if !known[s] {
			return invalid("sources.enabled lists %q which is not in sources.order", s)
		}
	}
	return nil
}
