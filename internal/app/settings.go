package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/okian/painpoint/internal/adapters/repository"
	"github.com/okian/painpoint/internal/config"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/rotisserie/eris"
)

// Settings holds the admin controlled values. Reads seed the store from the
// configured defaults the first time.
type Settings struct {
	store          repository.SettingsStore
	defaults       model.ScoringConfig
	defaultSources []string
	known          func(string) bool
	now            func() time.Time

	mu sync.Mutex
}

// NewSettings returns settings backed by store. known reports whether a
// source name has a collector.
func NewSettings(store repository.SettingsStore, cfg *config.Config, known func(string) bool, now func() time.Time) *Settings {
	return &Settings{
		store:          store,
		defaults:       ScoringDefaults(cfg.Scoring),
		defaultSources: slices.Clone(cfg.Sources.Enabled),
		known:          known,
		now:            now,
	}
}

// ScoringDefaults converts the configured scoring seed.
func ScoringDefaults(c config.ScoringConfig) model.ScoringConfig {
	out := model.DefaultScoringConfig()
	out.Weights = model.Weights{
		Demand:      c.DemandWeight,
		Revenue:     c.RevenueWeight,
		Competition: c.CompetitionWeight,
		Complexity:  c.ComplexityWeight,
	}
	out.Thresholds = model.Thresholds{
		HighScore:        c.HighScore,
		MediumScore:      c.MediumScore,
		ValidationScore:  c.ValidationScore,
		MinimalDataScore: c.MinimalDataScore,
		MinCompetitors:   c.MinCompetitors,
		MaxCompetitors:   c.MaxCompetitors,
		MinRevenueMRR:    c.MinRevenueMRR,
		MinMentions:      c.MinMentions,
	}
	return out
}

// ScoringConfig returns the persisted scoring config.
func (s *Settings) ScoringConfig(ctx context.Context) (model.ScoringConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg model.ScoringConfig
	err := s.store.GetSetting(ctx, repository.SettingScoringConfig, &cfg)
	if errors.Is(err, repository.ErrNotFound) {
		cfg = s.defaults
		cfg.UpdatedAt = s.now()
		if err := s.store.PutSetting(ctx, repository.SettingScoringConfig, cfg); err != nil {
			return cfg, eris.Wrap(err, "seed scoring config")
		}
		return cfg, nil
	}
	return cfg, eris.Wrap(err, "load scoring config")
}

// PutScoringConfig validates and stores cfg.
func (s *Settings) PutScoringConfig(ctx context.Context, cfg model.ScoringConfig) (model.ScoringConfig, error) {
	if err := cfg.Validate(); err != nil {
		return cfg, eris.Wrapf(ErrInvalidInput, "%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = s.now()
	if err := s.store.PutSetting(ctx, repository.SettingScoringConfig, cfg); err != nil {
		return cfg, eris.Wrap(err, "store scoring config")
	}
	return cfg, nil
}

// EnabledSources returns the admin enabled source names.
func (s *Settings) EnabledSources(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	err := s.store.GetSetting(ctx, repository.SettingEnabledSources, &names)
	if errors.Is(err, repository.ErrNotFound) {
		names = slices.Clone(s.defaultSources)
		if err := s.store.PutSetting(ctx, repository.SettingEnabledSources, names); err != nil {
			return names, eris.Wrap(err, "seed enabled sources")
		}
		return names, nil
	}
	return names, eris.Wrap(err, "load enabled sources")
}

// PutEnabledSources stores names after checking each has a collector.
func (s *Settings) PutEnabledSources(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, eris.Wrap(ErrInvalidInput, "at least one source must be enabled")
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !s.known(n) {
			return nil, eris.Wrapf(ErrInvalidInput, "unknown source %q", n)
		}
		if !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.PutSetting(ctx, repository.SettingEnabledSources, out); err != nil {
		return nil, eris.Wrap(err, "store enabled sources")
	}
	return out, nil
}
