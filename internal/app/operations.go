package service

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/okian/painpoint/internal/adapters/repository"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/scoring"
	"github.com/okian/painpoint/internal/domain/types"
	"github.com/okian/painpoint/internal/scan"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/okian/painpoint/pkg/metrics"
	"github.com/rotisserie/eris"
)

// Listing limits.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// RescoreResult summarizes a rescore pass.
type RescoreResult struct {
	Total     int `json:"total"`
	Changed   int `json:"changed"`
	Validated int `json:"validated"`
}

// TriggerScan starts a scan over names, or the enabled set when empty.
func (s *Service) TriggerScan(ctx context.Context, caller scan.Caller, names []string, origin string) (model.Snapshot, error) {
	o, _, err := s.components()
	if err != nil {
		return model.Snapshot{}, err
	}
	return o.Trigger(ctx, caller, scan.TriggerRequest{Sources: names, Origin: origin})
}

// ScanStatus returns the pollable snapshot of a scan.
func (s *Service) ScanStatus(ctx context.Context, id string) (model.Snapshot, error) {
	o, _, err := s.components()
	if err != nil {
		return model.Snapshot{}, err
	}
	return o.GetStatus(ctx, id)
}

// Scan returns the full job row of a scan.
func (s *Service) Scan(ctx context.Context, id string) (*model.ScanJob, error) {
	o, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return o.Get(ctx, id)
}

// CancelScan cancels a scan.
func (s *Service) CancelScan(ctx context.Context, caller scan.Caller, id string) (model.Snapshot, error) {
	o, _, err := s.components()
	if err != nil {
		return model.Snapshot{}, err
	}
	return o.Cancel(ctx, caller, id)
}

// ListScans returns recent scans, newest first.
func (s *Service) ListScans(ctx context.Context, limit int) ([]model.ScanJob, error) {
	o, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return o.List(ctx, types.ClampLimit(limit, 20, MaxPageSize))
}

// ScanStats aggregates scan history.
func (s *Service) ScanStats(ctx context.Context) (model.ScanStats, error) {
	o, _, err := s.components()
	if err != nil {
		return model.ScanStats{}, err
	}
	return o.Stats(ctx)
}

// ListOpportunities queries stored opportunities.
func (s *Service) ListOpportunities(ctx context.Context, f model.OpportunityFilter) (types.Page[model.Opportunity], error) {
	_, st, err := s.components()
	if err != nil {
		return types.Page[model.Opportunity]{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return types.Page[model.Opportunity]{}, eris.Wrapf(ErrInvalidInput, "unknown status %q", f.Status)
	}
	switch f.Sort {
	case "", "score", "rank", "mentions", "recent":
	default:
		return types.Page[model.Opportunity]{}, eris.Wrapf(ErrInvalidInput, "unknown sort %q", f.Sort)
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		return types.Page[model.Opportunity]{}, eris.Wrap(ErrInvalidInput, "min_score exceeds max_score")
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Limit = types.ClampLimit(f.Limit, DefaultPageSize, MaxPageSize)
	return st.ListOpportunities(ctx, f)
}

// GetOpportunity loads one opportunity.
func (s *Service) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	_, st, err := s.components()
	if err != nil {
		return nil, err
	}
	o, err := st.GetOpportunity(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "opportunity %s", id)
	}
	return o, err
}

// PatchOpportunity applies user edits and admin overrides. Override changes
// rescore the record with the current config.
func (s *Service) PatchOpportunity(ctx context.Context, caller scan.Caller, id string, p model.OpportunityPatch) (*model.Opportunity, error) {
	_, st, err := s.components()
	if err != nil {
		return nil, err
	}
	overrides := p.B2BOverride != nil || p.ComplexityOverride != nil
	if overrides && !caller.IsAdmin() {
		return nil, eris.Wrapf(scan.ErrPermissionDenied, "caller %q may not set overrides", caller.ID)
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, eris.Wrapf(ErrInvalidInput, "unknown status %q", *p.Status)
	}
	if p.ComplexityOverride != nil && *p.ComplexityOverride != model.ComplexityNone && !p.ComplexityOverride.Valid() {
		return nil, eris.Wrapf(ErrInvalidInput, "unknown complexity %q", *p.ComplexityOverride)
	}

	o, err := s.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	if p.B2BOverride != nil {
		o.B2BOverride = *p.B2BOverride
	}
	if p.ComplexityOverride != nil {
		o.ComplexityOverride = *p.ComplexityOverride
	}
	if overrides {
		cfg, err := s.settings.ScoringConfig(ctx)
		if err != nil {
			return nil, err
		}
		scoring.Assess(o, cfg)
	}
	if err := st.PatchOpportunity(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "opportunity updated",
		logger.String("id", id),
		logger.String("caller", caller.ID),
		logger.Bool("rescored", overrides))
	return s.GetOpportunity(ctx, id)
}

// OpportunityStats summarizes stored opportunities.
func (s *Service) OpportunityStats(ctx context.Context) (model.OpportunityStats, error) {
	_, st, err := s.components()
	if err != nil {
		return model.OpportunityStats{}, err
	}
	cfg, err := s.settings.ScoringConfig(ctx)
	if err != nil {
		return model.OpportunityStats{}, err
	}
	return st.OpportunityStats(ctx, cfg.Thresholds.HighScore)
}

// Rescore reassesses every stored opportunity with the current config and
// recomputes ranks in one transaction. It takes the scan lane, so it is
// rejected while a scan is active and blocks triggers while it runs.
func (s *Service) Rescore(ctx context.Context, caller scan.Caller) (RescoreResult, error) {
	o, st, err := s.components()
	if err != nil {
		return RescoreResult{}, err
	}
	if !caller.IsAdmin() {
		return RescoreResult{}, eris.Wrapf(scan.ErrPermissionDenied, "caller %q may not rescore", caller.ID)
	}
	release, err := o.Hold("rescore-" + uuid.NewString())
	if err != nil {
		return RescoreResult{}, err
	}
	defer release()

	cfg, err := s.settings.ScoringConfig(ctx)
	if err != nil {
		return RescoreResult{}, err
	}
	opps, err := st.AllOpportunities(ctx)
	if err != nil {
		return RescoreResult{}, err
	}

	res := RescoreResult{Total: len(opps)}
	for _, opp := range opps {
		before := opp.Score
		wasValidated := opp.Validated
		scoring.Assess(opp, cfg)
		metrics.RecordScore(opp.Score)
		if opp.Score != before || opp.Validated != wasValidated {
			res.Changed++
		}
		if opp.Validated {
			res.Validated++
		}
	}
	if err := st.SaveOpportunities(ctx, opps); err != nil {
		return RescoreResult{}, eris.Wrapf(scan.ErrPersistence, "save rescored opportunities: %v", err)
	}
	s.logger.Info(ctx, "rescore finished",
		logger.Int("total", res.Total),
		logger.Int("changed", res.Changed),
		logger.Int("validated", res.Validated))
	return res, nil
}

// ScoringConfig returns the current scoring config.
func (s *Service) ScoringConfig(ctx context.Context) (model.ScoringConfig, error) {
	if _, _, err := s.components(); err != nil {
		return model.ScoringConfig{}, err
	}
	return s.settings.ScoringConfig(ctx)
}

// UpdateScoringConfig validates and stores a new config. Stored scores are
// not touched until the next scan or rescore.
func (s *Service) UpdateScoringConfig(ctx context.Context, caller scan.Caller, cfg model.ScoringConfig) (model.ScoringConfig, error) {
	if _, _, err := s.components(); err != nil {
		return cfg, err
	}
	if !caller.IsAdmin() {
		return cfg, eris.Wrapf(scan.ErrPermissionDenied, "caller %q may not change scoring", caller.ID)
	}
	out, err := s.settings.PutScoringConfig(ctx, cfg)
	if err == nil {
		s.logger.Info(ctx, "scoring config updated", logger.String("caller", caller.ID), logger.Any("weights", out.Weights))
	}
	return out, err
}

// EnabledSources returns the enabled source names.
func (s *Service) EnabledSources(ctx context.Context) ([]string, error) {
	if _, _, err := s.components(); err != nil {
		return nil, err
	}
	return s.settings.EnabledSources(ctx)
}

// AvailableSources lists every registered collector.
func (s *Service) AvailableSources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry == nil {
		return nil
	}
	names := s.registry.Names()
	order := s.cfg.Sources.Order
	slices.SortStableFunc(names, func(a, b string) int {
		return rankOf(order, a) - rankOf(order, b)
	})
	return names
}

func rankOf(order []string, name string) int {
	if i := slices.Index(order, name); i >= 0 {
		return i
	}
	return len(order)
}

// UpdateEnabledSources replaces the enabled set.
func (s *Service) UpdateEnabledSources(ctx context.Context, caller scan.Caller, names []string) ([]string, error) {
	if _, _, err := s.components(); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, eris.Wrapf(scan.ErrPermissionDenied, "caller %q may not change sources", caller.ID)
	}
	return s.settings.PutEnabledSources(ctx, names)
}

// Review lists mentions waiting for manual review.
func (s *Service) Review(ctx context.Context, limit, offset int) (types.Page[model.ReviewItem], error) {
	_, st, err := s.components()
	if err != nil {
		return types.Page[model.ReviewItem]{}, err
	}
	if offset < 0 {
		offset = 0
	}
	return st.ListReview(ctx, types.ClampLimit(limit, DefaultPageSize, MaxPageSize), offset)
}

// ExpireReview drops review entries past their expiry.
func (s *Service) ExpireReview(ctx context.Context) (int, error) {
	_, st, err := s.components()
	if err != nil {
		return 0, err
	}
	return st.ExpireReview(ctx, s.now())
}

// SweepProgress drops expired progress snapshots.
func (s *Service) SweepProgress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.progress == nil {
		return 0
	}
	return s.progress.Sweep()
}
