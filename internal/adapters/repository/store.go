// Package repository persists scans, opportunities, settings and the review
// queue in a relational store.
package repository

import (
	"context"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/types"
)

// Upsert is one opportunity written by a scan together with the mention keys
// that contributed to it.
type Upsert struct {
	Opportunity *model.Opportunity
	MentionKeys []string
}

// ScanCommit is everything a scan writes when it reaches a terminal state.
// It is applied in one transaction so ranks never observe a partial scan.
type ScanCommit struct {
	Job     *model.ScanJob
	Upserts []Upsert
	Review  []model.ReviewItem
}

// ScanStore persists scan history.
type ScanStore interface {
	// CreateScan inserts a new job row keyed by job.ID.
	CreateScan(ctx context.Context, job *model.ScanJob) error
	// UpdateScan overwrites the mutable columns of an existing job.
	UpdateScan(ctx context.Context, job *model.ScanJob) error
	// GetScan returns ErrNotFound for identifiers never inserted.
	GetScan(ctx context.Context, id string) (*model.ScanJob, error)
	ListScans(ctx context.Context, limit int) ([]model.ScanJob, error)
	ScanStats(ctx context.Context, since time.Time) (model.ScanStats, error)
	// AbandonScans fails every non-terminal job. Used at startup to release
	// jobs whose worker died with the previous process.
	AbandonScans(ctx context.Context, reason string) (int, error)
	// CommitScan applies the scan's writes, recomputes ranks and stores the
	// terminal job row atomically.
	CommitScan(ctx context.Context, c ScanCommit) error
}

// OpportunityStore persists opportunities.
type OpportunityStore interface {
	GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error)
	ListOpportunities(ctx context.Context, f model.OpportunityFilter) (types.Page[model.Opportunity], error)
	// OpportunitiesByKeys returns existing records indexed by cluster key.
	OpportunitiesByKeys(ctx context.Context, keys []string) (map[string]*model.Opportunity, error)
	AllOpportunities(ctx context.Context) ([]*model.Opportunity, error)
	// SaveOpportunities writes the assessment columns of the given records
	// and recomputes ranks in the same transaction.
	SaveOpportunities(ctx context.Context, opps []*model.Opportunity) error
	// PatchOpportunity writes user fields, overrides and the assessment only.
	PatchOpportunity(ctx context.Context, o *model.Opportunity) error
	OpportunityStats(ctx context.Context, highScore int) (model.OpportunityStats, error)
	// LinkedMentions maps the given mention keys to the opportunity that
	// already counted them. Unlinked keys are absent.
	LinkedMentions(ctx context.Context, keys []string) (map[string]string, error)
}

// SettingsStore persists JSON encoded singleton settings.
type SettingsStore interface {
	// GetSetting decodes the value under key into dest or returns ErrNotFound.
	GetSetting(ctx context.Context, key string, dest any) error
	PutSetting(ctx context.Context, key string, value any) error
}

// ReviewStore persists the manual review queue.
type ReviewStore interface {
	ListReview(ctx context.Context, limit, offset int) (types.Page[model.ReviewItem], error)
	ExpireReview(ctx context.Context, now time.Time) (int, error)
}

// Store is the full persistence surface.
type Store interface {
	ScanStore
	OpportunityStore
	SettingsStore
	ReviewStore
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
