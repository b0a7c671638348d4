package api

import (
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/types"
)

type triggerRequest struct {
	Sources []string `json:"sources"`
}

type opportunityDTO struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Problem            string         `json:"problem"`
	Score              int            `json:"score"`
	Rank               int            `json:"rank,omitempty"`
	Validated          bool           `json:"validated"`
	Recommendation     string         `json:"recommendation"`
	MentionCount       int            `json:"mention_count"`
	Trend              string         `json:"trend"`
	SourceCounts       map[string]int `json:"source_counts"`
	SourceURLs         []string       `json:"source_urls"`
	Revenue            string         `json:"revenue_potential"`
	RevenueAmount      *float64       `json:"revenue_amount"`
	CompetitorCount    *int           `json:"competitor_count"`
	CompetitorURLs     []string       `json:"competitor_urls"`
	PaidSignal         bool           `json:"paid_signal"`
	Competition        string         `json:"competition_level"`
	Complexity         string         `json:"complexity"`
	ComplexityOverride string         `json:"complexity_override,omitempty"`
	B2B                bool           `json:"b2b"`
	B2BOverride        *bool          `json:"b2b_override,omitempty"`
	MarketSize         string         `json:"market_size"`
	Scores             subScoresDTO   `json:"scores"`
	Status             string         `json:"status"`
	Notes              string         `json:"notes"`
	FirstSeen          time.Time      `json:"first_seen"`
	LastSeen           time.Time      `json:"last_seen"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type subScoresDTO struct {
	Problem     int `json:"problem"`
	Feasibility int `json:"feasibility"`
	WhyNow      int `json:"why_now"`
}

// unknownOrInt renders the Unknown sentinel as JSON null.
func unknownOrInt(v int) *int {
	if v == model.Unknown {
		return nil
	}
	return &v
}

func unknownOrFloat(v float64) *float64 {
	if v == model.Unknown {
		return nil
	}
	return &v
}

func toOpportunityDTO(o *model.Opportunity) opportunityDTO {
	return opportunityDTO{
		ID:                 o.ID,
		Title:              o.Title,
		Problem:            o.Problem,
		Score:              o.Score,
		Rank:               o.Rank,
		Validated:          o.Validated,
		Recommendation:     o.Recommendation,
		MentionCount:       o.MentionCount,
		Trend:              string(o.Trend),
		SourceCounts:       o.SourceCounts,
		SourceURLs:         nonNil(o.SourceURLs),
		Revenue:            o.RevenueDisplay,
		RevenueAmount:      unknownOrFloat(o.RevenueAmount),
		CompetitorCount:    unknownOrInt(o.CompetitorCount),
		CompetitorURLs:     nonNil(o.CompetitorURLs),
		PaidSignal:         o.PaidSignal,
		Competition:        string(o.CompetitionLevel),
		Complexity:         string(o.EffectiveComplexity()),
		ComplexityOverride: string(o.ComplexityOverride),
		B2B:                o.EffectiveB2B(),
		B2BOverride:        o.B2BOverride,
		MarketSize:         o.MarketSize,
		Scores: subScoresDTO{
			Problem:     o.ProblemScore,
			Feasibility: o.FeasibilityScore,
			WhyNow:      o.WhyNowScore,
		},
		Status:    string(o.Status),
		Notes:     o.Notes,
		FirstSeen: o.FirstSeen,
		LastSeen:  o.LastSeen,
		UpdatedAt: o.UpdatedAt,
	}
}

func toOpportunityPage(p types.Page[model.Opportunity]) types.Page[opportunityDTO] {
	items := make([]opportunityDTO, len(p.Items))
	for i := range p.Items {
		items[i] = toOpportunityDTO(&p.Items[i])
	}
	return types.NewPage(items, p.Total, p.Limit, p.Offset)
}

type scanJobDTO struct {
	ID          string               `json:"scan_id"`
	Status      string               `json:"status"`
	Progress    int                  `json:"progress"`
	Requested   []string             `json:"sources"`
	Sources     []model.SourceResult `json:"sources_processed"`
	Found       int                  `json:"opportunities_found"`
	Summary     model.ScanSummary    `json:"summary"`
	Error       string               `json:"error,omitempty"`
	Origin      string               `json:"origin"`
	TriggeredBy string               `json:"triggered_by"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toScanJobDTO(j *model.ScanJob) scanJobDTO {
	return scanJobDTO{
		ID:          j.ID,
		Status:      string(j.Status),
		Progress:    j.Progress,
		Requested:   nonNil(j.Requested),
		Sources:     nonNil(j.Sources),
		Found:       j.Found,
		Summary:     j.Summary,
		Error:       j.Error,
		Origin:      j.Origin,
		TriggeredBy: j.TriggeredBy,
		CreatedAt:   j.CreatedAt,
		StartedAt:   optionalTime(j.StartedAt),
		CompletedAt: optionalTime(j.CompletedAt),
	}
}

type reviewItemDTO struct {
	MentionKey string    `json:"mention_key"`
	ScanID     string    `json:"scan_id"`
	Source     string    `json:"source"`
	Signature  string    `json:"signature,omitempty"`
	Reason     string    `json:"reason"`
	Text       string    `json:"text"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toReviewPage(p types.Page[model.ReviewItem]) types.Page[reviewItemDTO] {
	items := make([]reviewItemDTO, len(p.Items))
	for i, it := range p.Items {
		items[i] = reviewItemDTO(it)
	}
	return types.NewPage(items, p.Total, p.Limit, p.Offset)
}

type sourcesDTO struct {
	Enabled   []string `json:"enabled"`
	Available []string `json:"available"`
}

type sourcesRequest struct {
	Enabled []string `json:"enabled"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
