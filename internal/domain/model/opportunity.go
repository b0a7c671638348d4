package model

import "time"

// Unknown marks a competitor count or revenue amount that enrichment could
// not establish. It is distinct from zero.
const Unknown = -1

// Enrichment is the competitive signal attached to a cluster before scoring.
type Enrichment struct {
	CompetitorCount  int       // Unknown when the search failed
	CompetitorURLs   []string  // distinct competitor homepages
	PaidSignal       bool      // at least one competitor visibly charges money
	RevenueEstimates []float64 // monthly figures found in snippets
}

// UnknownEnrichment is the fallback used when the search collaborator fails.
func UnknownEnrichment() Enrichment {
	return Enrichment{CompetitorCount: Unknown}
}

// RevenueAmount is the largest monthly estimate, 0 when none were found and
// Unknown when the search itself failed.
func (e Enrichment) RevenueAmount() float64 {
	if e.CompetitorCount == Unknown {
		return Unknown
	}
	var best float64
	for _, v := range e.RevenueEstimates {
		if v > best {
			best = v
		}
	}
	return best
}

// Opportunity is the persisted, scored record derived from a cluster.
type Opportunity struct {
	ID         string
	ClusterKey string
	Title      string
	Problem    string

	Score          int
	Rank           int // 0 when outside the visible pool
	Validated      bool
	Recommendation string

	MentionCount     int
	LastScanMentions int // mentions added by the most recent sighting
	Trend            Trend
	SourceCounts     map[string]int
	SourceURLs       []string

	RevenueDisplay   string
	RevenueAmount    float64 // Unknown when enrichment failed
	CompetitorCount  int     // Unknown when enrichment failed
	CompetitorURLs   []string
	PaidSignal       bool
	CompetitionLevel CompetitionLevel
	Complexity       Complexity
	B2B              bool
	MarketSize       string

	ProblemScore     int
	FeasibilityScore int
	WhyNowScore      int

	// Admin overrides, nil or empty when unset.
	B2BOverride        *bool
	ComplexityOverride Complexity

	// User controlled.
	Status Status
	Notes  string

	FirstSeen time.Time
	LastSeen  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveComplexity applies the admin override.
func (o *Opportunity) EffectiveComplexity() Complexity {
	if o.ComplexityOverride.Valid() {
		return o.ComplexityOverride
	}
	return o.Complexity
}

// EffectiveB2B applies the admin override.
func (o *Opportunity) EffectiveB2B() bool {
	if o.B2BOverride != nil {
		return *o.B2BOverride
	}
	return o.B2B
}

// Visible reports whether the record takes part in ranking.
func (o *Opportunity) Visible() bool { return o.Status != StatusRejected }

// OpportunityPatch carries user and admin editable fields. Nil means unchanged.
type OpportunityPatch struct {
	Status             *Status
	Notes              *string
	B2BOverride        **bool
	ComplexityOverride *Complexity
}

// OpportunityFilter narrows opportunity listings.
type OpportunityFilter struct {
	MinScore  *int
	MaxScore  *int
	Validated *bool
	Status    Status
	Since     time.Time
	Until     time.Time
	Query     string
	Sort      string // score (default), rank, mentions, recent
	Limit     int
	Offset    int
}

// OpportunityStats summarizes the opportunity store.
type OpportunityStats struct {
	Total        int            `json:"total"`
	Validated    int            `json:"validated"`
	AverageScore float64        `json:"average_score"`
	ByStatus     map[string]int `json:"by_status"`
	HighScore    int            `json:"high_score"`
}
