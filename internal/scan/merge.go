package scan

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/scoring"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxProblemText = 280
	maxReviewText  = 1000
	maxSourceURLs  = 25
)

// buildOpportunity folds the fresh mentions of c into a new or existing
// record. Scoring fields are left for scoring.Assess.
func buildOpportunity(c candidate, e model.Enrichment, newID func() string, now time.Time) *model.Opportunity {
	texts := c.cluster.Texts()

	var o *model.Opportunity
	if c.existing == nil {
		o = &model.Opportunity{
			ID:           newID(),
			ClusterKey:   c.cluster.Key,
			Title:        Title(c.cluster.Phrase),
			Problem:      truncate(c.fresh[0].Content(), maxProblemText),
			Status:       model.StatusNew,
			SourceCounts: make(map[string]int),
			Trend:        model.TrendUp,
			CreatedAt:    now,
		}
	} else {
		cp := *c.existing
		o = &cp
		o.SourceCounts = maps.Clone(c.existing.SourceCounts)
		if o.SourceCounts == nil {
			o.SourceCounts = make(map[string]int)
		}
		o.SourceURLs = slices.Clone(c.existing.SourceURLs)
		o.Trend = trend(c.existing.LastScanMentions, len(c.fresh))
		texts = append(texts, o.Problem)
	}

	o.MentionCount += len(c.fresh)
	o.LastScanMentions = len(c.fresh)
	urls := make([]string, 0, len(c.fresh))
	for _, m := range c.fresh {
		o.SourceCounts[m.Source]++
		if m.URL != "" {
			urls = append(urls, m.URL)
		}
		seen := m.ObservedAt
		if seen.IsZero() {
			seen = now
		}
		if o.FirstSeen.IsZero() || seen.Before(o.FirstSeen) {
			o.FirstSeen = seen
		}
		if seen.After(o.LastSeen) {
			o.LastSeen = seen
		}
	}
	o.SourceURLs = mergeURLs(o.SourceURLs, urls, maxSourceURLs)

	o.Complexity = scoring.ClassifyComplexity(texts...)
	o.B2B = scoring.IsB2B(texts...)

	// A failed lookup keeps what an earlier scan learned.
	if e.CompetitorCount != model.Unknown || c.existing == nil {
		o.CompetitorCount = e.CompetitorCount
		o.CompetitorURLs = slices.Clone(e.CompetitorURLs)
		o.PaidSignal = e.PaidSignal
		o.RevenueAmount = e.RevenueAmount()
	}
	o.UpdatedAt = now
	return o
}

// trend compares this sighting's new mentions with the previous one's.
func trend(previous, added int) model.Trend {
	switch {
	case added > previous:
		return model.TrendUp
	case added < previous:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

// Title turns a cluster phrase into a display title.
func Title(phrase string) string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return "Untitled opportunity"
	}
	return cases.Title(language.English).String(phrase)
}

func mergeURLs(have, add []string, limit int) []string {
	seen := make(map[string]struct{}, len(have)+len(add))
	out := make([]string, 0, len(have)+len(add))
	for _, u := range slices.Concat(have, add) {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
