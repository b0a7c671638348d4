package enrich

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/painpoint/internal/domain/model"
)

// Discussion, review and aggregator sites are not competitors.
var nonCompetitorDomains = map[string]struct{}{ //nolint:gochecknoglobals // lookup table
	"reddit.com": {}, "news.ycombinator.com": {}, "ycombinator.com": {}, "quora.com": {},
	"medium.com": {}, "youtube.com": {}, "wikipedia.org": {}, "en.wikipedia.org": {},
	"twitter.com": {}, "x.com": {}, "facebook.com": {}, "linkedin.com": {},
	"g2.com": {}, "capterra.com": {}, "producthunt.com": {}, "stackoverflow.com": {},
	"github.com": {}, "indiehackers.com": {}, "duckduckgo.com": {},
}

var (
	paidPattern = regexp.MustCompile(`(?i)(\bpricing\b|\bper month\b|/\s*mo(nth)?\b|\bper user\b|\bfree trial\b|\bplans? start|\bsubscription\b|[\$£€]\s?\d)`)

	revenuePatterns = []struct { //nolint:gochecknoglobals // compiled once
		re     *regexp.Regexp
		scale  float64
		annual bool
	}{
		{regexp.MustCompile(`(?i)[\$£€]?\s?(\d+(?:\.\d+)?)\s?k\s*MRR`), 1000, false},
		{regexp.MustCompile(`(?i)[\$£€]?\s?([\d,]+)\s*MRR`), 1, false},
		{regexp.MustCompile(`(?i)MRR\s*(?:of\s*)?[\$£€]?\s?([\d,]+)`), 1, false},
		{regexp.MustCompile(`(?i)[\$£€]\s?([\d,]+)\s*(?:/|per\s+)month`), 1, false},
		{regexp.MustCompile(`(?i)[\$£€]?\s?([\d,]+)\s*ARR`), 1, true},
	}
)

// Extract derives competitor count, paid signal and revenue figures from hits.
func Extract(hits []Hit) model.Enrichment {
	e := model.Enrichment{}
	seen := make(map[string]struct{})
	for _, h := range hits {
		text := h.Title + " " + h.Snippet
		if d := Domain(h.URL); d != "" {
			if _, skip := nonCompetitorDomains[d]; !skip {
				if _, dup := seen[d]; !dup {
					seen[d] = struct{}{}
					e.CompetitorURLs = append(e.CompetitorURLs, "https://"+d)
				}
			}
		}
		if paidPattern.MatchString(text) {
			e.PaidSignal = true
		}
		e.RevenueEstimates = append(e.RevenueEstimates, RevenueFigures(text)...)
	}
	e.CompetitorCount = len(e.CompetitorURLs)
	return e
}

// RevenueFigures returns monthly revenue amounts mentioned in text.
func RevenueFigures(text string) []float64 {
	var out []float64
	for _, p := range revenuePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil || v <= 0 {
				continue
			}
			v *= p.scale
			if p.annual {
				v /= 12
			}
			out = append(out, v)
		}
	}
	return out
}

// Domain returns the registrable host of raw without a www prefix.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
