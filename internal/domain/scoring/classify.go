package scoring

import (
	"strings"

	"github.com/okian/painpoint/internal/domain/cluster"
	"github.com/okian/painpoint/internal/domain/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	highComplexity = []string{ //nolint:gochecknoglobals // keyword tables
		"ai", "machine learning", "ml", "algorithm", "blockchain", "ar", "vr",
		"computer vision", "nlp", "natural language",
	}
	mediumComplexity = []string{ //nolint:gochecknoglobals // keyword tables
		"api", "integration", "database", "real time", "streaming", "infrastructure",
	}
	lowComplexity = []string{ //nolint:gochecknoglobals // keyword tables
		"dashboard", "admin panel", "crud", "form", "listing", "directory", "calculator", "template",
	}
	b2bKeywords = []string{ //nolint:gochecknoglobals // keyword tables
		"business", "company", "enterprise", "startup", "saas", "team", "professional",
		"workflow", "productivity", "analytics", "automation", "integration", "api",
		"client", "invoice", "b2b",
	}
	b2cKeywords = []string{ //nolint:gochecknoglobals // keyword tables
		"personal", "individual", "consumer", "lifestyle", "fitness", "health", "recipe",
		"gaming", "social", "dating",
	}
)

const (
	complexityBase   = 50
	highPenalty      = 15
	mediumPenalty    = 5
	lowBonus         = 10
	lowCutoff        = 60
	mediumCutoff     = 40
	growingMentions  = 20
	establishedCount = 50
)

// ComplexityKeywordScore is 50, minus 15 per high-effort keyword, minus 5 per
// medium-effort keyword and plus 10 per low-effort keyword, clamped to [0,100].
// Each keyword counts once across all texts.
func ComplexityKeywordScore(texts ...string) int {
	doc := " " + cluster.Normalize(strings.Join(texts, " ")) + " "
	score := complexityBase
	score -= highPenalty * countKeywords(doc, highComplexity)
	score -= mediumPenalty * countKeywords(doc, mediumComplexity)
	score += lowBonus * countKeywords(doc, lowComplexity)
	return clampInt(score)
}

// ClassifyComplexity buckets the keyword score.
func ClassifyComplexity(texts ...string) model.Complexity {
	switch s := ComplexityKeywordScore(texts...); {
	case s >= lowCutoff:
		return model.ComplexityLow
	case s >= mediumCutoff:
		return model.ComplexityMedium
	default:
		return model.ComplexityHigh
	}
}

// IsB2B reports whether business keywords are at least as common as consumer
// keywords and at least one is present.
func IsB2B(texts ...string) bool {
	doc := " " + cluster.Normalize(strings.Join(texts, " ")) + " "
	b2b := countKeywords(doc, b2bKeywords)
	b2c := countKeywords(doc, b2cKeywords)
	return b2b > 0 && b2b >= b2c
}

// Level buckets a competitor count.
func Level(count int) model.CompetitionLevel {
	switch {
	case count == model.Unknown || count < 0:
		return model.CompetitionUnknown
	case count <= 1:
		return model.CompetitionLow
	case count <= 5:
		return model.CompetitionMedium
	case count <= 10:
		return model.CompetitionHigh
	default:
		return model.CompetitionVeryHigh
	}
}

// RevenueDisplay renders a monthly revenue amount, e.g. "$2,000 MRR".
func RevenueDisplay(amount float64) string {
	switch {
	case amount == model.Unknown:
		return "Unknown"
	case amount <= 0:
		return "No revenue evidence"
	default:
		return message.NewPrinter(language.English).Sprintf("$%d MRR", int64(amount))
	}
}

// MarketSize describes the audience from mention volume and B2B focus.
func MarketSize(mentions int, b2b bool) string {
	audience := "consumer"
	if b2b {
		audience = "B2B"
	}
	switch {
	case mentions >= establishedCount:
		return "Established " + audience + " demand"
	case mentions >= growingMentions:
		return "Growing " + audience + " niche"
	default:
		return "Small " + audience + " niche"
	}
}

// countKeywords counts distinct keywords occurring as whole words in doc.
// doc must be normalized and padded with spaces.
func countKeywords(doc string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(doc, " "+kw+" ") {
			n++
		}
	}
	return n
}
