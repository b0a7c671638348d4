package cluster

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/rotisserie/eris"
)

// FilterRules drop low value mentions before clustering.
type FilterRules struct {
	ExcludeKeywords []string // matched against the title only
	RequireKeywords []string // at least one must occur when set
	ExcludeRegex    []string // matched against title and body
	MinUpvotes      int
	MinComments     int
}

// Filter applies FilterRules. Signal phrases bypass the engagement minimums,
// since a quiet post that says "wish there was" is still signal.
type Filter struct {
	rules   FilterRules
	regex   []*regexp.Regexp
	signals func(string) bool
}

// NewFilter compiles the rules. signals may be nil.
func NewFilter(rules FilterRules, signals func(string) bool) (*Filter, error) {
	f := &Filter{rules: rules, signals: signals}
	for _, expr := range rules.ExcludeRegex {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, eris.Wrapf(err, "compile exclude regex %q", expr)
		}
		f.regex = append(f.regex, re)
	}
	return f, nil
}

// Allow reports whether m passes, with a reason when it does not.
func (f *Filter) Allow(m model.RawMention) (bool, string) {
	title := strings.ToLower(m.Title)
	if title == "" {
		title, _, _ = strings.Cut(strings.ToLower(m.Text), "\n")
	}
	text := strings.ToLower(m.Content())

	for _, kw := range f.rules.ExcludeKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return false, fmt.Sprintf("title contains excluded keyword: %s", kw)
		}
	}

	if len(f.rules.RequireKeywords) > 0 {
		found := false
		for _, kw := range f.rules.RequireKeywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false, "missing required keywords"
		}
	}

	if f.signals == nil || !f.signals(m.Content()) {
		if m.Engagement.Upvotes < f.rules.MinUpvotes {
			return false, fmt.Sprintf("below minimum upvotes (%d < %d)", m.Engagement.Upvotes, f.rules.MinUpvotes)
		}
		if m.Engagement.Comments < f.rules.MinComments {
			return false, fmt.Sprintf("below minimum comments (%d < %d)", m.Engagement.Comments, f.rules.MinComments)
		}
	}

	for _, re := range f.regex {
		if re.MatchString(text) {
			return false, "matches exclude regex: " + re.String()[4:]
		}
	}
	return true, ""
}
