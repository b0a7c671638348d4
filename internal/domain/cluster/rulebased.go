package cluster

import (
	"strings"

	"github.com/okian/painpoint/internal/domain/model"
)

// clauseWords end the phrase once at least one content word was taken.
var clauseWords = map[string]struct{}{ //nolint:gochecknoglobals // read-only lookup table
	"and": {}, "or": {}, "but": {}, "because": {}, "since": {}, "so": {}, "that": {}, "which": {},
	"who": {}, "when": {}, "where": {}, "while": {}, "if": {}, "than": {}, "then": {}, "like": {},
	"as": {}, "i": {}, "we": {}, "it": {}, "is": {}, "are": {}, "was": {},
}

// RuleBased extracts signatures from trigger phrase templates.
type RuleBased struct {
	triggers  [][]string // normalized, precedence order
	raw       []string
	synonyms  map[string]string
	stopwords map[string]struct{}
	maxWords  int
}

// RuleOption configures RuleBased.
type RuleOption func(*RuleBased)

// WithSynonyms maps words to a canonical form before comparison.
func WithSynonyms(syn map[string]string) RuleOption {
	return func(r *RuleBased) {
		for k, v := range syn {
			r.synonyms[Normalize(k)] = Normalize(v)
		}
	}
}

// WithStopwords sets words skipped inside the phrase.
func WithStopwords(words []string) RuleOption {
	return func(r *RuleBased) {
		for _, w := range words {
			r.stopwords[Normalize(w)] = struct{}{}
		}
	}
}

// WithMaxWords caps the number of content words in a signature.
func WithMaxWords(n int) RuleOption {
	return func(r *RuleBased) {
		if n > 0 {
			r.maxWords = n
		}
	}
}

// NewRuleBased builds the strategy. Triggers are tried in the given order.
func NewRuleBased(triggers []string, opts ...RuleOption) *RuleBased {
	r := &RuleBased{
		synonyms:  make(map[string]string),
		stopwords: make(map[string]struct{}),
		maxWords:  3,
	}
	for _, t := range triggers {
		toks := Tokens(t)
		if len(toks) == 0 {
			continue
		}
		r.triggers = append(r.triggers, toks)
		r.raw = append(r.raw, strings.Join(toks, " "))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RuleBased) Name() string { return "rule-based" }

// Triggers returns the normalized templates in precedence order.
func (r *RuleBased) Triggers() []string {
	return append([]string(nil), r.raw...)
}

// Signature finds the first trigger in precedence order that is followed by
// a phrase and canonicalizes that phrase. When triggers occur but none has a
// phrase after it, the earliest matching trigger itself is the key. It
// reports false only when no trigger occurs.
func (r *RuleBased) Signature(text string) (Signature, bool) {
	toks := Tokens(text)
	bare := -1
	for i, trig := range r.triggers {
		at := indexOf(toks, trig)
		if at < 0 {
			continue
		}
		words := r.phrase(toks[at+len(trig):])
		if len(words) == 0 {
			if bare < 0 {
				bare = i
			}
			continue
		}
		return Signature{Key: strings.Join(words, " "), Trigger: r.raw[i]}, true
	}
	if bare >= 0 {
		return Signature{Key: r.raw[bare], Trigger: r.raw[bare]}, true
	}
	return Signature{}, false
}

// Group clusters mentions by signature.
func (r *RuleBased) Group(mentions []model.RawMention) []*model.Cluster {
	return group(mentions, r.Signature)
}

// Matches reports whether any trigger occurs in text.
func (r *RuleBased) Matches(text string) bool {
	toks := Tokens(text)
	for _, trig := range r.triggers {
		if indexOf(toks, trig) >= 0 {
			return true
		}
	}
	return false
}

func (r *RuleBased) phrase(rest []string) []string {
	var words []string
	for _, w := range rest {
		if len(words) >= r.maxWords {
			break
		}
		_, stop := r.stopwords[w]
		_, clause := clauseWords[w]
		if len(words) == 0 && (stop || clause) {
			continue
		}
		if clause {
			break
		}
		if stop {
			continue
		}
		c := r.canonical(w)
		if n := len(words); n > 0 && words[n-1] == c {
			continue
		}
		words = append(words, c)
	}
	return words
}

func (r *RuleBased) canonical(w string) string {
	if s, ok := r.synonyms[w]; ok {
		return s
	}
	w = singular(w)
	if s, ok := r.synonyms[w]; ok {
		return s
	}
	return w
}

func singular(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func indexOf(toks, seq []string) int {
outer:
	for i := 0; i+len(seq) <= len(toks); i++ {
		for j, s := range seq {
			if toks[i+j] != s {
				continue outer
			}
		}
		return i
	}
	return -1
}
