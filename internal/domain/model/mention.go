// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha1" //nolint:gosec // used for stable keys, not security
	"encoding/hex"
	"strings"
	"time"
)

// RawMention is one observation of a pain point on one platform.
// Collectors produce it; only the clustering engine consumes it.
type RawMention struct {
	ExternalID string    // id within the source, may be empty
	Source     string    // collector name, e.g. "reddit"
	Title      string    // headline when the platform has one
	Text       string    // body text
	URL        string    // origin url
	Author     string    // optional
	ObservedAt time.Time // when the mention was posted
	Engagement Engagement
}

// Engagement holds source specific counters normalized to two numbers.
type Engagement struct {
	Upvotes  int
	Comments int
}

// Key identifies the mention across scans.
// Preference order: source:external_id, then source:url, then a digest of the text.
func (m RawMention) Key() string {
	switch {
	case m.ExternalID != "":
		return m.Source + ":" + m.ExternalID
	case m.URL != "":
		return m.Source + ":" + m.URL
	default:
		sum := sha1.Sum([]byte(strings.TrimSpace(m.Title + "\n" + m.Text))) //nolint:gosec // not security sensitive
		return m.Source + ":sha1:" + hex.EncodeToString(sum[:8])
	}
}

// Content returns the title and body joined for text analysis.
func (m RawMention) Content() string {
	switch {
	case m.Title == "":
		return m.Text
	case m.Text == "":
		return m.Title
	default:
		return m.Title + "\n" + m.Text
	}
}
