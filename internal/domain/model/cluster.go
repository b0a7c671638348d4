package model

import (
	"sort"
	"time"
)

// Cluster groups raw mentions believed to describe the same problem.
// It is a working structure and is never persisted directly.
type Cluster struct {
	Key          string         // normalized signature
	Phrase       string         // human readable core phrase
	Trigger      string         // trigger template that produced the signature, empty for singletons
	Members      []RawMention   // sorted by ObservedAt then Key
	SourceCounts map[string]int // mentions per source
	URLs         []string       // distinct member urls in member order
	FirstSeen    time.Time
	LastSeen     time.Time
}

// NewCluster returns an empty cluster for key.
func NewCluster(key, phrase, trigger string) *Cluster {
	return &Cluster{
		Key:          key,
		Phrase:       phrase,
		Trigger:      trigger,
		SourceCounts: make(map[string]int),
	}
}

// Add appends a member and refreshes the aggregates.
func (c *Cluster) Add(m RawMention) {
	c.Members = append(c.Members, m)
	c.SourceCounts[m.Source]++
	if c.FirstSeen.IsZero() || m.ObservedAt.Before(c.FirstSeen) {
		c.FirstSeen = m.ObservedAt
	}
	if m.ObservedAt.After(c.LastSeen) {
		c.LastSeen = m.ObservedAt
	}
}

// Finalize sorts members deterministically and rebuilds the url list.
func (c *Cluster) Finalize() {
	sort.SliceStable(c.Members, func(i, j int) bool {
		a, b := c.Members[i], c.Members[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.Before(b.ObservedAt)
		}
		return a.Key() < b.Key()
	})
	seen := make(map[string]struct{}, len(c.Members))
	c.URLs = c.URLs[:0]
	for _, m := range c.Members {
		if m.URL == "" {
			continue
		}
		if _, ok := seen[m.URL]; ok {
			continue
		}
		seen[m.URL] = struct{}{}
		c.URLs = append(c.URLs, m.URL)
	}
}

// MentionCount is the number of members.
func (c *Cluster) MentionCount() int { return len(c.Members) }

// SourceDiversity is the number of distinct sources.
func (c *Cluster) SourceDiversity() int { return len(c.SourceCounts) }

// Singleton reports whether the cluster was formed without a trigger match.
func (c *Cluster) Singleton() bool { return c.Trigger == "" }

// Texts returns member contents in member order.
func (c *Cluster) Texts() []string {
	out := make([]string, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Content()
	}
	return out
}
