package model

import "time"

// Review reasons.
const (
	ReviewNoTrigger   = "no_trigger"
	ReviewNoConsensus = "below_consensus"
)

// ReviewItem is a mention that automatic grouping could not place.
type ReviewItem struct {
	MentionKey string
	ScanID     string
	Source     string
	Signature  string // empty for trigger-less mentions
	Reason     string
	Text       string
	URL        string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
