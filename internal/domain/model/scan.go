package model

import "time"

// ScanJob is one execution of the pipeline.
type ScanJob struct {
	ID          string
	Status      ScanStatus
	Progress    int
	Requested   []string // sources the job will process, in order
	Sources     []SourceResult
	Found       int // opportunities created or updated
	Summary     ScanSummary
	Error       string
	Origin      string // api, scheduler, cli
	TriggeredBy string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// SourceResult records what happened to one source in a scan.
type SourceResult struct {
	Source   string `json:"source"`
	Mentions int    `json:"mentions"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ScanSummary holds the per stage counters of a scan.
type ScanSummary struct {
	Collected    int `json:"collected"`
	Filtered     int `json:"filtered"`
	Duplicates   int `json:"duplicates"`
	Clusters     int `json:"clusters"`
	Reviewed     int `json:"reviewed"`
	New          int `json:"new"`
	Updated      int `json:"updated"`
	EnrichFailed int `json:"enrich_failed"`
}

// Snapshot is the pollable view of a scan.
type Snapshot struct {
	ID       string         `json:"scan_id"`
	Status   ScanStatus     `json:"status"`
	Progress int            `json:"progress"`
	Found    int            `json:"opportunities_found"`
	Sources  []SourceResult `json:"sources_processed,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Snapshot returns the pollable view of the job.
func (j *ScanJob) Snapshot() Snapshot {
	return Snapshot{
		ID:       j.ID,
		Status:   j.Status,
		Progress: j.Progress,
		Found:    j.Found,
		Sources:  append([]SourceResult(nil), j.Sources...),
		Error:    j.Error,
	}
}

// ScanStats aggregates scan history.
type ScanStats struct {
	Total         int            `json:"total"`
	Last24h       int            `json:"last_24h"`
	ByStatus      map[string]int `json:"by_status"`
	Opportunities int            `json:"opportunities_found"`
	LastCompleted *time.Time     `json:"last_completed,omitempty"`
}
