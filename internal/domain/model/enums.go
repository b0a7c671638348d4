package model

// Status is the user controlled lifecycle of an opportunity.
type Status string

const (
	StatusNew         Status = "new"
	StatusResearching Status = "researching"
	StatusBuilding    Status = "building"
	StatusRejected    Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusResearching, StatusBuilding, StatusRejected:
		return true
	}
	return false
}

// Trend compares mention volume with the previous sighting.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CompetitionLevel buckets the competitor count.
type CompetitionLevel string

const (
	CompetitionUnknown  CompetitionLevel = ""
	CompetitionLow      CompetitionLevel = "Low"
	CompetitionMedium   CompetitionLevel = "Medium"
	CompetitionHigh     CompetitionLevel = "High"
	CompetitionVeryHigh CompetitionLevel = "Very High"
)

// Complexity is the estimated build effort.
type Complexity string

const (
	ComplexityNone   Complexity = ""
	ComplexityLow    Complexity = "Low"
	ComplexityMedium Complexity = "Medium"
	ComplexityHigh   Complexity = "High"
)

// Valid reports whether c is a concrete complexity level.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// ScanStatus is the lifecycle of a scan job.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	ScanCancelled ScanStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed || s == ScanCancelled
}

// Valid reports whether s is a known scan status.
func (s ScanStatus) Valid() bool {
	switch s {
	case ScanPending, ScanRunning, ScanCompleted, ScanFailed, ScanCancelled:
		return true
	}
	return false
}
