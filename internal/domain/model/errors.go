package model

import "github.com/rotisserie/eris"

// Validation errors for admin submitted values.
var (
	ErrWeightRange      = eris.New("weights must be within [0,1]")
	ErrWeightSum        = eris.New("weights must sum to 1.0")
	ErrCompetitorBounds = eris.New("competitor bounds must satisfy 0 <= min <= max")
	ErrScoreBands       = eris.New("score bands must be ordered within [0,100]")
	ErrThresholdRange   = eris.New("thresholds must not be negative")
)
