package scan

import "github.com/rotisserie/eris"

// Sentinel kinds surfaced by the orchestrator.
var (
	ErrPermissionDenied = eris.New("permission denied")
	ErrScanInProgress   = eris.New("scan in progress")
	ErrNotFound         = eris.New("scan not found")
	ErrUnknownSource    = eris.New("unknown source")
	ErrRateLimited      = eris.New("scan trigger rate limited")
	ErrPersistence      = eris.New("persistence failure")
	ErrNoSources        = eris.New("no sources enabled")
)
