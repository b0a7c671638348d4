package service

import "github.com/rotisserie/eris"

// Service level error kinds. Scan kinds come from package scan.
var (
	ErrInvalidInput = eris.New("invalid input")
	ErrNotFound     = eris.New("not found")
	ErrNotStarted   = eris.New("service not started")
)
