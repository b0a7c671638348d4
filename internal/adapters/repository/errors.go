package repository

import "github.com/rotisserie/eris"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = eris.New("record not found")
	ErrConflict      = eris.New("record conflict")
	ErrUnknownDriver = eris.New("unknown store driver")
)
