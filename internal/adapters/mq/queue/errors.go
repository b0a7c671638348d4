package queue

import "github.com/rotisserie/eris"

// Sentinel kinds for queue errors.
var (
	ErrClosed = eris.New("scan queue closed")
	ErrFull   = eris.New("scan queue full")
)
