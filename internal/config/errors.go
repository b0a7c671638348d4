package config

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig = eris.New("invalid config")
	ErrLoadConfig    = eris.New("load config failed")
)

func invalid(format string, args ...any) error {
	return eris.Wrap(ErrInvalidConfig, fmt.Sprintf(format, args...))
}
