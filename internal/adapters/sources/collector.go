// Package sources contains the collectors that fetch raw mentions from
// discussion platforms and normalize them into model.RawMention.
package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/painpoint/internal/domain/model"
)

// ErrCollectorUnavailable marks a fetch failure the orchestrator skips over.
var ErrCollectorUnavailable = errors.New("collector unavailable")

// Collector fetches normalized mentions from one platform.
type Collector interface {
	Name() string
	FetchMentions(ctx context.Context) ([]model.RawMention, error)
}

// UnavailableError wraps a source failure. It matches both
// ErrCollectorUnavailable and the underlying cause with errors.Is.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrCollectorUnavailable, e.Err}
}

// Unavailable wraps err for source.
func Unavailable(source string, err error) error {
	return &UnavailableError{Source: source, Err: err}
}
