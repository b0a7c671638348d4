// Package types contains common types used across the application
package types

// Page is one window of a listing.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage builds a page and never returns nil items, so JSON renders [].
func NewPage[T any](items []T, total, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Limit: limit, Offset: offset}
}

// HasMore reports whether another page follows.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}

// ClampLimit bounds a requested page size.
func ClampLimit(limit, def, maxLimit int) int {
	switch {
	case limit <= 0:
		return def
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
