package query

import "errors"

var (
	// ErrInvalidParameter is returned for negative or oversized pagination input.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound is returned when a workflow id does not exist in the catalog.
	ErrNotFound = errors.New("workflow not found")
)
