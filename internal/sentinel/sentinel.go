// Package sentinel holds the error taxonomy shared by the stores, the resolver
// and the plan manager. Callers wrap these with fmt.Errorf("...: %w") to add the
// offending code, id or rule, and match them with errors.Is.
package sentinel

import "errors"

var (
	// ErrInvalidArgument marks malformed input: a bad country code, an
	// unparsable date, an empty title or a date range that is not ordered.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks an unknown country code or plan id.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation or a deletion blocked by a
	// referencing travel plan.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable marks a failing or timed-out external country source.
	ErrUnavailable = errors.New("unavailable")
)
