package triage

import "errors"

var (
	// ErrNotFound is returned for lookups and lifecycle actions on unknown
	// vector ids. Surfaced to API callers as 404.
	ErrNotFound = errors.New("state vector not found")

	// ErrOracleUnavailable means the classification oracle is unconfigured,
	// unreachable, or returned something unusable. This is an expected
	// condition: callers fall back to the lexical classifier and it never
	// crosses the component boundary.
	ErrOracleUnavailable = errors.New("classification oracle unavailable")

	// ErrDuplicateSource means a vector already exists for the source message
	// id. The insert is not retried; re-ingestion is not exactly-once beyond
	// this uniqueness check.
	ErrDuplicateSource = errors.New("state vector already exists for source message")
)
