package sentinel

import "errors"

// Error kinds surfaced by the core. Callers match them with errors.Is; every
// layer wraps them with fmt.Errorf("...: %w", err) context on the way up.
var (
	// ErrMissingReference means an operation that needs a channel or author
	// reference was given neither.
	ErrMissingReference = errors.New("no channel or author reference provided")

	// ErrMissingField means a required attribution field was absent on a write.
	// Distinguishable from ErrMissingReference so callers can report which
	// input was malformed.
	ErrMissingField = errors.New("missing required field")

	// ErrRemoteUnavailable is a transient fetch failure. Safe to retry; never
	// memoized by the cache.
	ErrRemoteUnavailable = errors.New("remote service unavailable")

	// ErrNotFound means the remote confirmed the resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a constraint violation that idempotent upserts
	// should have made impossible. It is fatal to the operation that hit it,
	// never swallowed.
	ErrConflict = errors.New("conflicting ledger state")
)
