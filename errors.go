package access

import "errors"

// Administration calls report expected non-exceptional outcomes as typed
// errors so callers can map them to their own status codes. Store I/O
// failures are wrapped and propagated; an evaluation never folds a store
// failure into a plain deny.
var (
	// ErrNotFound is returned when the target of a revoke or delete does not exist.
	ErrNotFound = errors.New("access: not found")

	// ErrAlreadyExists is returned when the target of a grant or create is already present.
	ErrAlreadyExists = errors.New("access: already exists")

	// ErrNotInitialized is returned when an evaluator is invoked before its
	// store handles are wired. Fatal to the call, never retried internally.
	ErrNotInitialized = errors.New("access: not initialized")

	// ErrSelfLoop is returned when a membership edge would point a group at itself.
	ErrSelfLoop = errors.New("access: membership self-loop")
)
