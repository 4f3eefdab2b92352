package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores and adapters.
// Services translate them into domain errors; they never reach a transport.
//
//   - ErrNotFound: record or object does not exist
//   - ErrConflict: a uniqueness constraint already holds a different value
//   - ErrAlreadyUsed: an idempotency key or guard is already taken
//   - ErrInvalidState: record is in the wrong state for the operation
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
