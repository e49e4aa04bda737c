package models

import "github.com/pkg/errors"

// Stable error kinds the API layer branches on. Wrapped with pkg/errors on
// the way up, matched with errors.Is at the boundary.
var (
	// Validation: user-correctable, no retry automation.
	ErrFinalStateLocked     = errors.New("freight is in a final status")
	ErrDuplicateSuppressed  = errors.New("duplicate transition suppressed")
	ErrOutOfOrderTransition = errors.New("transition out of flow order")

	// Authorization: caller is not a participant of the record.
	ErrNotParticipant = errors.New("caller is not a freight participant")

	// Timeout: the caller's wait expired, the write outcome is unknown.
	ErrOperationTimedOut = errors.New("operation timed out")

	ErrNotFound = errors.New("not found")
)
