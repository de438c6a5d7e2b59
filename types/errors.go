package types

import "errors"

// Errors returned by the ledger operations. They are usually wrapped with
// context, so callers should compare them with errors.Is.
var (
	// ErrNotFound is returned when the referenced election or job does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an election id is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidWindow is returned when the election deadlines are not
	// ordered or the registration deadline is not in the future.
	ErrInvalidWindow = errors.New("invalid election window")
	// ErrUnauthorized is returned when the caller lacks the role required by
	// the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrClosed is returned when the election is finalized or the deadline
	// of the current phase has passed.
	ErrClosed = errors.New("closed")
	// ErrAlreadyRegistered is returned when registering a voter twice.
	ErrAlreadyRegistered = errors.New("voter already registered")
	// ErrNotRegistered is returned when an unregistered account casts a ballot.
	ErrNotRegistered = errors.New("voter not registered")
	// ErrTooLarge is returned when a ciphertext, result locator or job error
	// message exceeds its size bound.
	ErrTooLarge = errors.New("too large")
	// ErrCommitmentsMissing is returned when submitting a tally before both
	// mix commitment roots are set.
	ErrCommitmentsMissing = errors.New("mix commitments missing")
	// ErrLimitReached is returned when the job quota is exhausted. The call
	// can be resubmitted once the live job count drops.
	ErrLimitReached = errors.New("job limit reached")
	// ErrInvalidTransition is returned for a disallowed job status move.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrOverflow is returned when a counter is exhausted.
	ErrOverflow = errors.New("counter overflow")
)
