package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when an entity does not exist or belongs to a
	// different owner. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrDuplicateName is returned when a folder or label name already
	// exists for the owning account.
	ErrDuplicateName = errors.New("store: duplicate name")

	// ErrDuplicateEntry is returned when a unique constraint is violated.
	ErrDuplicateEntry = errors.New("store: duplicate entry")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrAlreadyInTrash is returned when a soft delete targets a message
	// whose folder is already trash. Callers decide the escalation policy.
	ErrAlreadyInTrash = errors.New("store: already in trash")

	// ErrNotDraft is returned when a draft operation targets a message that
	// is not in the drafting state.
	ErrNotDraft = errors.New("store: not a draft")

	// ErrInvalidFolder is returned when an unknown folder value is provided.
	ErrInvalidFolder = errors.New("store: invalid folder")

	// ErrEmptyQuery is returned when a text search is attempted with an
	// empty or whitespace-only query.
	ErrEmptyQuery = errors.New("store: empty search query")

	// ErrTransactionFailed is returned when a database transaction fails.
	// This indicates the atomic operation could not complete and no changes were made.
	ErrTransactionFailed = errors.New("store: transaction failed")

	// ErrStatsUnsupported is returned by decorators whose wrapped store has
	// no native stats aggregation. Callers fall back to count-only queries.
	ErrStatsUnsupported = errors.New("store: stats not supported")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

func IsAlreadyInTrash(err error) bool {
	return errors.Is(err, ErrAlreadyInTrash)
}
