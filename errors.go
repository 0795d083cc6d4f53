package postbox

import (
	"errors"
	"fmt"

	"github.com/absurdlabs/postbox/store"
)

// Sentinel errors for the postbox package.
// Use errors.Is() to check for these errors.
//
// These errors wrap corresponding store-level errors where applicable,
// so errors.Is(err, postbox.ErrNotFound) will match both postbox-level
// and store-level "not found" errors.
var (
	// ErrNotFound is returned when an entity does not exist or belongs to
	// another account; the two cases are indistinguishable to callers.
	// Wraps store.ErrNotFound for consistent error checking.
	ErrNotFound = fmt.Errorf("postbox: %w", store.ErrNotFound)

	// ErrValidation is the root of all validation failures. Rejected before
	// any mutation is attempted.
	ErrValidation = errors.New("postbox: validation failed")

	// ErrConflict is returned when a folder or label name already exists
	// for the account. Wraps store.ErrDuplicateName.
	ErrConflict = fmt.Errorf("postbox: %w", store.ErrDuplicateName)

	// ErrDeliveryFailed is returned when the outbound delivery collaborator
	// reports failure. The send is aborted and no state is mutated.
	ErrDeliveryFailed = errors.New("postbox: delivery failed")

	// ErrInternal is returned for storage or transport faults.
	ErrInternal = errors.New("postbox: internal error")

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("postbox: store is required")

	// ErrDelivererRequired is returned when no outbound deliverer is configured.
	ErrDelivererRequired = errors.New("postbox: deliverer is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("postbox: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("postbox: %w", store.ErrAlreadyConnected)

	// ErrInvalidID is returned when an invalid ID is provided.
	// Wraps store.ErrInvalidID for consistent error checking.
	ErrInvalidID = fmt.Errorf("postbox: %w", store.ErrInvalidID)

	// ErrInvalidIdentity is returned when the client identity is missing an
	// owner id or a well-formed owner address.
	ErrInvalidIdentity = errors.New("postbox: invalid identity")

	// ErrAlreadyInTrash is returned by the store when soft-deleting a
	// trashed message; the mailbox layer escalates it to a permanent
	// delete. Wraps store.ErrAlreadyInTrash.
	ErrAlreadyInTrash = fmt.Errorf("postbox: %w", store.ErrAlreadyInTrash)

	// ErrEmptySearchQuery is returned for empty or whitespace-only search
	// queries. A validation failure, not an empty result.
	ErrEmptySearchQuery = fmt.Errorf("postbox: %w", store.ErrEmptyQuery)

	// ErrAttachmentStoreNotConfigured is returned when attachment upload or
	// retrieval is attempted without an attachment file store.
	ErrAttachmentStoreNotConfigured = errors.New("postbox: attachment store not configured")
)

// ValidationError provides details about a validation failure. It reports
// which constraint failed without leaking whether a referenced entity
// exists under another account.
type ValidationError struct {
	Field   string // The field that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("postbox: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// invalidField is shorthand for building a ValidationError.
func invalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DeliveryError wraps a failure reported by the outbound delivery
// collaborator. The finalize transition did not occur; any existing draft
// is untouched and the send can be retried.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("postbox: delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return ErrDeliveryFailed
}

// ThreadSyncError is a reconciliation error: the message was persisted but
// the conversation side-effect could not be applied even after retries.
// The message exists; the conversation's count and activity lag by one.
type ThreadSyncError struct {
	MessageID string
	ThreadID  string
	Err       error
}

func (e *ThreadSyncError) Error() string {
	return fmt.Sprintf("postbox: message %s sent but conversation %s not updated: %v",
		e.MessageID, e.ThreadID, e.Err)
}

func (e *ThreadSyncError) Unwrap() error {
	return e.Err
}

// EventPublishError is returned when event publishing fails but the
// underlying operation succeeded. Only surfaced when event errors are
// configured as fatal.
type EventPublishError struct {
	EventName string
	Err       error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("postbox: operation succeeded but publishing %s failed: %v", e.EventName, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// mapStoreError lifts store sentinels onto package sentinels so callers
// can match with errors.Is against the postbox-level errors alone. The
// package sentinels wrap their store counterparts, so store-level checks
// keep working on the mapped error. Unrecognized errors pass through.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicateName):
		return ErrConflict
	case errors.Is(err, store.ErrAlreadyInTrash):
		return ErrAlreadyInTrash
	case errors.Is(err, store.ErrNotConnected):
		return ErrNotConnected
	case errors.Is(err, store.ErrInvalidID):
		return ErrInvalidID
	case errors.Is(err, store.ErrEmptyQuery):
		return ErrEmptySearchQuery
	}
	return err
}

// IsRetryableError determines if an error is retryable.
// Returns true for temporary/transient errors, false for permanent errors.
// Handles both postbox-level and store-level errors.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Permanent errors that should not be retried.
	permanent := []error{
		ErrNotFound,
		ErrValidation,
		ErrConflict,
		ErrInvalidID,
		ErrInvalidIdentity,
		ErrAlreadyInTrash,
		ErrStoreRequired,
		ErrDelivererRequired,
		store.ErrNotFound,
		store.ErrInvalidID,
		store.ErrDuplicateName,
		store.ErrDuplicateEntry,
		store.ErrAlreadyInTrash,
		store.ErrNotDraft,
		store.ErrInvalidFolder,
		store.ErrEmptyQuery,
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return false
		}
	}

	// Known transient conditions.
	retryable := []error{
		ErrNotConnected,
		ErrDeliveryFailed,
		store.ErrNotConnected,
		store.ErrTransactionFailed,
	}
	for _, r := range retryable {
		if errors.Is(err, r) {
			return true
		}
	}

	// Unknown errors default to retryable: they are most likely transient
	// network or timeout faults.
	return true
}

// IsValidationError reports whether err is a validation failure and, when
// it carries field detail, returns it.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	if errors.Is(err, ErrValidation) {
		return nil, true
	}
	return nil, false
}
