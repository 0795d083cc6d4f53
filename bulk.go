package postbox

import (
	"context"
	"fmt"
)

// OperationResult is the outcome of a single item within a bulk operation.
type OperationResult struct {
	// ID is the message id that was processed.
	ID string
	// Success indicates whether the operation succeeded.
	Success bool
	// Error holds the failure, nil on success.
	Error error
	// Message is the updated message for bulk updates, nil otherwise.
	Message *Message
}

// BulkResult is the outcome of a bulk operation. Results are in input
// order; partial failure is reported per item rather than aborting the
// whole batch.
type BulkResult struct {
	Results []OperationResult
}

// SuccessCount returns the number of successful operations.
func (r *BulkResult) SuccessCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, res := range r.Results {
		if res.Success {
			count++
		}
	}
	return count
}

// FailureCount returns the number of failed operations.
func (r *BulkResult) FailureCount() int {
	if r == nil {
		return 0
	}
	return len(r.Results) - r.SuccessCount()
}

// HasFailures reports whether any operation failed.
func (r *BulkResult) HasFailures() bool {
	return r.FailureCount() > 0
}

// FailedIDs returns the ids of items that failed.
func (r *BulkResult) FailedIDs() []string {
	if r == nil {
		return nil
	}
	var ids []string
	for _, res := range r.Results {
		if !res.Success {
			ids = append(ids, res.ID)
		}
	}
	return ids
}

// Err returns a BulkOperationError when any item failed, nil otherwise.
func (r *BulkResult) Err() error {
	if r == nil || !r.HasFailures() {
		return nil
	}
	return &BulkOperationError{Result: r}
}

// BulkOperationError reports partial failure of a bulk operation.
type BulkOperationError struct {
	Result *BulkResult
}

func (e *BulkOperationError) Error() string {
	return fmt.Sprintf("postbox: bulk operation failed for %d of %d items",
		e.Result.FailureCount(), len(e.Result.Results))
}

// Unwrap returns the individual errors from failed operations.
func (e *BulkOperationError) Unwrap() []error {
	var errs []error
	for _, r := range e.Result.Results {
		if r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return errs
}

// BulkUpdate applies the same sparse update to every listed message.
// Items fail independently; inspect the result for partial failure.
func (m *clientMailbox) BulkUpdate(ctx context.Context, messageIDs []string, upd MessageUpdate) (*BulkResult, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	result := &BulkResult{Results: make([]OperationResult, 0, len(messageIDs))}
	for _, id := range messageIDs {
		msg, err := m.Update(ctx, id, upd)
		result.Results = append(result.Results, OperationResult{
			ID:      id,
			Success: err == nil,
			Error:   err,
			Message: msg,
		})
	}
	return result, nil
}

// BulkDelete soft-deletes every listed message, with the same escalation
// policy as Delete. Items fail independently.
func (m *clientMailbox) BulkDelete(ctx context.Context, messageIDs []string) (*BulkResult, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	result := &BulkResult{Results: make([]OperationResult, 0, len(messageIDs))}
	for _, id := range messageIDs {
		err := m.Delete(ctx, id)
		result.Results = append(result.Results, OperationResult{
			ID:      id,
			Success: err == nil,
			Error:   err,
		})
	}
	return result, nil
}
