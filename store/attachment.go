package store

import (
	"context"
	"io"
)

// AttachmentFileStore stores attachment content addressed by locator.
// Message records carry only Attachment descriptors; the bytes live behind
// this interface (S3, GCS, or any blob store).
type AttachmentFileStore interface {
	// Put stores content and returns the locator to embed in the
	// attachment descriptor. Implementations derive the locator from a
	// content hash so identical payloads deduplicate.
	Put(ctx context.Context, filename, mimeType string, r io.Reader) (locator string, size int64, err error)

	// Open returns a reader for the stored content.
	// Returns ErrNotFound if the locator does not resolve.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the stored content. Deleting an unknown locator is not
	// an error.
	Delete(ctx context.Context, locator string) error
}
