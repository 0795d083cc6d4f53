package postbox

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
)

// UploadAttachment stores attachment content in the configured attachment
// file store and returns the descriptor to embed in a draft or send
// request. Content larger than the configured attachment size limit is
// rejected and not retained.
func (m *clientMailbox) UploadAttachment(ctx context.Context, filename, mimeType string, r io.Reader) (Attachment, error) {
	if err := m.checkAccess(); err != nil {
		return Attachment{}, err
	}
	if m.service.attachments == nil {
		return Attachment{}, ErrAttachmentStoreNotConfigured
	}
	if filename == "" {
		return Attachment{}, invalidField("filename", "filename is required")
	}

	limit := m.service.opts.getLimits().MaxAttachmentSize

	ctx, endSpan := m.service.otel.startSpan(ctx, "postbox.UploadAttachment",
		attribute.String("filename", filename))

	// The extra byte lets an over-limit upload be detected from the
	// stored size alone.
	locator, size, err := m.service.attachments.Put(ctx, filename, mimeType, io.LimitReader(r, limit+1))
	if err != nil {
		endSpan(err)
		return Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	if size > limit {
		if derr := m.service.attachments.Delete(ctx, locator); derr != nil {
			m.service.logger.Warn("failed to remove over-limit attachment",
				"locator", locator, "error", derr)
		}
		err = invalidField("attachment", fmt.Sprintf("attachment too large (max %d bytes)", limit))
		endSpan(err)
		return Attachment{}, err
	}
	endSpan(nil)

	return Attachment{
		Filename: filename,
		Locator:  locator,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

// OpenAttachment returns a reader for previously stored attachment
// content. The caller must close it.
func (m *clientMailbox) OpenAttachment(ctx context.Context, att Attachment) (io.ReadCloser, error) {
	if err := m.checkAccess(); err != nil {
		return nil, err
	}
	if m.service.attachments == nil {
		return nil, ErrAttachmentStoreNotConfigured
	}
	if att.Locator == "" {
		return nil, invalidField("locator", "locator is required")
	}

	rc, err := m.service.attachments.Open(ctx, att.Locator)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", mapStoreError(err))
	}
	return rc, nil
}
