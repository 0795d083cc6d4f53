package postbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/absurdlabs/postbox/store"
)

// memoryAttachmentStore is a map-backed AttachmentFileStore for tests.
type memoryAttachmentStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	next  int
}

func newMemoryAttachmentStore() *memoryAttachmentStore {
	return &memoryAttachmentStore{blobs: make(map[string][]byte)}
}

func (s *memoryAttachmentStore) Put(_ context.Context, filename, _ string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	locator := fmt.Sprintf("mem://%d/%s", s.next, filename)
	s.blobs[locator] = data
	return locator, int64(len(data)), nil
}

func (s *memoryAttachmentStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[locator]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryAttachmentStore) Delete(_ context.Context, locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, locator)
	return nil
}

func TestAttachmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	files := newMemoryAttachmentStore()
	mb, _ := newTestMailbox(t, WithAttachmentStore(files))

	att, err := mb.UploadAttachment(ctx, "report.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if att.Filename != "report.pdf" || att.MimeType != "application/pdf" {
		t.Errorf("descriptor: %+v", att)
	}
	if att.Size != int64(len("pdf bytes")) {
		t.Errorf("Size: got %d", att.Size)
	}
	if att.Locator == "" {
		t.Fatal("Locator: got empty")
	}

	rc, err := mb.OpenAttachment(ctx, att)
	if err != nil {
		t.Fatalf("OpenAttachment: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read attachment: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Errorf("content: got %q", data)
	}
}

func TestAttachmentSizeLimit(t *testing.T) {
	ctx := context.Background()
	files := newMemoryAttachmentStore()
	mb, _ := newTestMailbox(t, WithAttachmentStore(files), WithMaxAttachmentSize(8))

	_, err := mb.UploadAttachment(ctx, "big.bin", "application/octet-stream", strings.NewReader("way too many bytes"))
	if _, ok := IsValidationError(err); !ok {
		t.Fatalf("got %v, want validation error", err)
	}
	// The over-limit blob is not retained.
	if len(files.blobs) != 0 {
		t.Errorf("blobs after rejected upload: got %d, want 0", len(files.blobs))
	}
}

func TestAttachmentStoreNotConfigured(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t)

	if _, err := mb.UploadAttachment(ctx, "a.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, ErrAttachmentStoreNotConfigured) {
		t.Errorf("upload: got %v, want ErrAttachmentStoreNotConfigured", err)
	}
	if _, err := mb.OpenAttachment(ctx, Attachment{Locator: "mem://1/a.txt"}); !errors.Is(err, ErrAttachmentStoreNotConfigured) {
		t.Errorf("open: got %v, want ErrAttachmentStoreNotConfigured", err)
	}
}

func TestOpenAttachmentUnknownLocator(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t, WithAttachmentStore(newMemoryAttachmentStore()))

	if _, err := mb.OpenAttachment(ctx, Attachment{Locator: "mem://404/missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := mb.OpenAttachment(ctx, Attachment{}); err == nil {
		t.Error("empty locator: got nil error")
	}
}

func TestUploadAttachmentRequiresFilename(t *testing.T) {
	ctx := context.Background()
	mb, _ := newTestMailbox(t, WithAttachmentStore(newMemoryAttachmentStore()))

	if _, err := mb.UploadAttachment(ctx, "", "text/plain", strings.NewReader("x")); err == nil {
		t.Error("empty filename: got nil error")
	}
}
