// Package gcs provides a Google Cloud Storage-based attachment file store.
//
// Locators are derived from a BLAKE2b hash of the content, so identical
// payloads map to the same object and deduplicate.
package gcs

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/api/option"

	"github.com/absurdlabs/postbox/store"
)

// Store implements store.AttachmentFileStore using Google Cloud Storage.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Ensure Store implements AttachmentFileStore.
var _ store.AttachmentFileStore = (*Store)(nil)

// New creates a new GCS attachment store.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := &options{
		prefix: "attachments",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	clientOpts, err := buildClientOptions(o)
	if err != nil {
		return nil, fmt.Errorf("build client options: %w", err)
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &Store{
		client: client,
		bucket: o.bucket,
		prefix: o.prefix,
		logger: o.logger,
	}, nil
}

// buildClientOptions builds GCS client options based on authentication
// settings.
func buildClientOptions(o *options) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	switch {
	case o.credentialsJSON != nil:
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
			CredentialsJSON: o.credentialsJSON,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials from json: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))

	case o.credentialsFile != "":
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
			CredentialsFile: o.credentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("detect credentials from file: %w", err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))

	default:
		// Application Default Credentials: GOOGLE_APPLICATION_CREDENTIALS,
		// gcloud user credentials, Workload Identity on GKE, or the
		// Compute Engine default service account.
	}

	if o.endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.endpoint))
	}

	return opts, nil
}

// Put stores the content under a content-hash key and returns the locator.
// Attachments are bounded by the mailbox upload limit, so the content is
// buffered to hash it before the upload.
func (s *Store) Put(ctx context.Context, filename, mimeType string, r io.Reader) (string, int64, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", 0, fmt.Errorf("read attachment content: %w", err)
	}

	sum := blake2b.Sum256(buf.Bytes())
	key := s.contentKey(hex.EncodeToString(sum[:]))
	size := int64(buf.Len())

	obj := s.client.Bucket(s.bucket).Object(key)
	w := obj.NewWriter(ctx)
	w.ContentType = mimeType
	if filename != "" {
		w.Metadata = map[string]string{"filename": filename}
	}

	if _, err := buf.WriteTo(w); err != nil {
		_ = w.Close()
		return "", 0, fmt.Errorf("copy content to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("close gcs writer: %w", err)
	}

	s.logger.Debug("uploaded attachment to gcs", "bucket", s.bucket, "key", key)
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), size, nil
}

// Open returns a reader for the stored content.
func (s *Store) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, key, err := parseGCSURI(locator)
	if err != nil {
		return nil, err
	}

	obj := s.client.Bucket(bucket).Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("create gcs reader: %w", err)
	}

	return r, nil
}

// Delete removes the stored content. Deleting an unknown locator is not an
// error.
func (s *Store) Delete(ctx context.Context, locator string) error {
	bucket, key, err := parseGCSURI(locator)
	if err != nil {
		return err
	}

	obj := s.client.Bucket(bucket).Object(key)
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("delete object from gcs: %w", err)
	}

	s.logger.Debug("deleted attachment from gcs", "bucket", bucket, "key", key)
	return nil
}

// Close closes the GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}

// contentKey fans the hash out over a two-character shard prefix.
func (s *Store) contentKey(digest string) string {
	return path.Join(s.prefix, digest[:2], digest)
}

// parseGCSURI parses a gs:// URI into bucket and key.
func parseGCSURI(uri string) (bucket, key string, err error) {
	if len(uri) < 6 || uri[:5] != "gs://" {
		return "", "", fmt.Errorf("invalid gcs uri: %s", uri)
	}

	rest := uri[5:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("invalid gcs uri (no key): %s", uri)
}
