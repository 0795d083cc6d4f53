// Package s3 provides an S3-based attachment file store.
//
// Locators are derived from a BLAKE2b hash of the content, so identical
// payloads map to the same object and deduplicate.
package s3

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/crypto/blake2b"

	"github.com/absurdlabs/postbox/store"
)

// Store implements store.AttachmentFileStore using AWS S3.
type Store struct {
	client *s3.Client
	tm     *transfermanager.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Ensure Store implements AttachmentFileStore.
var _ store.AttachmentFileStore = (*Store)(nil)

// New creates a new S3 attachment store.
// The context is used for AWS credential loading and configuration.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := &options{
		region: "us-east-1",
		prefix: "attachments",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	awsCfg, err := buildAWSConfig(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("build aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
		if o.endpoint != "" {
			opts.BaseEndpoint = aws.String(o.endpoint)
			opts.UsePathStyle = o.usePathStyle
		}
	})

	return &Store{
		client: client,
		tm:     transfermanager.New(client),
		bucket: o.bucket,
		prefix: o.prefix,
		logger: o.logger,
	}, nil
}

// buildAWSConfig builds AWS config based on authentication options.
func buildAWSConfig(ctx context.Context, o *options) (aws.Config, error) {
	var optFns []func(*config.LoadOptions) error

	optFns = append(optFns, config.WithRegion(o.region))

	switch {
	case o.accessKey != "" && o.secretKey != "":
		creds := credentials.NewStaticCredentialsProvider(o.accessKey, o.secretKey, o.sessionToken)
		optFns = append(optFns, config.WithCredentialsProvider(creds))

	case o.roleARN != "":
		baseCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(o.region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("load base config for role: %w", err)
		}
		stsCreds := assumeRoleCredentials(baseCfg, o.roleARN, o.roleSessionName, o.externalID)
		optFns = append(optFns, config.WithCredentialsProvider(stsCreds))

	default:
		// Default credential chain: env vars, shared config, EC2/ECS roles,
		// IRSA on EKS. Nothing to configure.
	}

	return config.LoadDefaultConfig(ctx, optFns...)
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

	input := &transfermanager.UploadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}
	if filename != "" {
		input.ContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}

	if _, err := s.tm.UploadObject(ctx, input); err != nil {
		return "", 0, fmt.Errorf("upload to s3: %w", err)
	}

	s.logger.Debug("uploaded attachment to s3", "bucket", s.bucket, "key", key)
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), int64(buf.Len()), nil
}

// Open returns a reader for the stored content.
func (s *Store) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URI(locator)
	if err != nil {
		return nil, err
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get object from s3: %w", err)
	}

	return output.Body, nil
}

// Delete removes the stored content. S3 deletes are idempotent, so an
// unknown locator is not an error.
func (s *Store) Delete(ctx context.Context, locator string) error {
	bucket, key, err := parseS3URI(locator)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object from s3: %w", err)
	}

	s.logger.Debug("deleted attachment from s3", "bucket", bucket, "key", key)
	return nil
}

// contentKey fans the hash out over a two-character shard prefix.
func (s *Store) contentKey(digest string) string {
	return path.Join(s.prefix, digest[:2], digest)
}

// parseS3URI parses an s3:// URI into bucket and key.
func parseS3URI(uri string) (bucket, key string, err error) {
	if len(uri) < 6 || uri[:5] != "s3://" {
		return "", "", fmt.Errorf("invalid s3 uri: %s", uri)
	}

	rest := uri[5:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], rest[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("invalid s3 uri (no key): %s", uri)
}
