// Package s3 implements a Storage backend on Amazon S3 or S3-compatible
// object stores.
//
// Abstract paths map directly onto object keys (with an optional prefix),
// so the bucket mirrors the tree and stays readable with plain S3 tooling.
// Directories are zero-byte marker objects whose key ends in "/"; a path is
// also considered a directory when any object exists below it.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// S3Storage implements storage.Storage against a single bucket.
//
// Concurrent use is safe. Writes to the same key follow S3's last-write-wins
// model, and Rename/Copy of directories are not atomic: a concurrent reader
// may observe a partially moved tree.
type S3Storage struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	keyPrefix string
}

var _ storage.Storage = (*S3Storage)(nil)

// Config contains the settings for an S3 backend.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, for sharing a
	// bucket between several trees. Example: "aclgate/data/".
	KeyPrefix string
}

// NewClientFromConfig creates an S3 client from flat configuration values.
// This is a helper for wiring clients from YAML configuration.
func NewClientFromConfig(
	ctx context.Context,
	endpoint,
	region,
	accessKeyID,
	secretAccessKey string,
	forcePathStyle bool,
) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"", // session token (empty for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = forcePathStyle
	})

	return client, nil
}

// New creates an S3 backend and verifies bucket access. The bucket must
// already exist; this function does not create it.
func New(ctx context.Context, cfg Config) (*S3Storage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, storage.NewInvalidArgumentError("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, storage.NewInvalidArgumentError("bucket name is required")
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, storage.NewIOError("", fmt.Sprintf("failed to access bucket %q: %v", cfg.Bucket, err))
	}

	return &S3Storage{
		client:    cfg.Client,
		presign:   s3.NewPresignClient(cfg.Client),
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// mtimeMetadataKey carries an explicit modification time, since S3 does not
// let clients set LastModified. The SDK lowercases metadata keys.
const mtimeMetadataKey = "mtime"

// ============================================================================
// Key mapping
// ============================================================================

// fileKey returns the object key holding the file at path.
func (s *S3Storage) fileKey(path string) string {
	return s.keyPrefix + acl.CleanPath(path)
}

// dirKey returns the marker key for the directory at path. The root has no
// marker; it always exists.
func (s *S3Storage) dirKey(path string) string {
	return s.keyPrefix + acl.CleanPath(path) + "/"
}

// pathFromKey converts an object key back to an abstract path.
func (s *S3Storage) pathFromKey(key string) string {
	return acl.CleanPath(strings.TrimPrefix(key, s.keyPrefix))
}

// copySource builds the URL-encoded CopySource value for a key. The encoding
// must keep the slashes that separate path segments.
func (s *S3Storage) copySource(key string) string {
	u := url.URL{Path: s.bucket + "/" + key}
	return u.EscapedPath()
}

// ============================================================================
// Error classification
// ============================================================================

// isNotFoundError returns true if the error indicates the object doesn't exist.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NoSuchKey" || code == "NotFound" || code == "404" {
			return true
		}
	}

	errStr := err.Error()
	return strings.Contains(errStr, "StatusCode: 404") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "NoSuchKey")
}

// isAccessDeniedError returns true if the error indicates missing bucket or
// object permissions.
func isAccessDeniedError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "AccessDenied" || code == "Forbidden"
	}
	return false
}

// mapS3Error converts SDK errors into the shared storage error vocabulary.
func mapS3Error(path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isNotFoundError(err):
		return storage.NewNotFoundError(path)
	case isAccessDeniedError(err):
		return storage.NewPermissionDeniedError(path)
	default:
		return storage.NewIOError(path, err.Error())
	}
}
