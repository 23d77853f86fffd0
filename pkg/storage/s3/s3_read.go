package s3

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

func (s *S3Storage) Stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return &storage.FileInfo{Path: "", IsDir: true, Permissions: acl.PermissionAll}, nil
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
	})
	if err == nil {
		return s.fileInfoFromHead(clean, head), nil
	}
	if !isNotFoundError(err) {
		return nil, mapS3Error(clean, err)
	}

	return s.statDir(ctx, clean)
}

// statDir builds directory info for a path that has no file object. The
// marker object supplies the modification time when it exists.
func (s *S3Storage) statDir(ctx context.Context, clean string) (*storage.FileInfo, error) {
	info := &storage.FileInfo{
		Name:        acl.BaseName(clean),
		Path:        clean,
		IsDir:       true,
		Permissions: acl.PermissionAll,
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(clean)),
	})
	if err == nil {
		info.MTime = objectMTime(head.Metadata, head.LastModified)
		return info, nil
	}
	if !isNotFoundError(err) {
		return nil, mapS3Error(clean, err)
	}

	// No marker. The directory still exists if anything lives below it.
	ok, err := s.hasChildren(ctx, clean)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.NewNotFoundError(clean)
	}
	return info, nil
}

// hasChildren reports whether any object key lives below the directory path.
func (s *S3Storage) hasChildren(ctx context.Context, clean string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.dirKey(clean)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, mapS3Error(clean, err)
	}
	return len(out.Contents) > 0, nil
}

// dirExists reports whether path names a directory (root, marker object, or
// any key below it).
func (s *S3Storage) dirExists(ctx context.Context, clean string) (bool, error) {
	if clean == "" {
		return true, nil
	}
	_, err := s.statDir(ctx, clean)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFoundError(err) {
		return false, nil
	}
	return false, err
}

// fileExists reports whether an object exists at the file key for path.
func (s *S3Storage) fileExists(ctx context.Context, clean string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFoundError(err) {
		return false, nil
	}
	return false, mapS3Error(clean, err)
}

func (s *S3Storage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return true, nil
	}
	if ok, err := s.fileExists(ctx, clean); err != nil || ok {
		return ok, err
	}
	return s.dirExists(ctx, clean)
}

func (s *S3Storage) IsDir(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.dirExists(ctx, acl.CleanPath(path))
}

func (s *S3Storage) IsFile(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return false, nil
	}
	return s.fileExists(ctx, clean)
}

func (s *S3Storage) Size(ctx context.Context, path string) (int64, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *S3Storage) MTime(ctx context.Context, path string) (time.Time, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return info.MTime, nil
}

func (s *S3Storage) ETag(ctx context.Context, path string) (string, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}

func (s *S3Storage) Hash(ctx context.Context, algo, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var h hash.Hash
	switch algo {
	case storage.HashMD5:
		h = md5.New()
	case storage.HashSHA1:
		h = sha1.New()
	case storage.HashSHA256:
		h = sha256.New()
	default:
		return "", storage.NewInvalidArgumentError(fmt.Sprintf("unsupported hash algorithm %q", algo))
	}

	r, err := s.OpenRead(ctx, path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	if _, err := io.Copy(h, r); err != nil {
		return "", storage.NewIOError(acl.CleanPath(path), err.Error())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *S3Storage) MimeType(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := acl.CleanPath(path)

	// A ranged read keeps detection cheap for large objects.
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
		Range:  aws.String("bytes=0-3071"),
	})
	if err != nil {
		if isNotFoundError(err) {
			if ok, derr := s.dirExists(ctx, clean); derr == nil && ok {
				return "", storage.NewIsDirectoryError(clean)
			}
		}
		return "", mapS3Error(clean, err)
	}
	defer out.Body.Close()

	mt, err := mimetype.DetectReader(out.Body)
	if err != nil {
		return "", storage.NewIOError(clean, err.Error())
	}
	return mt.String(), nil
}

func (s *S3Storage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	r, err := s.OpenRead(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, storage.NewIOError(acl.CleanPath(path), err.Error())
	}
	return data, nil
}

func (s *S3Storage) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return nil, storage.NewIsDirectoryError(clean)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
	})
	if err != nil {
		if isNotFoundError(err) {
			if ok, derr := s.dirExists(ctx, clean); derr == nil && ok {
				return nil, storage.NewIsDirectoryError(clean)
			}
		}
		return nil, mapS3Error(clean, err)
	}
	return out.Body, nil
}

// DirectDownloadURL returns a presigned GET URL so clients can fetch the
// object without going through this process.
func (s *S3Storage) DirectDownloadURL(ctx context.Context, path string, validFor time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := acl.CleanPath(path)
	if ok, err := s.fileExists(ctx, clean); err != nil {
		return "", err
	} else if !ok {
		return "", storage.NewNotFoundError(clean)
	}

	if validFor <= 0 {
		validFor = 15 * time.Minute
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
	}, s3.WithPresignExpires(validFor))
	if err != nil {
		return "", mapS3Error(clean, err)
	}
	return req.URL, nil
}

// ============================================================================
// Directory listing
// ============================================================================

func (s *S3Storage) ListDir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	if err := s.requireDir(ctx, clean); err != nil {
		return nil, err
	}

	prefix := s.keyPrefix
	if clean != "" {
		prefix = s.dirKey(clean)
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(clean, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue // the directory's own marker
			}
			names = append(names, acl.BaseName(s.pathFromKey(key)))
		}
		for _, cp := range page.CommonPrefixes {
			names = append(names, acl.BaseName(s.pathFromKey(aws.ToString(cp.Prefix))))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Storage) ReadDir(ctx context.Context, path string) (storage.DirScanner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	if err := s.requireDir(ctx, clean); err != nil {
		return nil, err
	}

	prefix := s.keyPrefix
	if clean != "" {
		prefix = s.dirKey(clean)
	}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	return &dirScanner{ctx: ctx, store: s, dir: clean, prefix: prefix, paginator: paginator}, nil
}

// requireDir returns nil when path is a directory, NotDirectory when it is a
// file, and NotFound otherwise.
func (s *S3Storage) requireDir(ctx context.Context, clean string) error {
	ok, err := s.dirExists(ctx, clean)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if isFile, err := s.fileExists(ctx, clean); err != nil {
		return err
	} else if isFile {
		return storage.NewNotDirectoryError(clean)
	}
	return storage.NewNotFoundError(clean)
}

// dirScanner walks list pages lazily. It is bound to the context passed to
// ReadDir; page fetches stop when that context is cancelled.
type dirScanner struct {
	ctx       context.Context
	store     *S3Storage
	dir       string
	prefix    string
	paginator *s3.ListObjectsV2Paginator
	queue     []*storage.FileInfo
	current   *storage.FileInfo
	err       error
}

func (sc *dirScanner) Next() bool {
	if sc.err != nil {
		return false
	}
	for len(sc.queue) == 0 {
		if !sc.paginator.HasMorePages() {
			return false
		}
		page, err := sc.paginator.NextPage(sc.ctx)
		if err != nil {
			sc.err = mapS3Error(sc.dir, err)
			return false
		}
		for _, cp := range page.CommonPrefixes {
			p := sc.store.pathFromKey(aws.ToString(cp.Prefix))
			sc.queue = append(sc.queue, &storage.FileInfo{
				Name:        acl.BaseName(p),
				Path:        p,
				IsDir:       true,
				Permissions: acl.PermissionAll,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == sc.prefix {
				continue
			}
			p := sc.store.pathFromKey(key)
			sc.queue = append(sc.queue, &storage.FileInfo{
				Name:        acl.BaseName(p),
				Path:        p,
				Size:        aws.ToInt64(obj.Size),
				MTime:       aws.ToTime(obj.LastModified),
				ETag:        trimETag(aws.ToString(obj.ETag)),
				Permissions: acl.PermissionAll,
			})
		}
	}
	sc.current = sc.queue[0]
	sc.queue = sc.queue[1:]
	return true
}

func (sc *dirScanner) Entry() *storage.FileInfo {
	return sc.current
}

func (sc *dirScanner) Err() error {
	return sc.err
}

func (sc *dirScanner) Close() error {
	sc.queue = nil
	return nil
}

// ============================================================================
// Permissions and capacity
// ============================================================================

// Permissions reports full control for every existing path. Object stores
// have no per-object mode bits for the configured credentials.
func (s *S3Storage) Permissions(ctx context.Context, path string) (acl.Permissions, error) {
	if err := ctx.Err(); err != nil {
		return acl.PermissionNone, err
	}
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return acl.PermissionNone, err
	}
	if !ok {
		return acl.PermissionNone, storage.NewNotFoundError(acl.CleanPath(path))
	}
	return acl.PermissionAll, nil
}

// FreeSpace reports the bucket as effectively unlimited.
func (s *S3Storage) FreeSpace(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return math.MaxInt64, nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *S3Storage) fileInfoFromHead(clean string, head *s3.HeadObjectOutput) *storage.FileInfo {
	return &storage.FileInfo{
		Name:        acl.BaseName(clean),
		Path:        clean,
		Size:        aws.ToInt64(head.ContentLength),
		MTime:       objectMTime(head.Metadata, head.LastModified),
		ETag:        trimETag(aws.ToString(head.ETag)),
		MimeType:    aws.ToString(head.ContentType),
		Permissions: acl.PermissionAll,
	}
}

// objectMTime prefers the explicit mtime stored in object metadata over the
// upload timestamp.
func objectMTime(metadata map[string]string, lastModified *time.Time) time.Time {
	if v, ok := metadata[mtimeMetadataKey]; ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	}
	return aws.ToTime(lastModified)
}

func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
