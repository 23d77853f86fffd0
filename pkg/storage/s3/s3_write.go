package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// deleteBatchSize is the DeleteObjects limit imposed by the S3 API.
const deleteBatchSize = 1000

func (s *S3Storage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewIsDirectoryError(clean)
	}
	if ok, err := s.dirExists(ctx, clean); err != nil {
		return err
	} else if ok {
		return storage.NewIsDirectoryError(clean)
	}
	if err := s.requireParent(ctx, clean); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
		Body:   bytes.NewReader(data),
	})
	return mapS3Error(clean, err)
}

func (s *S3Storage) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return nil, storage.NewIsDirectoryError(clean)
	}
	if ok, err := s.dirExists(ctx, clean); err != nil {
		return nil, err
	} else if ok {
		return nil, storage.NewIsDirectoryError(clean)
	}
	if err := s.requireParent(ctx, clean); err != nil {
		return nil, err
	}
	return &objectWriter{ctx: ctx, store: s, path: clean}, nil
}

// objectWriter buffers writes in memory and uploads the object on Close.
// Nothing is visible in the bucket until Close succeeds.
type objectWriter struct {
	ctx   context.Context
	store *S3Storage
	path  string
	buf   bytes.Buffer
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	_, err := w.store.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.store.bucket),
		Key:    aws.String(w.store.fileKey(w.path)),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	return mapS3Error(w.path, err)
}

func (s *S3Storage) Touch(ctx context.Context, path string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewIsDirectoryError(clean)
	}
	if mtime.IsZero() {
		mtime = time.Now()
	}
	meta := map[string]string{
		mtimeMetadataKey: strconv.FormatInt(mtime.Unix(), 10),
	}

	if ok, err := s.fileExists(ctx, clean); err != nil {
		return err
	} else if ok {
		// Copy onto itself with replaced metadata. S3 has no way to update
		// metadata in place.
		key := s.fileKey(clean)
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(s.bucket),
			CopySource:        aws.String(s.copySource(key)),
			Key:               aws.String(key),
			Metadata:          meta,
			MetadataDirective: types.MetadataDirectiveReplace,
		})
		return mapS3Error(clean, err)
	}

	if ok, err := s.dirExists(ctx, clean); err != nil {
		return err
	} else if ok {
		return storage.NewIsDirectoryError(clean)
	}

	if err := s.requireParent(ctx, clean); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.fileKey(clean)),
		Body:     bytes.NewReader(nil),
		Metadata: meta,
	})
	return mapS3Error(clean, err)
}

func (s *S3Storage) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewAlreadyExistsError(clean)
	}
	if ok, err := s.Exists(ctx, clean); err != nil {
		return err
	} else if ok {
		return storage.NewAlreadyExistsError(clean)
	}
	if err := s.requireParent(ctx, clean); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(clean)),
		Body:   bytes.NewReader(nil),
	})
	return mapS3Error(clean, err)
}

func (s *S3Storage) Rmdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewInvalidArgumentError("cannot remove the root directory")
	}
	if ok, err := s.dirExists(ctx, clean); err != nil {
		return err
	} else if !ok {
		if isFile, err := s.fileExists(ctx, clean); err != nil {
			return err
		} else if isFile {
			return storage.NewNotDirectoryError(clean)
		}
		return storage.NewNotFoundError(clean)
	}

	keys, err := s.listTreeKeys(ctx, clean)
	if err != nil {
		return err
	}
	return s.deleteKeys(ctx, clean, keys)
}

func (s *S3Storage) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if ok, err := s.fileExists(ctx, clean); err != nil {
		return err
	} else if !ok {
		if isDir, err := s.dirExists(ctx, clean); err != nil {
			return err
		} else if isDir {
			return storage.NewIsDirectoryError(clean)
		}
		return storage.NewNotFoundError(clean)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(clean)),
	})
	return mapS3Error(clean, err)
}

func (s *S3Storage) Rename(ctx context.Context, source, target string) error {
	return s.transfer(ctx, source, target, true)
}

func (s *S3Storage) Copy(ctx context.Context, source, target string) error {
	return s.transfer(ctx, source, target, false)
}

// transfer implements Rename and Copy as server-side object copies. The
// operation is not atomic: concurrent readers may observe partial trees.
func (s *S3Storage) transfer(ctx context.Context, source, target string, deleteSource bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := acl.CleanPath(source)
	tgt := acl.CleanPath(target)
	if src == "" || tgt == "" {
		return storage.NewInvalidArgumentError("cannot move the root directory")
	}
	if src == tgt || acl.IsDescendant(src, tgt) {
		return storage.NewInvalidArgumentError(fmt.Sprintf("cannot move %q into itself", src))
	}

	srcIsFile, err := s.fileExists(ctx, src)
	if err != nil {
		return err
	}
	srcIsDir, err := s.dirExists(ctx, src)
	if err != nil {
		return err
	}
	if !srcIsFile && !srcIsDir {
		return storage.NewNotFoundError(src)
	}
	if err := s.requireParent(ctx, tgt); err != nil {
		return err
	}

	var moved []string
	if srcIsFile {
		srcKey := s.fileKey(src)
		if err := s.copyKey(ctx, srcKey, s.fileKey(tgt), tgt); err != nil {
			return err
		}
		moved = append(moved, srcKey)
	}
	if srcIsDir {
		keys, err := s.listTreeKeys(ctx, src)
		if err != nil {
			return err
		}
		srcPrefix := s.dirKey(src)
		tgtPrefix := s.dirKey(tgt)
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			rewritten := tgtPrefix + strings.TrimPrefix(key, srcPrefix)
			if err := s.copyKey(ctx, key, rewritten, tgt); err != nil {
				return err
			}
		}
		moved = append(moved, keys...)
	}

	if !deleteSource {
		return nil
	}
	return s.deleteKeys(ctx, src, moved)
}

// ============================================================================
// Helpers
// ============================================================================

// requireParent returns NotFound unless the parent directory of clean exists.
func (s *S3Storage) requireParent(ctx context.Context, clean string) error {
	parent := acl.ParentPath(clean)
	ok, err := s.dirExists(ctx, parent)
	if err != nil {
		return err
	}
	if !ok {
		return storage.NewNotFoundError(parent)
	}
	return nil
}

// listTreeKeys returns every object key below the directory, marker included.
func (s *S3Storage) listTreeKeys(ctx context.Context, clean string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.dirKey(clean)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(clean, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *S3Storage) copyKey(ctx context.Context, srcKey, tgtKey, logical string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.copySource(srcKey)),
		Key:        aws.String(tgtKey),
	})
	return mapS3Error(logical, err)
}

// deleteKeys removes keys in DeleteObjects batches.
func (s *S3Storage) deleteKeys(ctx context.Context, logical string, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+deleteBatchSize, len(keys))
		batch := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			batch = append(batch, types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return mapS3Error(logical, err)
		}
	}
	return nil
}
