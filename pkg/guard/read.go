package guard

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// Read-class operations. Denials answer with NotFound, or plain false for
// the boolean probes, never PermissionDenied.

func (g *GuardedStorage) Stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	effective, err := g.gate.EffectivePermissions(ctx, path)
	if err != nil {
		return nil, err
	}
	if effective == acl.PermissionNone {
		g.recordDenial("stat")
		return nil, storage.NewNotFoundError(path)
	}

	info, err := g.backend.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	rewritePermissions(info, effective)
	return info, nil
}

func (g *GuardedStorage) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := g.gate.canRead(ctx, path)
	if err != nil {
		return false, err
	}
	if !ok {
		g.recordDenial("exists")
		return false, nil
	}
	return g.backend.Exists(ctx, path)
}

func (g *GuardedStorage) IsDir(ctx context.Context, path string) (bool, error) {
	ok, err := g.gate.canRead(ctx, path)
	if err != nil {
		return false, err
	}
	if !ok {
		g.recordDenial("is_dir")
		return false, nil
	}
	return g.backend.IsDir(ctx, path)
}

func (g *GuardedStorage) IsFile(ctx context.Context, path string) (bool, error) {
	ok, err := g.gate.canRead(ctx, path)
	if err != nil {
		return false, err
	}
	if !ok {
		g.recordDenial("is_file")
		return false, nil
	}
	return g.backend.IsFile(ctx, path)
}

func (g *GuardedStorage) Size(ctx context.Context, path string) (int64, error) {
	if err := g.authorizeRead(ctx, "size", path); err != nil {
		return 0, err
	}
	return g.backend.Size(ctx, path)
}

func (g *GuardedStorage) MTime(ctx context.Context, path string) (time.Time, error) {
	if err := g.authorizeRead(ctx, "mtime", path); err != nil {
		return time.Time{}, err
	}
	return g.backend.MTime(ctx, path)
}

func (g *GuardedStorage) ETag(ctx context.Context, path string) (string, error) {
	if err := g.authorizeRead(ctx, "etag", path); err != nil {
		return "", err
	}
	return g.backend.ETag(ctx, path)
}

func (g *GuardedStorage) Hash(ctx context.Context, algo, path string) (string, error) {
	if err := g.authorizeRead(ctx, "hash", path); err != nil {
		return "", err
	}
	return g.backend.Hash(ctx, algo, path)
}

func (g *GuardedStorage) MimeType(ctx context.Context, path string) (string, error) {
	if err := g.authorizeRead(ctx, "mime_type", path); err != nil {
		return "", err
	}
	return g.backend.MimeType(ctx, path)
}

func (g *GuardedStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := g.authorizeRead(ctx, "read_file", path); err != nil {
		return nil, err
	}
	return g.backend.ReadFile(ctx, path)
}

func (g *GuardedStorage) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := g.authorizeRead(ctx, "open_read", path); err != nil {
		return nil, err
	}
	return g.backend.OpenRead(ctx, path)
}

func (g *GuardedStorage) DirectDownloadURL(ctx context.Context, path string, validFor time.Duration) (string, error) {
	if err := g.authorizeRead(ctx, "direct_download_url", path); err != nil {
		return "", err
	}
	return g.backend.DirectDownloadURL(ctx, path, validFor)
}
