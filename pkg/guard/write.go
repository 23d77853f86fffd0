package guard

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// transferFinalizeMarker names the reserved transfer files used by chunked
// uploads. Renaming a transfer file onto its final path needs CREATE on
// the target alone.
const transferFinalizeMarker = ".ocTransferId"

func (g *GuardedStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := g.requireWrite(ctx, "write_file", path); err != nil {
		return err
	}
	if err := g.backend.WriteFile(ctx, path, data); err != nil {
		return err
	}
	g.invalidate(ctx, path)
	return nil
}

func (g *GuardedStorage) Touch(ctx context.Context, path string, mtime time.Time) error {
	if err := g.requireWrite(ctx, "touch", path); err != nil {
		return err
	}
	if err := g.backend.Touch(ctx, path, mtime); err != nil {
		return err
	}
	g.invalidate(ctx, path)
	return nil
}

// OpenWrite returns a handle whose deferred invalidation fires when the
// handle closes, not when the open returns. Closing the guard finalizes
// handles that were never closed.
func (g *GuardedStorage) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := g.requireWrite(ctx, "open_write", path); err != nil {
		return nil, err
	}
	handle, err := g.backend.OpenWrite(ctx, path)
	if err != nil {
		return nil, err
	}
	w := &invalidatingWriter{inner: handle, guard: g, path: path}
	g.trackWriter(w)
	return w, nil
}

func (g *GuardedStorage) Mkdir(ctx context.Context, path string) error {
	if err := g.require(ctx, "mkdir", path, acl.PermissionCreate); err != nil {
		return err
	}
	if err := g.backend.Mkdir(ctx, path); err != nil {
		return err
	}
	g.invalidate(ctx, path)
	return nil
}

func (g *GuardedStorage) Rmdir(ctx context.Context, path string) error {
	if err := g.requireDelete(ctx, "rmdir", path); err != nil {
		return err
	}
	if err := g.backend.Rmdir(ctx, path); err != nil {
		return err
	}
	g.invalidate(ctx, path)
	return nil
}

func (g *GuardedStorage) Unlink(ctx context.Context, path string) error {
	if err := g.requireDelete(ctx, "unlink", path); err != nil {
		return err
	}
	if err := g.backend.Unlink(ctx, path); err != nil {
		return err
	}
	g.invalidate(ctx, path)
	return nil
}

func (g *GuardedStorage) Copy(ctx context.Context, source, target string) error {
	ok, err := g.gate.canRead(ctx, source)
	if err != nil {
		return err
	}
	if !ok {
		g.recordDenial("copy")
		return storage.NewPermissionDeniedError(source)
	}
	if err := g.requireWrite(ctx, "copy", target); err != nil {
		return err
	}
	if err := g.backend.Copy(ctx, source, target); err != nil {
		return err
	}
	g.invalidate(ctx, target)
	return nil
}

func (g *GuardedStorage) Rename(ctx context.Context, source, target string) error {
	src, dst := acl.CleanPath(source), acl.CleanPath(target)

	if isTransferFinalize(src, dst) {
		if err := g.require(ctx, "rename", dst, acl.PermissionCreate); err != nil {
			return err
		}
		if err := g.backend.Rename(ctx, source, target); err != nil {
			return err
		}
		g.invalidate(ctx, dst)
		return nil
	}

	// Crossing parents removes an entry from the source directory and
	// needs DELETE there; a rename within one directory does not.
	if acl.ParentPath(src) != acl.ParentPath(dst) {
		if err := g.require(ctx, "rename", acl.ParentPath(src), acl.PermissionDelete); err != nil {
			return err
		}
	}
	if err := g.require(ctx, "rename", src, acl.PermissionRead.Add(acl.PermissionUpdate)); err != nil {
		return err
	}
	if err := g.requireWrite(ctx, "rename", dst); err != nil {
		return err
	}
	if err := g.backend.Rename(ctx, source, target); err != nil {
		return err
	}
	g.invalidate(ctx, src)
	g.invalidate(ctx, dst)
	return nil
}

// isTransferFinalize reports whether a rename moves a finished transfer
// file onto its final path: the target is a string prefix of the source
// and the remainder starts with the transfer marker.
func isTransferFinalize(source, target string) bool {
	return strings.HasPrefix(source, target) &&
		strings.HasPrefix(source[len(target):], transferFinalizeMarker)
}

// requireDelete gates the removal operations: DELETE on the path itself
// plus DELETE everywhere below it.
func (g *GuardedStorage) requireDelete(ctx context.Context, operation, path string) error {
	if err := g.require(ctx, operation, path, acl.PermissionDelete); err != nil {
		return err
	}
	ok, err := g.canDeleteTree(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		g.recordDenial(operation)
		return storage.NewPermissionDeniedError(path)
	}
	return nil
}

// ============================================================================
// Deferred invalidation for streaming writes
// ============================================================================

// invalidatingWriter postpones cache invalidation until the write handle
// closes and the backend content is final.
type invalidatingWriter struct {
	inner io.WriteCloser
	guard *GuardedStorage
	path  string
	once  sync.Once
}

func (w *invalidatingWriter) Write(p []byte) (int, error) {
	return w.inner.Write(p)
}

// Close closes the backend handle and fires the deferred invalidation.
// The invalidation fires even when the close fails; the backend may have
// absorbed part of the stream by then.
func (w *invalidatingWriter) Close() error {
	err := w.inner.Close()
	w.guard.forgetWriter(w)
	w.finalize()
	return err
}

// finalize runs the invalidation exactly once across handle close and
// guard teardown.
func (w *invalidatingWriter) finalize() {
	w.once.Do(func() {
		w.guard.invalidate(context.Background(), w.path)
	})
}

func (g *GuardedStorage) trackWriter(w *invalidatingWriter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		g.pending[w] = struct{}{}
	}
}

func (g *GuardedStorage) forgetWriter(w *invalidatingWriter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.pending, w)
}
