// Package local provides a Storage backend on top of a directory of the
// local filesystem. All abstract paths are resolved below a fixed root
// directory; canonicalization guarantees they cannot escape it.
package local

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sys/unix"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// LocalStorage implements storage.Storage against a root directory on disk.
type LocalStorage struct {
	root string
}

var _ storage.Storage = (*LocalStorage)(nil)

// New creates a local backend rooted at the given directory. The directory
// must already exist.
func New(root string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, storage.NewInvalidArgumentError(fmt.Sprintf("invalid root %q: %v", root, err))
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, mapOSError(root, err)
	}
	if !fi.IsDir() {
		return nil, storage.NewNotDirectoryError(root)
	}
	return &LocalStorage{root: abs}, nil
}

// Root returns the absolute root directory the backend serves from.
func (s *LocalStorage) Root() string {
	return s.root
}

// resolve maps an abstract path onto the filesystem. CleanPath strips any
// leading traversal so the result always stays below the root.
func (s *LocalStorage) resolve(path string) string {
	clean := acl.CleanPath(path)
	if clean == "" {
		return s.root
	}
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

// ============================================================================
// Read operations
// ============================================================================

func (s *LocalStorage) Stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	fi, err := os.Stat(s.resolve(clean))
	if err != nil {
		return nil, mapOSError(clean, err)
	}
	info := s.fileInfo(clean, fi)
	if !fi.IsDir() {
		if mt, err := mimetype.DetectFile(s.resolve(clean)); err == nil {
			info.MimeType = mt.String()
		}
	}
	return info, nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapOSError(acl.CleanPath(path), err)
	}
	return true, nil
}

func (s *LocalStorage) IsDir(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fi, err := os.Stat(s.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapOSError(acl.CleanPath(path), err)
	}
	return fi.IsDir(), nil
}

func (s *LocalStorage) IsFile(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fi, err := os.Stat(s.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, mapOSError(acl.CleanPath(path), err)
	}
	return !fi.IsDir(), nil
}

func (s *LocalStorage) Size(ctx context.Context, path string) (int64, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (s *LocalStorage) MTime(ctx context.Context, path string) (time.Time, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return info.MTime, nil
}

func (s *LocalStorage) ETag(ctx context.Context, path string) (string, error) {
	info, err := s.Stat(ctx, path)
	if err != nil {
		return "", err
	}
	return info.ETag, nil
}

func (s *LocalStorage) Hash(ctx context.Context, algo, path string) (string, error) {
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

func (s *LocalStorage) MimeType(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := acl.CleanPath(path)
	fi, err := os.Stat(s.resolve(clean))
	if err != nil {
		return "", mapOSError(clean, err)
	}
	if fi.IsDir() {
		return "", storage.NewIsDirectoryError(clean)
	}
	mt, err := mimetype.DetectFile(s.resolve(clean))
	if err != nil {
		return "", storage.NewIOError(clean, err.Error())
	}
	return mt.String(), nil
}

func (s *LocalStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	data, err := os.ReadFile(s.resolve(clean))
	if err != nil {
		return nil, mapOSError(clean, err)
	}
	return data, nil
}

func (s *LocalStorage) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	f, err := os.Open(s.resolve(clean))
	if err != nil {
		return nil, mapOSError(clean, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapOSError(clean, err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, storage.NewIsDirectoryError(clean)
	}
	return f, nil
}

// DirectDownloadURL is not available for plain directories.
func (s *LocalStorage) DirectDownloadURL(ctx context.Context, path string, validFor time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", storage.NewNotSupportedError("direct download")
}

// ============================================================================
// Write operations
// ============================================================================

func (s *LocalStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewIsDirectoryError(clean)
	}
	if fi, err := os.Stat(s.resolve(clean)); err == nil && fi.IsDir() {
		return storage.NewIsDirectoryError(clean)
	}
	if err := os.WriteFile(s.resolve(clean), data, 0o644); err != nil {
		return mapOSError(clean, err)
	}
	return nil
}

func (s *LocalStorage) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return nil, storage.NewIsDirectoryError(clean)
	}
	if fi, err := os.Stat(s.resolve(clean)); err == nil && fi.IsDir() {
		return nil, storage.NewIsDirectoryError(clean)
	}

	target := s.resolve(clean)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return nil, mapOSError(clean, err)
	}
	return &tempFileWriter{file: tmp, target: target, path: clean}, nil
}

// tempFileWriter stages writes in a temporary file and moves it over the
// target on Close, so readers never observe a partially written file.
type tempFileWriter struct {
	file   *os.File
	target string
	path   string
}

func (w *tempFileWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *tempFileWriter) Close() error {
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return mapOSError(w.path, err)
	}
	if err := os.Rename(w.file.Name(), w.target); err != nil {
		os.Remove(w.file.Name())
		return mapOSError(w.path, err)
	}
	return nil
}

func (s *LocalStorage) Touch(ctx context.Context, path string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	abs := s.resolve(clean)

	if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
		f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			return mapOSError(clean, err)
		}
		if err := f.Close(); err != nil {
			return mapOSError(clean, err)
		}
	} else if err != nil {
		return mapOSError(clean, err)
	}

	if mtime.IsZero() {
		mtime = time.Now()
	}
	if err := os.Chtimes(abs, mtime, mtime); err != nil {
		return mapOSError(clean, err)
	}
	return nil
}

func (s *LocalStorage) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewAlreadyExistsError(clean)
	}
	if err := os.Mkdir(s.resolve(clean), 0o755); err != nil {
		return mapOSError(clean, err)
	}
	return nil
}

func (s *LocalStorage) Rmdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	if clean == "" {
		return storage.NewInvalidArgumentError("cannot remove the root directory")
	}
	abs := s.resolve(clean)
	fi, err := os.Stat(abs)
	if err != nil {
		return mapOSError(clean, err)
	}
	if !fi.IsDir() {
		return storage.NewNotDirectoryError(clean)
	}
	if err := os.RemoveAll(abs); err != nil {
		return mapOSError(clean, err)
	}
	return nil
}

func (s *LocalStorage) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := acl.CleanPath(path)
	abs := s.resolve(clean)
	fi, err := os.Stat(abs)
	if err != nil {
		return mapOSError(clean, err)
	}
	if fi.IsDir() {
		return storage.NewIsDirectoryError(clean)
	}
	if err := os.Remove(abs); err != nil {
		return mapOSError(clean, err)
	}
	return nil
}

func (s *LocalStorage) Rename(ctx context.Context, source, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := acl.CleanPath(source)
	tgt := acl.CleanPath(target)
	if src == "" || tgt == "" {
		return storage.NewInvalidArgumentError("cannot rename the root directory")
	}
	if src == tgt || acl.IsDescendant(src, tgt) {
		return storage.NewInvalidArgumentError(fmt.Sprintf("cannot rename %q into itself", src))
	}
	if _, err := os.Stat(s.resolve(src)); err != nil {
		return mapOSError(src, err)
	}
	if err := os.Rename(s.resolve(src), s.resolve(tgt)); err != nil {
		return mapOSError(tgt, err)
	}
	return nil
}

func (s *LocalStorage) Copy(ctx context.Context, source, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := acl.CleanPath(source)
	tgt := acl.CleanPath(target)
	if src == "" || tgt == "" {
		return storage.NewInvalidArgumentError("cannot copy the root directory")
	}
	if src == tgt || acl.IsDescendant(src, tgt) {
		return storage.NewInvalidArgumentError(fmt.Sprintf("cannot copy %q into itself", src))
	}

	fi, err := os.Stat(s.resolve(src))
	if err != nil {
		return mapOSError(src, err)
	}
	if !fi.IsDir() {
		return s.copyFile(s.resolve(src), s.resolve(tgt), tgt)
	}

	absSrc := s.resolve(src)
	absTgt := s.resolve(tgt)
	return filepath.WalkDir(absSrc, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return mapOSError(src, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(absSrc, p)
		if err != nil {
			return storage.NewIOError(src, err.Error())
		}
		dst := filepath.Join(absTgt, rel)
		if d.IsDir() {
			if err := os.Mkdir(dst, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
				return mapOSError(tgt, err)
			}
			return nil
		}
		return s.copyFile(p, dst, tgt)
	})
}

func (s *LocalStorage) copyFile(absSrc, absDst, logical string) error {
	in, err := os.Open(absSrc)
	if err != nil {
		return mapOSError(logical, err)
	}
	defer in.Close()

	out, err := os.Create(absDst)
	if err != nil {
		return mapOSError(logical, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return storage.NewIOError(logical, err.Error())
	}
	if err := out.Close(); err != nil {
		return mapOSError(logical, err)
	}
	return nil
}

// ============================================================================
// Directory listing
// ============================================================================

func (s *LocalStorage) ListDir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	entries, err := os.ReadDir(s.resolve(clean))
	if err != nil {
		return nil, mapOSError(clean, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *LocalStorage) ReadDir(ctx context.Context, path string) (storage.DirScanner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := acl.CleanPath(path)
	f, err := os.Open(s.resolve(clean))
	if err != nil {
		return nil, mapOSError(clean, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapOSError(clean, err)
	}
	if !fi.IsDir() {
		f.Close()
		return nil, storage.NewNotDirectoryError(clean)
	}
	return &dirScanner{store: s, dir: clean, file: f}, nil
}

// dirScanner streams directory entries in batches so large directories do
// not have to be materialized up front.
type dirScanner struct {
	store   *LocalStorage
	dir     string
	file    *os.File
	batch   []fs.DirEntry
	current *storage.FileInfo
	err     error
	done    bool
}

const scannerBatchSize = 256

func (sc *dirScanner) Next() bool {
	if sc.err != nil || sc.done {
		return false
	}
	for len(sc.batch) == 0 {
		entries, err := sc.file.ReadDir(scannerBatchSize)
		if len(entries) > 0 {
			sc.batch = entries
			break
		}
		if errors.Is(err, io.EOF) || err == nil {
			sc.done = true
			return false
		}
		sc.err = mapOSError(sc.dir, err)
		return false
	}

	entry := sc.batch[0]
	sc.batch = sc.batch[1:]

	fi, err := entry.Info()
	if err != nil {
		// The entry disappeared between the readdir and the stat; skip it.
		if errors.Is(err, fs.ErrNotExist) {
			return sc.Next()
		}
		sc.err = mapOSError(sc.dir, err)
		return false
	}
	sc.current = sc.store.fileInfo(acl.JoinPath(sc.dir, entry.Name()), fi)
	return true
}

func (sc *dirScanner) Entry() *storage.FileInfo {
	return sc.current
}

func (sc *dirScanner) Err() error {
	return sc.err
}

func (sc *dirScanner) Close() error {
	return sc.file.Close()
}

// ============================================================================
// Permissions and capacity
// ============================================================================

func (s *LocalStorage) Permissions(ctx context.Context, path string) (acl.Permissions, error) {
	if err := ctx.Err(); err != nil {
		return acl.PermissionNone, err
	}
	clean := acl.CleanPath(path)
	fi, err := os.Stat(s.resolve(clean))
	if err != nil {
		return acl.PermissionNone, mapOSError(clean, err)
	}
	return modePermissions(fi.Mode()), nil
}

func (s *LocalStorage) FreeSpace(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(s.root, &st); err != nil {
		return 0, storage.NewIOError("", err.Error())
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

// ============================================================================
// Helpers
// ============================================================================

func (s *LocalStorage) fileInfo(path string, fi fs.FileInfo) *storage.FileInfo {
	info := &storage.FileInfo{
		Name:        acl.BaseName(path),
		Path:        path,
		MTime:       fi.ModTime(),
		IsDir:       fi.IsDir(),
		ETag:        fmt.Sprintf("%x-%x", fi.ModTime().UnixNano(), fi.Size()),
		Permissions: modePermissions(fi.Mode()),
	}
	if !fi.IsDir() {
		info.Size = fi.Size()
	}
	return info
}

// modePermissions derives abstract permissions from the owner bits of the
// file mode. A writable entry grants the full mutation set.
func modePermissions(mode fs.FileMode) acl.Permissions {
	var p acl.Permissions
	if mode.Perm()&0o400 != 0 {
		p = p.Add(acl.PermissionRead)
	}
	if mode.Perm()&0o200 != 0 {
		p = p.Add(acl.PermissionUpdate).
			Add(acl.PermissionCreate).
			Add(acl.PermissionDelete).
			Add(acl.PermissionShare)
	}
	return p
}

// mapOSError converts filesystem errors into the shared storage error
// vocabulary. Unrecognized errors become IO errors with the original text.
func mapOSError(path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return storage.NewNotFoundError(path)
	case errors.Is(err, fs.ErrExist):
		return storage.NewAlreadyExistsError(path)
	case errors.Is(err, fs.ErrPermission):
		return storage.NewPermissionDeniedError(path)
	case errors.Is(err, unix.ENOTDIR):
		return storage.NewNotDirectoryError(path)
	case errors.Is(err, unix.EISDIR):
		return storage.NewIsDirectoryError(path)
	case errors.Is(err, unix.ENOTEMPTY):
		return storage.NewNotEmptyError(path)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return storage.NewIOError(path, err.Error())
	}
}
