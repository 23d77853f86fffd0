// Package memory implements an in-process Storage backend. It backs unit
// tests and the conformance suite, and serves as the reference for backend
// semantics: every operation behaves the way the contract in pkg/storage
// documents it.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// nominalCapacity is what FreeSpace reports against; the backend does not
// actually bound stored bytes.
const nominalCapacity = int64(1) << 40

type entry struct {
	data    []byte
	mtime   time.Time
	isDir   bool
	version uint64
}

func (e *entry) etag() string {
	return fmt.Sprintf("%x-%x", e.version, e.mtime.UnixNano())
}

// MemoryStorage is a goroutine-safe, map-backed Storage implementation.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]*entry
	perms   map[string]acl.Permissions
	used    int64
	clock   func() time.Time
}

var _ storage.Storage = (*MemoryStorage)(nil)

// New creates an empty storage containing only the root directory.
func New() *MemoryStorage {
	s := &MemoryStorage{
		entries: make(map[string]*entry),
		perms:   make(map[string]acl.Permissions),
		clock:   time.Now,
	}
	s.entries[""] = &entry{isDir: true, mtime: s.clock()}
	return s
}

// SetPermissions overrides the mask the backend advertises for a path.
// Paths without an override advertise every bit. Intended for tests that
// exercise backend/rule permission intersection.
func (s *MemoryStorage) SetPermissions(path string, p acl.Permissions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[acl.CleanPath(path)] = p
}

// ============================================================================
// Read operations
// ============================================================================

func (s *MemoryStorage) Stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[path]
	if !ok {
		return nil, storage.NewNotFoundError(path)
	}
	return s.fileInfoLocked(path, e), nil
}

func (s *MemoryStorage) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[acl.CleanPath(path)]
	return ok, nil
}

func (s *MemoryStorage) IsDir(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[acl.CleanPath(path)]
	return ok && e.isDir, nil
}

func (s *MemoryStorage) IsFile(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[acl.CleanPath(path)]
	return ok && !e.isDir, nil
}

func (s *MemoryStorage) Size(ctx context.Context, path string) (int64, error) {
	e, err := s.fileEntry(ctx, path)
	if err != nil {
		return 0, err
	}
	return int64(len(e.data)), nil
}

func (s *MemoryStorage) MTime(ctx context.Context, path string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[path]
	if !ok {
		return time.Time{}, storage.NewNotFoundError(path)
	}
	return e.mtime, nil
}

func (s *MemoryStorage) ETag(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[path]
	if !ok {
		return "", storage.NewNotFoundError(path)
	}
	return e.etag(), nil
}

func (s *MemoryStorage) Hash(ctx context.Context, algo, path string) (string, error) {
	e, err := s.fileEntry(ctx, path)
	if err != nil {
		return "", err
	}

	switch algo {
	case storage.HashMD5:
		sum := md5.Sum(e.data)
		return hex.EncodeToString(sum[:]), nil
	case storage.HashSHA1:
		sum := sha1.Sum(e.data)
		return hex.EncodeToString(sum[:]), nil
	case storage.HashSHA256:
		sum := sha256.Sum256(e.data)
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", storage.NewInvalidArgumentError(fmt.Sprintf("unknown hash algorithm %q", algo))
	}
}

func (s *MemoryStorage) MimeType(ctx context.Context, path string) (string, error) {
	e, err := s.fileEntry(ctx, path)
	if err != nil {
		return "", err
	}
	return mimetype.Detect(e.data).String(), nil
}

func (s *MemoryStorage) ReadFile(ctx context.Context, path string) ([]byte, error) {
	e, err := s.fileEntry(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (s *MemoryStorage) OpenRead(ctx context.Context, path string) (io.ReadCloser, error) {
	data, err := s.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStorage) DirectDownloadURL(ctx context.Context, path string, validFor time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", storage.NewNotSupportedError("direct download")
}

func (s *MemoryStorage) ListDir(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireDirLocked(path); err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for p := range s.entries {
		if p != "" && acl.ParentPath(p) == path && p != path {
			names = append(names, acl.BaseName(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) ReadDir(ctx context.Context, path string) (storage.DirScanner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireDirLocked(path); err != nil {
		return nil, err
	}

	// Snapshot under the read lock; the scanner itself is lock-free.
	var entries []*storage.FileInfo
	for p, e := range s.entries {
		if p != "" && acl.ParentPath(p) == path && p != path {
			entries = append(entries, s.fileInfoLocked(p, e))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return storage.NewSliceScanner(entries, nil), nil
}

func (s *MemoryStorage) Permissions(ctx context.Context, path string) (acl.Permissions, error) {
	if err := ctx.Err(); err != nil {
		return acl.PermissionNone, err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entries[path]; !ok {
		return acl.PermissionNone, storage.NewNotFoundError(path)
	}
	if p, ok := s.perms[path]; ok {
		return p, nil
	}
	return acl.PermissionAll, nil
}

func (s *MemoryStorage) FreeSpace(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.used >= nominalCapacity {
		return 0, nil
	}
	return nominalCapacity - s.used, nil
}

// ============================================================================
// Write operations
// ============================================================================

func (s *MemoryStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = acl.CleanPath(path)
	if path == "" {
		return storage.NewIsDirectoryError(path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDirLocked(acl.ParentPath(path)); err != nil {
		return err
	}
	if e, ok := s.entries[path]; ok {
		if e.isDir {
			return storage.NewIsDirectoryError(path)
		}
		s.used -= int64(len(e.data))
		e.data = append([]byte(nil), data...)
		e.mtime = s.clock()
		e.version++
		s.used += int64(len(data))
		return nil
	}

	s.entries[path] = &entry{
		data:  append([]byte(nil), data...),
		mtime: s.clock(),
	}
	s.used += int64(len(data))
	return nil
}

// bufferedWriter accumulates writes and commits them as one WriteFile on
// Close, so content becomes visible only when the handle is released.
type bufferedWriter struct {
	s      *MemoryStorage
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, storage.NewIOError(w.path, "write on closed handle")
	}
	return w.buf.Write(p)
}

func (w *bufferedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.s.WriteFile(context.Background(), w.path, w.buf.Bytes())
}

func (s *MemoryStorage) OpenWrite(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = acl.CleanPath(path)
	if path == "" {
		return nil, storage.NewIsDirectoryError(path)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireDirLocked(acl.ParentPath(path)); err != nil {
		return nil, err
	}
	if e, ok := s.entries[path]; ok && e.isDir {
		return nil, storage.NewIsDirectoryError(path)
	}
	return &bufferedWriter{s: s, path: path}, nil
}

func (s *MemoryStorage) Touch(ctx context.Context, path string, mtime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = acl.CleanPath(path)
	if mtime.IsZero() {
		mtime = s.clock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[path]; ok {
		e.mtime = mtime
		e.version++
		return nil
	}
	if err := s.requireDirLocked(acl.ParentPath(path)); err != nil {
		return err
	}
	s.entries[path] = &entry{mtime: mtime}
	return nil
}

func (s *MemoryStorage) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = acl.CleanPath(path)
	if path == "" {
		return storage.NewAlreadyExistsError(path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[path]; ok {
		return storage.NewAlreadyExistsError(path)
	}
	if err := s.requireDirLocked(acl.ParentPath(path)); err != nil {
		return err
	}
	s.entries[path] = &entry{isDir: true, mtime: s.clock()}
	return nil
}

func (s *MemoryStorage) Rmdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = acl.CleanPath(path)
	if path == "" {
		return storage.NewInvalidArgumentError("cannot remove the root directory")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return storage.NewNotFoundError(path)
	}
	if !e.isDir {
		return storage.NewNotDirectoryError(path)
	}
	s.deleteSubtreeLocked(path)
	return nil
}

func (s *MemoryStorage) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = acl.CleanPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return storage.NewNotFoundError(path)
	}
	if e.isDir {
		return storage.NewIsDirectoryError(path)
	}
	s.used -= int64(len(e.data))
	delete(s.entries, path)
	return nil
}

func (s *MemoryStorage) Rename(ctx context.Context, source, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source = acl.CleanPath(source)
	target = acl.CleanPath(target)
	if source == "" || target == "" {
		return storage.NewInvalidArgumentError("cannot rename the root directory")
	}
	if source == target {
		return nil
	}
	if acl.IsDescendant(source, target) {
		return storage.NewInvalidArgumentError("cannot rename a directory into itself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.entries[source]
	if !ok {
		return storage.NewNotFoundError(source)
	}
	if err := s.requireDirLocked(acl.ParentPath(target)); err != nil {
		return err
	}
	s.deleteSubtreeLocked(target)

	moves := s.subtreePathsLocked(source)
	for _, p := range moves {
		rel := strings.TrimPrefix(p, source)
		s.entries[target+rel] = s.entries[p]
		delete(s.entries, p)
	}
	src.mtime = s.clock()
	src.version++
	return nil
}

func (s *MemoryStorage) Copy(ctx context.Context, source, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source = acl.CleanPath(source)
	target = acl.CleanPath(target)
	if source == "" || target == "" {
		return storage.NewInvalidArgumentError("cannot copy the root directory")
	}
	if source == target || acl.IsDescendant(source, target) {
		return storage.NewInvalidArgumentError("cannot copy a directory into itself")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[source]; !ok {
		return storage.NewNotFoundError(source)
	}
	if err := s.requireDirLocked(acl.ParentPath(target)); err != nil {
		return err
	}
	s.deleteSubtreeLocked(target)

	now := s.clock()
	for _, p := range s.subtreePathsLocked(source) {
		rel := strings.TrimPrefix(p, source)
		src := s.entries[p]
		dup := &entry{
			data:  append([]byte(nil), src.data...),
			mtime: now,
			isDir: src.isDir,
		}
		s.entries[target+rel] = dup
		s.used += int64(len(dup.data))
	}
	return nil
}

// ============================================================================
// Internal helpers
// ============================================================================

// fileEntry returns the entry at path when it is a regular file.
func (s *MemoryStorage) fileEntry(ctx context.Context, path string) (*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = acl.CleanPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[path]
	if !ok {
		return nil, storage.NewNotFoundError(path)
	}
	if e.isDir {
		return nil, storage.NewIsDirectoryError(path)
	}
	return e, nil
}

func (s *MemoryStorage) requireDirLocked(path string) error {
	e, ok := s.entries[path]
	if !ok {
		return storage.NewNotFoundError(path)
	}
	if !e.isDir {
		return storage.NewNotDirectoryError(path)
	}
	return nil
}

// subtreePathsLocked returns path and every descendant, deepest last.
func (s *MemoryStorage) subtreePathsLocked(path string) []string {
	paths := []string{path}
	for p := range s.entries {
		if acl.IsDescendant(path, p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (s *MemoryStorage) deleteSubtreeLocked(path string) {
	if _, ok := s.entries[path]; !ok {
		return
	}
	for _, p := range s.subtreePathsLocked(path) {
		if e := s.entries[p]; e != nil {
			s.used -= int64(len(e.data))
		}
		delete(s.entries, p)
	}
}

func (s *MemoryStorage) fileInfoLocked(path string, e *entry) *storage.FileInfo {
	perms := acl.PermissionAll
	if p, ok := s.perms[path]; ok {
		perms = p
	}
	info := &storage.FileInfo{
		Name:        acl.BaseName(path),
		Path:        path,
		MTime:       e.mtime,
		IsDir:       e.isDir,
		ETag:        e.etag(),
		Permissions: perms,
	}
	if !e.isDir {
		info.Size = int64(len(e.data))
		info.MimeType = mimetype.Detect(e.data).String()
	}
	return info
}
