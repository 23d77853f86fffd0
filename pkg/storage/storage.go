// Package storage defines the hierarchical storage contract the permission
// layer decorates. Backends implement Storage with standard filesystem
// semantics; the guard package wraps any implementation and gates each
// operation without reimplementing it.
//
// Paths are folder-relative in the canonical form produced by
// acl.CleanPath: forward slashes, no leading or trailing slash, "" for the
// root.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/aclgate/pkg/acl"
)

// Hash algorithm names accepted by Storage.Hash.
const (
	HashMD5    = "md5"
	HashSHA1   = "sha1"
	HashSHA256 = "sha256"
)

// FileInfo describes a single file or directory.
type FileInfo struct {
	// Name is the entry's base name.
	Name string `json:"name"`

	// Path is the folder-relative canonical path.
	Path string `json:"path"`

	// Size is the content length in bytes; zero for directories.
	Size int64 `json:"size"`

	// MTime is the last modification time.
	MTime time.Time `json:"mtime"`

	// IsDir reports whether the entry is a directory.
	IsDir bool `json:"is_dir"`

	// ETag changes whenever content or metadata changes.
	ETag string `json:"etag,omitempty"`

	// MimeType is the detected content type.
	MimeType string `json:"mime_type,omitempty"`

	// Permissions is the live permission mask. Backends advertise what
	// they allow; a guard replaces this with the intersection of backend
	// and rule-derived bits.
	Permissions acl.Permissions `json:"permissions"`

	// ScanPermissions preserves the backend's original mask the first
	// time a guard rewrites Permissions. Nil until then; never
	// overwritten once set.
	ScanPermissions *acl.Permissions `json:"scan_permissions,omitempty"`
}

// DirScanner iterates directory entries lazily, in the manner of
// bufio.Scanner. Each ReadDir call returns an independent scanner;
// scanners are not safe for concurrent use and must be closed.
//
//	sc, err := store.ReadDir(ctx, "projects")
//	if err != nil { ... }
//	defer sc.Close()
//	for sc.Next() {
//		entry := sc.Entry()
//		...
//	}
//	if err := sc.Err(); err != nil { ... }
type DirScanner interface {
	// Next advances to the next entry. It returns false when the scan
	// ends, either by exhaustion or error.
	Next() bool

	// Entry returns the current entry. Only valid after a true Next.
	Entry() *FileInfo

	// Err returns the first error encountered, nil on clean exhaustion.
	Err() error

	// Close releases scanner resources. Safe to call more than once.
	Close() error
}

// Storage is the backend contract. All blocking operations take a context;
// implementations honor cancellation on network-bound calls and may ignore
// it for purely local work.
type Storage interface {
	// Stat returns metadata for the path.
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Exists reports whether the path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// IsDir reports whether the path exists and is a directory.
	IsDir(ctx context.Context, path string) (bool, error)

	// IsFile reports whether the path exists and is a regular file.
	IsFile(ctx context.Context, path string) (bool, error)

	// Size returns the content length of a file.
	Size(ctx context.Context, path string) (int64, error)

	// MTime returns the last modification time.
	MTime(ctx context.Context, path string) (time.Time, error)

	// ETag returns an opaque version tag for the path.
	ETag(ctx context.Context, path string) (string, error)

	// Hash returns the hex digest of a file's content for the given
	// algorithm (HashMD5, HashSHA1, HashSHA256).
	Hash(ctx context.Context, algo, path string) (string, error)

	// MimeType returns the detected content type of a file.
	MimeType(ctx context.Context, path string) (string, error)

	// ReadFile returns the full content of a file.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// OpenRead opens a file for streaming reads.
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)

	// DirectDownloadURL returns a URL from which the file can be fetched
	// without going through this layer, valid for the given duration.
	// Backends without an external door return a NotSupported error.
	DirectDownloadURL(ctx context.Context, path string, validFor time.Duration) (string, error)

	// WriteFile replaces the full content of a file, creating it if
	// absent. Parent directories must exist.
	WriteFile(ctx context.Context, path string, data []byte) error

	// OpenWrite opens a file for streaming writes, truncating existing
	// content. The write is complete when the handle is closed.
	OpenWrite(ctx context.Context, path string) (io.WriteCloser, error)

	// Touch updates the modification time, creating an empty file if the
	// path is absent. A zero mtime means now.
	Touch(ctx context.Context, path string, mtime time.Time) error

	// Mkdir creates a directory. The parent must exist.
	Mkdir(ctx context.Context, path string) error

	// Rmdir removes a directory and its contents.
	Rmdir(ctx context.Context, path string) error

	// Unlink removes a file.
	Unlink(ctx context.Context, path string) error

	// Rename moves source to target, replacing target if it exists.
	Rename(ctx context.Context, source, target string) error

	// Copy duplicates source at target. Directories copy recursively.
	Copy(ctx context.Context, source, target string) error

	// ListDir returns the base names of a directory's children.
	ListDir(ctx context.Context, path string) ([]string, error)

	// ReadDir returns a lazy scanner over a directory's entries.
	ReadDir(ctx context.Context, path string) (DirScanner, error)

	// Permissions returns the permission mask the backend itself grants
	// on the path, before any rule evaluation.
	Permissions(ctx context.Context, path string) (acl.Permissions, error)

	// FreeSpace returns the bytes available to the backend, or a
	// NotSupported error when the notion does not apply.
	FreeSpace(ctx context.Context) (int64, error)
}
