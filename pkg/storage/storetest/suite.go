// Package storetest provides a conformance test suite for Storage backends.
// Backend packages run the suite from their own tests so every
// implementation agrees on contract semantics.
package storetest

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// Factory creates a fresh Storage instance for each test. The factory
// receives *testing.T so it can use t.TempDir() for backends that need
// filesystem paths and t.Cleanup() for teardown.
type Factory func(t *testing.T) storage.Storage

// RunConformanceSuite runs the full conformance suite against the provided
// factory. Each subtest gets a fresh backend to ensure isolation.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("FileOps", func(t *testing.T) {
		runFileOpsTests(t, factory)
	})

	t.Run("DirOps", func(t *testing.T) {
		runDirOpsTests(t, factory)
	})

	t.Run("RenameCopy", func(t *testing.T) {
		runRenameCopyTests(t, factory)
	})

	t.Run("Metadata", func(t *testing.T) {
		runMetadataTests(t, factory)
	})
}

// mustWrite is a helper that writes a file and fails the test on error.
func mustWrite(t *testing.T, s storage.Storage, path string, data []byte) {
	t.Helper()
	if err := s.WriteFile(t.Context(), path, data); err != nil {
		t.Fatalf("WriteFile(%q) failed: %v", path, err)
	}
}

// mustMkdir is a helper that creates a directory and fails the test on error.
func mustMkdir(t *testing.T, s storage.Storage, path string) {
	t.Helper()
	if err := s.Mkdir(t.Context(), path); err != nil {
		t.Fatalf("Mkdir(%q) failed: %v", path, err)
	}
}

func runFileOpsTests(t *testing.T, factory Factory) {
	t.Run("WriteAndRead", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		content := []byte("hello aclgate")
		mustWrite(t, s, "greeting.txt", content)

		got, err := s.ReadFile(ctx, "greeting.txt")
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("ReadFile = %q, want %q", got, content)
		}

		size, err := s.Size(ctx, "greeting.txt")
		if err != nil {
			t.Fatalf("Size failed: %v", err)
		}
		if size != int64(len(content)) {
			t.Errorf("Size = %d, want %d", size, len(content))
		}
	})

	t.Run("ReadMissingFile", func(t *testing.T) {
		s := factory(t)

		_, err := s.ReadFile(t.Context(), "nope.txt")
		if !storage.IsNotFoundError(err) {
			t.Errorf("ReadFile on missing path: got %v, want NotFound", err)
		}
	})

	t.Run("OverwriteReplacesContent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "f.txt", []byte("first"))
		mustWrite(t, s, "f.txt", []byte("second version"))

		got, err := s.ReadFile(ctx, "f.txt")
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != "second version" {
			t.Errorf("ReadFile = %q after overwrite", got)
		}
	})

	t.Run("OpenWriteCommitsOnClose", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		w, err := s.OpenWrite(ctx, "streamed.txt")
		if err != nil {
			t.Fatalf("OpenWrite failed: %v", err)
		}
		if _, err := w.Write([]byte("part one ")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if _, err := w.Write([]byte("part two")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		got, err := s.ReadFile(ctx, "streamed.txt")
		if err != nil {
			t.Fatalf("ReadFile after streamed write: %v", err)
		}
		if string(got) != "part one part two" {
			t.Errorf("streamed content = %q", got)
		}
	})

	t.Run("OpenRead", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "r.txt", []byte("stream me"))

		r, err := s.OpenRead(ctx, "r.txt")
		if err != nil {
			t.Fatalf("OpenRead failed: %v", err)
		}
		defer r.Close()

		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r); err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if buf.String() != "stream me" {
			t.Errorf("OpenRead content = %q", buf.String())
		}
	})

	t.Run("TouchCreatesAndUpdates", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		if err := s.Touch(ctx, "touched.txt", time.Time{}); err != nil {
			t.Fatalf("Touch(create) failed: %v", err)
		}
		exists, err := s.Exists(ctx, "touched.txt")
		if err != nil || !exists {
			t.Fatalf("Exists after touch = %v, %v", exists, err)
		}

		want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		if err := s.Touch(ctx, "touched.txt", want); err != nil {
			t.Fatalf("Touch(update) failed: %v", err)
		}
		got, err := s.MTime(ctx, "touched.txt")
		if err != nil {
			t.Fatalf("MTime failed: %v", err)
		}
		// Backends may truncate to second precision.
		if got.Unix() != want.Unix() {
			t.Errorf("MTime = %v, want %v", got, want)
		}
	})

	t.Run("UnlinkRemovesFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "gone.txt", []byte("x"))
		if err := s.Unlink(ctx, "gone.txt"); err != nil {
			t.Fatalf("Unlink failed: %v", err)
		}
		exists, err := s.Exists(ctx, "gone.txt")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("file still exists after Unlink")
		}

		if err := s.Unlink(ctx, "gone.txt"); !storage.IsNotFoundError(err) {
			t.Errorf("Unlink on missing path: got %v, want NotFound", err)
		}
	})

	t.Run("UnlinkRejectsDirectory", func(t *testing.T) {
		s := factory(t)

		mustMkdir(t, s, "d")
		err := s.Unlink(t.Context(), "d")
		if err == nil {
			t.Fatal("Unlink on a directory must fail")
		}
	})
}

func runDirOpsTests(t *testing.T, factory Factory) {
	t.Run("MkdirAndList", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustMkdir(t, s, "docs")
		mustWrite(t, s, "docs/a.txt", []byte("a"))
		mustWrite(t, s, "docs/b.txt", []byte("b"))
		mustMkdir(t, s, "docs/sub")

		names, err := s.ListDir(ctx, "docs")
		if err != nil {
			t.Fatalf("ListDir failed: %v", err)
		}
		sort.Strings(names)
		want := []string{"a.txt", "b.txt", "sub"}
		if len(names) != len(want) {
			t.Fatalf("ListDir = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Fatalf("ListDir = %v, want %v", names, want)
			}
		}
	})

	t.Run("ListRoot", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "top.txt", []byte("t"))

		names, err := s.ListDir(ctx, "")
		if err != nil {
			t.Fatalf("ListDir(root) failed: %v", err)
		}
		found := false
		for _, n := range names {
			if n == "top.txt" {
				found = true
			}
		}
		if !found {
			t.Errorf("root listing %v misses top.txt", names)
		}
	})

	t.Run("MkdirExisting", func(t *testing.T) {
		s := factory(t)

		mustMkdir(t, s, "dup")
		if err := s.Mkdir(t.Context(), "dup"); !storage.IsAlreadyExistsError(err) {
			t.Errorf("Mkdir on existing dir: got %v, want AlreadyExists", err)
		}
	})

	t.Run("MkdirMissingParent", func(t *testing.T) {
		s := factory(t)

		if err := s.Mkdir(t.Context(), "no/such/parent"); !storage.IsNotFoundError(err) {
			t.Errorf("Mkdir with missing parent: got %v, want NotFound", err)
		}
	})

	t.Run("RmdirRemovesSubtree", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustMkdir(t, s, "tree")
		mustMkdir(t, s, "tree/inner")
		mustWrite(t, s, "tree/inner/leaf.txt", []byte("leaf"))

		if err := s.Rmdir(ctx, "tree"); err != nil {
			t.Fatalf("Rmdir failed: %v", err)
		}
		for _, p := range []string{"tree", "tree/inner", "tree/inner/leaf.txt"} {
			exists, err := s.Exists(ctx, p)
			if err != nil {
				t.Fatalf("Exists(%q) failed: %v", p, err)
			}
			if exists {
				t.Errorf("%q still exists after Rmdir", p)
			}
		}
	})

	t.Run("RmdirRejectsFile", func(t *testing.T) {
		s := factory(t)

		mustWrite(t, s, "plain.txt", []byte("x"))
		if err := s.Rmdir(t.Context(), "plain.txt"); err == nil {
			t.Error("Rmdir on a file must fail")
		}
	})

	t.Run("ReadDirEntries", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustMkdir(t, s, "scan")
		mustWrite(t, s, "scan/one.txt", []byte("1"))
		mustMkdir(t, s, "scan/two")

		sc, err := s.ReadDir(ctx, "scan")
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		entries, err := storage.CollectEntries(sc)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		byName := map[string]*storage.FileInfo{}
		for _, e := range entries {
			byName[e.Name] = e
		}
		if e := byName["one.txt"]; e == nil || e.IsDir || e.Path != "scan/one.txt" {
			t.Errorf("one.txt entry = %+v", e)
		}
		if e := byName["two"]; e == nil || !e.IsDir {
			t.Errorf("two entry = %+v", e)
		}
	})

	t.Run("ReadDirScannersAreIndependent", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "a.txt", []byte("a"))
		mustWrite(t, s, "b.txt", []byte("b"))

		first, err := s.ReadDir(ctx, "")
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if !first.Next() {
			t.Fatal("first scanner is empty")
		}
		second, err := s.ReadDir(ctx, "")
		if err != nil {
			t.Fatalf("second ReadDir failed: %v", err)
		}
		count := 0
		for second.Next() {
			count++
		}
		if err := second.Err(); err != nil {
			t.Fatalf("second scan failed: %v", err)
		}
		if count < 2 {
			t.Errorf("second scanner saw %d entries, want at least 2", count)
		}
		_ = first.Close()
		_ = second.Close()
	})

	t.Run("ListDirOnFile", func(t *testing.T) {
		s := factory(t)

		mustWrite(t, s, "f.txt", []byte("x"))
		if _, err := s.ListDir(t.Context(), "f.txt"); err == nil {
			t.Error("ListDir on a file must fail")
		}
	})
}

func runRenameCopyTests(t *testing.T, factory Factory) {
	t.Run("RenameFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "old.txt", []byte("content"))
		if err := s.Rename(ctx, "old.txt", "new.txt"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}

		if exists, _ := s.Exists(ctx, "old.txt"); exists {
			t.Error("source still exists after rename")
		}
		got, err := s.ReadFile(ctx, "new.txt")
		if err != nil || string(got) != "content" {
			t.Errorf("target content = %q, %v", got, err)
		}
	})

	t.Run("RenameReplacesTarget", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "src.txt", []byte("new"))
		mustWrite(t, s, "dst.txt", []byte("old"))
		if err := s.Rename(ctx, "src.txt", "dst.txt"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		got, err := s.ReadFile(ctx, "dst.txt")
		if err != nil || string(got) != "new" {
			t.Errorf("target content = %q, %v", got, err)
		}
	})

	t.Run("RenameDirectoryMovesChildren", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustMkdir(t, s, "from")
		mustWrite(t, s, "from/child.txt", []byte("c"))
		if err := s.Rename(ctx, "from", "to"); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		got, err := s.ReadFile(ctx, "to/child.txt")
		if err != nil || string(got) != "c" {
			t.Errorf("moved child = %q, %v", got, err)
		}
	})

	t.Run("RenameMissingSource", func(t *testing.T) {
		s := factory(t)

		if err := s.Rename(t.Context(), "ghost.txt", "x.txt"); !storage.IsNotFoundError(err) {
			t.Errorf("Rename of missing source: got %v, want NotFound", err)
		}
	})

	t.Run("CopyFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "orig.txt", []byte("dup me"))
		if err := s.Copy(ctx, "orig.txt", "copy.txt"); err != nil {
			t.Fatalf("Copy failed: %v", err)
		}

		for _, p := range []string{"orig.txt", "copy.txt"} {
			got, err := s.ReadFile(ctx, p)
			if err != nil || string(got) != "dup me" {
				t.Errorf("%q content = %q, %v", p, got, err)
			}
		}
	})

	t.Run("CopyDirectoryRecursive", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustMkdir(t, s, "dir")
		mustMkdir(t, s, "dir/nested")
		mustWrite(t, s, "dir/nested/f.txt", []byte("deep"))

		if err := s.Copy(ctx, "dir", "mirror"); err != nil {
			t.Fatalf("Copy failed: %v", err)
		}
		got, err := s.ReadFile(ctx, "mirror/nested/f.txt")
		if err != nil || string(got) != "deep" {
			t.Errorf("copied file = %q, %v", got, err)
		}
		// Source is untouched.
		if exists, _ := s.Exists(ctx, "dir/nested/f.txt"); !exists {
			t.Error("source vanished after copy")
		}
	})
}

func runMetadataTests(t *testing.T, factory Factory) {
	t.Run("StatFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "info.txt", []byte("12345"))

		fi, err := s.Stat(ctx, "info.txt")
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if fi.Name != "info.txt" || fi.Path != "info.txt" {
			t.Errorf("Stat names = %q / %q", fi.Name, fi.Path)
		}
		if fi.IsDir {
			t.Error("file reported as directory")
		}
		if fi.Size != 5 {
			t.Errorf("Size = %d, want 5", fi.Size)
		}
		if fi.MTime.IsZero() {
			t.Error("MTime is zero")
		}
		if fi.ScanPermissions != nil {
			t.Error("backend Stat must not set ScanPermissions")
		}
	})

	t.Run("StatMissing", func(t *testing.T) {
		s := factory(t)

		if _, err := s.Stat(t.Context(), "missing"); !storage.IsNotFoundError(err) {
			t.Errorf("Stat on missing path: got %v, want NotFound", err)
		}
	})

	t.Run("ExistsIsDirIsFile", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustMkdir(t, s, "d")
		mustWrite(t, s, "f.txt", []byte("x"))

		if ok, _ := s.Exists(ctx, "d"); !ok {
			t.Error("Exists(d) = false")
		}
		if ok, _ := s.IsDir(ctx, "d"); !ok {
			t.Error("IsDir(d) = false")
		}
		if ok, _ := s.IsFile(ctx, "d"); ok {
			t.Error("IsFile(d) = true")
		}
		if ok, _ := s.IsFile(ctx, "f.txt"); !ok {
			t.Error("IsFile(f.txt) = false")
		}
		if ok, _ := s.IsDir(ctx, "f.txt"); ok {
			t.Error("IsDir(f.txt) = true")
		}
		if ok, _ := s.Exists(ctx, "ghost"); ok {
			t.Error("Exists(ghost) = true")
		}
	})

	t.Run("ETagChangesOnWrite", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "tagged.txt", []byte("v1"))
		first, err := s.ETag(ctx, "tagged.txt")
		if err != nil || first == "" {
			t.Fatalf("ETag = %q, %v", first, err)
		}

		// Some backends derive tags from mtime with second precision.
		time.Sleep(1100 * time.Millisecond)
		mustWrite(t, s, "tagged.txt", []byte("v2 longer"))
		second, err := s.ETag(ctx, "tagged.txt")
		if err != nil {
			t.Fatalf("ETag failed: %v", err)
		}
		if first == second {
			t.Errorf("ETag unchanged after write: %q", first)
		}
	})

	t.Run("Hash", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "h.txt", []byte("hash me"))

		// md5("hash me")
		got, err := s.Hash(ctx, storage.HashMD5, "h.txt")
		if err != nil {
			t.Fatalf("Hash failed: %v", err)
		}
		if got != "17b31dce96b9d6c6d0a6ba95f47796fb" {
			t.Errorf("md5 = %q", got)
		}

		if _, err := s.Hash(ctx, "crc7", "h.txt"); err == nil {
			t.Error("unknown algorithm must be rejected")
		}
	})

	t.Run("MimeType", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "page.html", []byte("<!DOCTYPE html><html><body>hi</body></html>"))
		mt, err := s.MimeType(ctx, "page.html")
		if err != nil {
			t.Fatalf("MimeType failed: %v", err)
		}
		if mt == "" {
			t.Error("MimeType is empty")
		}
	})

	t.Run("Permissions", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		mustWrite(t, s, "p.txt", []byte("x"))
		perms, err := s.Permissions(ctx, "p.txt")
		if err != nil {
			t.Fatalf("Permissions failed: %v", err)
		}
		if !perms.Has(acl.PermissionRead) {
			t.Errorf("Permissions = %v, want read present", perms)
		}

		if _, err := s.Permissions(ctx, "ghost"); !storage.IsNotFoundError(err) {
			t.Errorf("Permissions on missing path: got %v, want NotFound", err)
		}
	})

	t.Run("FreeSpace", func(t *testing.T) {
		s := factory(t)

		free, err := s.FreeSpace(t.Context())
		if err != nil {
			if storage.IsNotSupportedError(err) {
				t.Skip("backend does not report free space")
			}
			t.Fatalf("FreeSpace failed: %v", err)
		}
		if free < 0 {
			t.Errorf("FreeSpace = %d, want non-negative", free)
		}
	})
}
