package local

import (
	"testing"

	"github.com/marmos91/aclgate/pkg/storage"
	"github.com/marmos91/aclgate/pkg/storage/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) storage.Storage {
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestNewRejectsMissingRoot(t *testing.T) {
	if _, err := New("/does/not/exist-aclgate"); !storage.IsNotFoundError(err) {
		t.Errorf("New on missing root: got %v, want NotFound", err)
	}
}

func TestTraversalStaysBelowRoot(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := t.Context()

	if err := s.WriteFile(ctx, "../../escape.txt", []byte("x")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// The traversal components are stripped, so the file lands at the root.
	got, err := s.ReadFile(ctx, "escape.txt")
	if err != nil || string(got) != "x" {
		t.Errorf("ReadFile(escape.txt) = %q, %v", got, err)
	}
}

func TestOpenWriteIsInvisibleUntilClose(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := t.Context()

	w, err := s.OpenWrite(ctx, "pending.txt")
	if err != nil {
		t.Fatalf("OpenWrite failed: %v", err)
	}
	if _, err := w.Write([]byte("half")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if exists, _ := s.Exists(ctx, "pending.txt"); exists {
		t.Error("file visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if exists, _ := s.Exists(ctx, "pending.txt"); !exists {
		t.Error("file missing after Close")
	}
}
