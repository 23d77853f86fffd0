package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
	"github.com/marmos91/aclgate/pkg/rules/storetest"
)

func newTestStore(t *testing.T) *FileRuleStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "rules.yaml"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return store
}

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) rules.Store {
		return newTestStore(t)
	})
}

func TestMissingFileIsEmptyRuleSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	got, err := store.ListRules(t.Context(), 1)
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListRules() = %v, want none", got)
	}

	// The file is only created on the first write.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rule file exists before first write (stat err = %v)", err)
	}
}

func TestRulesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	ctx := t.Context()

	rule := acl.Rule{
		FolderID:    1,
		Subject:     acl.Subject{Type: acl.SubjectUser, ID: "anna"},
		Path:        "docs",
		Mask:        acl.PermissionRead | acl.PermissionUpdate,
		Permissions: acl.PermissionRead,
	}

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := store.SetRule(ctx, rule); err != nil {
		t.Fatalf("SetRule() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() after close failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRule(ctx, 1, rule.Subject, "docs")
	if err != nil {
		t.Fatalf("GetRule() after reopen failed: %v", err)
	}
	if *got != rule {
		t.Errorf("GetRule() = %+v, want %+v", *got, rule)
	}
}

func TestExternalEditIsPickedUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	// Replace the file the way an editor would: write a temp file and
	// rename it into place.
	doc := `rules:
  - folder_id: 1
    subject:
      type: user
      id: anna
    path: docs
    mask: read
    permissions: read
`
	tmp := filepath.Join(dir, ".edit")
	if err := os.WriteFile(tmp, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}

	subject := acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	waitFor(t, 5*time.Second, func() bool {
		_, err := store.GetRule(t.Context(), 1, subject, "docs")
		return err == nil
	}, "externally added rule never became visible")
}

func TestCorruptEditKeepsPreviousRules(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	rule := acl.Rule{
		FolderID:    1,
		Subject:     acl.Subject{Type: acl.SubjectUser, ID: "anna"},
		Path:        "docs",
		Mask:        acl.PermissionRead,
		Permissions: acl.PermissionRead,
	}
	if err := store.SetRule(ctx, rule); err != nil {
		t.Fatalf("SetRule() failed: %v", err)
	}

	if err := os.WriteFile(store.path, []byte("rules: [not. valid: yaml"), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	// Give the watcher a moment to see the write. Whether or not the event
	// has arrived yet, the rule must still resolve.
	time.Sleep(200 * time.Millisecond)

	got, err := store.GetRule(ctx, 1, rule.Subject, "docs")
	if err != nil {
		t.Fatalf("GetRule() after corrupt edit failed: %v", err)
	}
	if *got != rule {
		t.Errorf("GetRule() = %+v, want %+v", *got, rule)
	}
}

func TestNewRejectsInvalidRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	// Subject type "robot" is not valid.
	doc := `rules:
  - folder_id: 1
    subject:
      type: robot
      id: r2
    path: docs
    mask: read
    permissions: read
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if _, err := New(path); err == nil {
		t.Error("New() succeeded on invalid rule file, want error")
	}
}

// waitFor polls cond until it returns true or the deadline expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal(msg)
}
