// Package storetest provides a conformance test suite that every rules.Store
// implementation must pass. Store packages run it from their own tests so the
// memory, badger, sql, and file backends stay behaviorally interchangeable.
package storetest

import (
	"errors"
	"testing"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
)

// StoreFactory creates a fresh rules.Store for each test. The factory
// receives *testing.T so it can use t.TempDir() for stores that need
// filesystem paths and t.Cleanup() for teardown.
type StoreFactory func(t *testing.T) rules.Store

// RunConformanceSuite runs the full conformance suite against the provided
// store factory. Each test gets a fresh store instance to ensure isolation.
//
// The suite covers three categories:
//   - CRUD: single-rule set, get, upsert, delete, validation
//   - Queries: batch path lookup, prefix (subtree) lookup, folder isolation
//   - Folders: rule listing order and folder enumeration
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("CRUD", func(t *testing.T) {
		runCRUDTests(t, factory)
	})

	t.Run("Queries", func(t *testing.T) {
		runQueryTests(t, factory)
	})

	t.Run("Folders", func(t *testing.T) {
		runFolderTests(t, factory)
	})
}

// userRule builds a user-subject rule with mask == permissions, the common
// "grant exactly these bits" form.
func userRule(folderID int64, user, path string, perms acl.Permissions) acl.Rule {
	return acl.Rule{
		FolderID:    folderID,
		Subject:     acl.Subject{Type: acl.SubjectUser, ID: user},
		Path:        acl.CleanPath(path),
		Mask:        perms,
		Permissions: perms,
	}
}

func groupRule(folderID int64, group, path string, perms acl.Permissions) acl.Rule {
	return acl.Rule{
		FolderID:    folderID,
		Subject:     acl.Subject{Type: acl.SubjectGroup, ID: group},
		Path:        acl.CleanPath(path),
		Mask:        perms,
		Permissions: perms,
	}
}

func mustSet(t *testing.T, store rules.Store, rule acl.Rule) {
	t.Helper()

	if err := store.SetRule(t.Context(), rule); err != nil {
		t.Fatalf("SetRule(%s @ %q) failed: %v", rule.Subject, rule.Path, err)
	}
}

// ============================================================================
// CRUD
// ============================================================================

func runCRUDTests(t *testing.T, factory StoreFactory) {
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, factory) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("UpsertReplaces", func(t *testing.T) { testUpsertReplaces(t, factory) })
	t.Run("RejectsInvalidRule", func(t *testing.T) { testRejectsInvalidRule(t, factory) })
	t.Run("DeleteRemoves", func(t *testing.T) { testDeleteRemoves(t, factory) })
	t.Run("DeleteMissingIsNoop", func(t *testing.T) { testDeleteMissingIsNoop(t, factory) })
	t.Run("SubjectTypesAreDistinct", func(t *testing.T) { testSubjectTypesAreDistinct(t, factory) })
}

func testSetAndGet(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	want := acl.Rule{
		FolderID:    7,
		Subject:     acl.Subject{Type: acl.SubjectUser, ID: "anna"},
		Path:        "docs/reports",
		Mask:        acl.PermissionRead | acl.PermissionUpdate,
		Permissions: acl.PermissionRead,
	}
	mustSet(t, store, want)

	got, err := store.GetRule(ctx, 7, want.Subject, "docs/reports")
	if err != nil {
		t.Fatalf("GetRule() failed: %v", err)
	}
	if *got != want {
		t.Errorf("GetRule() = %+v, want %+v", *got, want)
	}
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	_, err := store.GetRule(ctx, 1, acl.Subject{Type: acl.SubjectUser, ID: "nobody"}, "docs")
	if !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("GetRule() error = %v, want ErrRuleNotFound", err)
	}
}

func testUpsertReplaces(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	subject := acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, acl.Rule{
		FolderID:    1,
		Subject:     subject,
		Path:        "docs",
		Mask:        acl.PermissionAll,
		Permissions: acl.PermissionRead | acl.PermissionShare,
	})

	got, err := store.GetRule(ctx, 1, subject, "docs")
	if err != nil {
		t.Fatalf("GetRule() after upsert failed: %v", err)
	}
	if got.Mask != acl.PermissionAll {
		t.Errorf("Mask = %v, want %v", got.Mask, acl.PermissionAll)
	}
	if got.Permissions != acl.PermissionRead|acl.PermissionShare {
		t.Errorf("Permissions = %v, want %v", got.Permissions, acl.PermissionRead|acl.PermissionShare)
	}

	all, err := store.ListRules(ctx, 1)
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListRules() returned %d rules after upsert, want 1", len(all))
	}
}

func testRejectsInvalidRule(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	invalid := []acl.Rule{
		// Non-canonical path.
		{FolderID: 1, Subject: acl.Subject{Type: acl.SubjectUser, ID: "anna"}, Path: "/docs/", Mask: acl.PermissionRead, Permissions: acl.PermissionRead},
		// Empty mask decides nothing.
		{FolderID: 1, Subject: acl.Subject{Type: acl.SubjectUser, ID: "anna"}, Path: "docs", Mask: acl.PermissionNone},
		// Unknown subject type.
		{FolderID: 1, Subject: acl.Subject{Type: "robot", ID: "r2"}, Path: "docs", Mask: acl.PermissionRead},
	}
	for _, rule := range invalid {
		if err := store.SetRule(ctx, rule); err == nil {
			t.Errorf("SetRule(%+v) succeeded, want validation error", rule)
		}
	}
}

func testDeleteRemoves(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	subject := acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))

	if err := store.DeleteRule(ctx, 1, subject, "docs"); err != nil {
		t.Fatalf("DeleteRule() failed: %v", err)
	}

	if _, err := store.GetRule(ctx, 1, subject, "docs"); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("GetRule() after delete error = %v, want ErrRuleNotFound", err)
	}
}

func testDeleteMissingIsNoop(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	if err := store.DeleteRule(ctx, 1, acl.Subject{Type: acl.SubjectUser, ID: "ghost"}, "docs"); err != nil {
		t.Errorf("DeleteRule() on missing rule = %v, want nil", err)
	}
}

func testSubjectTypesAreDistinct(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	// Same ID, different subject type: two independent rules.
	mustSet(t, store, userRule(1, "dev", "docs", acl.PermissionRead))
	mustSet(t, store, groupRule(1, "dev", "docs", acl.PermissionAll))

	user, err := store.GetRule(ctx, 1, acl.Subject{Type: acl.SubjectUser, ID: "dev"}, "docs")
	if err != nil {
		t.Fatalf("GetRule(user:dev) failed: %v", err)
	}
	if user.Permissions != acl.PermissionRead {
		t.Errorf("user rule Permissions = %v, want %v", user.Permissions, acl.PermissionRead)
	}

	group, err := store.GetRule(ctx, 1, acl.Subject{Type: acl.SubjectGroup, ID: "dev"}, "docs")
	if err != nil {
		t.Fatalf("GetRule(group:dev) failed: %v", err)
	}
	if group.Permissions != acl.PermissionAll {
		t.Errorf("group rule Permissions = %v, want %v", group.Permissions, acl.PermissionAll)
	}

	if err := store.DeleteRule(ctx, 1, acl.Subject{Type: acl.SubjectUser, ID: "dev"}, "docs"); err != nil {
		t.Fatalf("DeleteRule(user:dev) failed: %v", err)
	}
	if _, err := store.GetRule(ctx, 1, acl.Subject{Type: acl.SubjectGroup, ID: "dev"}, "docs"); err != nil {
		t.Errorf("group rule lost after deleting user rule: %v", err)
	}
}

// ============================================================================
// Queries
// ============================================================================

func runQueryTests(t *testing.T, factory StoreFactory) {
	t.Run("PathsQuery", func(t *testing.T) { testPathsQuery(t, factory) })
	t.Run("PathsQueryIncludesRoot", func(t *testing.T) { testPathsQueryIncludesRoot(t, factory) })
	t.Run("PrefixQueryRespectsBoundaries", func(t *testing.T) { testPrefixQueryRespectsBoundaries(t, factory) })
	t.Run("PrefixQueryRoot", func(t *testing.T) { testPrefixQueryRoot(t, factory) })
	t.Run("PathsWithColon", func(t *testing.T) { testPathsWithColon(t, factory) })
	t.Run("FolderIsolation", func(t *testing.T) { testFolderIsolation(t, factory) })
}

func testPathsQuery(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, groupRule(1, "staff", "docs", acl.PermissionAll))
	mustSet(t, store, userRule(1, "anna", "docs/reports", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "media", acl.PermissionRead))

	got, err := store.GetRulesForPaths(ctx, 1, []string{"docs", "pictures"})
	if err != nil {
		t.Fatalf("GetRulesForPaths() failed: %v", err)
	}

	if len(got["docs"]) != 2 {
		t.Errorf("rules for \"docs\" = %d, want 2", len(got["docs"]))
	}
	if _, ok := got["pictures"]; ok && len(got["pictures"]) != 0 {
		t.Errorf("rules for \"pictures\" = %v, want none", got["pictures"])
	}
	if _, ok := got["docs/reports"]; ok {
		t.Errorf("got rules for unqueried path \"docs/reports\"")
	}
}

func testPathsQueryIncludesRoot(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	mustSet(t, store, userRule(1, "anna", "", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionAll))

	got, err := store.GetRulesForPaths(ctx, 1, []string{"", "docs"})
	if err != nil {
		t.Fatalf("GetRulesForPaths() failed: %v", err)
	}
	if len(got[""]) != 1 {
		t.Errorf("rules for root = %d, want 1", len(got[""]))
	}
	if len(got["docs"]) != 1 {
		t.Errorf("rules for \"docs\" = %d, want 1", len(got["docs"]))
	}
}

func testPrefixQueryRespectsBoundaries(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "docs/reports", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "docs/reports/2024", acl.PermissionRead))
	// Sibling sharing the string prefix but not the path prefix.
	mustSet(t, store, userRule(1, "anna", "docs-archive", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "media", acl.PermissionRead))

	got, err := store.GetRulesForPrefix(ctx, 1, "docs")
	if err != nil {
		t.Fatalf("GetRulesForPrefix() failed: %v", err)
	}

	paths := make([]string, len(got))
	for i, r := range got {
		paths[i] = r.Path
	}
	want := []string{"docs", "docs/reports", "docs/reports/2024"}
	if len(paths) != len(want) {
		t.Fatalf("GetRulesForPrefix(\"docs\") paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func testPrefixQueryRoot(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	mustSet(t, store, userRule(1, "anna", "", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, groupRule(1, "staff", "media/video", acl.PermissionRead))

	got, err := store.GetRulesForPrefix(ctx, 1, "")
	if err != nil {
		t.Fatalf("GetRulesForPrefix(\"\") failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("GetRulesForPrefix(\"\") = %d rules, want 3", len(got))
	}
}

func testPathsWithColon(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	// Path segments may contain characters that also appear in store keys.
	const path = "reports/q1:final"
	subject := acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	mustSet(t, store, userRule(1, "anna", path, acl.PermissionRead))

	got, err := store.GetRule(ctx, 1, subject, path)
	if err != nil {
		t.Fatalf("GetRule() failed: %v", err)
	}
	if got.Path != path {
		t.Errorf("Path = %q, want %q", got.Path, path)
	}

	byPath, err := store.GetRulesForPaths(ctx, 1, []string{path})
	if err != nil {
		t.Fatalf("GetRulesForPaths() failed: %v", err)
	}
	if len(byPath[path]) != 1 {
		t.Errorf("rules for %q = %d, want 1", path, len(byPath[path]))
	}

	sub, err := store.GetRulesForPrefix(ctx, 1, "reports")
	if err != nil {
		t.Fatalf("GetRulesForPrefix() failed: %v", err)
	}
	if len(sub) != 1 {
		t.Errorf("subtree rules under \"reports\" = %d, want 1", len(sub))
	}
}

func testFolderIsolation(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	subject := acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(2, "anna", "docs", acl.PermissionAll))

	one, err := store.GetRule(ctx, 1, subject, "docs")
	if err != nil {
		t.Fatalf("GetRule(folder 1) failed: %v", err)
	}
	if one.Permissions != acl.PermissionRead {
		t.Errorf("folder 1 Permissions = %v, want %v", one.Permissions, acl.PermissionRead)
	}

	if err := store.DeleteRule(ctx, 1, subject, "docs"); err != nil {
		t.Fatalf("DeleteRule(folder 1) failed: %v", err)
	}

	two, err := store.GetRule(ctx, 2, subject, "docs")
	if err != nil {
		t.Fatalf("GetRule(folder 2) after folder 1 delete failed: %v", err)
	}
	if two.Permissions != acl.PermissionAll {
		t.Errorf("folder 2 Permissions = %v, want %v", two.Permissions, acl.PermissionAll)
	}

	sub, err := store.GetRulesForPrefix(ctx, 2, "")
	if err != nil {
		t.Fatalf("GetRulesForPrefix(folder 2) failed: %v", err)
	}
	if len(sub) != 1 {
		t.Errorf("folder 2 rules = %d, want 1", len(sub))
	}
}

// ============================================================================
// Folders
// ============================================================================

func runFolderTests(t *testing.T, factory StoreFactory) {
	t.Run("ListRulesSorted", func(t *testing.T) { testListRulesSorted(t, factory) })
	t.Run("ListFolders", func(t *testing.T) { testListFolders(t, factory) })
	t.Run("FolderVanishesWhenEmpty", func(t *testing.T) { testFolderVanishesWhenEmpty(t, factory) })
}

func testListRulesSorted(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	// Insert out of order.
	mustSet(t, store, userRule(1, "zoe", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "media", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))

	got, err := store.ListRules(ctx, 1)
	if err != nil {
		t.Fatalf("ListRules() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListRules() = %d rules, want 3", len(got))
	}

	type key struct{ path, subject string }
	want := []key{
		{"docs", "user:anna"},
		{"docs", "user:zoe"},
		{"media", "user:anna"},
	}
	for i, w := range want {
		if got[i].Path != w.path || got[i].Subject.String() != w.subject {
			t.Errorf("rule[%d] = %s @ %q, want %s @ %q", i, got[i].Subject, got[i].Path, w.subject, w.path)
		}
	}
}

func testListFolders(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	empty, err := store.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders() on empty store failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListFolders() on empty store = %v, want none", empty)
	}

	mustSet(t, store, userRule(3, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(2, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(2, "zoe", "media", acl.PermissionRead))

	got, err := store.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders() failed: %v", err)
	}
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("ListFolders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("folders[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func testFolderVanishesWhenEmpty(t *testing.T, factory StoreFactory) {
	store := factory(t)
	ctx := t.Context()

	subject := acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	mustSet(t, store, userRule(1, "anna", "docs", acl.PermissionRead))
	mustSet(t, store, userRule(2, "anna", "docs", acl.PermissionRead))

	if err := store.DeleteRule(ctx, 1, subject, "docs"); err != nil {
		t.Fatalf("DeleteRule() failed: %v", err)
	}

	got, err := store.ListFolders(ctx)
	if err != nil {
		t.Fatalf("ListFolders() failed: %v", err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("ListFolders() = %v, want [2]", got)
	}
}
