package rules_test

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
	"github.com/marmos91/aclgate/pkg/rules/store/memory"
)

// countingStore wraps a Store and counts query calls, so tests can assert
// batch resolution hits the store a bounded number of times.
type countingStore struct {
	rules.Store
	pathQueries   int
	prefixQueries int
}

func (s *countingStore) GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error) {
	s.pathQueries++
	return s.Store.GetRulesForPaths(ctx, folderID, paths)
}

func (s *countingStore) GetRulesForPrefix(ctx context.Context, folderID int64, prefix string) ([]acl.Rule, error) {
	s.prefixQueries++
	return s.Store.GetRulesForPrefix(ctx, folderID, prefix)
}

type failingStore struct {
	rules.Store
}

func (s *failingStore) GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error) {
	return nil, errors.New("store offline")
}

func newService(t *testing.T, store rules.Store, subjects []acl.Subject) *rules.Service {
	t.Helper()

	svc, err := rules.NewService(rules.ServiceConfig{Store: store, Subjects: subjects})
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	return svc
}

func seedRules(t *testing.T, store rules.Store, ruleList ...acl.Rule) {
	t.Helper()

	for _, r := range ruleList {
		if err := store.SetRule(t.Context(), r); err != nil {
			t.Fatalf("SetRule(%s @ %q) failed: %v", r.Subject, r.Path, err)
		}
	}
}

func rule(folderID int64, subject acl.Subject, path string, mask, perms acl.Permissions) acl.Rule {
	return acl.Rule{FolderID: folderID, Subject: subject, Path: path, Mask: mask, Permissions: perms}
}

var (
	anna  = acl.Subject{Type: acl.SubjectUser, ID: "anna"}
	bob   = acl.Subject{Type: acl.SubjectUser, ID: "bob"}
	staff = acl.Subject{Type: acl.SubjectGroup, ID: "staff"}
)

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := rules.NewService(rules.ServiceConfig{}); err == nil {
		t.Error("NewService() without store succeeded, want error")
	}
}

func TestGetPermissionsWithoutRules(t *testing.T) {
	svc := newService(t, memory.New(), acl.SubjectsFor("anna"))

	got, err := svc.GetPermissions(t.Context(), 1, "s1", "docs/report.txt")
	if err != nil {
		t.Fatalf("GetPermissions() failed: %v", err)
	}
	if got != acl.PermissionAll {
		t.Errorf("GetPermissions() = %v, want %v", got, acl.PermissionAll)
	}
}

func TestGetPermissionsDeeperRuleOverrides(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, anna, "secret", acl.PermissionAll, acl.PermissionRead),
		rule(1, anna, "secret/x", acl.PermissionAll, acl.PermissionAll),
	)
	svc := newService(t, store, acl.SubjectsFor("anna"))
	ctx := t.Context()

	tests := []struct {
		path string
		want acl.Permissions
	}{
		{"docs", acl.PermissionAll},
		{"secret", acl.PermissionRead},
		{"secret/y", acl.PermissionRead},
		{"secret/y/deep", acl.PermissionRead},
		{"secret/x", acl.PermissionAll},
		{"secret/x/deep", acl.PermissionAll},
	}
	for _, tt := range tests {
		got, err := svc.GetPermissions(ctx, 1, "s1", tt.path)
		if err != nil {
			t.Fatalf("GetPermissions(%q) failed: %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("GetPermissions(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// A rule masking a single bit leaves the other bits inherited.
func TestGetPermissionsPartialMask(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, anna, "docs", acl.PermissionUpdate, acl.PermissionNone),
		rule(1, anna, "docs/open", acl.PermissionUpdate, acl.PermissionUpdate),
	)
	svc := newService(t, store, acl.SubjectsFor("anna"))
	ctx := t.Context()

	got, err := svc.GetPermissions(ctx, 1, "s1", "docs")
	if err != nil {
		t.Fatalf("GetPermissions(docs) failed: %v", err)
	}
	if want := acl.PermissionAll.Remove(acl.PermissionUpdate); got != want {
		t.Errorf("GetPermissions(docs) = %v, want %v", got, want)
	}

	got, err = svc.GetPermissions(ctx, 1, "s1", "docs/open/file.txt")
	if err != nil {
		t.Fatalf("GetPermissions(docs/open/file.txt) failed: %v", err)
	}
	if got != acl.PermissionAll {
		t.Errorf("GetPermissions(docs/open/file.txt) = %v, want %v", got, acl.PermissionAll)
	}
}

// Rules for the caller's user and any of their groups merge permissively at
// the same path.
func TestGetPermissionsMergesSubjectsPermissively(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, anna, "docs", acl.PermissionAll, acl.PermissionRead),
		rule(1, staff, "docs", acl.PermissionAll, acl.PermissionUpdate),
	)
	svc := newService(t, store, acl.SubjectsFor("anna", "staff"))

	got, err := svc.GetPermissions(t.Context(), 1, "s1", "docs")
	if err != nil {
		t.Fatalf("GetPermissions() failed: %v", err)
	}
	if want := acl.PermissionRead | acl.PermissionUpdate; got != want {
		t.Errorf("GetPermissions() = %v, want %v", got, want)
	}
}

func TestGetPermissionsIgnoresOtherSubjects(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, bob, "docs", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, store, acl.SubjectsFor("anna"))

	got, err := svc.GetPermissions(t.Context(), 1, "s1", "docs")
	if err != nil {
		t.Fatalf("GetPermissions() failed: %v", err)
	}
	if got != acl.PermissionAll {
		t.Errorf("GetPermissions() = %v, want %v (bob's rules must not bind anna)", got, acl.PermissionAll)
	}
}

func TestGetPermissionsStoreError(t *testing.T) {
	svc := newService(t, &failingStore{Store: memory.New()}, acl.SubjectsFor("anna"))

	if _, err := svc.GetPermissions(t.Context(), 1, "s1", "docs"); err == nil {
		t.Error("GetPermissions() with failing store succeeded, want error")
	}
}

func TestGetRelevantRulesBatchesLookups(t *testing.T) {
	counting := &countingStore{Store: memory.New()}
	seedRules(t, counting.Store,
		rule(1, anna, "", acl.PermissionShare, acl.PermissionNone),
		rule(1, anna, "docs", acl.PermissionUpdate, acl.PermissionNone),
		rule(1, anna, "media", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, counting, acl.SubjectsFor("anna"))
	svc.BindStorage("s1", 1)

	ruleSet, err := svc.GetRelevantRulesForPaths(t.Context(), "s1", []string{"docs/a", "docs/b"}, false)
	if err != nil {
		t.Fatalf("GetRelevantRulesForPaths() failed: %v", err)
	}

	if counting.pathQueries != 1 {
		t.Errorf("path queries = %d, want 1 (lookups must batch)", counting.pathQueries)
	}
	if counting.prefixQueries != 0 {
		t.Errorf("prefix queries = %d, want 0 for non-recursive fetch", counting.prefixQueries)
	}

	// Root and docs rules are relevant; the media rule is not.
	if ruleSet.Len() != 2 {
		t.Errorf("RuleSet.Len() = %d, want 2", ruleSet.Len())
	}

	want := acl.PermissionAll.Remove(acl.PermissionShare | acl.PermissionUpdate)
	for _, p := range []string{"docs/a", "docs/b"} {
		if got := svc.ApplyRules(1, p, ruleSet); got != want {
			t.Errorf("ApplyRules(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestGetRelevantRulesRecursive(t *testing.T) {
	counting := &countingStore{Store: memory.New()}
	seedRules(t, counting.Store,
		rule(1, anna, "docs", acl.PermissionAll, acl.PermissionRead),
		rule(1, anna, "docs/inner/deep", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, counting, acl.SubjectsFor("anna"))
	svc.BindStorage("s1", 1)

	ruleSet, err := svc.GetRelevantRulesForPaths(t.Context(), "s1", []string{"docs"}, true)
	if err != nil {
		t.Fatalf("GetRelevantRulesForPaths(recursive) failed: %v", err)
	}

	if counting.prefixQueries != 1 {
		t.Errorf("prefix queries = %d, want 1", counting.prefixQueries)
	}
	if ruleSet.Len() != 2 {
		t.Errorf("RuleSet.Len() = %d, want 2 (subtree rule must be included)", ruleSet.Len())
	}

	if got := svc.ApplyRules(1, "docs/inner/deep/file.txt", ruleSet); got != acl.PermissionNone {
		t.Errorf("ApplyRules(docs/inner/deep/file.txt) = %v, want %v", got, acl.PermissionNone)
	}
}

func TestGetRelevantRulesUnboundStorage(t *testing.T) {
	counting := &countingStore{Store: memory.New()}
	seedRules(t, counting.Store,
		rule(1, anna, "docs", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, counting, acl.SubjectsFor("anna"))

	ruleSet, err := svc.GetRelevantRulesForPaths(t.Context(), "unbound", []string{"docs"}, false)
	if err != nil {
		t.Fatalf("GetRelevantRulesForPaths() failed: %v", err)
	}
	if counting.pathQueries != 0 {
		t.Errorf("path queries = %d, want 0 for unbound storage", counting.pathQueries)
	}
	if ruleSet.Len() != 0 {
		t.Errorf("RuleSet.Len() = %d, want 0", ruleSet.Len())
	}
	if got := svc.ApplyRules(1, "docs", ruleSet); got != acl.PermissionAll {
		t.Errorf("ApplyRules() = %v, want %v", got, acl.PermissionAll)
	}
}

func TestBindStorageRebinds(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, anna, "docs", acl.PermissionAll, acl.PermissionRead),
		rule(2, anna, "docs", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, store, acl.SubjectsFor("anna"))
	ctx := t.Context()

	svc.BindStorage("s1", 1)
	ruleSet, err := svc.GetRelevantRulesForPaths(ctx, "s1", []string{"docs"}, false)
	if err != nil {
		t.Fatalf("GetRelevantRulesForPaths() failed: %v", err)
	}
	if got := svc.ApplyRules(1, "docs", ruleSet); got != acl.PermissionRead {
		t.Errorf("folder 1 ApplyRules() = %v, want %v", got, acl.PermissionRead)
	}

	svc.BindStorage("s1", 2)
	ruleSet, err = svc.GetRelevantRulesForPaths(ctx, "s1", []string{"docs"}, false)
	if err != nil {
		t.Fatalf("GetRelevantRulesForPaths() after rebind failed: %v", err)
	}
	if got := svc.ApplyRules(2, "docs", ruleSet); got != acl.PermissionNone {
		t.Errorf("folder 2 ApplyRules() = %v, want %v", got, acl.PermissionNone)
	}
}

func TestApplyRulesNilRuleSet(t *testing.T) {
	svc := newService(t, memory.New(), acl.SubjectsFor("anna"))

	if got := svc.ApplyRules(1, "docs", nil); got != acl.PermissionAll {
		t.Errorf("ApplyRules(nil) = %v, want %v", got, acl.PermissionAll)
	}
}

func TestGetSubtreePermissionsAggregates(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, anna, "docs", acl.PermissionAll, acl.PermissionRead|acl.PermissionUpdate),
		rule(1, anna, "docs/reports", acl.PermissionAll, acl.PermissionRead),
		// Rules in other folders never participate.
		rule(2, anna, "docs/other", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, store, acl.SubjectsFor("anna"))
	ctx := t.Context()

	got, err := svc.GetSubtreePermissions(ctx, 1, "s1", "docs")
	if err != nil {
		t.Fatalf("GetSubtreePermissions() failed: %v", err)
	}
	if got != acl.PermissionRead {
		t.Errorf("GetSubtreePermissions(docs) = %v, want %v", got, acl.PermissionRead)
	}

	// No rules below media: the subtree aggregate equals the path's own bits.
	got, err = svc.GetSubtreePermissions(ctx, 1, "s1", "media")
	if err != nil {
		t.Fatalf("GetSubtreePermissions(media) failed: %v", err)
	}
	if got != acl.PermissionAll {
		t.Errorf("GetSubtreePermissions(media) = %v, want %v", got, acl.PermissionAll)
	}
}

func TestGetSubtreePermissionsDeniedDescendant(t *testing.T) {
	store := memory.New()
	seedRules(t, store,
		rule(1, anna, "docs", acl.PermissionAll, acl.PermissionAll),
		rule(1, anna, "docs/tmp", acl.PermissionAll, acl.PermissionNone),
	)
	svc := newService(t, store, acl.SubjectsFor("anna"))

	got, err := svc.GetSubtreePermissions(t.Context(), 1, "s1", "docs")
	if err != nil {
		t.Fatalf("GetSubtreePermissions() failed: %v", err)
	}
	if got != acl.PermissionNone {
		t.Errorf("GetSubtreePermissions(docs) = %v, want %v (a fully denied descendant empties the aggregate)", got, acl.PermissionNone)
	}
}
