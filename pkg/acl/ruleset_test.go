package acl

import (
	"reflect"
	"testing"
)

func groupRule(folderID int64, group, path string, mask, perms Permissions) Rule {
	return Rule{
		FolderID:    folderID,
		Subject:     Subject{Type: SubjectGroup, ID: group},
		Path:        path,
		Mask:        mask,
		Permissions: perms,
	}
}

func TestRuleSetApplyForPathOverlay(t *testing.T) {
	// Parent rule cuts secret/ down to READ; a deeper rule restores full
	// bits on secret/x. The deeper rule must win for secret/x while
	// siblings keep the parent's restriction.
	rs := NewRuleSet(
		groupRule(1, "staff", "secret", PermissionAll, PermissionRead),
		groupRule(1, "staff", "secret/x", PermissionAll, PermissionAll),
	)

	if got := rs.ApplyForPath(1, PermissionAll, "secret"); got != PermissionRead {
		t.Errorf("secret = %v, want read", got)
	}
	if got := rs.ApplyForPath(1, PermissionAll, "secret/x"); got != PermissionAll {
		t.Errorf("secret/x = %v, want all", got)
	}
	if got := rs.ApplyForPath(1, PermissionAll, "secret/y"); got != PermissionRead {
		t.Errorf("secret/y = %v, want read (inherited)", got)
	}
	if got := rs.ApplyForPath(1, PermissionAll, "public"); got != PermissionAll {
		t.Errorf("public = %v, want all (no rules)", got)
	}
}

func TestRuleSetSamePathMergeIsPermissive(t *testing.T) {
	// One membership withdraws UPDATE, another grants it. The subject
	// keeps the bit: merge at a path ORs the allowed bits.
	rs := NewRuleSet(
		groupRule(1, "readers", "docs", PermissionUpdate, PermissionNone),
		groupRule(1, "editors", "docs", PermissionUpdate, PermissionUpdate),
	)

	got := rs.ApplyForPath(1, PermissionAll, "docs")
	if !got.Has(PermissionUpdate) {
		t.Errorf("docs = %v, want UPDATE present after permissive merge", got)
	}
}

func TestRuleSetUnmaskedBitsInheritAcrossLevels(t *testing.T) {
	// Level rules only decide their masked bits; everything else flows
	// down from the base.
	rs := NewRuleSet(
		groupRule(7, "staff", "a", PermissionDelete, PermissionNone),
		groupRule(7, "staff", "a/b", PermissionShare, PermissionNone),
	)

	got := rs.ApplyForPath(7, PermissionAll, "a/b/c")
	want := PermissionAll.Remove(PermissionDelete).Remove(PermissionShare)
	if got != want {
		t.Errorf("a/b/c = %v, want %v", got, want)
	}
}

func TestRuleSetFoldersAreIsolated(t *testing.T) {
	rs := NewRuleSet(
		groupRule(1, "staff", "docs", PermissionAll, PermissionRead),
	)

	if got := rs.ApplyForPath(2, PermissionAll, "docs"); got != PermissionAll {
		t.Errorf("folder 2 docs = %v, rules from folder 1 must not leak", got)
	}
}

func TestRuleSetPathsUnder(t *testing.T) {
	rs := NewRuleSet(
		groupRule(1, "staff", "a", PermissionAll, PermissionRead),
		groupRule(1, "staff", "a/b", PermissionAll, PermissionRead),
		groupRule(1, "staff", "a/b/c", PermissionAll, PermissionRead),
		groupRule(1, "staff", "ab", PermissionAll, PermissionRead),
	)

	got := rs.PathsUnder(1, "a")
	want := []string{"a/b", "a/b/c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PathsUnder(a) = %v, want %v", got, want)
	}

	if got := rs.PathsUnder(1, ""); len(got) != 4 {
		t.Errorf("PathsUnder(root) = %v, want all four rule paths", got)
	}
}

func TestRuleSetLen(t *testing.T) {
	rs := NewRuleSet()
	if rs.Len() != 0 {
		t.Fatalf("empty set Len = %d", rs.Len())
	}
	rs.Add(groupRule(1, "staff", "", PermissionAll, PermissionAll))
	rs.Add(groupRule(2, "staff", "", PermissionAll, PermissionAll))
	if rs.Len() != 2 {
		t.Errorf("Len = %d, want 2", rs.Len())
	}
}
