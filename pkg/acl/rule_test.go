package acl

import "testing"

func TestRuleApply(t *testing.T) {
	// The rule decides READ and UPDATE; CREATE passes through untouched.
	r := Rule{
		Mask:        PermissionRead | PermissionUpdate,
		Permissions: PermissionRead,
	}

	got := r.Apply(PermissionAll)
	want := PermissionAll.Remove(PermissionUpdate)
	if got != want {
		t.Errorf("Apply(all) = %v, want %v", got, want)
	}

	got = r.Apply(PermissionNone)
	if got != PermissionRead {
		t.Errorf("Apply(none) = %v, want read", got)
	}
}

func TestRuleApplyUnmaskedBitsInherit(t *testing.T) {
	r := Rule{Mask: PermissionDelete, Permissions: PermissionNone}

	base := PermissionRead | PermissionDelete
	got := r.Apply(base)
	if got != PermissionRead {
		t.Errorf("Apply = %v, want read (delete withdrawn, read inherited)", got)
	}
}

func TestRuleValidate(t *testing.T) {
	valid := Rule{
		FolderID:    1,
		Subject:     Subject{Type: SubjectGroup, ID: "staff"},
		Path:        "projects/alpha",
		Mask:        PermissionAll,
		Permissions: PermissionRead,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	bad := valid
	bad.Mask = PermissionNone
	if err := bad.Validate(); err == nil {
		t.Error("empty mask must be rejected")
	}

	bad = valid
	bad.Path = "/projects/alpha/"
	if err := bad.Validate(); err == nil {
		t.Error("non-canonical path must be rejected")
	}

	bad = valid
	bad.Subject.Type = "robot"
	if err := bad.Validate(); err == nil {
		t.Error("unknown subject type must be rejected")
	}

	bad = valid
	bad.Permissions = Permissions(1 << 10)
	if err := bad.Validate(); err == nil {
		t.Error("unknown permission bits must be rejected")
	}
}

func TestParseSubject(t *testing.T) {
	s, err := ParseSubject("user:alice")
	if err != nil {
		t.Fatalf("ParseSubject: %v", err)
	}
	if s.Type != SubjectUser || s.ID != "alice" {
		t.Errorf("got %+v", s)
	}

	if _, err := ParseSubject("alice"); err == nil {
		t.Error("missing type must be rejected")
	}
	if _, err := ParseSubject("team:devs"); err == nil {
		t.Error("unknown type must be rejected")
	}
}

func TestSubjectsFor(t *testing.T) {
	subjects := SubjectsFor("alice", "staff", "admins")
	if len(subjects) != 3 {
		t.Fatalf("got %d subjects, want 3", len(subjects))
	}
	if subjects[0] != (Subject{Type: SubjectUser, ID: "alice"}) {
		t.Errorf("first subject = %v", subjects[0])
	}
	if subjects[2] != (Subject{Type: SubjectGroup, ID: "admins"}) {
		t.Errorf("last subject = %v", subjects[2])
	}
}

func TestRuleMatches(t *testing.T) {
	r := Rule{Subject: Subject{Type: SubjectGroup, ID: "staff"}}
	callers := SubjectsFor("alice", "staff")

	if !r.Matches(callers) {
		t.Error("group rule must match a member's subject set")
	}
	if r.Matches(SubjectsFor("bob", "sales")) {
		t.Error("rule must not match unrelated subjects")
	}
}
