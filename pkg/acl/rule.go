package acl

import (
	"fmt"
	"strings"
)

// SubjectType discriminates who a rule applies to.
type SubjectType string

const (
	// SubjectUser rules apply to a single user.
	SubjectUser SubjectType = "user"
	// SubjectGroup rules apply to every member of a group.
	SubjectGroup SubjectType = "group"
)

// Subject identifies the user or group a rule is granted to.
type Subject struct {
	Type SubjectType `json:"type" yaml:"type"`
	ID   string      `json:"id" yaml:"id"`
}

// String returns the "type:id" form used in CLI arguments and store keys.
func (s Subject) String() string {
	return string(s.Type) + ":" + s.ID
}

// Validate checks the subject is well formed.
func (s Subject) Validate() error {
	if s.Type != SubjectUser && s.Type != SubjectGroup {
		return fmt.Errorf("invalid subject type %q (valid: user, group)", s.Type)
	}
	if s.ID == "" {
		return fmt.Errorf("subject id must not be empty")
	}
	if strings.ContainsAny(s.ID, ":/") {
		return fmt.Errorf("subject id %q must not contain ':' or '/'", s.ID)
	}
	return nil
}

// ParseSubject parses the "type:id" form produced by Subject.String.
func ParseSubject(s string) (Subject, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return Subject{}, fmt.Errorf("invalid subject %q (expected \"user:name\" or \"group:name\")", s)
	}
	subject := Subject{Type: SubjectType(typ), ID: id}
	if err := subject.Validate(); err != nil {
		return Subject{}, err
	}
	return subject, nil
}

// SubjectsFor builds the subject set an authenticated caller matches:
// their user subject plus one group subject per membership.
func SubjectsFor(user string, groups ...string) []Subject {
	subjects := make([]Subject, 0, 1+len(groups))
	if user != "" {
		subjects = append(subjects, Subject{Type: SubjectUser, ID: user})
	}
	for _, g := range groups {
		subjects = append(subjects, Subject{Type: SubjectGroup, ID: g})
	}
	return subjects
}

// Rule grants or withholds permission bits for a subject on a path and,
// through overlay application, on the subtree below it. Mask selects which
// bits the rule decides; Permissions carries their values. Bits outside
// Mask are inherited from the parent overlay.
type Rule struct {
	FolderID    int64       `json:"folder_id" yaml:"folder_id"`
	Subject     Subject     `json:"subject" yaml:"subject"`
	Path        string      `json:"path" yaml:"path"`
	Mask        Permissions `json:"mask" yaml:"mask"`
	Permissions Permissions `json:"permissions" yaml:"permissions"`
}

// Apply overlays the rule onto p: masked bits take the rule's values,
// unmasked bits pass through.
func (r Rule) Apply(p Permissions) Permissions {
	return (p &^ r.Mask) | (r.Permissions & r.Mask)
}

// Validate checks the rule is well formed. Paths are expected in canonical
// form; callers normalize with CleanPath before storing.
func (r Rule) Validate() error {
	if r.FolderID < 0 {
		return fmt.Errorf("folder id must not be negative")
	}
	if err := r.Subject.Validate(); err != nil {
		return err
	}
	if r.Mask == PermissionNone {
		return fmt.Errorf("rule mask must select at least one permission bit")
	}
	if r.Mask > PermissionAll || r.Permissions > PermissionAll {
		return fmt.Errorf("rule carries unknown permission bits")
	}
	if r.Path != CleanPath(r.Path) {
		return fmt.Errorf("rule path %q is not in canonical form", r.Path)
	}
	return nil
}

// Matches reports whether the rule applies to any of the given subjects.
func (r Rule) Matches(subjects []Subject) bool {
	for _, s := range subjects {
		if r.Subject == s {
			return true
		}
	}
	return false
}
