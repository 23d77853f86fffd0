// Package acl implements the permission model used by the guarded storage
// layer: bitmask permissions, per-subject access rules, and ordered rule
// application along hierarchical paths.
//
// This package is storage-agnostic: it has no dependencies on cache or
// backend packages. All types use Go primitives and are JSON- and
// YAML-serializable for persistence in rule stores.
package acl

import (
	"fmt"
	"strings"
)

// Permissions is a bitmask of operations a subject may perform on a path.
type Permissions uint32

// Permission bits. Values match the classic share-permission encoding so
// masks stored by other tools remain readable.
const (
	// PermissionRead allows reading content and metadata.
	PermissionRead Permissions = 1 << iota
	// PermissionUpdate allows modifying existing content.
	PermissionUpdate
	// PermissionCreate allows creating new files and directories.
	PermissionCreate
	// PermissionDelete allows removing files and directories.
	PermissionDelete
	// PermissionShare allows sharing the path with other subjects.
	PermissionShare
)

const (
	// PermissionNone grants nothing.
	PermissionNone Permissions = 0

	// PermissionAll is the union of all permission bits and the base value
	// rules are applied onto.
	PermissionAll = PermissionRead | PermissionUpdate | PermissionCreate | PermissionDelete | PermissionShare
)

// permissionNames is ordered by bit position.
var permissionNames = []struct {
	bit  Permissions
	name string
}{
	{PermissionRead, "read"},
	{PermissionUpdate, "update"},
	{PermissionCreate, "create"},
	{PermissionDelete, "delete"},
	{PermissionShare, "share"},
}

// Has reports whether all bits in required are present.
func (p Permissions) Has(required Permissions) bool {
	return p&required == required
}

// Add returns p with the given bits set.
func (p Permissions) Add(bits Permissions) Permissions {
	return p | bits
}

// Remove returns p with the given bits cleared.
func (p Permissions) Remove(bits Permissions) Permissions {
	return p &^ bits
}

// Intersect returns the bits present in both p and other. Used to combine
// backend-advertised permissions with rule-derived ones.
func (p Permissions) Intersect(other Permissions) Permissions {
	return p & other
}

// String returns the canonical comma-separated form, e.g. "read,update".
// The zero value renders as "none".
func (p Permissions) String() string {
	if p == PermissionNone {
		return "none"
	}
	names := make([]string, 0, len(permissionNames))
	for _, pn := range permissionNames {
		if p.Has(pn.bit) {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParsePermissions parses the comma-separated form produced by String.
// "none", "" and "all" are accepted as shorthands.
func ParsePermissions(s string) (Permissions, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "none":
		return PermissionNone, nil
	case "all":
		return PermissionAll, nil
	}

	var p Permissions
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		found := false
		for _, pn := range permissionNames {
			if pn.name == part {
				p = p.Add(pn.bit)
				found = true
				break
			}
		}
		if !found {
			return PermissionNone, fmt.Errorf("unknown permission %q (valid: read, update, create, delete, share)", part)
		}
	}
	return p, nil
}

// MarshalText implements encoding.TextMarshaler so Permissions serialize as
// their string form in JSON.
func (p Permissions) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permissions) UnmarshalText(text []byte) error {
	parsed, err := ParsePermissions(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML renders the string form in YAML documents (rule files).
func (p Permissions) MarshalYAML() (any, error) {
	return p.String(), nil
}

// UnmarshalYAML accepts the string form in YAML documents.
func (p *Permissions) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParsePermissions(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
