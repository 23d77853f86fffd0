package acl

import (
	"path"
	"strings"
)

// Rule paths and storage paths share one normal form: forward slashes, no
// leading or trailing slash, "" for the root. Every package that touches
// paths normalizes through these helpers so cache keys and rule lookups
// agree on the same spelling.

// CleanPath normalizes p to the canonical form.
func CleanPath(p string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.Trim(cleaned, "/")
}

// ParentPath returns the parent directory of p, with the root normalized to
// the empty string. The parent of the root is the root itself.
func ParentPath(p string) string {
	p = CleanPath(p)
	if p == "" {
		return ""
	}
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// BaseName returns the last element of p, or "" for the root.
func BaseName(p string) string {
	p = CleanPath(p)
	if p == "" {
		return ""
	}
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// JoinPath joins dir and name in canonical form.
func JoinPath(dir, name string) string {
	dir = CleanPath(dir)
	name = CleanPath(name)
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	return dir + "/" + name
}

// Ancestors returns every directory from the root (inclusive, spelled "")
// down to p's immediate parent, in root-first order. For a top-level path it
// returns just the root.
func Ancestors(p string) []string {
	p = CleanPath(p)
	ancestors := []string{""}
	if p == "" {
		return ancestors
	}
	parts := strings.Split(p, "/")
	for i := 1; i < len(parts); i++ {
		ancestors = append(ancestors, strings.Join(parts[:i], "/"))
	}
	return ancestors
}

// SelfAndAncestors returns Ancestors(p) followed by p itself.
func SelfAndAncestors(p string) []string {
	p = CleanPath(p)
	if p == "" {
		return []string{""}
	}
	return append(Ancestors(p), p)
}

// IsDescendant reports whether child lives strictly below parent.
// Every path except the root itself descends from the root.
func IsDescendant(parent, child string) bool {
	parent = CleanPath(parent)
	child = CleanPath(child)
	if child == "" {
		return false
	}
	if parent == "" {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}
