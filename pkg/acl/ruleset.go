package acl

import "sort"

// RuleSet holds pre-fetched rules grouped by folder and path, ready for
// overlay application. A single set may carry rules for every child of a
// directory so a listing pays the rule lookup once, not once per child.
type RuleSet struct {
	byFolder map[int64]map[string][]Rule
}

// NewRuleSet builds a set from the given rules.
func NewRuleSet(rules ...Rule) *RuleSet {
	rs := &RuleSet{byFolder: make(map[int64]map[string][]Rule)}
	for _, r := range rules {
		rs.Add(r)
	}
	return rs
}

// Add inserts a rule into the set.
func (rs *RuleSet) Add(r Rule) {
	paths, ok := rs.byFolder[r.FolderID]
	if !ok {
		paths = make(map[string][]Rule)
		rs.byFolder[r.FolderID] = paths
	}
	paths[r.Path] = append(paths[r.Path], r)
}

// Len returns the total number of rules in the set.
func (rs *RuleSet) Len() int {
	n := 0
	for _, paths := range rs.byFolder {
		for _, rules := range paths {
			n += len(rules)
		}
	}
	return n
}

// RulesAt returns the rules registered exactly at path for a folder.
func (rs *RuleSet) RulesAt(folderID int64, path string) []Rule {
	paths, ok := rs.byFolder[folderID]
	if !ok {
		return nil
	}
	return paths[path]
}

// mergeAt combines all rules at one path permissively: masks are unioned
// and a masked bit is allowed if any rule at the path allows it. A user
// granted a bit through one membership keeps it regardless of what another
// membership says.
func (rs *RuleSet) mergeAt(folderID int64, path string) (mask, allowed Permissions) {
	for _, r := range rs.RulesAt(folderID, path) {
		mask |= r.Mask
		allowed |= r.Permissions & r.Mask
	}
	return mask, allowed
}

// ApplyForPath computes the effective permissions for path by overlaying
// merged rules from the root down to the path itself onto base. Deeper
// rules override shallower ones; unmasked bits inherit.
func (rs *RuleSet) ApplyForPath(folderID int64, base Permissions, path string) Permissions {
	p := base
	for _, prefix := range SelfAndAncestors(path) {
		mask, allowed := rs.mergeAt(folderID, prefix)
		p = (p &^ mask) | allowed
	}
	return p
}

// PathsUnder returns, sorted, every rule-bearing path strictly below prefix
// for a folder. Descendants without rules of their own inherit a listed
// ancestor's bits, so aggregate subtree checks only need these paths.
func (rs *RuleSet) PathsUnder(folderID int64, prefix string) []string {
	paths, ok := rs.byFolder[folderID]
	if !ok {
		return nil
	}
	var under []string
	for p := range paths {
		if IsDescendant(prefix, p) {
			under = append(under, p)
		}
	}
	sort.Strings(under)
	return under
}
