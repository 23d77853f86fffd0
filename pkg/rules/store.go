package rules

import (
	"context"

	"github.com/marmos91/aclgate/pkg/acl"
)

// Store persists access-control rules. A rule is identified by its
// (folderID, subject, path) triple; SetRule replaces any rule with the same
// identity.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// GetRule returns the rule with the given identity, or ErrRuleNotFound.
	GetRule(ctx context.Context, folderID int64, subject acl.Subject, path string) (*acl.Rule, error)

	// GetRulesForPaths returns the rules at exactly the given paths, grouped
	// by path. Paths without rules are absent from the result.
	GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error)

	// GetRulesForPrefix returns the rules at prefix and at every path below
	// it. The root prefix ("") selects the folder's entire rule set.
	GetRulesForPrefix(ctx context.Context, folderID int64, prefix string) ([]acl.Rule, error)

	// SetRule inserts or replaces a rule.
	SetRule(ctx context.Context, rule acl.Rule) error

	// DeleteRule removes a rule. Deleting a rule that does not exist is not
	// an error.
	DeleteRule(ctx context.Context, folderID int64, subject acl.Subject, path string) error

	// ListRules returns every rule in a folder.
	ListRules(ctx context.Context, folderID int64) ([]acl.Rule, error)

	// ListFolders returns the IDs of every folder that has at least one rule,
	// in ascending order.
	ListFolders(ctx context.Context) ([]int64, error)

	// Close releases the store's resources.
	Close() error
}
