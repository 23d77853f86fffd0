// Package rules resolves access-control rules into effective permission
// bitmasks.
//
// The package has two layers. Store is the persistence contract: it holds
// rules keyed by (folder, subject, path) and answers path and prefix
// queries. Source is the resolution contract the storage guard consumes:
// it turns stored rules into effective bitmasks for a caller's subject set,
// one path at a time or batched for a whole directory listing. Service
// implements Source on top of any Store.
package rules

import (
	"context"

	"github.com/marmos91/aclgate/pkg/acl"
)

// Source resolves effective permissions for paths inside rule folders.
//
// Implementations may be arbitrarily expensive per call; the storage guard
// caches results and batches listing lookups, so a Source never needs its
// own cache.
type Source interface {
	// GetPermissions resolves the effective bitmask for a single path.
	// Rules on the path and all of its ancestors participate; rules bound
	// to other folders never do.
	GetPermissions(ctx context.Context, folderID int64, storageID, path string) (acl.Permissions, error)

	// GetRelevantRulesForPaths fetches every rule needed to evaluate the
	// given paths in one batch, ancestors included. With recursive set,
	// rules below the given paths are fetched too, which is what a subtree
	// aggregate needs. The result feeds ApplyRules without further I/O.
	GetRelevantRulesForPaths(ctx context.Context, storageID string, paths []string, recursive bool) (*acl.RuleSet, error)

	// ApplyRules evaluates a pre-fetched rule set for one path. It is a
	// pure function: no I/O, no error. A nil rule set means no rules and
	// resolves to full permissions.
	ApplyRules(folderID int64, path string, ruleSet *acl.RuleSet) acl.Permissions

	// GetSubtreePermissions aggregates effective permissions across the
	// whole subtree rooted at path: a bit is present in the result only if
	// it is present at path and at every descendant.
	GetSubtreePermissions(ctx context.Context, folderID int64, storageID, path string) (acl.Permissions, error)
}
