package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/aclgate/internal/logger"
	"github.com/marmos91/aclgate/pkg/acl"
)

// Service implements Source on top of a Store for one caller identity.
//
// A Service is constructed for a fixed subject set (the user plus their
// groups). Rules matching any of those subjects participate in resolution;
// same-path matches merge permissively, deeper paths override shallower
// ones, and paths without any matching rule resolve to full permissions.
//
// Storage backends are mapped to rule folders with BindStorage. Batch
// queries arriving for an unbound storage resolve against an empty rule set.
type Service struct {
	store    Store
	subjects []acl.Subject

	mu       sync.RWMutex
	bindings map[string]int64
}

var _ Source = (*Service)(nil)

// ServiceConfig contains the settings for a Service.
type ServiceConfig struct {
	// Store is the rule persistence backend.
	Store Store

	// Subjects is the identity to resolve for, usually built with
	// acl.SubjectsFor(user, groups...).
	Subjects []acl.Subject
}

// NewService creates a rule resolution service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	return &Service{
		store:    cfg.Store,
		subjects: cfg.Subjects,
		bindings: make(map[string]int64),
	}, nil
}

// BindStorage maps a storage backend ID onto the rule folder that governs it.
// Rebinding an ID replaces the previous mapping.
func (s *Service) BindStorage(storageID string, folderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[storageID] = folderID
}

// folderFor returns the folder bound to a storage ID.
func (s *Service) folderFor(storageID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bindings[storageID]
	return id, ok
}

// GetPermissions resolves the effective bitmask for one path.
func (s *Service) GetPermissions(ctx context.Context, folderID int64, storageID, path string) (acl.Permissions, error) {
	ruleSet, err := s.fetchRuleSet(ctx, folderID, acl.SelfAndAncestors(path), false, "")
	if err != nil {
		return acl.PermissionNone, err
	}
	return s.ApplyRules(folderID, path, ruleSet), nil
}

// GetRelevantRulesForPaths batches the rule fetch for a set of paths. Every
// ancestor of every path is included so ApplyRules can evaluate each path
// without further store access.
func (s *Service) GetRelevantRulesForPaths(ctx context.Context, storageID string, paths []string, recursive bool) (*acl.RuleSet, error) {
	folderID, ok := s.folderFor(storageID)
	if !ok {
		logger.Debug("rules: storage not bound to a folder, resolving unrestricted", "storage_id", storageID)
		return acl.NewRuleSet(), nil
	}

	seen := make(map[string]struct{})
	var query []string
	for _, p := range paths {
		for _, q := range acl.SelfAndAncestors(p) {
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			query = append(query, q)
		}
	}

	byPath, err := s.store.GetRulesForPaths(ctx, folderID, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}

	ruleSet := acl.NewRuleSet()
	added := make(map[string]struct{})
	addRule := func(r acl.Rule) {
		if !r.Matches(s.subjects) {
			return
		}
		id := r.Subject.String() + "\x00" + r.Path
		if _, dup := added[id]; dup {
			return
		}
		added[id] = struct{}{}
		ruleSet.Add(r)
	}

	for _, pathRules := range byPath {
		for _, r := range pathRules {
			addRule(r)
		}
	}

	if recursive {
		for _, p := range paths {
			below, err := s.store.GetRulesForPrefix(ctx, folderID, acl.CleanPath(p))
			if err != nil {
				return nil, fmt.Errorf("failed to fetch subtree rules: %w", err)
			}
			for _, r := range below {
				addRule(r)
			}
		}
	}

	return ruleSet, nil
}

// ApplyRules evaluates a pre-fetched rule set for one path.
func (s *Service) ApplyRules(folderID int64, path string, ruleSet *acl.RuleSet) acl.Permissions {
	if ruleSet == nil {
		return acl.PermissionAll
	}
	return ruleSet.ApplyForPath(folderID, acl.PermissionAll, acl.CleanPath(path))
}

// GetSubtreePermissions computes the AND-aggregate of effective permissions
// over path and everything below it. Descendants without rules of their own
// inherit a listed ancestor's bits, so only rule-bearing paths need explicit
// evaluation.
func (s *Service) GetSubtreePermissions(ctx context.Context, folderID int64, storageID, path string) (acl.Permissions, error) {
	clean := acl.CleanPath(path)
	ruleSet, err := s.fetchRuleSet(ctx, folderID, acl.SelfAndAncestors(clean), true, clean)
	if err != nil {
		return acl.PermissionNone, err
	}

	aggregate := ruleSet.ApplyForPath(folderID, acl.PermissionAll, clean)
	for _, p := range ruleSet.PathsUnder(folderID, clean) {
		aggregate = aggregate.Intersect(ruleSet.ApplyForPath(folderID, acl.PermissionAll, p))
	}
	return aggregate, nil
}

// fetchRuleSet loads subject-matching rules for the exact paths given and,
// when withSubtree is set, for everything below subtreePrefix as well.
func (s *Service) fetchRuleSet(ctx context.Context, folderID int64, paths []string, withSubtree bool, subtreePrefix string) (*acl.RuleSet, error) {
	byPath, err := s.store.GetRulesForPaths(ctx, folderID, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}

	ruleSet := acl.NewRuleSet()
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		seen[p] = struct{}{}
	}
	for _, pathRules := range byPath {
		for _, r := range pathRules {
			if r.Matches(s.subjects) {
				ruleSet.Add(r)
			}
		}
	}

	if withSubtree {
		below, err := s.store.GetRulesForPrefix(ctx, folderID, subtreePrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch subtree rules: %w", err)
		}
		for _, r := range below {
			if _, dup := seen[r.Path]; dup {
				continue
			}
			if r.Matches(s.subjects) {
				ruleSet.Add(r)
			}
		}
	}

	return ruleSet, nil
}
