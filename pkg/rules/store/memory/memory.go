// Package memory provides an in-memory rule store, suitable for tests and
// single-process deployments that configure rules at startup.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
)

// MemoryRuleStore implements rules.Store with plain maps.
// All operations are safe for concurrent use.
type MemoryRuleStore struct {
	mu sync.RWMutex

	// folder → path → subject key → rule
	folders map[int64]map[string]map[string]acl.Rule
}

var _ rules.Store = (*MemoryRuleStore)(nil)

// New creates an empty in-memory rule store.
func New() *MemoryRuleStore {
	return &MemoryRuleStore{
		folders: make(map[int64]map[string]map[string]acl.Rule),
	}
}

func (s *MemoryRuleStore) GetRule(ctx context.Context, folderID int64, subject acl.Subject, path string) (*acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.folders[folderID][acl.CleanPath(path)][subject.String()]
	if !ok {
		return nil, rules.ErrRuleNotFound
	}
	return &r, nil
}

func (s *MemoryRuleStore) GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]acl.Rule)
	byPath, ok := s.folders[folderID]
	if !ok {
		return result, nil
	}
	for _, p := range paths {
		clean := acl.CleanPath(p)
		for _, r := range byPath[clean] {
			result[clean] = append(result[clean], r)
		}
		sortRules(result[clean])
	}
	return result, nil
}

func (s *MemoryRuleStore) GetRulesForPrefix(ctx context.Context, folderID int64, prefix string) ([]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	clean := acl.CleanPath(prefix)
	var matched []acl.Rule
	for p, bySubject := range s.folders[folderID] {
		if p != clean && !acl.IsDescendant(clean, p) {
			continue
		}
		for _, r := range bySubject {
			matched = append(matched, r)
		}
	}
	sortRules(matched)
	return matched, nil
}

func (s *MemoryRuleStore) SetRule(ctx context.Context, rule acl.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byPath, ok := s.folders[rule.FolderID]
	if !ok {
		byPath = make(map[string]map[string]acl.Rule)
		s.folders[rule.FolderID] = byPath
	}
	bySubject, ok := byPath[rule.Path]
	if !ok {
		bySubject = make(map[string]acl.Rule)
		byPath[rule.Path] = bySubject
	}
	bySubject[rule.Subject.String()] = rule
	return nil
}

func (s *MemoryRuleStore) DeleteRule(ctx context.Context, folderID int64, subject acl.Subject, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clean := acl.CleanPath(path)
	bySubject, ok := s.folders[folderID][clean]
	if !ok {
		return nil
	}
	delete(bySubject, subject.String())
	if len(bySubject) == 0 {
		delete(s.folders[folderID], clean)
		if len(s.folders[folderID]) == 0 {
			delete(s.folders, folderID)
		}
	}
	return nil
}

func (s *MemoryRuleStore) ListRules(ctx context.Context, folderID int64) ([]acl.Rule, error) {
	return s.GetRulesForPrefix(ctx, folderID, "")
}

func (s *MemoryRuleStore) ListFolders(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.folders))
	for id := range s.folders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryRuleStore) Close() error {
	return nil
}

// sortRules orders rules by path, then subject, for deterministic output.
func sortRules(rs []acl.Rule) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Path != rs[j].Path {
			return rs[i].Path < rs[j].Path
		}
		return rs[i].Subject.String() < rs[j].Subject.String()
	})
}
