package file

import (
	"context"
	"sort"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
)

// index is the in-memory view of the rule file: folder → path → subject →
// rule. It carries no locking of its own; FileRuleStore.mu guards access.
type index struct {
	folders map[int64]map[string]map[string]acl.Rule
}

func newIndex() *index {
	return &index{folders: make(map[int64]map[string]map[string]acl.Rule)}
}

func (ix *index) set(r acl.Rule) {
	byPath, ok := ix.folders[r.FolderID]
	if !ok {
		byPath = make(map[string]map[string]acl.Rule)
		ix.folders[r.FolderID] = byPath
	}
	bySubject, ok := byPath[r.Path]
	if !ok {
		bySubject = make(map[string]acl.Rule)
		byPath[r.Path] = bySubject
	}
	bySubject[r.Subject.String()] = r
}

func (ix *index) delete(folderID int64, subject acl.Subject, path string) {
	bySubject, ok := ix.folders[folderID][path]
	if !ok {
		return
	}
	delete(bySubject, subject.String())
	if len(bySubject) == 0 {
		delete(ix.folders[folderID], path)
		if len(ix.folders[folderID]) == 0 {
			delete(ix.folders, folderID)
		}
	}
}

func (ix *index) len() int {
	n := 0
	for _, byPath := range ix.folders {
		for _, bySubject := range byPath {
			n += len(bySubject)
		}
	}
	return n
}

// all returns every rule ordered by folder, path, subject. The ordering
// keeps the saved file diff-friendly.
func (ix *index) all() []acl.Rule {
	var out []acl.Rule
	folders := make([]int64, 0, len(ix.folders))
	for id := range ix.folders {
		folders = append(folders, id)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i] < folders[j] })
	for _, id := range folders {
		out = append(out, ix.folderRules(id)...)
	}
	return out
}

func (ix *index) folderRules(folderID int64) []acl.Rule {
	var out []acl.Rule
	for _, bySubject := range ix.folders[folderID] {
		for _, r := range bySubject {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out
}

func sortRules(rs []acl.Rule) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Path != rs[j].Path {
			return rs[i].Path < rs[j].Path
		}
		return rs[i].Subject.String() < rs[j].Subject.String()
	})
}

// ============================================================================
// rules.Store implementation
// ============================================================================

var _ rules.Store = (*FileRuleStore)(nil)

func (s *FileRuleStore) GetRule(ctx context.Context, folderID int64, subject acl.Subject, path string) (*acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.index.folders[folderID][acl.CleanPath(path)][subject.String()]
	if !ok {
		return nil, rules.ErrRuleNotFound
	}
	return &r, nil
}

func (s *FileRuleStore) GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]acl.Rule)
	byPath, ok := s.index.folders[folderID]
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

func (s *FileRuleStore) GetRulesForPrefix(ctx context.Context, folderID int64, prefix string) ([]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	clean := acl.CleanPath(prefix)
	var matched []acl.Rule
	for p, bySubject := range s.index.folders[folderID] {
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

func (s *FileRuleStore) SetRule(ctx context.Context, rule acl.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.set(rule)
	return s.save()
}

func (s *FileRuleStore) DeleteRule(ctx context.Context, folderID int64, subject acl.Subject, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.index.delete(folderID, subject, acl.CleanPath(path))
	return s.save()
}

func (s *FileRuleStore) ListRules(ctx context.Context, folderID int64) ([]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.folderRules(folderID), nil
}

func (s *FileRuleStore) ListFolders(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.index.folders))
	for id := range s.index.folders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
