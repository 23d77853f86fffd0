package guard

import (
	"context"
	"time"

	"github.com/marmos91/aclgate/internal/telemetry"
	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/storage"
)

// ListDir returns the children of path the scope is allowed to see;
// inclusion implies the child passed the read gate. The filtered list is
// cached under the directory's key. On a miss the rule lookups for the
// whole directory are batched into one source call, whatever its size.
func (g *GuardedStorage) ListDir(ctx context.Context, path string) ([]string, error) {
	dir := acl.CleanPath(path)
	if err := g.authorizeRead(ctx, "list_dir", dir); err != nil {
		return nil, err
	}

	key := listKey(dir)
	if names, ok := g.listings.Get(ctx, key); ok {
		return names, nil
	}

	children, err := g.backend.ListDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return []string{}, nil
	}

	childPaths := make([]string, len(children))
	for i, name := range children {
		childPaths[i] = acl.JoinPath(dir, name)
	}

	rctx, span := telemetry.StartBatchResolveSpan(ctx, g.storageID, len(childPaths), telemetry.Path(dir))
	defer span.End()

	start := time.Now()
	set, err := g.source.GetRelevantRulesForPaths(rctx, g.storageID, childPaths, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	g.gate.observeResolution(time.Since(start))

	filtered := make([]string, 0, len(children))
	for i, name := range children {
		if g.gate.effectiveFromRules(childPaths[i], set) == acl.PermissionNone {
			continue
		}
		filtered = append(filtered, name)
	}

	g.listings.Set(ctx, key, filtered)
	return filtered, nil
}

// ReadDir returns a scanner over the directory's visible entries. Each
// call returns an independent scanner. Entries failing the read gate are
// skipped; surviving entries carry rewritten permission masks.
func (g *GuardedStorage) ReadDir(ctx context.Context, path string) (storage.DirScanner, error) {
	dir := acl.CleanPath(path)
	if err := g.authorizeRead(ctx, "read_dir", dir); err != nil {
		return nil, err
	}

	// One recursive fetch covers every entry the backend can produce, so
	// per-entry evaluation stays pure while the scan advances.
	start := time.Now()
	set, err := g.source.GetRelevantRulesForPaths(ctx, g.storageID, []string{dir}, true)
	if err != nil {
		return nil, err
	}
	g.gate.observeResolution(time.Since(start))

	inner, err := g.backend.ReadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &guardedScanner{inner: inner, gate: g.gate, dir: dir, set: set}, nil
}

// guardedScanner filters and rewrites entries from a backend scanner.
type guardedScanner struct {
	inner storage.DirScanner
	gate  *AccessGate
	dir   string
	set   *acl.RuleSet
	entry *storage.FileInfo
}

var _ storage.DirScanner = (*guardedScanner)(nil)

func (s *guardedScanner) Next() bool {
	for s.inner.Next() {
		entry := s.inner.Entry()
		effective := s.gate.effectiveFromRules(acl.JoinPath(s.dir, entry.Name), s.set)
		if effective == acl.PermissionNone {
			continue
		}
		rewritePermissions(entry, effective)
		s.entry = entry
		return true
	}
	return false
}

func (s *guardedScanner) Entry() *storage.FileInfo { return s.entry }

func (s *guardedScanner) Err() error { return s.inner.Err() }

func (s *guardedScanner) Close() error { return s.inner.Close() }
