// Package guard decorates a storage backend with rule-based permission
// filtering. A GuardedStorage authorizes every operation against the
// effective permissions of its configured scope, delegates to the wrapped
// backend, and invalidates cached results after successful mutations.
//
// Denial is a normal outcome, not an exception: read-class operations on
// invisible paths answer as if the path did not exist, and mutations
// report a permission error indistinguishable from a backend refusal.
package guard

import (
	"context"
	"sync"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/cache"
	"github.com/marmos91/aclgate/pkg/rules"
	"github.com/marmos91/aclgate/pkg/storage"
)

// GuardedStorage is a storage.Storage that filters every operation through
// an AccessGate before delegating to the wrapped backend.
type GuardedStorage struct {
	backend   storage.Storage
	source    rules.Source
	gate      *AccessGate
	listings  *cache.TwoTier[[]string]
	folderID  int64
	storageID string
	metrics   Metrics

	mu      sync.Mutex
	pending map[*invalidatingWriter]struct{}
}

var _ storage.Storage = (*GuardedStorage)(nil)

// New wraps backend with permission filtering for the scope described by
// the options.
func New(backend storage.Storage, source rules.Source, opts ...Option) *GuardedStorage {
	o := resolveOptions(opts)
	return &GuardedStorage{
		backend:   backend,
		source:    source,
		gate:      newAccessGate(source, o),
		folderID:  o.folderID,
		storageID: o.storageID,
		metrics:   o.metrics,
		listings: cache.NewTwoTier[[]string](cache.Config{
			Name:     "listings",
			Capacity: o.cacheCapacity,
			TTL:      o.cacheTTL,
			Shared:   o.shared,
			Metrics:  o.cacheMetrics,
		}),
		pending: make(map[*invalidatingWriter]struct{}),
	}
}

// Close releases the guard, firing the deferred invalidation of any write
// handle that was never closed. The wrapped backend and the shared cache
// provider stay open; they belong to the caller.
func (g *GuardedStorage) Close() error {
	g.mu.Lock()
	writers := make([]*invalidatingWriter, 0, len(g.pending))
	for w := range g.pending {
		writers = append(writers, w)
	}
	g.pending = nil
	g.mu.Unlock()

	for _, w := range writers {
		w.finalize()
	}
	return nil
}

// ============================================================================
// Authorization helpers
// ============================================================================

// authorizeRead gates a read-class operation. Denials surface as NotFound:
// an invisible path must be indistinguishable from an absent one.
func (g *GuardedStorage) authorizeRead(ctx context.Context, operation, path string) error {
	ok, err := g.gate.canRead(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		g.recordDenial(operation)
		return storage.NewNotFoundError(path)
	}
	return nil
}

// require gates a mutation on holding every bit in required. Denials
// surface as PermissionDenied, same as a backend refusal.
func (g *GuardedStorage) require(ctx context.Context, operation, path string, required acl.Permissions) error {
	ok, err := g.gate.CheckPermissions(ctx, path, required)
	if err != nil {
		return err
	}
	if !ok {
		g.recordDenial(operation)
		return storage.NewPermissionDeniedError(path)
	}
	return nil
}

// requireWrite gates a create-or-update mutation: CREATE when the target
// is absent, UPDATE when it already exists.
func (g *GuardedStorage) requireWrite(ctx context.Context, operation, path string) error {
	exists, err := g.backend.Exists(ctx, path)
	if err != nil {
		return err
	}
	required := acl.PermissionCreate
	if exists {
		required = acl.PermissionUpdate
	}
	return g.require(ctx, operation, path, required)
}

func (g *GuardedStorage) recordDenial(operation string) {
	if g.metrics != nil {
		g.metrics.RecordDenial(operation)
	}
}

// rewritePermissions replaces an entry's live permission mask with the
// intersection of what the backend grants and what the rules allow. The
// mask found on first rewrite is preserved under ScanPermissions and never
// overwritten afterwards, so stacked guards keep the backend's original.
func rewritePermissions(info *storage.FileInfo, effective acl.Permissions) {
	if info.ScanPermissions == nil {
		original := info.Permissions
		info.ScanPermissions = &original
	}
	info.Permissions = info.Permissions.Intersect(effective)
}

// ============================================================================
// Non-gated operations
// ============================================================================

// FreeSpace forwards to the backend; capacity is not permission-scoped.
func (g *GuardedStorage) FreeSpace(ctx context.Context) (int64, error) {
	return g.backend.FreeSpace(ctx)
}

// Permissions returns the intersection of the backend's own mask and the
// rule-derived effective mask. The intersection is recomputed on every
// call; only the effective part may come from the permission cache.
func (g *GuardedStorage) Permissions(ctx context.Context, path string) (acl.Permissions, error) {
	backendPerms, err := g.backend.Permissions(ctx, path)
	if err != nil {
		return acl.PermissionNone, err
	}
	effective, err := g.gate.EffectivePermissions(ctx, path)
	if err != nil {
		return acl.PermissionNone, err
	}
	return backendPerms.Intersect(effective), nil
}
