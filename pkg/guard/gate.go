package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/aclgate/internal/telemetry"
	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/cache"
	"github.com/marmos91/aclgate/pkg/rules"
)

// permKey and listKey keep the two entry kinds apart inside a scope's
// shared namespace.
func permKey(path string) string { return "perm:" + cache.PathKey(path) }
func listKey(path string) string { return "list:" + cache.PathKey(path) }

// AccessGate resolves the effective permissions a scope holds on single
// paths and caches the gated results in a two-tier cache.
type AccessGate struct {
	source    rules.Source
	perms     *cache.TwoTier[acl.Permissions]
	folderID  int64
	storageID string
	inShare   bool
	metrics   Metrics
}

// NewAccessGate builds a standalone gate. New wires one up internally;
// this constructor serves callers that need permission checks without
// decorating a backend, such as admin tooling.
func NewAccessGate(source rules.Source, opts ...Option) *AccessGate {
	return newAccessGate(source, resolveOptions(opts))
}

func newAccessGate(source rules.Source, o options) *AccessGate {
	return &AccessGate{
		source:    source,
		folderID:  o.folderID,
		storageID: o.storageID,
		inShare:   o.inShare,
		metrics:   o.metrics,
		perms: cache.NewTwoTier[acl.Permissions](cache.Config{
			Name:     "permissions",
			Capacity: o.cacheCapacity,
			TTL:      o.cacheTTL,
			Shared:   o.shared,
			Metrics:  o.cacheMetrics,
		}),
	}
}

// GateVisibility zeroes a bitmask that does not meet the read requirement:
// READ, or READ|SHARE inside share scopes. A subject that cannot see a
// path holds no rights on it at all.
func GateVisibility(p acl.Permissions, inShare bool) acl.Permissions {
	readBits := acl.PermissionRead
	if inShare {
		readBits = readBits.Add(acl.PermissionShare)
	}
	if p.Intersect(readBits) == acl.PermissionNone {
		return acl.PermissionNone
	}
	return p
}

// EffectivePermissions returns the gated bitmask the scope holds on path,
// served from a cache tier when possible.
func (g *AccessGate) EffectivePermissions(ctx context.Context, path string) (acl.Permissions, error) {
	clean := acl.CleanPath(path)
	key := permKey(clean)

	if p, ok := g.perms.Get(ctx, key); ok {
		return p, nil
	}

	// Misses resolve independently: no caller waits on another's fill,
	// and no caller inherits another's cancellation. Concurrent misses
	// for one path may duplicate a lookup; the cache absorbs the rest.
	rctx, span := telemetry.StartResolveSpan(ctx, g.folderID, g.storageID, clean)
	defer span.End()

	start := time.Now()
	resolved, err := g.source.GetPermissions(rctx, g.folderID, g.storageID, clean)
	if err != nil {
		span.RecordError(err)
		return acl.PermissionNone, fmt.Errorf("resolving permissions for %q: %w", clean, err)
	}
	g.observeResolution(time.Since(start))

	effective := GateVisibility(resolved, g.inShare)
	span.SetAttributes(telemetry.Permissions(effective.String()), telemetry.InShare(g.inShare))
	g.perms.Set(ctx, key, effective)
	return effective, nil
}

// CheckPermissions reports whether the scope holds every bit in required
// on path.
func (g *AccessGate) CheckPermissions(ctx context.Context, path string, required acl.Permissions) (bool, error) {
	effective, err := g.EffectivePermissions(ctx, path)
	if err != nil {
		return false, err
	}
	return effective.Has(required), nil
}

// canRead reports whether the scope may see the path at all. Cached values
// are already gated, so any surviving bit implies visibility.
func (g *AccessGate) canRead(ctx context.Context, path string) (bool, error) {
	effective, err := g.EffectivePermissions(ctx, path)
	if err != nil {
		return false, err
	}
	return effective != acl.PermissionNone, nil
}

// effectiveFromRules evaluates a pre-fetched rule set for one path with
// the same gating as EffectivePermissions. Pure: no I/O, no cache.
func (g *AccessGate) effectiveFromRules(path string, set *acl.RuleSet) acl.Permissions {
	return GateVisibility(g.source.ApplyRules(g.folderID, acl.CleanPath(path), set), g.inShare)
}

func (g *AccessGate) clearLocal() {
	g.perms.ClearLocal()
}

func (g *AccessGate) removeShared(ctx context.Context, path string) error {
	return g.perms.RemoveShared(ctx, permKey(acl.CleanPath(path)))
}

func (g *AccessGate) observeResolution(d time.Duration) {
	if g.metrics != nil {
		g.metrics.ObserveRuleResolution(d)
	}
}
