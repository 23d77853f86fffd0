package guard

import (
	"context"
	"fmt"

	"github.com/marmos91/aclgate/internal/logger"
	"github.com/marmos91/aclgate/internal/telemetry"
	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/cache"
)

// invalidate drops cached state made stale by a successful mutation at
// path. Local tiers are cleared wholesale. In the shared tier the path's
// permission entry goes, plus the listing entry of every directory from
// the root down to the path's parent, inclusive. Removal failures never
// fail the mutation that triggered them; stale entries age out with the
// TTL.
func (g *GuardedStorage) invalidate(ctx context.Context, path string) {
	clean := acl.CleanPath(path)

	g.gate.clearLocal()
	g.listings.ClearLocal()

	if err := g.gate.removeShared(ctx, clean); err != nil {
		logger.Warn("shared permission invalidation failed, entry expires with ttl",
			"path", clean, "error", err)
	}
	for _, dir := range acl.Ancestors(clean) {
		if err := g.listings.RemoveShared(ctx, listKey(dir)); err != nil {
			logger.Warn("shared listing invalidation failed, entry expires with ttl",
				"path", dir, "error", err)
		}
	}

	if g.metrics != nil {
		g.metrics.RecordInvalidation()
	}
}

// InvalidateShared removes the shared-tier entries a mutation at path makes
// stale: the path's permission entry and the listing entries of every
// directory from the root down to the path's parent. The provider must be
// namespaced for the scope the path belongs to. Serves out-of-band
// invalidation, such as after editing rules directly.
func InvalidateShared(ctx context.Context, provider cache.Provider, path string) error {
	clean := acl.CleanPath(path)

	ctx, span := telemetry.StartInvalidateSpan(ctx, clean, telemetry.CacheTier("shared"))
	defer span.End()

	if err := provider.Remove(ctx, permKey(clean)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("removing permission entry for %q: %w", clean, err)
	}
	for _, dir := range acl.Ancestors(clean) {
		if err := provider.Remove(ctx, listKey(dir)); err != nil {
			span.RecordError(err)
			return fmt.Errorf("removing listing entry for %q: %w", dir, err)
		}
	}
	return nil
}
