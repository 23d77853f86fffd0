package guard

import (
	"context"
	"time"

	"github.com/marmos91/aclgate/internal/telemetry"
	"github.com/marmos91/aclgate/pkg/acl"
)

// canDeleteTree reports whether DELETE holds across the whole subtree at
// path. One bulk aggregate answers it: a bit survives the aggregate only
// if the path and every descendant grant it.
func (g *GuardedStorage) canDeleteTree(ctx context.Context, path string) (bool, error) {
	clean := acl.CleanPath(path)

	rctx, span := telemetry.StartSubtreeResolveSpan(ctx, g.folderID, g.storageID, clean)
	defer span.End()

	start := time.Now()
	aggregate, err := g.source.GetSubtreePermissions(rctx, g.folderID, g.storageID, clean)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	g.gate.observeResolution(time.Since(start))

	allowed := aggregate.Has(acl.PermissionDelete)
	span.SetAttributes(telemetry.Decision(allowed))
	return allowed, nil
}
