package telemetry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for authorization, rule resolution and cache operations.
// Generic keys follow OpenTelemetry semantic conventions where applicable.
const (
	// Guard (authorization) attributes
	AttrOperation  = "guard.operation"   // stat, read_file, rename, delete, ...
	AttrPath       = "guard.path"        // path the operation targets
	AttrTargetPath = "guard.target_path" // rename/copy destination
	AttrDecision   = "guard.decision"    // allowed, denied
	AttrInShare    = "guard.in_share"    // share scope (SHARE satisfies the read gate)

	// Rule resolution attributes
	AttrFolderID  = "rules.folder_id"
	AttrStorageID = "rules.storage_id"
	AttrSubject   = "rules.subject" // user:name / group:name
	AttrPathCount = "rules.path_count"
	AttrStoreType = "rules.store_type"

	// Cache attributes
	AttrCacheName = "cache.name" // permissions, listings
	AttrCacheTier = "cache.tier" // local, shared
	AttrCacheHit  = "cache.hit"

	// Identity attributes
	AttrUsername = "user.name"
	AttrGroups   = "user.groups"

	// Permission bitmask rendered in its canonical string form
	AttrPermissions = "acl.permissions"
)

// Span names. Format: <component>.<operation>.
const (
	SpanAuthorize      = "guard.authorize"
	SpanResolve        = "rules.resolve"
	SpanResolveBatch   = "rules.resolve_batch"
	SpanResolveSubtree = "rules.resolve_subtree"
	SpanInvalidate     = "cache.invalidate"
	SpanCacheClear     = "cache.clear"
)

// Operation returns an attribute for the guarded operation name.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Path returns an attribute for the operation's target path.
func Path(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// TargetPath returns an attribute for a rename or copy destination.
func TargetPath(path string) attribute.KeyValue {
	return attribute.String(AttrTargetPath, path)
}

// Decision returns an attribute for the authorization outcome.
func Decision(allowed bool) attribute.KeyValue {
	if allowed {
		return attribute.String(AttrDecision, "allowed")
	}
	return attribute.String(AttrDecision, "denied")
}

// InShare returns an attribute marking a share-scoped evaluation.
func InShare(inShare bool) attribute.KeyValue {
	return attribute.Bool(AttrInShare, inShare)
}

// FolderID returns an attribute for the rule folder.
func FolderID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrFolderID, id)
}

// StorageID returns an attribute for the storage scope.
func StorageID(id string) attribute.KeyValue {
	return attribute.String(AttrStorageID, id)
}

// Subject returns an attribute for a rule subject in user:/group: form.
func Subject(subject string) attribute.KeyValue {
	return attribute.String(AttrSubject, subject)
}

// PathCount returns an attribute for the size of a batch resolution.
func PathCount(n int) attribute.KeyValue {
	return attribute.Int(AttrPathCount, n)
}

// StoreType returns an attribute for the rule store backend.
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// CacheName returns an attribute naming the cache (permissions, listings).
func CacheName(name string) attribute.KeyValue {
	return attribute.String(AttrCacheName, name)
}

// CacheTier returns an attribute for the cache tier (local, shared).
func CacheTier(tier string) attribute.KeyValue {
	return attribute.String(AttrCacheTier, tier)
}

// CacheHit returns an attribute for cache hit indicator.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// Username returns an attribute for the evaluated user.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// Groups returns an attribute for the evaluated group memberships.
func Groups(groups []string) attribute.KeyValue {
	return attribute.String(AttrGroups, strings.Join(groups, ","))
}

// Permissions returns an attribute for a permission bitmask in its
// canonical comma-separated form.
func Permissions(rendered string) attribute.KeyValue {
	return attribute.String(AttrPermissions, rendered)
}

// StartAuthorizeSpan starts a span for one authorization decision.
func StartAuthorizeSpan(ctx context.Context, operation, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Operation(operation),
		Path(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanAuthorize, trace.WithAttributes(allAttrs...))
}

// StartResolveSpan starts a span for a single-path rule resolution.
func StartResolveSpan(ctx context.Context, folderID int64, storageID, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		FolderID(folderID),
		StorageID(storageID),
		Path(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanResolve, trace.WithAttributes(allAttrs...))
}

// StartBatchResolveSpan starts a span for a listing's batched resolution.
func StartBatchResolveSpan(ctx context.Context, storageID string, pathCount int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StorageID(storageID),
		PathCount(pathCount),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanResolveBatch, trace.WithAttributes(allAttrs...))
}

// StartSubtreeResolveSpan starts a span for a recursive delete check.
func StartSubtreeResolveSpan(ctx context.Context, folderID int64, storageID, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		FolderID(folderID),
		StorageID(storageID),
		Path(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanResolveSubtree, trace.WithAttributes(allAttrs...))
}

// StartInvalidateSpan starts a span for a cache invalidation.
func StartInvalidateSpan(ctx context.Context, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Path(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanInvalidate, trace.WithAttributes(allAttrs...))
}
