package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so entries can be
// aggregated and queried by field.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Authorization
	// ========================================================================
	KeyOperation   = "operation"   // Storage operation name: read_file, rename, etc.
	KeyPath        = "path"        // Folder-relative canonical path
	KeyOldPath     = "old_path"    // Source path for rename/copy operations
	KeyNewPath     = "new_path"    // Destination path for rename/copy operations
	KeyFolderID    = "folder_id"   // Folder scope identifier
	KeyStorageID   = "storage_id"  // Storage scope identifier
	KeySubject     = "subject"     // Acting subject ("user:anna", "group:staff")
	KeyRequired    = "required"    // Permissions an operation requires
	KeyEffective   = "effective"   // Effective permissions after rule overlay
	KeyPermissions = "permissions" // Permission set of a rule or entry
	KeyMask        = "mask"        // Rule mask selecting the bits a rule governs

	// ========================================================================
	// Rule Store
	// ========================================================================
	KeyStoreType = "store_type" // Rule store type: memory, badger, sql, file
	KeyRuleCount = "rule_count" // Number of rules touched by an operation

	// ========================================================================
	// Cache Layer
	// ========================================================================
	KeyCache    = "cache"    // Cache name: permissions, listings
	KeyTier     = "tier"     // Cache tier: local, shared
	KeyCacheHit = "cache_hit" // Cache hit indicator
	KeyCapacity = "capacity" // Maximum local-tier capacity
	KeyTTL      = "ttl"      // Shared-tier entry lifetime
	KeyEvicted  = "evicted"  // Number of entries evicted

	// ========================================================================
	// HTTP API
	// ========================================================================
	KeyMethod    = "method"     // HTTP method
	KeyRoute     = "route"      // Matched route pattern
	KeyStatus    = "status"     // HTTP status code
	KeyRequestID = "request_id" // Request identifier for correlation
	KeyClientIP  = "client_ip"  // Client IP address
	KeyUsername  = "username"   // Authenticated user
	KeyBytes     = "bytes"      // Response size in bytes

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeySource     = "source"      // Data source: cache, rules, backend
	KeyEntries    = "entries"     // Number of listing entries
	KeySize       = "size"        // Content size in bytes
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyAddress    = "address"     // Network address (listen or dial)
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Authorization
// ----------------------------------------------------------------------------

// Operation returns a slog.Attr for a storage operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Path returns a slog.Attr for a canonical path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// OldPath returns a slog.Attr for the source of a rename or copy
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for the destination of a rename or copy
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// FolderID returns a slog.Attr for the folder scope
func FolderID(id int64) slog.Attr {
	return slog.Int64(KeyFolderID, id)
}

// StorageID returns a slog.Attr for the storage scope
func StorageID(id string) slog.Attr {
	return slog.String(KeyStorageID, id)
}

// Subject returns a slog.Attr for an acting subject
func Subject(s string) slog.Attr {
	return slog.String(KeySubject, s)
}

// Required returns a slog.Attr for the permissions an operation requires
func Required(perms string) slog.Attr {
	return slog.String(KeyRequired, perms)
}

// Effective returns a slog.Attr for effective permissions
func Effective(perms string) slog.Attr {
	return slog.String(KeyEffective, perms)
}

// ----------------------------------------------------------------------------
// Rule Store
// ----------------------------------------------------------------------------

// StoreType returns a slog.Attr for a rule store type
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// RuleCount returns a slog.Attr for the number of rules touched
func RuleCount(n int) slog.Attr {
	return slog.Int(KeyRuleCount, n)
}

// ----------------------------------------------------------------------------
// Cache Layer
// ----------------------------------------------------------------------------

// Cache returns a slog.Attr for a cache name
func Cache(name string) slog.Attr {
	return slog.String(KeyCache, name)
}

// Tier returns a slog.Attr for a cache tier
func Tier(tier string) slog.Attr {
	return slog.String(KeyTier, tier)
}

// CacheHit returns a slog.Attr for cache hit status
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// Evicted returns a slog.Attr for eviction count
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// ----------------------------------------------------------------------------
// HTTP API
// ----------------------------------------------------------------------------

// Method returns a slog.Attr for an HTTP method
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Route returns a slog.Attr for a matched route pattern
func Route(r string) slog.Attr {
	return slog.String(KeyRoute, r)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// RequestID returns a slog.Attr for a request identifier
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for a client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Username returns a slog.Attr for an authenticated user
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// Bytes returns a slog.Attr for a response size in bytes
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for operation duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error (empty attr if err is nil)
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Source returns a slog.Attr for a data source
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Entries returns a slog.Attr for a listing entry count
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// Size returns a slog.Attr for content size in bytes
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Address returns a slog.Attr for a network address
func Address(addr string) slog.Attr {
	return slog.String(KeyAddress, addr)
}
