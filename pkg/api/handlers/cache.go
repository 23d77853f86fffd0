package handlers

import (
	"net/http"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/cache"
	"github.com/marmos91/aclgate/pkg/guard"
)

// ProviderFunc builds a shared cache provider scoped to one
// (storage, folder) pair.
type ProviderFunc func(storageID string, folderID int64) cache.Provider

// CacheHandler handles shared cache invalidation.
type CacheHandler struct {
	providerFor ProviderFunc
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(providerFor ProviderFunc) *CacheHandler {
	return &CacheHandler{providerFor: providerFor}
}

// InvalidateRequest is the request body for POST /api/v1/cache/invalidate.
// An empty path invalidates the scope's root.
type InvalidateRequest struct {
	StorageID string `json:"storage_id"`
	FolderID  int64  `json:"folder_id"`
	Path      string `json:"path,omitempty"`
}

// Invalidate handles POST /api/v1/cache/invalidate.
// Removes the shared-tier entries a rule edit at the given path makes
// stale: the path's permission entry and the listing entries of its
// ancestor directories.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.StorageID == "" {
		BadRequest(w, "Storage ID is required")
		return
	}
	if req.FolderID < 0 {
		BadRequest(w, "Folder ID must be a non-negative integer")
		return
	}

	provider := h.providerFor(req.StorageID, req.FolderID)
	defer func() { _ = provider.Close() }()

	path := acl.CleanPath(req.Path)
	if err := guard.InvalidateShared(r.Context(), provider, path); err != nil {
		InternalServerError(w, "Failed to invalidate cache: "+err.Error())
		return
	}

	WriteNoContent(w)
}
