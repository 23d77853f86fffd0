package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is
// written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// folderIDParam extracts the {folderID} URL parameter. Returns the parsed
// ID and true if successful, or writes a 400 response and returns false.
func folderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "folderID")
	folderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || folderID < 0 {
		BadRequest(w, "Folder ID must be a non-negative integer")
		return 0, false
	}
	return folderID, true
}
