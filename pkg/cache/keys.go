package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// PathKey derives the cache key for a storage path: the xxhash of the
// canonical path in hex. Hashing keeps keys short and uniform regardless of
// path depth; permission and listing entries for the same path share the key
// because they live in separate caches.
func PathKey(path string) string {
	return strconv.FormatUint(xxhash.Sum64String(path), 16)
}

// Namespace builds the shared-tier key prefix isolating one
// (storage, folder) pair. Providers prepend it to every key so instances
// guarding different folders never collide in a shared store.
func Namespace(storageID string, folderID int64) string {
	return "aclgate:" + storageID + ":" + strconv.FormatInt(folderID, 10) + ":"
}
