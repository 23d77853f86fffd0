package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/marmos91/aclgate/pkg/cache"
	cachememory "github.com/marmos91/aclgate/pkg/cache/provider/memory"
	cacheredis "github.com/marmos91/aclgate/pkg/cache/provider/redis"
	"github.com/marmos91/aclgate/pkg/rules"
	badgerstore "github.com/marmos91/aclgate/pkg/rules/store/badger"
	filestore "github.com/marmos91/aclgate/pkg/rules/store/file"
	memorystore "github.com/marmos91/aclgate/pkg/rules/store/memory"
	sqlstore "github.com/marmos91/aclgate/pkg/rules/store/sql"
)

// CreateRuleStore creates a rule store instance from configuration.
func CreateRuleStore(cfg *StoreConfig) (rules.Store, error) {
	switch cfg.Type {
	case StoreTypeMemory:
		return memorystore.New(), nil

	case StoreTypeBadger:
		store, err := badgerstore.New(cfg.Badger.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger rule store: %w", err)
		}
		return store, nil

	case StoreTypeSQLite:
		store, err := sqlstore.New(&sqlstore.Config{
			Type:   sqlstore.DatabaseTypeSQLite,
			SQLite: cfg.SQLite,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite rule store: %w", err)
		}
		return store, nil

	case StoreTypePostgres:
		store, err := sqlstore.New(&sqlstore.Config{
			Type:     sqlstore.DatabaseTypePostgres,
			Postgres: cfg.Postgres,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres rule store: %w", err)
		}
		return store, nil

	case StoreTypeFile:
		store, err := filestore.New(cfg.File.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file rule store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown rule store type: %q", cfg.Type)
	}
}

// SharedCache builds shared-tier cache providers scoped to a
// (storage, folder) pair from the configured backend.
//
// For Redis one client is shared across all scopes; each scope gets a
// provider with its own key namespace. For the in-process memory backend
// providers are memoized per namespace so every consumer of a scope sees
// the same entries, mirroring what an external store gives for free.
type SharedCache struct {
	cacheType SharedCacheType
	client    *redis.Client

	mu     sync.Mutex
	memory map[string]*cachememory.MemoryProvider
}

// NewSharedCache connects to the configured shared cache backend.
// With SharedCacheNone the returned value is still usable: Enabled reports
// false and Provider returns nil, which disables the shared tier
// transparently downstream.
func NewSharedCache(ctx context.Context, cfg *CacheConfig) (*SharedCache, error) {
	s := &SharedCache{cacheType: cfg.Shared.Type}

	switch cfg.Shared.Type {
	case SharedCacheNone:
		// No shared tier.

	case SharedCacheMemory:
		s.memory = make(map[string]*cachememory.MemoryProvider)

	case SharedCacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Shared.Redis.Addr,
			Password:     cfg.Shared.Redis.Password,
			DB:           cfg.Shared.Redis.DB,
			PoolSize:     cfg.Shared.Redis.PoolSize,
			DialTimeout:  cfg.Shared.Redis.DialTimeout,
			ReadTimeout:  cfg.Shared.Redis.ReadTimeout,
			WriteTimeout: cfg.Shared.Redis.WriteTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Shared.Redis.Addr, err)
		}
		s.client = client

	default:
		return nil, fmt.Errorf("unknown shared cache type: %q", cfg.Shared.Type)
	}

	return s, nil
}

// Enabled reports whether a shared tier is configured.
func (s *SharedCache) Enabled() bool {
	return s.cacheType != SharedCacheNone
}

// Provider returns a cache provider namespaced to the given scope, or nil
// when no shared tier is configured. The signature matches the provider
// factory the API server and the guard constructors expect.
func (s *SharedCache) Provider(storageID string, folderID int64) cache.Provider {
	namespace := cache.Namespace(storageID, folderID)

	switch s.cacheType {
	case SharedCacheMemory:
		s.mu.Lock()
		defer s.mu.Unlock()
		provider, ok := s.memory[namespace]
		if !ok {
			provider = cachememory.New()
			s.memory[namespace] = provider
		}
		return provider

	case SharedCacheRedis:
		return cacheredis.NewFromClient(s.client, namespace)

	default:
		return nil
	}
}

// Close releases the backend connection, if any.
func (s *SharedCache) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
