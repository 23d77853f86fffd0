package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for errors.
//
// Struct-level constraints (log levels, port ranges, sample rates) are
// enforced via validator tags; backend-specific requirements that depend on
// which store or cache type is selected are checked explicitly.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validateStore(&cfg.Store); err != nil {
		return err
	}

	if err := validateCache(&cfg.Cache); err != nil {
		return err
	}

	return nil
}

// validateStore checks the rule store section.
func validateStore(cfg *StoreConfig) error {
	switch cfg.Type {
	case StoreTypeMemory:
		// Nothing to configure.
	case StoreTypeBadger:
		if cfg.Badger.Path == "" {
			return fmt.Errorf("store: badger path is required")
		}
	case StoreTypeSQLite:
		// Path defaults inside the sql store; always valid here.
	case StoreTypePostgres:
		if cfg.Postgres.Host == "" {
			return fmt.Errorf("store: postgres host is required")
		}
		if cfg.Postgres.Database == "" {
			return fmt.Errorf("store: postgres database is required")
		}
		if cfg.Postgres.User == "" {
			return fmt.Errorf("store: postgres user is required")
		}
	case StoreTypeFile:
		if cfg.File.Path == "" {
			return fmt.Errorf("store: file path is required")
		}
	default:
		return fmt.Errorf("store: unsupported type %q (valid: memory, badger, sqlite, postgres, file)", cfg.Type)
	}

	return nil
}

// validateCache checks the cache section.
func validateCache(cfg *CacheConfig) error {
	switch cfg.Shared.Type {
	case SharedCacheNone, SharedCacheMemory:
		// Nothing to configure.
	case SharedCacheRedis:
		if cfg.Shared.Redis.Addr == "" {
			return fmt.Errorf("cache: redis addr is required")
		}
	default:
		return fmt.Errorf("cache: unsupported shared cache type %q (valid: none, memory, redis)", cfg.Shared.Type)
	}

	return nil
}
