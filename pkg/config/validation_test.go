package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
}

func TestValidate_PostgresRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "missing host",
			mutate: func(cfg *Config) {
				cfg.Store.Postgres.Host = ""
			},
			wantErr: "postgres host",
		},
		{
			name: "missing database",
			mutate: func(cfg *Config) {
				cfg.Store.Postgres.Database = ""
			},
			wantErr: "postgres database",
		},
		{
			name: "missing user",
			mutate: func(cfg *Config) {
				cfg.Store.Postgres.User = ""
			},
			wantErr: "postgres user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Store.Type = StoreTypePostgres
			cfg.Store.Postgres.Host = "localhost"
			cfg.Store.Postgres.Database = "aclgate"
			cfg.Store.Postgres.User = "aclgate"
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_UnknownStoreType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.Type = "etcd"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidate_RedisRequiresAddr(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Shared.Type = SharedCacheRedis
	cfg.Cache.Shared.Redis.Addr = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for missing redis addr")
	}
}

func TestValidate_UnknownSharedCacheType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Shared.Type = "memcached"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for unknown shared cache type")
	}
}

func TestValidate_InvalidSampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected error for sample rate > 1.0")
	}
}
