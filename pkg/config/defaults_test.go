package config

import (
	"strings"
	"testing"
	"time"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format text, got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Store.Type != StoreTypeBadger {
		t.Errorf("Expected default store type badger, got %q", cfg.Store.Type)
	}
	if cfg.Store.Badger.Path == "" {
		t.Error("Expected a default badger path")
	}
	if cfg.Cache.Capacity != 512 {
		t.Errorf("Expected default cache capacity 512, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 300*time.Second {
		t.Errorf("Expected default cache ttl 300s, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.Shared.Type != SharedCacheNone {
		t.Errorf("Expected default shared cache none, got %q", cfg.Cache.Shared.Type)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if cfg.Admin.Username != "admin" {
		t.Errorf("Expected default admin username, got %q", cfg.Admin.Username)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		ShutdownTimeout: 5 * time.Second,
		Cache:           CacheConfig{Capacity: 64, TTL: time.Minute},
	}
	ApplyDefaults(cfg)

	// Levels are normalized to uppercase
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Explicit format was overwritten: %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Explicit shutdown timeout was overwritten: %v", cfg.ShutdownTimeout)
	}
	if cfg.Cache.Capacity != 64 {
		t.Errorf("Explicit cache capacity was overwritten: %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Errorf("Explicit cache ttl was overwritten: %v", cfg.Cache.TTL)
	}
}

func TestApplyDefaults_MetricsPortOnlyWhenEnabled(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Metrics port should stay 0 while disabled, got %d", cfg.Metrics.Port)
	}

	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_RedisAddr(t *testing.T) {
	cfg := &Config{Cache: CacheConfig{Shared: SharedCacheConfig{Type: SharedCacheRedis}}}
	ApplyDefaults(cfg)

	if cfg.Cache.Shared.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected default redis addr, got %q", cfg.Cache.Shared.Redis.Addr)
	}
}

func TestApplyDefaults_FileStorePath(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Type: StoreTypeFile}}
	ApplyDefaults(cfg)

	if cfg.Store.File.Path == "" {
		t.Error("Expected a default file store path")
	}
	if !strings.HasSuffix(cfg.Store.File.Path, "rules.yaml") {
		t.Errorf("Unexpected default file store path: %q", cfg.Store.File.Path)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config does not validate: %v", err)
	}
}
