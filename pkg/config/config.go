package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/aclgate/pkg/api"
	"github.com/marmos91/aclgate/pkg/rules/store/sql"
)

// Config represents the ACLGate configuration.
//
// This structure captures the static configuration of the aclgate server:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Rule store backend (memory, badger, sqlite, postgres, file)
//   - Shared cache tier (none, memory, redis) and cache sizing
//   - Metrics server settings
//   - Admin API server settings
//   - Admin user setup (for initial bootstrap)
//
// Rules themselves are managed through the REST API or the `aclgate rules`
// commands and live in the configured rule store.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (ACLGATE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Store configures the rule store backend. This is the persistent store
	// for access-control rules.
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Cache configures the two-tier permission/listing cache: the size of
	// the per-instance local tier and the shared cross-process tier.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains admin API server configuration
	API api.Config `mapstructure:"api" yaml:"api"`

	// Admin contains initial admin user configuration for bootstrap
	// This is used by 'aclgate init' to set up the admin credentials
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope
// server for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// StoreType identifies a rule store backend.
type StoreType string

const (
	// StoreTypeMemory keeps rules in process memory. Rules are lost on
	// restart; intended for tests and experiments.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeBadger persists rules in an embedded BadgerDB database.
	StoreTypeBadger StoreType = "badger"

	// StoreTypeSQLite persists rules in a SQLite database file.
	StoreTypeSQLite StoreType = "sqlite"

	// StoreTypePostgres persists rules in PostgreSQL, for deployments where
	// several gate instances share one rule database.
	StoreTypePostgres StoreType = "postgres"

	// StoreTypeFile reads rules from a YAML file, reloaded on change.
	StoreTypeFile StoreType = "file"
)

// StoreConfig configures the rule store backend.
type StoreConfig struct {
	// Type selects the backend.
	// Valid values: memory, badger, sqlite, postgres, file
	// Default: badger
	Type StoreType `mapstructure:"type" yaml:"type"`

	// Badger is the BadgerDB database directory.
	// Default: $XDG_CONFIG_HOME/aclgate/rules.badger
	Badger BadgerStoreConfig `mapstructure:"badger" yaml:"badger,omitempty"`

	// SQLite configures the sqlite backend.
	SQLite sql.SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite,omitempty"`

	// Postgres configures the postgres backend.
	Postgres sql.PostgresConfig `mapstructure:"postgres" yaml:"postgres,omitempty"`

	// File configures the YAML file backend.
	File FileStoreConfig `mapstructure:"file" yaml:"file,omitempty"`
}

// BadgerStoreConfig configures the embedded BadgerDB rule store.
type BadgerStoreConfig struct {
	// Path is the database directory (created if missing).
	Path string `mapstructure:"path" yaml:"path"`
}

// FileStoreConfig configures the YAML file rule store.
type FileStoreConfig struct {
	// Path is the rules file. It does not have to exist yet; the store
	// starts empty and creates it on the first write.
	Path string `mapstructure:"path" yaml:"path"`
}

// CacheConfig configures the two-tier permission and listing cache.
type CacheConfig struct {
	// Capacity is the per-instance local tier capacity in entries.
	// Default: 512
	Capacity int `mapstructure:"capacity" validate:"omitempty,gt=0" yaml:"capacity"`

	// TTL is the shared tier entry lifetime.
	// Default: 300s
	TTL time.Duration `mapstructure:"ttl" validate:"omitempty,gt=0" yaml:"ttl"`

	// Shared configures the shared cross-process tier.
	Shared SharedCacheConfig `mapstructure:"shared" yaml:"shared"`
}

// SharedCacheType identifies a shared cache provider.
type SharedCacheType string

const (
	// SharedCacheNone disables the shared tier; only the local tier is used.
	SharedCacheNone SharedCacheType = "none"

	// SharedCacheMemory uses an in-process TTL map. Entries are shared
	// between guard instances of the same process but not across processes.
	SharedCacheMemory SharedCacheType = "memory"

	// SharedCacheRedis uses Redis, the cross-process deployment.
	SharedCacheRedis SharedCacheType = "redis"
)

// SharedCacheConfig configures the shared cache tier.
type SharedCacheConfig struct {
	// Type selects the provider.
	// Valid values: none, memory, redis
	// Default: none
	Type SharedCacheType `mapstructure:"type" yaml:"type"`

	// Redis configures the redis provider.
	Redis RedisCacheConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

// RedisCacheConfig configures the Redis shared cache provider.
type RedisCacheConfig struct {
	// Addr is the Redis server address (host:port).
	// Default: localhost:6379
	Addr string `mapstructure:"addr" yaml:"addr"`

	// Password is the Redis AUTH password (empty for none).
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// DB is the Redis logical database number.
	DB int `mapstructure:"db" yaml:"db"`

	// PoolSize is the connection pool size (0 uses the client default).
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size,omitempty"`

	// DialTimeout bounds establishing new connections.
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout,omitempty"`

	// ReadTimeout bounds socket reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout,omitempty"`

	// WriteTimeout bounds socket writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AdminConfig contains initial admin user configuration for bootstrap.
// This is used by 'aclgate init' to pre-configure the admin login.
type AdminConfig struct {
	// Username is the admin username
	// Default: "admin"
	Username string `mapstructure:"username" yaml:"username"`

	// PasswordHash is the bcrypt hash of the admin password
	// Generated during 'aclgate init' or can be set manually
	// Use: htpasswd -nbB "" "password" | cut -d: -f2
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ACLGATE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  aclgate init\n\n"+
				"Or specify a custom config file:\n"+
				"  aclgate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  aclgate init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with restricted permissions (0600 = owner read/write only):
	// config files may contain password hashes and cache credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the ACLGATE_ prefix and underscores
	// Example: ACLGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("ACLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/aclgate/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "aclgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "aclgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
