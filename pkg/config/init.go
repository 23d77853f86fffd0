package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig creates a configuration file with commented defaults at the
// default location ($XDG_CONFIG_HOME/aclgate/config.yaml).
//
// Returns the path of the created file. Fails if the file already exists
// unless force is true.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath creates a configuration file with commented defaults at
// the given path, creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s\n\n"+
				"Use --force to overwrite it", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file will hold the admin password hash after init.
	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// sampleConfig is the commented starter configuration written by
// 'aclgate init'. It must stay in sync with the defaults in defaults.go.
const sampleConfig = `# ACLGate Configuration File
#
# This file configures the aclgate server. All values shown are defaults;
# uncomment and edit what you need. Every setting can also be provided via
# environment variables with the ACLGATE_ prefix, e.g.
# ACLGATE_LOGGING_LEVEL=DEBUG.

logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Log format: text, json
  format: text
  # Log destination: stdout, stderr, or a file path
  output: stdout

# Maximum time to wait for graceful shutdown
shutdown_timeout: 30s

store:
  # Rule store backend: memory, badger, sqlite, postgres, file
  type: badger
  # badger:
  #   path: ~/.config/aclgate/rules.badger
  # sqlite:
  #   path: ~/.config/aclgate/rules.db
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: aclgate
  #   user: aclgate
  #   password: ""
  #   sslmode: disable
  # file:
  #   path: ~/.config/aclgate/rules.yaml

cache:
  # Local tier capacity (entries per guard instance)
  capacity: 512
  # Shared tier entry lifetime
  ttl: 300s
  shared:
    # Shared tier backend: none, memory, redis
    type: none
    # redis:
    #   addr: localhost:6379
    #   password: ""
    #   db: 0

metrics:
  # Prometheus metrics endpoint (served on /metrics)
  enabled: false
  # port: 9090

api:
  # Admin API port
  port: 8080
  jwt:
    # HMAC signing key for API tokens, at least 32 characters.
    # Prefer the ACLGATE_API_SECRET environment variable over this file.
    secret: ""

admin:
  # Admin login for the API. The password hash is a bcrypt hash,
  # generated by 'aclgate init' or htpasswd -nbB "" "password".
  username: admin
  # password_hash: ""
`
