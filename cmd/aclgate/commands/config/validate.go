package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the ACLGate configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  aclgate config validate

  # Validate specific config file
  aclgate config validate --config /etc/aclgate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - API authentication will fail")
	}
	if cfg.Admin.PasswordHash == "" {
		warnings = append(warnings, "Admin password hash not configured - API login will fail")
	}
	if cfg.Cache.Shared.Type == config.SharedCacheNone {
		warnings = append(warnings, "Shared cache tier disabled - permission decisions are cached per instance only")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Rule store:      %s\n", cfg.Store.Type)
	fmt.Printf("  Shared cache:    %s\n", cfg.Cache.Shared.Type)
	fmt.Printf("  API port:        %d\n", cfg.API.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
