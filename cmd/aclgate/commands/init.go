package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/aclgate/internal/cli/prompt"
	"github.com/marmos91/aclgate/pkg/api"
	"github.com/marmos91/aclgate/pkg/config"
)

var (
	initForce      bool
	initNoPassword bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample ACLGate configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/aclgate/config.yaml
and you are prompted for an admin password, stored as a bcrypt hash.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  aclgate init

  # Initialize with custom path
  aclgate init --config /etc/aclgate/config.yaml

  # Force overwrite existing config
  aclgate init --force

  # Skip the admin password prompt (set admin.password_hash later)
  aclgate init --no-password`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVar(&initNoPassword, "no-password", false, "Skip the admin password prompt")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	if !initNoPassword {
		if err := setAdminPassword(configPath); err != nil {
			return err
		}
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: aclgate start")
	fmt.Printf("  3. Or specify custom config: aclgate start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The API needs a JWT signing secret of at least 32 characters.")
	fmt.Println("  For production, generate one and pass it via environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", api.EnvAPISecret)

	return nil
}

// setAdminPassword prompts for the admin password and writes its bcrypt hash
// into the freshly generated config file, replacing the commented
// password_hash placeholder so the surrounding comments survive.
func setAdminPassword(configPath string) error {
	password, err := prompt.PasswordWithConfirmation("Admin password", "Confirm admin password", 8)
	if err != nil {
		return fmt.Errorf("failed to read admin password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	updated := strings.Replace(string(content),
		`# password_hash: ""`,
		fmt.Sprintf("password_hash: %q", hash), 1)

	if err := os.WriteFile(configPath, []byte(updated), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
