// Package rules implements rule management subcommands.
package rules

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/pkg/config"
	"github.com/marmos91/aclgate/pkg/rules"
)

// Cmd is the rules subcommand.
var Cmd = &cobra.Command{
	Use:   "rules",
	Short: "Permission rule management",
	Long: `Manage permission rules directly against the configured rule store.

These commands operate on the store without going through a running
server. Rule changes made here are not propagated to the shared cache
of a running server; use the HTTP API (or 'aclgate cache clear') when
one is active.

Subcommands:
  list    List rules for a folder (or all folders)
  set     Insert or replace a rule
  remove  Delete a rule
  check   Evaluate effective permissions for an identity and path`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(checkCmd)
}

// openStore loads the configuration referenced by the command's --config
// flag and opens the rule store it describes.
func openStore(cmd *cobra.Command) (rules.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}
	return config.CreateRuleStore(&cfg.Store)
}
