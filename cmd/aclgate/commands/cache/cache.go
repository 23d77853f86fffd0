// Package cache implements shared cache maintenance subcommands.
package cache

import (
	"github.com/spf13/cobra"
)

// Cmd is the cache subcommand.
var Cmd = &cobra.Command{
	Use:   "cache",
	Short: "Shared cache maintenance",
	Long: `Maintain the shared permission cache tier.

These commands require a shared cache to be configured (cache.shared
in the configuration file). The local in-process tier of a running
server cannot be reached from here; it expires on its own.

Subcommands:
  clear  Drop cached entries for a storage scope`,
}

func init() {
	Cmd.AddCommand(clearCmd)
}
