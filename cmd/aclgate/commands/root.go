// Package commands implements the CLI commands for aclgate server management.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/cmd/aclgate/commands/cache"
	"github.com/marmos91/aclgate/cmd/aclgate/commands/config"
	"github.com/marmos91/aclgate/cmd/aclgate/commands/rules"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "aclgate",
	Short: "ACLGate - Permission-filtering storage gateway",
	Long: `ACLGate is a permission-filtering cache layer that sits between clients
of a hierarchical storage system and the storage backend. It authorizes every
path-based operation against access-control rules, caches permission decisions
and directory listings in a two-tier cache, and keeps that cache coherent
across mutations.

This binary runs the rule store and its admin API; the guard itself is
embedded as a library by storage frontends.

Use "aclgate [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/aclgate/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(rules.Cmd)
	rootCmd.AddCommand(cache.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
