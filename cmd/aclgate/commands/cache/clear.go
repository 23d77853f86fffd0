package cache

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/internal/cli/prompt"
	"github.com/marmos91/aclgate/pkg/config"
)

var (
	clearStorage string
	clearFolder  int64
	clearForce   bool
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached entries for a storage scope",
	Long: `Drop every cached permission and listing entry for the given
storage and folder from the shared cache tier.

Entries are rebuilt on demand from the rule store, so clearing is
safe but causes a burst of backend load while the cache refills.

Examples:
  aclgate cache clear --storage home --folder 42

  # Skip the confirmation prompt
  aclgate cache clear --storage home --folder 42 --force`,
	RunE: runCacheClear,
}

func init() {
	clearCmd.Flags().StringVar(&clearStorage, "storage", "", "Storage ID of the scope to clear (required)")
	clearCmd.Flags().Int64Var(&clearFolder, "folder", -1, "Folder ID of the scope to clear (required)")
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip confirmation prompt")
	_ = clearCmd.MarkFlagRequired("storage")
	_ = clearCmd.MarkFlagRequired("folder")
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}
	if cfg.Cache.Shared.Type == config.SharedCacheNone {
		return fmt.Errorf("no shared cache configured (cache.shared.type is %q)", config.SharedCacheNone)
	}
	if cfg.Cache.Shared.Type == config.SharedCacheMemory {
		return fmt.Errorf("the in-memory shared cache lives inside the server process and cannot be cleared from here")
	}

	if !clearForce {
		label := fmt.Sprintf("Clear cached entries for storage %q folder %d", clearStorage, clearFolder)
		confirmed, err := prompt.ConfirmDanger(label, "clear")
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()

	shared, err := config.NewSharedCache(ctx, &cfg.Cache)
	if err != nil {
		return err
	}
	defer shared.Close()

	provider := shared.Provider(clearStorage, clearFolder)
	if provider == nil {
		return fmt.Errorf("shared cache tier is not available")
	}
	if err := provider.Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Printf("Cache cleared for storage %q folder %d.\n", clearStorage, clearFolder)
	return nil
}
