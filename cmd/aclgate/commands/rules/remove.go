package rules

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/internal/cli/prompt"
	"github.com/marmos91/aclgate/pkg/acl"
)

var (
	removeFolder  int64
	removeSubject string
	removePath    string
	removeForce   bool
)

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete a permission rule",
	Long: `Delete the rule with the given folder, subject and path.

Removing a rule that does not exist is not an error.

Examples:
  aclgate rules remove --folder 42 --subject user:alice --path /secret

  # Skip the confirmation prompt
  aclgate rules remove --folder 42 --subject group:staff --path /docs --force`,
	RunE: runRulesRemove,
}

func init() {
	removeCmd.Flags().Int64Var(&removeFolder, "folder", -1, "Folder ID (required)")
	removeCmd.Flags().StringVar(&removeSubject, "subject", "", "Rule subject (required)")
	removeCmd.Flags().StringVar(&removePath, "path", "/", "Path the rule applies to")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation prompt")
	_ = removeCmd.MarkFlagRequired("folder")
	_ = removeCmd.MarkFlagRequired("subject")
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	subject, err := acl.ParseSubject(removeSubject)
	if err != nil {
		return err
	}
	path := acl.CleanPath(removePath)

	label := fmt.Sprintf("Remove rule for %s at %q in folder %d?", subject, path, removeFolder)
	confirmed, err := prompt.ConfirmWithForce(label, removeForce)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteRule(cmd.Context(), removeFolder, subject, path); err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}

	fmt.Printf("Rule removed: folder=%d subject=%s path=%q\n", removeFolder, subject, path)
	return nil
}
