package rules

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/internal/cli/output"
	"github.com/marmos91/aclgate/pkg/acl"
)

var (
	listFolder int64
	listOutput string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List permission rules",
	Long: `List the permission rules in the configured store.

With --folder, only that folder's rules are shown. Without it, rules
for every folder are listed.

Examples:
  # List rules for folder 42
  aclgate rules list --folder 42

  # List every rule as JSON
  aclgate rules list --output json`,
	RunE: runRulesList,
}

func init() {
	listCmd.Flags().Int64Var(&listFolder, "folder", -1, "Folder ID to list (all folders if omitted)")
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	var folders []int64
	if listFolder >= 0 {
		folders = []int64{listFolder}
	} else {
		folders, err = store.ListFolders(ctx)
		if err != nil {
			return fmt.Errorf("listing folders: %w", err)
		}
	}

	var all []acl.Rule
	for _, folderID := range folders {
		rs, err := store.ListRules(ctx, folderID)
		if err != nil {
			return fmt.Errorf("listing rules for folder %d: %w", folderID, err)
		}
		all = append(all, rs...)
	}

	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, all)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, all)
	default:
		if len(all) == 0 {
			fmt.Println("No rules found.")
			return nil
		}
		table := output.NewTableData("FOLDER", "SUBJECT", "PATH", "MASK", "PERMISSIONS")
		for _, r := range all {
			path := r.Path
			if path == "" {
				path = "/"
			}
			table.AddRow(
				strconv.FormatInt(r.FolderID, 10),
				r.Subject.String(),
				path,
				r.Mask.String(),
				r.Permissions.String(),
			)
		}
		return output.PrintTable(os.Stdout, table)
	}
}
