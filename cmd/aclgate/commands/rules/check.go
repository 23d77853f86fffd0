package rules

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/aclgate/internal/cli/output"
	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/guard"
	rulespkg "github.com/marmos91/aclgate/pkg/rules"
)

var (
	checkFolder  int64
	checkUser    string
	checkGroups  []string
	checkPath    string
	checkBase    string
	checkInShare bool
	checkOutput  string
)

// checkResult is the serializable outcome of a permission check.
type checkResult struct {
	FolderID  int64  `json:"folder_id" yaml:"folder_id"`
	User      string `json:"user" yaml:"user"`
	Path      string `json:"path" yaml:"path"`
	Resolved  string `json:"resolved" yaml:"resolved"`
	Effective string `json:"effective" yaml:"effective"`
	Visible   bool   `json:"visible" yaml:"visible"`
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate effective permissions for an identity and path",
	Long: `Resolve the rules that apply to a path for a user (and optional
groups), combine them with the backend-advertised base permissions,
and report the effective permissions after read gating.

A resource with no read access is invisible; with --in-share the
share permission also satisfies the read gate.

Examples:
  aclgate rules check --folder 42 --user alice --path /docs/report.txt

  aclgate rules check --folder 42 --user bob --groups staff,admins \
    --path /shared/projects --base read,update --in-share`,
	RunE: runRulesCheck,
}

func init() {
	checkCmd.Flags().Int64Var(&checkFolder, "folder", -1, "Folder ID (required)")
	checkCmd.Flags().StringVar(&checkUser, "user", "", "User to evaluate for (required)")
	checkCmd.Flags().StringSliceVar(&checkGroups, "groups", nil, "Groups the user belongs to")
	checkCmd.Flags().StringVar(&checkPath, "path", "/", "Path to evaluate")
	checkCmd.Flags().StringVar(&checkBase, "base", "all", "Backend-advertised base permissions")
	checkCmd.Flags().BoolVar(&checkInShare, "in-share", false, "Treat the path as inside a received share")
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "table", "Output format (table|json|yaml)")
	_ = checkCmd.MarkFlagRequired("folder")
	_ = checkCmd.MarkFlagRequired("user")
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	base, err := acl.ParsePermissions(checkBase)
	if err != nil {
		return fmt.Errorf("invalid base permissions: %w", err)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := rulespkg.NewService(rulespkg.ServiceConfig{
		Store:    store,
		Subjects: acl.SubjectsFor(checkUser, checkGroups...),
	})
	if err != nil {
		return err
	}

	path := acl.CleanPath(checkPath)
	resolved, err := service.GetPermissions(cmd.Context(), checkFolder, "cli", path)
	if err != nil {
		return fmt.Errorf("resolving permissions: %w", err)
	}

	effective := guard.GateVisibility(resolved.Intersect(base), checkInShare)
	display := path
	if display == "" {
		display = "/"
	}
	result := checkResult{
		FolderID:  checkFolder,
		User:      checkUser,
		Path:      display,
		Resolved:  resolved.String(),
		Effective: effective.String(),
		Visible:   effective != acl.PermissionNone,
	}

	format, err := output.ParseFormat(checkOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, result)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, result)
	default:
		table := output.NewTableData("FOLDER", "USER", "PATH", "RESOLVED", "EFFECTIVE", "VISIBLE")
		table.AddRow(
			fmt.Sprintf("%d", result.FolderID),
			result.User,
			result.Path,
			result.Resolved,
			result.Effective,
			fmt.Sprintf("%t", result.Visible),
		)
		return output.PrintTable(os.Stdout, table)
	}
}
