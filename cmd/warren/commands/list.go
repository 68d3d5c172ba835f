package commands

import (
	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/casefile"
)

var listOpenCmd = &cobra.Command{
	Use:   "list-open",
	Short: "List open issues",
	Long: `List the IDs of all open issues, one per line.

An issue is open when its case file holds a definition artifact but no
resolution artifact yet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListIssues(func(r *casefile.Registry) ([]string, error) {
			return r.ListOpen()
		})
	},
}

var listResolvedCmd = &cobra.Command{
	Use:   "list-resolved",
	Short: "List resolved issues",
	Long: `List the IDs of all resolved issues, one per line.

An issue is resolved when its case file holds a resolution artifact.
Resolved issues are the candidates for archival.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListIssues(func(r *casefile.Registry) ([]string, error) {
			return r.ListResolved()
		})
	},
}

func init() {
	rootCmd.AddCommand(listOpenCmd)
	rootCmd.AddCommand(listResolvedCmd)
}

func runListIssues(list func(*casefile.Registry) ([]string, error)) error {
	store, _, err := openIssuesStore()
	if err != nil {
		return printer.Error(
			"failed to open issue store",
			err.Error(),
			nil,
		)
	}

	ids, err := list(casefile.NewRegistry(store))
	if err != nil {
		return printer.Error(
			"failed to list issues",
			err.Error(),
			nil,
		)
	}

	for _, id := range ids {
		printer.Println(id)
	}
	return nil
}
