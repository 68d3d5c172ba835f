package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/casefile"
)

var (
	newDefinitionFile string
	newProducedBy     string
)

var newCmd = &cobra.Command{
	Use:   "new ISSUE_ID",
	Short: "Create an issue from a definition",
	Long: `Create an issue by writing its definition artifact. The definition is
read from --file, or from stdin when no file is given.

Issue IDs are lowercase alphanumerics and hyphens, at most 63 characters.
Creating an issue that already exists is an error; artifacts are immutable.

Examples:
  # Create from a file
  warren new fix-login --file issue.md

  # Create from stdin
  echo "Login fails for SSO users" | warren new fix-login`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().StringVarP(&newDefinitionFile, "file", "f", "", "File containing the issue definition (default: stdin)")
	newCmd.Flags().StringVar(&newProducedBy, "produced-by", "user", "Producer recorded on the definition artifact")
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	issueID := args[0]

	if err := casefile.ValidateIssueID(issueID); err != nil {
		return printer.Error(
			"invalid issue ID",
			err.Error(),
			[]string{"Use lowercase letters, digits, and hyphens, e.g. 'fix-login'"},
		)
	}

	content, err := readDefinition(newDefinitionFile)
	if err != nil {
		return printer.Error("failed to read definition", err.Error(), nil)
	}
	if strings.TrimSpace(content) == "" {
		return printer.Error(
			"empty definition",
			"An issue definition must describe the problem to resolve.",
			nil,
		)
	}

	store, _, err := openIssuesStore()
	if err != nil {
		return printer.Error("failed to open issue store", err.Error(), nil)
	}

	artifact, err := store.Put(issueID, casefile.KindDefinition, content, newProducedBy)
	if err != nil {
		if casefile.IsDuplicate(err) {
			return printer.ErrorWithContext(
				"issue already exists",
				"A definition artifact for this issue is already recorded.",
				map[string]string{"Issue": issueID},
				[]string{"Pick a different ID, or inspect the existing issue:\n  warren artifacts " + issueID},
			)
		}
		return printer.Error("failed to create issue", err.Error(), nil)
	}

	printer.Success("Created issue '%s' (artifact %s)\n", issueID, artifact.ID)
	printer.Info("Run it with:\n  warren run %s\n", issueID)
	return nil
}

// readDefinition reads the definition content from the named file, or from
// stdin when path is empty.
func readDefinition(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
