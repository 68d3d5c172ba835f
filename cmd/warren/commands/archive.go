package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/archive"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/casefile"
)

// Archive exit codes, distinguishable for scripting.
const (
	exitNotArchivable = 2
	exitArchiveIO     = 3
)

var archiveCmd = &cobra.Command{
	Use:   "archive ISSUE_ID",
	Short: "Move a terminal issue into the archive",
	Long: `Move a resolved or rejected issue out of the active store into the
archive directory, preserving its complete case file.

If an archive entry with the same ID already exists, the issue is stored
under a timestamp-suffixed ID instead; the final ID is printed on success.

Exit codes:
  0 - archived; the final archive ID is printed to stdout
  2 - the issue does not exist or is not in a terminal status
  3 - the filesystem move failed`,
	Args: cobra.ExactArgs(1),
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	issueID := args[0]

	open, cfg, err := openIssuesStore()
	if err != nil {
		printer.Error("failed to open issue store", err.Error(), nil)
		os.Exit(exitArchiveIO)
	}
	archiveStore, err := casefile.NewStore(cfg.ArchiveRoot())
	if err != nil {
		printer.Error("failed to open archive store", err.Error(), nil)
		os.Exit(exitArchiveIO)
	}

	targetID, err := archive.NewManager(open, archiveStore).Archive(issueID)
	if err != nil {
		switch {
		case casefile.IsNotFound(err):
			printer.ErrorWithContext(
				"issue not found",
				"No issue with this ID exists in the active store.",
				map[string]string{"Issue": issueID},
				[]string{"Check open issues with:\n  warren list-open"},
			)
			os.Exit(exitNotArchivable)
		case archive.IsNotArchivable(err):
			printer.ErrorWithContext(
				"issue is not archivable",
				err.Error(),
				map[string]string{"Issue": issueID},
				[]string{"Only RESOLVED or REJECTED issues can be archived.\nRun the pipeline to completion first:\n  warren run " + issueID},
			)
			os.Exit(exitNotArchivable)
		default:
			printer.ErrorWithContext(
				"archive failed",
				err.Error(),
				map[string]string{"Issue": issueID},
				nil,
			)
			os.Exit(exitArchiveIO)
		}
	}

	fmt.Println(targetID)
	return nil
}
