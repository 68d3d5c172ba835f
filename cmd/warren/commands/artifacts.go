package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/display"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/timespec"
)

var (
	artifactsJSONL      bool
	artifactsSince      string
	artifactsUntil      string
	artifactsKind       string
	artifactsProducedBy string
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts ISSUE_ID",
	Short: "Inspect an issue's artifact audit trail",
	Long: `Display the artifacts recorded for an issue, oldest first.

By default artifacts are shown as a table with truncated content. Use
--jsonl for complete artifacts as line-delimited JSON, suitable for jq.

Time filters accept RFC3339 timestamps or relative durations:
  --since 1h              artifacts from the last hour
  --since 2026-08-30T00:00:00Z --until 2026-08-31T00:00:00Z

Examples:
  # Full audit trail as a table
  warren artifacts fix-login

  # Complete artifacts for scripting
  warren artifacts fix-login --jsonl | jq -r '.kind'

  # Only validation output
  warren artifacts fix-login --kind 'valid*'`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifacts,
}

func init() {
	artifactsCmd.Flags().BoolVar(&artifactsJSONL, "jsonl", false, "Output complete artifacts as line-delimited JSON")
	artifactsCmd.Flags().StringVar(&artifactsSince, "since", "", "Only artifacts produced at or after this time (RFC3339 or duration)")
	artifactsCmd.Flags().StringVar(&artifactsUntil, "until", "", "Only artifacts produced at or before this time (RFC3339 or duration)")
	artifactsCmd.Flags().StringVar(&artifactsKind, "kind", "", "Only artifacts whose kind matches this glob pattern")
	artifactsCmd.Flags().StringVar(&artifactsProducedBy, "produced-by", "", "Only artifacts recorded by this producer")
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	issueID := args[0]

	since, until, err := timespec.ParseRange(artifactsSince, artifactsUntil)
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use RFC3339 (2026-08-31T12:00:00Z) or a duration (30m, 2h)"},
		)
	}

	store, _, err := openIssuesStore()
	if err != nil {
		return printer.Error("failed to open issue store", err.Error(), nil)
	}

	exists, err := store.Exists(issueID)
	if err != nil {
		return printer.Error("failed to read issue", err.Error(), nil)
	}
	if !exists {
		return printer.ErrorWithContext(
			"issue not found",
			"No issue with this ID exists in the active store.",
			map[string]string{"Issue": issueID},
			[]string{"Check open issues with:\n  warren list-open"},
		)
	}

	artifacts, err := store.List(issueID)
	if err != nil {
		return printer.Error("failed to list artifacts", err.Error(), nil)
	}

	artifacts = display.Filter(artifacts, &display.FilterCriteria{
		Since:      since,
		Until:      until,
		KindGlob:   artifactsKind,
		ProducedBy: artifactsProducedBy,
	})

	if artifactsJSONL {
		return display.FormatJSONL(os.Stdout, artifacts)
	}
	display.FormatTable(os.Stdout, artifacts, issueID)
	return nil
}
