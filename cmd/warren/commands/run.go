package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/collab"
	"github.com/dyluth/warren/internal/pipeline"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/casefile"
)

var runCmd = &cobra.Command{
	Use:   "run ISSUE_ID",
	Short: "Run an issue through the resolution pipeline",
	Long: `Run one issue synchronously through the resolution pipeline, invoking
the collaborator command bound to each stage in warren.yml.

Stages whose output artifact already exists are skipped, so re-running an
issue after a failure resumes where the previous run stopped. The run ends
with the issue RESOLVED, REJECTED (validation short-circuit), or halted in
place if a stage signals failure.

Examples:
  # Run a new issue to completion
  warren run fix-login

  # Resume after a failed stage
  warren run fix-login`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	issueID := args[0]
	ctx := context.Background()

	store, cfg, err := openIssuesStore()
	if err != nil {
		return printer.Error("failed to open issue store", err.Error(), nil)
	}

	collaborators, err := collab.FromConfig(cfg)
	if err != nil {
		return printer.Error(
			"no collaborators configured",
			err.Error(),
			[]string{"Bind a command to each stage in warren.yml:\n  stages:\n    validation:\n      command: [\"./collaborators/validate\"]"},
		)
	}

	stages, err := pipeline.PipelineStages(collaborators)
	if err != nil {
		return printer.Error("invalid stage configuration", err.Error(), nil)
	}

	engine, err := pipeline.NewEngine(store, stages)
	if err != nil {
		return printer.Error("failed to build pipeline", err.Error(), nil)
	}

	printer.Step("Running issue '%s'\n", issueID)

	result, err := engine.Run(ctx, issueID)
	if err != nil {
		switch {
		case casefile.IsNotFound(err):
			return printer.ErrorWithContext(
				"issue not found",
				"No issue with this ID exists in the active store.",
				map[string]string{"Issue": issueID},
				[]string{"Create it first:\n  warren new " + issueID + " --file issue.md"},
			)
		case pipeline.IsRunError(err):
			return printer.ErrorWithContext(
				"pipeline halted",
				err.Error(),
				map[string]string{"Issue": issueID},
				[]string{"Fix the collaborator and re-run; completed stages will be skipped:\n  warren run " + issueID},
			)
		default:
			return printer.ErrorWithContext("pipeline run failed", err.Error(), map[string]string{"Issue": issueID}, nil)
		}
	}

	if len(result.StagesRun) > 0 {
		printer.Info("Stages run: %s\n", strings.Join(result.StagesRun, ", "))
	}
	if result.ShortCircuited {
		printer.Warning("Issue rejected: %s\n", result.Reason)
	}
	printer.Success("Issue '%s' finished with status %s\n", issueID, result.Status)
	return nil
}
