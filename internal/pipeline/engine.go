package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/warren/pkg/casefile"
)

// Engine is the workflow controller: it drives one issue through the fixed
// stage order until termination. One Run call is one synchronous pipeline run
// to completion or failure; there is no background scheduler. Separate issues
// may be run concurrently since their case files are isolated.
type Engine struct {
	store  *casefile.Store
	stages []Stage
}

// NewEngine creates an engine over the given store and branch table.
// The stage list must end with the finalization stage.
func NewEngine(store *casefile.Store, stages []Stage) (*Engine, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("engine requires at least one stage")
	}
	if stages[len(stages)-1].Name != StageFinalization {
		return nil, fmt.Errorf("last stage must be %q, got %q", StageFinalization, stages[len(stages)-1].Name)
	}
	for _, stage := range stages {
		if err := stage.Validate(); err != nil {
			return nil, err
		}
	}

	return &Engine{store: store, stages: stages}, nil
}

// RunResult summarizes a completed pipeline run.
type RunResult struct {
	IssueID        string          `json:"issue_id"`
	Status         casefile.Status `json:"status"`
	StagesRun      []string        `json:"stages_run"`
	ShortCircuited bool            `json:"short_circuited"`
	Reason         string          `json:"reason,omitempty"` // short-circuit reason, if any
}

// Run drives one issue through the pipeline until it reaches a terminal
// status or a stage fails.
//
// The engine advances to the next stage only on CONTINUE. A SHORT_CIRCUIT
// from the validation stage skips every work stage and jumps straight to
// finalization, rejecting the issue. A FAIL halts the run, leaving the issue
// at its last well-defined status; re-invoking Run is safe and resumes from
// the persisted artifacts (already-produced stages are not re-invoked, their
// recorded decisions steer the branch again).
func (e *Engine) Run(ctx context.Context, issueID string) (*RunResult, error) {
	exists, err := e.store.Exists(issueID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &casefile.NotFoundError{IssueID: issueID}
	}

	status, err := e.store.GetStatus(issueID)
	if err != nil {
		return nil, err
	}
	if status.Terminal() {
		return nil, fmt.Errorf("issue %q already has terminal status %s", issueID, status)
	}

	if status == casefile.StatusOpen {
		if err := e.store.SetStatus(issueID, casefile.StatusValidating); err != nil {
			return nil, err
		}
	}

	e.logEvent("run_started", map[string]interface{}{
		"issue_id": issueID,
		"status":   string(status),
	})

	result := &RunResult{IssueID: issueID}
	shortCircuited := false

	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled before stage %q for issue %q: %w", stage.Name, issueID, err)
		}

		if shortCircuited && stage.Name != StageFinalization {
			e.logEvent("stage_skipped", map[string]interface{}{
				"issue_id": issueID,
				"stage":    stage.Name,
				"reason":   "short_circuit",
			})
			continue
		}

		decision, skipped, err := e.runOrSkip(ctx, issueID, stage)
		if err != nil {
			return nil, err
		}
		if skipped {
			e.logEvent("stage_skipped", map[string]interface{}{
				"issue_id": issueID,
				"stage":    stage.Name,
				"reason":   "artifact_exists",
			})
		} else {
			result.StagesRun = append(result.StagesRun, stage.Name)
			e.logEvent("stage_completed", map[string]interface{}{
				"issue_id": issueID,
				"stage":    stage.Name,
				"decision": string(decision.Type),
			})
		}

		switch decision.Type {
		case casefile.DecisionFail:
			e.logEvent("run_failed", map[string]interface{}{
				"issue_id": issueID,
				"stage":    stage.Name,
				"reason":   decision.Reason,
			})
			return nil, &RunError{IssueID: issueID, Stage: stage.Name, Reason: decision.Reason}

		case casefile.DecisionShortCircuit:
			if !stage.CanShortCircuit {
				return nil, &RunError{
					IssueID: issueID,
					Stage:   stage.Name,
					Reason:  fmt.Sprintf("stage is not permitted to short-circuit (signalled: %s)", decision.Reason),
				}
			}
			shortCircuited = true
			result.ShortCircuited = true
			result.Reason = decision.Reason
			e.logEvent("short_circuit", map[string]interface{}{
				"issue_id": issueID,
				"stage":    stage.Name,
				"reason":   decision.Reason,
			})

		case casefile.DecisionContinue:
			if stage.Name == StageValidation {
				if err := e.store.SetStatus(issueID, casefile.StatusInProgress); err != nil {
					return nil, err
				}
			}
		}
	}

	final := casefile.StatusResolved
	if shortCircuited {
		final = casefile.StatusRejected
	}
	if err := e.store.SetStatus(issueID, final); err != nil {
		return nil, err
	}
	result.Status = final

	e.logEvent("run_completed", map[string]interface{}{
		"issue_id": issueID,
		"status":   string(final),
	})

	return result, nil
}

// runOrSkip executes a stage, or skips it when its output artifact already
// exists from a prior run. Skipped stages steer the branch with the decision
// recorded in the artifact's provenance; artifacts written outside the
// pipeline carry no decision and default to CONTINUE.
func (e *Engine) runOrSkip(ctx context.Context, issueID string, stage Stage) (casefile.Decision, bool, error) {
	has, err := e.store.HasArtifact(issueID, stage.Produces)
	if err != nil {
		return casefile.Decision{}, false, err
	}

	if has {
		artifact, err := e.store.Get(issueID, stage.Produces)
		if err != nil {
			return casefile.Decision{}, false, err
		}
		if artifact.Decision != nil {
			return *artifact.Decision, true, nil
		}
		return casefile.Continue(), true, nil
	}

	decision, err := NewExecutor(e.store, stage).Run(ctx, issueID)
	return decision, false, err
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "pipeline"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Pipeline] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
