package pipeline

import (
	"context"
	"fmt"

	"github.com/dyluth/warren/pkg/casefile"
)

// Executor wraps one stage with its execution contract: verify prerequisites,
// invoke the collaborator, persist the output, return the decision.
type Executor struct {
	store *casefile.Store
	stage Stage
}

// NewExecutor creates an executor for a single stage.
func NewExecutor(store *casefile.Store, stage Stage) *Executor {
	return &Executor{store: store, stage: stage}
}

// Run executes the stage for one issue.
//
// Workflow:
//  1. Verify every required artifact kind exists; fail fast with
//     MissingPrerequisiteError naming the first absent kind.
//  2. Gather inputs and invoke the collaborator.
//  3. Persist the output artifact, with the decision in its provenance.
//  4. Return the decision to the engine.
//
// Collaborator errors and malformed decisions come back as FAIL decisions and
// persist nothing: an artifact is written only on a well-formed, complete
// response. Store-level errors (duplicate write, I/O) are returned as errors,
// never folded into a decision.
func (x *Executor) Run(ctx context.Context, issueID string) (casefile.Decision, error) {
	for _, kind := range x.stage.Requires {
		has, err := x.store.HasArtifact(issueID, kind)
		if err != nil {
			return casefile.Decision{}, err
		}
		if !has {
			return casefile.Decision{}, &MissingPrerequisiteError{IssueID: issueID, Stage: x.stage.Name, Kind: kind}
		}
	}

	inputs, err := x.gatherInputs(issueID)
	if err != nil {
		return casefile.Decision{}, err
	}

	content, decision, err := x.stage.Collaborator.Execute(ctx, issueID, inputs)
	if err != nil {
		return casefile.Fail(fmt.Sprintf("collaborator error: %v", err)), nil
	}
	if err := decision.Validate(); err != nil {
		return casefile.Fail(fmt.Sprintf("collaborator returned malformed decision: %v", err)), nil
	}

	if decision.Type == casefile.DecisionFail {
		return decision, nil
	}

	if _, err := x.store.PutWithDecision(issueID, x.stage.Produces, content, x.stage.Name, decision); err != nil {
		return casefile.Decision{}, err
	}

	return decision, nil
}

// gatherInputs loads the artifacts the collaborator will see. Stages with
// ConsumesAll receive every live artifact of the issue; others receive
// exactly their required kinds.
func (x *Executor) gatherInputs(issueID string) (map[casefile.ArtifactKind]string, error) {
	inputs := make(map[casefile.ArtifactKind]string)

	if x.stage.ConsumesAll {
		artifacts, err := x.store.List(issueID)
		if err != nil {
			return nil, err
		}
		for _, artifact := range artifacts {
			inputs[artifact.Kind] = artifact.Content
		}
		return inputs, nil
	}

	for _, kind := range x.stage.Requires {
		artifact, err := x.store.Get(issueID, kind)
		if err != nil {
			return nil, err
		}
		inputs[kind] = artifact.Content
	}

	return inputs, nil
}
