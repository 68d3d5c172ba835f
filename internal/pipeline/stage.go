package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/warren/pkg/casefile"
)

// Stage names in canonical pipeline order. The definition stage is the entry
// point of the pipeline (the artifact that creates the issue) and is never
// run by the engine.
const (
	StageValidation     = "validation"
	StageProposal       = "proposal"
	StageReview         = "review"
	StageImplementation = "implementation"
	StageVerification   = "verification"
	StageFinalization   = "finalization"
)

// Collaborator produces the content of one stage's artifact. Warren never
// inspects the returned content; it is opaque payload. Implementations are
// external: an LLM call, a subprocess, a human, or a test stub.
//
// A returned error means the collaborator could not produce valid output at
// all; the executor wraps it into a FAIL decision and persists nothing.
type Collaborator interface {
	Execute(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (content string, decision casefile.Decision, err error)
}

// CollaboratorFunc adapts a plain function to the Collaborator interface.
type CollaboratorFunc func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error)

// Execute implements Collaborator.
func (f CollaboratorFunc) Execute(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
	return f(ctx, issueID, inputs)
}

// Stage is the static contract of one pipeline step: which artifact kinds it
// needs, which kind it produces, and whether it may short-circuit the run.
// Stages are configuration, not per-issue state.
type Stage struct {
	Name            string
	Requires        []casefile.ArtifactKind
	Produces        casefile.ArtifactKind
	CanShortCircuit bool

	// ConsumesAll widens the collaborator's inputs to every artifact the
	// issue has, on top of the Requires existence checks. Used by
	// finalization, which summarizes the whole case file.
	ConsumesAll bool

	Collaborator Collaborator
}

// Validate checks if the Stage has a complete, coherent contract.
func (s Stage) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("stage name cannot be empty")
	}
	if err := s.Produces.Validate(); err != nil {
		return fmt.Errorf("stage %q: invalid produced kind: %w", s.Name, err)
	}
	for _, kind := range s.Requires {
		if err := kind.Validate(); err != nil {
			return fmt.Errorf("stage %q: invalid required kind: %w", s.Name, err)
		}
		if kind == s.Produces {
			return fmt.Errorf("stage %q: cannot require its own output %q", s.Name, kind)
		}
	}
	if s.Collaborator == nil {
		return fmt.Errorf("stage %q: collaborator is required", s.Name)
	}
	return nil
}

// PipelineStages builds the canonical branch table, binding one collaborator
// per stage. Every stage name must be present in the map.
func PipelineStages(collaborators map[string]Collaborator) ([]Stage, error) {
	stages := []Stage{
		{
			Name:            StageValidation,
			Requires:        []casefile.ArtifactKind{casefile.KindDefinition},
			Produces:        casefile.KindValidation,
			CanShortCircuit: true,
		},
		{
			Name:     StageProposal,
			Requires: []casefile.ArtifactKind{casefile.KindDefinition, casefile.KindValidation},
			Produces: casefile.KindProposal,
		},
		{
			Name:     StageReview,
			Requires: []casefile.ArtifactKind{casefile.KindProposal},
			Produces: casefile.KindReview,
		},
		{
			Name:     StageImplementation,
			Requires: []casefile.ArtifactKind{casefile.KindReview},
			Produces: casefile.KindImplementationReport,
		},
		{
			Name:     StageVerification,
			Requires: []casefile.ArtifactKind{casefile.KindImplementationReport},
			Produces: casefile.KindTestReport,
		},
		{
			Name:        StageFinalization,
			Requires:    []casefile.ArtifactKind{casefile.KindDefinition, casefile.KindValidation},
			Produces:    casefile.KindResolution,
			ConsumesAll: true,
		},
	}

	for i := range stages {
		collab, ok := collaborators[stages[i].Name]
		if !ok {
			return nil, fmt.Errorf("no collaborator bound for stage %q", stages[i].Name)
		}
		stages[i].Collaborator = collab

		if err := stages[i].Validate(); err != nil {
			return nil, err
		}
	}

	return stages, nil
}

// MissingPrerequisiteError indicates a stage was invoked before its required
// input artifacts were persisted. Always an engine bug, never retried.
type MissingPrerequisiteError struct {
	IssueID string
	Stage   string
	Kind    casefile.ArtifactKind
}

func (e *MissingPrerequisiteError) Error() string {
	return fmt.Sprintf("stage %q invoked for issue %q without required artifact %q", e.Stage, e.IssueID, e.Kind)
}

// IsMissingPrerequisite returns true if the error is a MissingPrerequisiteError.
func IsMissingPrerequisite(err error) bool {
	var e *MissingPrerequisiteError
	return errors.As(err, &e)
}

// RunError indicates a pipeline run halted on a FAIL signal. The issue is
// left at its last well-defined status; re-invoking the run is safe.
type RunError struct {
	IssueID string
	Stage   string
	Reason  string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline halted at stage %q for issue %q: %s", e.Stage, e.IssueID, e.Reason)
}

// IsRunError returns true if the error is a RunError.
func IsRunError(err error) bool {
	var e *RunError
	return errors.As(err, &e)
}
