package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/casefile"
)

// testCollaborators builds a full collaborator set where every stage returns
// CONTINUE with a canned body. Individual stages can be overridden.
func testCollaborators(overrides map[string]Collaborator) map[string]Collaborator {
	collabs := make(map[string]Collaborator)
	for _, name := range []string{StageValidation, StageProposal, StageReview, StageImplementation, StageVerification, StageFinalization} {
		name := name
		collabs[name] = CollaboratorFunc(func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
			return name + " output", casefile.Continue(), nil
		})
	}
	for name, collab := range overrides {
		collabs[name] = collab
	}
	return collabs
}

func newTestEngine(t *testing.T, store *casefile.Store, overrides map[string]Collaborator) *Engine {
	t.Helper()
	stages, err := PipelineStages(testCollaborators(overrides))
	require.NoError(t, err)
	engine, err := NewEngine(store, stages)
	require.NoError(t, err)
	return engine
}

func TestEngineShortCircuitRun(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "works as intended", "user")
	require.NoError(t, err)

	engine := newTestEngine(t, store, map[string]Collaborator{
		StageValidation: CollaboratorFunc(func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
			return "not a bug", casefile.ShortCircuit("not-a-bug"), nil
		}),
	})

	result, err := engine.Run(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusRejected, result.Status)
	assert.True(t, result.ShortCircuited)
	assert.Equal(t, "not-a-bug", result.Reason)
	assert.Equal(t, []string{StageValidation, StageFinalization}, result.StagesRun)

	status, err := store.GetStatus("foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusRejected, status)

	// Exactly definition, validation and resolution - no work-stage artifacts
	artifacts, err := store.List("foo")
	require.NoError(t, err)
	kinds := []casefile.ArtifactKind{}
	for _, a := range artifacts {
		kinds = append(kinds, a.Kind)
	}
	assert.Equal(t, []casefile.ArtifactKind{casefile.KindDefinition, casefile.KindValidation, casefile.KindResolution}, kinds)
}

func TestEngineFullRun(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("bar", casefile.KindDefinition, "a real bug", "user")
	require.NoError(t, err)

	engine := newTestEngine(t, store, nil)

	result, err := engine.Run(context.Background(), "bar")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusResolved, result.Status)
	assert.False(t, result.ShortCircuited)
	assert.Equal(t, []string{
		StageValidation, StageProposal, StageReview,
		StageImplementation, StageVerification, StageFinalization,
	}, result.StagesRun)

	status, err := store.GetStatus("bar")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusResolved, status)

	// All seven kinds present, exactly once each
	artifacts, err := store.List("bar")
	require.NoError(t, err)
	require.Len(t, artifacts, len(casefile.Kinds()))
	seen := make(map[casefile.ArtifactKind]int)
	for _, a := range artifacts {
		seen[a.Kind]++
	}
	for _, kind := range casefile.Kinds() {
		assert.Equal(t, 1, seen[kind], "kind %s", kind)
	}
}

func TestEngineFailHaltsAtLastGoodStatus(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("baz", casefile.KindDefinition, "a real bug", "user")
	require.NoError(t, err)

	engine := newTestEngine(t, store, map[string]Collaborator{
		StageReview: CollaboratorFunc(func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
			return "", casefile.Decision{}, assert.AnError
		}),
	})

	_, err = engine.Run(context.Background(), "baz")
	require.Error(t, err)
	assert.True(t, IsRunError(err))

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StageReview, runErr.Stage)

	// Status is the last well-defined value, not a terminal one
	status, err := store.GetStatus("baz")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusInProgress, status)

	// Failed stage wrote nothing
	has, err := store.HasArtifact("baz", casefile.KindReview)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestEngineResumeAfterFailSkipsCompletedStages(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("baz", casefile.KindDefinition, "a real bug", "user")
	require.NoError(t, err)

	invocations := make(map[string]int)
	counting := func(name string, fail bool) Collaborator {
		return CollaboratorFunc(func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
			invocations[name]++
			if fail {
				return "", casefile.Decision{}, assert.AnError
			}
			return name + " output", casefile.Continue(), nil
		})
	}

	// First run fails at review
	engine := newTestEngine(t, store, map[string]Collaborator{
		StageValidation: counting(StageValidation, false),
		StageProposal:   counting(StageProposal, false),
		StageReview:     counting(StageReview, true),
	})
	_, err = engine.Run(context.Background(), "baz")
	require.Error(t, err)

	// Second run with a healthy review collaborator resumes to completion
	engine = newTestEngine(t, store, map[string]Collaborator{
		StageValidation: counting(StageValidation, false),
		StageProposal:   counting(StageProposal, false),
		StageReview:     counting(StageReview, false),
	})
	result, err := engine.Run(context.Background(), "baz")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusResolved, result.Status)

	// Validation and proposal ran exactly once across both runs
	assert.Equal(t, 1, invocations[StageValidation])
	assert.Equal(t, 1, invocations[StageProposal])
	assert.Equal(t, 2, invocations[StageReview])
}

func TestEngineResumeAfterShortCircuitStaysRejected(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "works as intended", "user")
	require.NoError(t, err)

	// First run: validation short-circuits but finalization fails
	engine := newTestEngine(t, store, map[string]Collaborator{
		StageValidation: CollaboratorFunc(func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
			return "not a bug", casefile.ShortCircuit("not-a-bug"), nil
		}),
		StageFinalization: CollaboratorFunc(func(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
			return "", casefile.Decision{}, assert.AnError
		}),
	})
	_, err = engine.Run(context.Background(), "foo")
	require.Error(t, err)

	status, err := store.GetStatus("foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusValidating, status)

	// Second run: the recorded short-circuit decision steers the resume down
	// the rejection path without re-running validation
	engine = newTestEngine(t, store, nil)
	result, err := engine.Run(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.StatusRejected, result.Status)
	assert.True(t, result.ShortCircuited)

	// Work stages never ran on either attempt
	for _, kind := range []casefile.ArtifactKind{casefile.KindProposal, casefile.KindReview, casefile.KindImplementationReport, casefile.KindTestReport} {
		has, err := store.HasArtifact("foo", kind)
		require.NoError(t, err)
		assert.False(t, has, "unexpected artifact %s", kind)
	}
}

func TestEngineUnknownIssue(t *testing.T) {
	store := newPipelineStore(t)
	engine := newTestEngine(t, store, nil)

	_, err := engine.Run(context.Background(), "no-such-issue")
	require.Error(t, err)
	assert.True(t, casefile.IsNotFound(err))
}

func TestEngineRefusesTerminalIssue(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("bar", casefile.KindDefinition, "a real bug", "user")
	require.NoError(t, err)

	engine := newTestEngine(t, store, nil)
	_, err = engine.Run(context.Background(), "bar")
	require.NoError(t, err)

	// A second full run on a RESOLVED issue is refused outright
	_, err = engine.Run(context.Background(), "bar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal status")
}

func TestNewEngineRequiresFinalizationLast(t *testing.T) {
	store := newPipelineStore(t)
	stages, err := PipelineStages(testCollaborators(nil))
	require.NoError(t, err)

	// Drop finalization off the end
	_, err = NewEngine(store, stages[:len(stages)-1])
	require.Error(t, err)
}

func TestPipelineStagesRequiresEveryCollaborator(t *testing.T) {
	collabs := testCollaborators(nil)
	delete(collabs, StageReview)

	_, err := PipelineStages(collabs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageReview)
}
