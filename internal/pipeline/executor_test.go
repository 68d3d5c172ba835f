package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/casefile"
)

// stubCollaborator is a scripted collaborator for tests. It records the
// inputs it was invoked with.
type stubCollaborator struct {
	content  string
	decision casefile.Decision
	err      error

	invocations int
	lastInputs  map[casefile.ArtifactKind]string
}

func (s *stubCollaborator) Execute(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
	s.invocations++
	s.lastInputs = inputs
	return s.content, s.decision, s.err
}

func newPipelineStore(t *testing.T) *casefile.Store {
	t.Helper()
	store, err := casefile.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestExecutorMissingPrerequisite(t *testing.T) {
	store := newPipelineStore(t)
	collab := &stubCollaborator{content: "out", decision: casefile.Continue()}

	stage := Stage{
		Name:         StageValidation,
		Requires:     []casefile.ArtifactKind{casefile.KindDefinition},
		Produces:     casefile.KindValidation,
		Collaborator: collab,
	}

	_, err := NewExecutor(store, stage).Run(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, IsMissingPrerequisite(err))

	var prereqErr *MissingPrerequisiteError
	require.ErrorAs(t, err, &prereqErr)
	assert.Equal(t, "foo", prereqErr.IssueID)
	assert.Equal(t, StageValidation, prereqErr.Stage)
	assert.Equal(t, casefile.KindDefinition, prereqErr.Kind)

	// Fail fast: the collaborator is never invoked and nothing is written
	assert.Zero(t, collab.invocations)
	has, err := store.HasArtifact("foo", casefile.KindValidation)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExecutorSuccessWritesArtifactWithDecision(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "the bug", "user")
	require.NoError(t, err)

	collab := &stubCollaborator{content: "looks real", decision: casefile.Continue()}
	stage := Stage{
		Name:            StageValidation,
		Requires:        []casefile.ArtifactKind{casefile.KindDefinition},
		Produces:        casefile.KindValidation,
		CanShortCircuit: true,
		Collaborator:    collab,
	}

	decision, err := NewExecutor(store, stage).Run(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.DecisionContinue, decision.Type)

	// Collaborator saw exactly its required inputs
	assert.Equal(t, map[casefile.ArtifactKind]string{casefile.KindDefinition: "the bug"}, collab.lastInputs)

	artifact, err := store.Get("foo", casefile.KindValidation)
	require.NoError(t, err)
	assert.Equal(t, "looks real", artifact.Content)
	assert.Equal(t, StageValidation, artifact.ProducedBy)
	require.NotNil(t, artifact.Decision)
	assert.Equal(t, casefile.DecisionContinue, artifact.Decision.Type)
}

func TestExecutorCollaboratorErrorBecomesFail(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "the bug", "user")
	require.NoError(t, err)

	collab := &stubCollaborator{err: fmt.Errorf("model unavailable")}
	stage := Stage{
		Name:         StageValidation,
		Requires:     []casefile.ArtifactKind{casefile.KindDefinition},
		Produces:     casefile.KindValidation,
		Collaborator: collab,
	}

	decision, err := NewExecutor(store, stage).Run(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.DecisionFail, decision.Type)
	assert.Contains(t, decision.Reason, "model unavailable")

	// No partial artifact on collaborator failure
	has, err := store.HasArtifact("foo", casefile.KindValidation)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExecutorMalformedDecisionBecomesFail(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "the bug", "user")
	require.NoError(t, err)

	// SHORT_CIRCUIT without a reason is malformed
	collab := &stubCollaborator{content: "out", decision: casefile.Decision{Type: casefile.DecisionShortCircuit}}
	stage := Stage{
		Name:            StageValidation,
		Requires:        []casefile.ArtifactKind{casefile.KindDefinition},
		Produces:        casefile.KindValidation,
		CanShortCircuit: true,
		Collaborator:    collab,
	}

	decision, err := NewExecutor(store, stage).Run(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.DecisionFail, decision.Type)

	has, err := store.HasArtifact("foo", casefile.KindValidation)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExecutorFailDecisionPersistsNothing(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "the bug", "user")
	require.NoError(t, err)

	collab := &stubCollaborator{content: "half-baked", decision: casefile.Fail("cannot produce valid output")}
	stage := Stage{
		Name:         StageValidation,
		Requires:     []casefile.ArtifactKind{casefile.KindDefinition},
		Produces:     casefile.KindValidation,
		Collaborator: collab,
	}

	decision, err := NewExecutor(store, stage).Run(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, casefile.DecisionFail, decision.Type)

	has, err := store.HasArtifact("foo", casefile.KindValidation)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExecutorConsumesAllGathersEveryArtifact(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "def", "user")
	require.NoError(t, err)
	_, err = store.Put("foo", casefile.KindValidation, "val", StageValidation)
	require.NoError(t, err)
	_, err = store.Put("foo", casefile.KindProposal, "prop", StageProposal)
	require.NoError(t, err)

	collab := &stubCollaborator{content: "closed", decision: casefile.Continue()}
	stage := Stage{
		Name:         StageFinalization,
		Requires:     []casefile.ArtifactKind{casefile.KindDefinition, casefile.KindValidation},
		Produces:     casefile.KindResolution,
		ConsumesAll:  true,
		Collaborator: collab,
	}

	_, err = NewExecutor(store, stage).Run(context.Background(), "foo")
	require.NoError(t, err)

	assert.Equal(t, map[casefile.ArtifactKind]string{
		casefile.KindDefinition: "def",
		casefile.KindValidation: "val",
		casefile.KindProposal:   "prop",
	}, collab.lastInputs)
}

func TestExecutorDuplicateOutputPropagates(t *testing.T) {
	store := newPipelineStore(t)
	_, err := store.Put("foo", casefile.KindDefinition, "def", "user")
	require.NoError(t, err)
	_, err = store.Put("foo", casefile.KindValidation, "already there", StageValidation)
	require.NoError(t, err)

	collab := &stubCollaborator{content: "new", decision: casefile.Continue()}
	stage := Stage{
		Name:         StageValidation,
		Requires:     []casefile.ArtifactKind{casefile.KindDefinition},
		Produces:     casefile.KindValidation,
		Collaborator: collab,
	}

	_, err = NewExecutor(store, stage).Run(context.Background(), "foo")
	require.Error(t, err)
	assert.True(t, casefile.IsDuplicate(err))
}
