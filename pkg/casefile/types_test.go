package casefile

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestArtifactValidate_Valid tests that valid artifacts pass validation
func TestArtifactValidate_Valid(t *testing.T) {
	artifact := &Artifact{
		ID:         uuid.New().String(),
		IssueID:    "leaky-socket",
		Kind:       KindDefinition,
		Content:    "connections are not closed on timeout",
		ProducedBy: "user",
		ProducedAt: time.Now().UTC(),
	}

	if err := artifact.Validate(); err != nil {
		t.Errorf("valid artifact failed validation: %v", err)
	}
}

// TestArtifactValidate_InvalidID tests that a non-UUID artifact ID fails validation
func TestArtifactValidate_InvalidID(t *testing.T) {
	artifact := &Artifact{
		ID:         "not-a-uuid",
		IssueID:    "leaky-socket",
		Kind:       KindDefinition,
		ProducedBy: "user",
		ProducedAt: time.Now().UTC(),
	}

	if err := artifact.Validate(); err == nil {
		t.Error("expected validation to fail for invalid ID, but it passed")
	}
}

// TestArtifactValidate_InvalidKind tests that an unknown kind fails validation
func TestArtifactValidate_InvalidKind(t *testing.T) {
	artifact := &Artifact{
		ID:         uuid.New().String(),
		IssueID:    "leaky-socket",
		Kind:       ArtifactKind("commentary"),
		ProducedBy: "user",
		ProducedAt: time.Now().UTC(),
	}

	if err := artifact.Validate(); err == nil {
		t.Error("expected validation to fail for unknown kind, but it passed")
	}
}

// TestArtifactKindValidate tests the kind enumeration
func TestArtifactKindValidate(t *testing.T) {
	for _, kind := range Kinds() {
		if err := kind.Validate(); err != nil {
			t.Errorf("canonical kind %q failed validation: %v", kind, err)
		}
	}

	invalid := []ArtifactKind{"", "Definition", "definition.md", "notes"}
	for _, kind := range invalid {
		if err := kind.Validate(); err == nil {
			t.Errorf("expected validation to fail for kind %q, but it passed", kind)
		}
	}
}

// TestStatusCanTransition tests the lifecycle transition table
func TestStatusCanTransition(t *testing.T) {
	testCases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"open to validating", StatusOpen, StatusValidating, true},
		{"validating to rejected", StatusValidating, StatusRejected, true},
		{"validating to in progress", StatusValidating, StatusInProgress, true},
		{"in progress to resolved", StatusInProgress, StatusResolved, true},
		{"rejected to archived", StatusRejected, StatusArchived, true},
		{"resolved to archived", StatusResolved, StatusArchived, true},
		{"open to resolved skips validation", StatusOpen, StatusResolved, false},
		{"in progress to archived", StatusInProgress, StatusArchived, false},
		{"archived is terminal", StatusArchived, StatusOpen, false},
		{"rejected never reopens", StatusRejected, StatusOpen, false},
		{"resolved never reopens", StatusResolved, StatusInProgress, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.allowed {
				t.Errorf("CanTransition(%s → %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

// TestStatusArchivable tests that only REJECTED and RESOLVED are archivable
func TestStatusArchivable(t *testing.T) {
	archivable := map[Status]bool{
		StatusOpen:       false,
		StatusValidating: false,
		StatusRejected:   true,
		StatusInProgress: false,
		StatusResolved:   true,
		StatusArchived:   false,
	}

	for status, want := range archivable {
		if got := status.Archivable(); got != want {
			t.Errorf("%s.Archivable() = %v, want %v", status, got, want)
		}
	}
}

// TestDecisionValidate tests decision validation including the reason requirement
func TestDecisionValidate(t *testing.T) {
	if err := Continue().Validate(); err != nil {
		t.Errorf("CONTINUE decision failed validation: %v", err)
	}

	if err := ShortCircuit("not-a-bug").Validate(); err != nil {
		t.Errorf("SHORT_CIRCUIT with reason failed validation: %v", err)
	}

	if err := Fail("collaborator crashed").Validate(); err != nil {
		t.Errorf("FAIL with reason failed validation: %v", err)
	}

	if err := (Decision{Type: DecisionShortCircuit}).Validate(); err == nil {
		t.Error("expected SHORT_CIRCUIT without reason to fail validation")
	}

	if err := (Decision{Type: DecisionFail}).Validate(); err == nil {
		t.Error("expected FAIL without reason to fail validation")
	}

	if err := (Decision{Type: "retry"}).Validate(); err == nil {
		t.Error("expected unknown decision type to fail validation")
	}
}

// TestValidateIssueID tests issue slug validation
func TestValidateIssueID(t *testing.T) {
	valid := []string{"foo", "leaky-socket", "bug-42", "a", "x1-y2-z3"}
	for _, id := range valid {
		if err := ValidateIssueID(id); err != nil {
			t.Errorf("valid issue ID %q failed validation: %v", id, err)
		}
	}

	invalid := []string{"", "-foo", "foo-", "Foo", "foo_bar", "foo bar", "foo/bar", "..", "accidentally-way-too-long-for-a-directory-name-on-most-filesystems-x"}
	for _, id := range invalid {
		if err := ValidateIssueID(id); err == nil {
			t.Errorf("expected validation to fail for issue ID %q, but it passed", id)
		}
	}
}
