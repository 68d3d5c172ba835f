package casefile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ArtifactKind identifies the pipeline stage output an artifact carries.
// Each issue holds at most one live artifact per kind.
type ArtifactKind string

const (
	// KindDefinition is the artifact that creates an issue. Entry point of
	// the pipeline; never produced by the engine itself.
	KindDefinition ArtifactKind = "definition"

	// KindValidation records whether the issue warrants further work.
	KindValidation ArtifactKind = "validation"

	// KindProposal records the proposed approach to resolving the issue.
	KindProposal ArtifactKind = "proposal"

	// KindReview records the review of the proposal.
	KindReview ArtifactKind = "review"

	// KindImplementationReport records what was actually done.
	KindImplementationReport ArtifactKind = "implementation-report"

	// KindTestReport records the verification of the implementation.
	KindTestReport ArtifactKind = "test-report"

	// KindResolution closes the issue. Presence of this artifact marks the
	// issue as resolved in the registry.
	KindResolution ArtifactKind = "resolution"
)

// Kinds returns all artifact kinds in canonical pipeline order.
func Kinds() []ArtifactKind {
	return []ArtifactKind{
		KindDefinition,
		KindValidation,
		KindProposal,
		KindReview,
		KindImplementationReport,
		KindTestReport,
		KindResolution,
	}
}

// kindOrder maps each kind to its position in the pipeline, used as a
// tie-breaker when artifacts share a timestamp.
var kindOrder = func() map[ArtifactKind]int {
	m := make(map[ArtifactKind]int)
	for i, k := range Kinds() {
		m[k] = i
	}
	return m
}()

// Validate checks if the ArtifactKind is a valid enum value.
func (k ArtifactKind) Validate() error {
	if _, ok := kindOrder[k]; !ok {
		return fmt.Errorf("unknown artifact kind: %q", k)
	}
	return nil
}

// Artifact represents an immutable unit of stage output in a case file.
// Artifacts are the fundamental unit of state in Warren - every document the
// pipeline produces is an artifact with complete provenance.
type Artifact struct {
	ID         string       `json:"id"`          // UUID - unique identifier for this artifact
	IssueID    string       `json:"issue_id"`    // Issue slug this artifact belongs to
	Kind       ArtifactKind `json:"kind"`        // Pipeline stage output kind
	Content    string       `json:"-"`           // Opaque text content, stored separately from metadata
	ProducedBy string       `json:"produced_by"` // Stage name that produced this artifact, or "user"
	ProducedAt time.Time    `json:"produced_at"` // UTC timestamp of the durable write

	// Decision records the signal the producing stage returned alongside this
	// artifact, if any. Lets an interrupted pipeline run recover the branch it
	// took without re-invoking the stage.
	Decision *Decision `json:"decision,omitempty"`
}

// Validate checks if the Artifact has valid field values.
func (a *Artifact) Validate() error {
	if _, err := uuid.Parse(a.ID); err != nil {
		return fmt.Errorf("invalid artifact ID: not a valid UUID")
	}

	if err := ValidateIssueID(a.IssueID); err != nil {
		return fmt.Errorf("invalid issue ID: %w", err)
	}

	if err := a.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid kind: %w", err)
	}

	if a.ProducedBy == "" {
		return fmt.Errorf("produced_by cannot be empty")
	}

	if a.ProducedAt.IsZero() {
		return fmt.Errorf("produced_at cannot be zero")
	}

	return nil
}

// Status defines the lifecycle state of an issue.
// Issues progress monotonically: OPEN → VALIDATING → {REJECTED | IN_PROGRESS}
// → RESOLVED → ARCHIVED. Terminal statuses are never reopened automatically.
type Status string

const (
	// StatusOpen indicates the issue has a definition but no pipeline run yet
	StatusOpen Status = "OPEN"

	// StatusValidating indicates the validation stage is in flight
	StatusValidating Status = "VALIDATING"

	// StatusRejected indicates validation short-circuited: no work warranted
	StatusRejected Status = "REJECTED"

	// StatusInProgress indicates validation passed and later stages are running
	StatusInProgress Status = "IN_PROGRESS"

	// StatusResolved indicates the full pipeline completed successfully
	StatusResolved Status = "RESOLVED"

	// StatusArchived indicates the issue was relocated to the archive store
	StatusArchived Status = "ARCHIVED"
)

// Validate checks if the Status is a valid enum value.
func (s Status) Validate() error {
	switch s {
	case StatusOpen, StatusValidating, StatusRejected,
		StatusInProgress, StatusResolved, StatusArchived:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}

// Terminal reports whether the status ends a pipeline run.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusResolved || s == StatusArchived
}

// Archivable reports whether an issue in this status may be archived.
// Only REJECTED and RESOLVED issues can move to the archive store.
func (s Status) Archivable() bool {
	return s == StatusRejected || s == StatusResolved
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Reverting a terminal status is never legal here; that requires
// external action outside this package.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusValidating
	case StatusValidating:
		return next == StatusRejected || next == StatusInProgress
	case StatusInProgress:
		return next == StatusResolved
	case StatusRejected, StatusResolved:
		return next == StatusArchived
	default:
		return false
	}
}

// DecisionType represents the signal a stage returns to steer the pipeline.
type DecisionType string

const (
	// DecisionContinue advances the pipeline to the next stage
	DecisionContinue DecisionType = "continue"

	// DecisionShortCircuit skips the remaining work stages and jumps straight
	// to finalization, rejecting the issue
	DecisionShortCircuit DecisionType = "short_circuit"

	// DecisionFail halts the pipeline at its current state
	DecisionFail DecisionType = "fail"
)

// Validate checks if the DecisionType is a valid enum value.
func (dt DecisionType) Validate() error {
	switch dt {
	case DecisionContinue, DecisionShortCircuit, DecisionFail:
		return nil
	default:
		return fmt.Errorf("unknown decision type: %q", dt)
	}
}

// Decision is the outcome a stage collaborator returns to the engine.
// SHORT_CIRCUIT and FAIL decisions must carry a reason.
type Decision struct {
	Type   DecisionType `json:"type"`
	Reason string       `json:"reason,omitempty"`
}

// Continue returns a CONTINUE decision.
func Continue() Decision {
	return Decision{Type: DecisionContinue}
}

// ShortCircuit returns a SHORT_CIRCUIT decision with the given reason.
func ShortCircuit(reason string) Decision {
	return Decision{Type: DecisionShortCircuit, Reason: reason}
}

// Fail returns a FAIL decision with the given reason.
func Fail(reason string) Decision {
	return Decision{Type: DecisionFail, Reason: reason}
}

// Validate checks if the Decision has valid field values.
func (d Decision) Validate() error {
	if err := d.Type.Validate(); err != nil {
		return err
	}

	if d.Type != DecisionContinue && d.Reason == "" {
		return fmt.Errorf("decision %q requires a reason", d.Type)
	}

	return nil
}

const (
	// MaxIssueIDLength is the maximum length for an issue slug.
	// Keeps directory names portable across filesystems.
	MaxIssueIDLength = 63
)

// issueIDPattern is the regex pattern for valid issue slugs.
// Lowercase alphanumeric with hyphens, not at start or end. The same rule the
// archive manager relies on: a "-YYYYMMDD-HHMMSS" collision suffix always
// yields another valid slug.
var issueIDPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateIssueID checks if an issue slug is valid as a directory name.
func ValidateIssueID(issueID string) error {
	if issueID == "" {
		return fmt.Errorf("issue ID cannot be empty")
	}

	if len(issueID) > MaxIssueIDLength {
		return fmt.Errorf("issue ID too long: %d characters (max: %d)", len(issueID), MaxIssueIDLength)
	}

	if !issueIDPattern.MatchString(issueID) {
		return fmt.Errorf("invalid issue ID %q: must be lowercase alphanumeric with hyphens (not at start/end)", issueID)
	}

	return nil
}
