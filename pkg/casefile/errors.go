package casefile

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a requested artifact does not exist.
type NotFoundError struct {
	IssueID string
	Kind    ArtifactKind
}

func (e *NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("issue %q not found", e.IssueID)
	}
	return fmt.Sprintf("artifact %q not found for issue %q", e.Kind, e.IssueID)
}

// IsNotFound returns true if the error indicates a missing issue or artifact.
// Use this to check the result of Get, GetStatus, or List.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// DuplicateArtifactError indicates a write was attempted over an existing
// immutable artifact without an explicit supersede.
type DuplicateArtifactError struct {
	IssueID string
	Kind    ArtifactKind
}

func (e *DuplicateArtifactError) Error() string {
	return fmt.Sprintf("artifact %q already exists for issue %q (use supersede to replace it)", e.Kind, e.IssueID)
}

// IsDuplicate returns true if the error is a DuplicateArtifactError.
func IsDuplicate(err error) bool {
	var e *DuplicateArtifactError
	return errors.As(err, &e)
}

// StoreIOError indicates an underlying filesystem failure. Always fatal to the
// current operation; never masked with a default value.
type StoreIOError struct {
	IssueID string
	Op      string
	Err     error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store I/O failure (%s, issue %q): %v", e.Op, e.IssueID, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// IsStoreIO returns true if the error is a StoreIOError.
func IsStoreIO(err error) bool {
	var e *StoreIOError
	return errors.As(err, &e)
}

// TransitionError indicates an illegal status transition was requested.
type TransitionError struct {
	IssueID string
	From    Status
	To      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s → %s for issue %q", e.From, e.To, e.IssueID)
}

// IsTransition returns true if the error is a TransitionError.
func IsTransition(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}
