// Package display formats artifact listings for the warren CLI.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dyluth/warren/pkg/casefile"
)

// OutputFormat specifies how to format the artifact list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated content
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete artifacts as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the artifacts command.
// All filters are ANDed together.
type FilterCriteria struct {
	Since      time.Time // zero = no lower bound
	Until      time.Time // zero = no upper bound
	KindGlob   string    // glob pattern for artifact kind, empty = no filter
	ProducedBy string    // exact match on producer, empty = no filter
}

// Matches returns true if the artifact passes all filter criteria.
func (fc *FilterCriteria) Matches(a *casefile.Artifact) bool {
	if !fc.Since.IsZero() && a.ProducedAt.Before(fc.Since) {
		return false
	}
	if !fc.Until.IsZero() && a.ProducedAt.After(fc.Until) {
		return false
	}

	if fc.KindGlob != "" {
		matched, err := filepath.Match(fc.KindGlob, string(a.Kind))
		if err != nil || !matched {
			return false
		}
	}

	if fc.ProducedBy != "" && a.ProducedBy != fc.ProducedBy {
		return false
	}

	return true
}

// Filter returns the artifacts that match the criteria, preserving order.
func Filter(artifacts []*casefile.Artifact, fc *FilterCriteria) []*casefile.Artifact {
	if fc == nil {
		return artifacts
	}
	var out []*casefile.Artifact
	for _, a := range artifacts {
		if fc.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

// FormatTable writes artifacts as a formatted table to the provided writer.
// Returns the number of artifacts formatted.
func FormatTable(w io.Writer, artifacts []*casefile.Artifact, issueID string) int {
	if len(artifacts) == 0 {
		fmt.Fprintf(w, "No artifacts found for issue '%s'\n", issueID)
		return 0
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"KIND", "PRODUCED BY", "PRODUCED AT", "DECISION", "CONTENT"})
	for _, a := range artifacts {
		tw.AppendRow(table.Row{
			a.Kind,
			a.ProducedBy,
			a.ProducedAt.UTC().Format(time.RFC3339),
			formatDecision(a.Decision),
			formatContent(a.Content),
		})
	}
	tw.Render()

	countMsg := "artifact"
	if len(artifacts) != 1 {
		countMsg = "artifacts"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(artifacts), countMsg)

	return len(artifacts)
}

// jsonlArtifact carries the full artifact, including content, for JSONL output.
type jsonlArtifact struct {
	ID         string                `json:"id"`
	IssueID    string                `json:"issue_id"`
	Kind       casefile.ArtifactKind `json:"kind"`
	ProducedBy string                `json:"produced_by"`
	ProducedAt time.Time             `json:"produced_at"`
	Decision   *casefile.Decision    `json:"decision,omitempty"`
	Content    string                `json:"content"`
}

// FormatJSONL writes artifacts as line-delimited JSON to the provided writer.
// Each artifact is a single JSON object on its own line, content included.
func FormatJSONL(w io.Writer, artifacts []*casefile.Artifact) error {
	for _, a := range artifacts {
		data, err := json.Marshal(jsonlArtifact{
			ID:         a.ID,
			IssueID:    a.IssueID,
			Kind:       a.Kind,
			ProducedBy: a.ProducedBy,
			ProducedAt: a.ProducedAt,
			Decision:   a.Decision,
			Content:    a.Content,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal artifact to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// formatDecision renders the recorded decision for table display.
func formatDecision(d *casefile.Decision) string {
	if d == nil {
		return "-"
	}
	if d.Reason == "" {
		return string(d.Type)
	}
	reason := d.Reason
	if len(reason) > 30 {
		reason = reason[:27] + "..."
	}
	return fmt.Sprintf("%s (%s)", d.Type, reason)
}

// formatContent truncates content to its first line, max 40 characters.
// Multi-line content shows only the first non-empty line.
func formatContent(content string) string {
	if content == "" {
		return "-"
	}

	var firstLine string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			firstLine = trimmed
			break
		}
	}
	if firstLine == "" {
		return "-"
	}
	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}
	return firstLine
}
