// Package collab provides the production Collaborator binding: one external
// command per stage, spoken to over stdin/stdout JSON.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/pipeline"
	"github.com/dyluth/warren/pkg/casefile"
)

const (
	// maxOutputSize is the maximum number of bytes read from the
	// collaborator's stdout/stderr (10MB)
	maxOutputSize = 10 * 1024 * 1024
)

// Input is the JSON document written to the collaborator's stdin.
type Input struct {
	IssueID string                           `json:"issue_id"`
	Stage   string                           `json:"stage"`
	Inputs  map[casefile.ArtifactKind]string `json:"inputs"`
}

// Output is the JSON document expected on the collaborator's stdout.
type Output struct {
	Content  string `json:"content"`
	Decision string `json:"decision"` // continue | short_circuit | fail
	Reason   string `json:"reason,omitempty"`
}

// Subprocess runs one stage's collaborator as a child process. The process
// receives the Input JSON on stdin and must print an Output JSON on stdout
// and exit 0. Anything else (non-zero exit, timeout, unparseable output) is
// returned as an error, which the stage executor turns into a FAIL decision
// with no artifact written.
type Subprocess struct {
	stage   string
	command []string
	timeout time.Duration
}

// NewSubprocess creates a subprocess collaborator for the given stage.
func NewSubprocess(stage string, command []string, timeout time.Duration) (*Subprocess, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("stage %q: collaborator command cannot be empty", stage)
	}
	if timeout <= 0 {
		timeout = config.DefaultStageTimeout
	}
	return &Subprocess{stage: stage, command: command, timeout: timeout}, nil
}

// Execute implements pipeline.Collaborator.
func (s *Subprocess) Execute(ctx context.Context, issueID string, inputs map[casefile.ArtifactKind]string) (string, casefile.Decision, error) {
	inputJSON, err := json.Marshal(Input{
		IssueID: issueID,
		Stage:   s.stage,
		Inputs:  inputs,
	})
	if err != nil {
		return "", casefile.Decision{}, fmt.Errorf("failed to marshal collaborator input: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, s.command[0], s.command[1:]...)
	cmd.Stdin = bytes.NewReader(inputJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, n: maxOutputSize}
	cmd.Stderr = &limitedWriter{w: &stderr, n: maxOutputSize}

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return "", casefile.Decision{}, fmt.Errorf("stage %q collaborator timed out after %s", s.stage, s.timeout)
		}
		return "", casefile.Decision{}, fmt.Errorf("stage %q collaborator failed: %w (stderr: %s)",
			s.stage, err, truncate(stderr.String(), 500))
	}

	var output Output
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return "", casefile.Decision{}, fmt.Errorf("stage %q collaborator produced unparseable output: %w (stdout: %s)",
			s.stage, err, truncate(stdout.String(), 200))
	}

	decision, err := parseDecision(output)
	if err != nil {
		return "", casefile.Decision{}, fmt.Errorf("stage %q collaborator: %w", s.stage, err)
	}

	return output.Content, decision, nil
}

func parseDecision(output Output) (casefile.Decision, error) {
	switch casefile.DecisionType(output.Decision) {
	case casefile.DecisionContinue:
		return casefile.Continue(), nil
	case casefile.DecisionShortCircuit:
		if output.Reason == "" {
			return casefile.Decision{}, fmt.Errorf("short_circuit decision requires a reason")
		}
		return casefile.ShortCircuit(output.Reason), nil
	case casefile.DecisionFail:
		if output.Reason == "" {
			return casefile.Decision{}, fmt.Errorf("fail decision requires a reason")
		}
		return casefile.Fail(output.Reason), nil
	default:
		return casefile.Decision{}, fmt.Errorf("unknown decision %q", output.Decision)
	}
}

// FromConfig builds the full collaborator set from warren.yml stage bindings.
func FromConfig(cfg *config.Config) (map[string]pipeline.Collaborator, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("no stages bound: add a stages section to %s", config.DefaultConfigFile)
	}

	collaborators := make(map[string]pipeline.Collaborator, len(cfg.Stages))
	for name, stage := range cfg.Stages {
		sub, err := NewSubprocess(name, stage.Command, stage.StageTimeout())
		if err != nil {
			return nil, err
		}
		collaborators[name] = sub
	}

	return collaborators, nil
}

// limitedWriter discards bytes beyond n to bound collaborator output.
type limitedWriter struct {
	w io.Writer
	n int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if l.n <= 0 {
		return total, nil
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	written, err := l.w.Write(p)
	l.n -= int64(written)
	if err != nil {
		return written, err
	}
	return total, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
