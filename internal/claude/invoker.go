// Package claude shells out to the Claude CLI in non-interactive print
// mode. It is the one concrete agent backend; the engine depends only on
// the Invoke signature, so another backend slots in behind the same shape.
package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Invoker is a reusable client for running the claude CLI.
// It follows the http.Client pattern: create once, use many times.
// Safe for concurrent use.
type Invoker struct {
	// ClaudePath is the path to the claude CLI binary.
	// Defaults to "claude" (found in PATH).
	ClaudePath string

	// WorkDir is the directory the agent works in.
	WorkDir string
}

// Request holds per-invocation configuration for one agent call.
type Request struct {
	// Prompt is the user prompt to send (required).
	Prompt string

	// SystemPrompt carries the phase instructions (optional).
	SystemPrompt string

	// Model selects the model: an alias (sonnet, opus, haiku) or a full
	// identifier (required).
	Model string
}

// Response holds the parsed output of one completed invocation.
type Response struct {
	// Text is the result text with ANSI escapes stripped.
	Text string

	// RawOutput is the unparsed CLI stdout, persisted as last-output.txt.
	RawOutput string

	// Stderr holds diagnostic output, useful when the CLI exits non-zero.
	Stderr string

	// CostUSD is the provider-reported total cost of the invocation.
	CostUSD float64

	// IsError marks an error envelope or a non-zero exit.
	IsError bool

	// ExitCode is the subprocess exit code (0 on success).
	ExitCode int

	// Duration is subprocess wall time.
	Duration time.Duration
}

// NewInvoker creates a new Invoker with default settings.
func NewInvoker(workDir string) *Invoker {
	return &Invoker{
		ClaudePath: "claude",
		WorkDir:    workDir,
	}
}

// BuildCommandArgs constructs the command-line arguments for a request.
func (inv *Invoker) BuildCommandArgs(req Request) []string {
	args := []string{
		"-p", // non-interactive print mode
		"--model", req.Model,
		"--output-format", "json",
	}

	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	// The supervisor runs unattended; permission prompts would hang it.
	args = append(args, "--permission-mode", "bypassPermissions")

	args = append(args, req.Prompt)
	return args
}

// Invoke executes one blocking CLI call. Cancelling ctx kills the
// subprocess; that is the only termination path besides normal exit, so a
// caller watching for stalls cancels the context it passed in.
//
// A non-zero exit is not an error here: the Response carries the exit code
// and IsError so the caller can fold the failure into the iteration
// outcome. The returned error is reserved for invocations that never ran
// (missing binary) or were aborted via ctx.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	if req.Model == "" {
		return nil, errors.New("model is required")
	}

	claudePath := inv.ClaudePath
	if claudePath == "" {
		claudePath = "claude"
	}

	cmd := exec.CommandContext(ctx, claudePath, inv.BuildCommandArgs(req)...)
	cmd.Dir = inv.WorkDir
	SetCleanEnv(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	resp := ParseOutput(stdout.String())
	resp.Stderr = stderr.String()
	resp.Duration = duration

	if runErr != nil {
		if ctx.Err() != nil {
			return resp, fmt.Errorf("claude invocation aborted: %w", ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			resp.ExitCode = exitErr.ExitCode()
			resp.IsError = true
			return resp, nil
		}

		return nil, fmt.Errorf("failed to execute %s: %w", claudePath, runErr)
	}

	return resp, nil
}
