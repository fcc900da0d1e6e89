package wireless

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const redacted = "******"

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// StepError is a stage-aware error with optional command context.
type StepError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats interface failures for logs and UI.
func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	detail := strings.TrimSpace(e.CommandLog.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.CommandLog.Stdout)
	}
	if detail == "" {
		return fmt.Sprintf("%s: %s (cmd=%s exit=%d)", e.Stage, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
	}
	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d): %s",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
		detail,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// invocation runs commands for one backend and turns failures into StepErrors.
type invocation struct {
	path   string
	runner commandRunner
	onLog  func(CommandLog)
}

// run executes path with args; values listed in secrets are masked in the log.
func (inv *invocation) run(ctx context.Context, stage, message string, secrets []string, args ...string) (commandResult, error) {
	res, err := inv.runner.Run(ctx, inv.path, args...)
	log := CommandLog{
		Command:  inv.path,
		Args:     redactArgs(args, secrets),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if inv.onLog != nil {
		inv.onLog(log)
	}
	if err != nil {
		return res, &StepError{
			Stage:      stage,
			Message:    message,
			CommandLog: log,
			Err:        err,
		}
	}
	return res, nil
}

// redactArgs returns a copy of args with any argument containing a secret masked.
func redactArgs(args []string, secrets []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = arg
		for _, secret := range secrets {
			if secret != "" && strings.Contains(arg, secret) {
				out[i] = redacted
				break
			}
		}
	}
	return out
}
