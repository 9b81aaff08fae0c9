package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"pg-s3-backup/internal/logging"
)

// Runner executes external commands and converts their outcome into results.
// Implementations must never panic past this boundary; every failure is
// reported as a *CommandError.
type Runner interface {
	// Run executes command and returns its trimmed standard output.
	// If sensitive is true, logged representations of the command are
	// redacted down to the executable name.
	Run(ctx context.Context, command string, sensitive bool) (string, error)
}

// CommandError describes a failed command invocation
type CommandError struct {
	Command  string // redacted form, safe to log
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

// Error implements the error interface
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed: %s (exit code %d)", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += fmt.Sprintf(": %s", e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *CommandError) Unwrap() error {
	return e.Cause
}

// ShellRunner runs commands through a shell so callers can use pipes and
// redirection, matching the dump and listing invocations this tool issues.
type ShellRunner struct {
	shell  string
	env    []string
	logger *logging.Logger
}

// NewShellRunner creates a runner that executes commands via "sh -c".
// extraEnv entries ("KEY=value") are appended to the process environment so
// credentials reach child processes without inner components reading ambient
// state.
func NewShellRunner(extraEnv []string, logger *logging.Logger) *ShellRunner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &ShellRunner{
		shell:  "sh",
		env:    append(os.Environ(), extraEnv...),
		logger: logger,
	}
}

// Run executes the command and returns trimmed stdout on success
func (r *ShellRunner) Run(ctx context.Context, command string, sensitive bool) (string, error) {
	logCommand := Redact(command, sensitive)

	r.logger.Debugf("Running command: %s", logCommand)
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Env = r.env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	outTrimmed := strings.TrimSpace(stdout.String())
	errTrimmed := strings.TrimSpace(stderr.String())

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		cmdErr := &CommandError{
			Command:  logCommand,
			ExitCode: exitCode,
			Stdout:   outTrimmed,
			Stderr:   errTrimmed,
			Cause:    err,
		}
		r.logger.LogCommandExecution(logCommand, false, duration, cmdErr)
		return "", cmdErr
	}

	r.logger.LogCommandExecution(logCommand, true, duration, nil)
	return outTrimmed, nil
}

// Redact returns a loggable form of command. When sensitive, everything after
// the executable name is dropped so passphrases and credentials never reach
// the logs.
func Redact(command string, sensitive bool) string {
	if !sensitive {
		return command
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0] + " ..."
}
