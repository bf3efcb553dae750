// Package tfexec runs the external IaC tool as a subprocess and parses its
// structured output.
//
// The tool is treated as a black box with four known invocations: init,
// apply, destroy, and the JSON outputs query. Nothing here interprets the
// tool's console output; it is streamed verbatim into the run's log sink.
package tfexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DefaultBinary is the external tool executable resolved from PATH.
const DefaultBinary = "terraform"

// Runner executes tool subcommands inside a job workspace.
type Runner struct {
	binary string
}

// NewRunner returns a runner for the given executable. An empty binary
// selects DefaultBinary; tests point this at a stub script.
func NewRunner(binary string) *Runner {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &Runner{binary: binary}
}

func (r *Runner) Binary() string {
	return r.binary
}

// Canonical argument sets for the three lifecycle subcommands.
func InitArgs() []string    { return []string{"init", "-input=false"} }
func ApplyArgs() []string   { return []string{"apply", "-auto-approve", "-input=false"} }
func DestroyArgs() []string { return []string{"destroy", "-auto-approve", "-input=false"} }

// Run launches one subcommand with working directory dir and the supplied
// environment, streaming merged stdout/stderr into sink as it is produced.
//
// A delimiter line naming the exact command precedes execution so the log
// is self-describing. The returned exit status is reported, never
// interpreted; a non-nil error means the process could not be run at all.
func (r *Runner) Run(ctx context.Context, args []string, dir string, env []string, sink io.Writer) (int, error) {
	line := fmt.Sprintf(">>> Running: %s %s\n\n", r.binary, strings.Join(args, " "))
	if _, err := io.WriteString(sink, line); err != nil {
		return -1, fmt.Errorf("write command delimiter: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = sink
	cmd.Stderr = sink

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		_, _ = io.WriteString(sink, fmt.Sprintf("\nCommand failed with exit code %d\n", code))
		return code, nil
	}
	return -1, fmt.Errorf("run %s %s: %w", r.binary, strings.Join(args, " "), err)
}
