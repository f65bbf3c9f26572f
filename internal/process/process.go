// Package process runs external commands and captures their standard output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"upder/internal/debug"
	appErrors "upder/internal/errors"
)

// cancelWaitDelay bounds how long Run waits for output after the child is killed.
const cancelWaitDelay = 2 * time.Second

// Output is the captured result of a finished command.
type Output struct {
	Stdout   string
	ExitCode int
}

// Runner executes external commands, allowing tests to inject stubs.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	stderr io.Writer
	env    []string
}

// ExecOption configures an ExecRunner.
type ExecOption func(*ExecRunner)

// WithStderr sets where the child's standard error is streamed.
func WithStderr(w io.Writer) ExecOption {
	return func(r *ExecRunner) {
		r.stderr = w
	}
}

// WithEnv replaces the child environment. A nil slice inherits the parent's.
func WithEnv(env []string) ExecOption {
	return func(r *ExecRunner) {
		r.env = env
	}
}

// NewExecRunner constructs a Runner backed by os/exec.
func NewExecRunner(opts ...ExecOption) *ExecRunner {
	r := &ExecRunner{stderr: os.Stderr}
	for _, opt := range opts {
		opt(r)
	}
	if r.stderr == nil {
		r.stderr = io.Discard
	}
	return r
}

// Run spawns name with args and waits for it to exit. Only a failure to start
// the process is an error; a non-zero exit status is reported in Output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	//nolint:gosec // G204: the updater intentionally shells out to known tools
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = r.stderr
	if r.env != nil {
		cmd.Env = r.env
	}
	// Grandchildren can hold the stdout pipe open after a cancelled child dies.
	cmd.WaitDelay = cancelWaitDelay

	if err := cmd.Start(); err != nil {
		return Output{}, appErrors.New(appErrors.CodeSpawnFailed, fmt.Sprintf("spawn %s: %v", CommandLine(name, args), err), err)
	}

	out := Output{}
	waitErr := cmd.Wait()
	out.Stdout = Decode(stdout.Bytes())

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case ctx.Err() != nil:
		// A child killed by cancellation also reports an ExitError.
		return out, fmt.Errorf("%s: %w", CommandLine(name, args), ctx.Err())
	case errors.As(waitErr, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		debug.WithFields(logrus.Fields{
			"command":   CommandLine(name, args),
			"exit_code": out.ExitCode,
		}).Warn("command exited with non-zero status")
	default:
		return out, appErrors.New(appErrors.CodeIO, fmt.Sprintf("wait %s: %v", CommandLine(name, args), waitErr), waitErr)
	}

	debug.Logf("ran %s (exit %d, %d bytes stdout)", CommandLine(name, args), out.ExitCode, len(out.Stdout))
	return out, nil
}

// Decode converts captured output to text, replacing invalid UTF-8 rather
// than failing.
func Decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// CommandLine renders a command for messages and logs.
func CommandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
