package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
)

// Execer abstracts subprocess spawning so the pipeline's ordering logic can
// be tested without launching real processes. All methods block until the
// subprocess exits; the returned int is its exit code. A non-nil error means
// the process could not be started at all.
//
// Only the Interactive variants forward the parent's standard input; build
// and hook subprocesses never receive it.
type Execer interface {
	Run(ctx context.Context, name string, args ...string) (int, error)
	RunInteractive(ctx context.Context, name string, args ...string) (int, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, int, error)
	Shell(ctx context.Context, command string) (int, error)
}

// System returns the Execer backed by real processes.
func System() Execer {
	return systemExecer{}
}

type systemExecer struct{}

func (systemExecer) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return wait(cmd)
}

func (systemExecer) RunInteractive(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return wait(cmd)
}

func (systemExecer) Output(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	code, err := wait(cmd)
	return stdout.Bytes(), code, err
}

func (e systemExecer) Shell(ctx context.Context, command string) (int, error) {
	name, flag := shellCommand()
	return e.Run(ctx, name, flag, command)
}

func shellCommand() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}

// wait runs the prepared command and folds a nonzero exit into the returned
// code rather than an error: exiting nonzero is an outcome, not a spawn
// failure.
func wait(cmd *exec.Cmd) (int, error) {
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
