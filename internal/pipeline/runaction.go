package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"pursbuild/internal/ctxlog"
	"pursbuild/internal/fsutil"
)

// launcherBody is the generated node launcher for direct builds. It imports
// the compiled entry module and invokes its main.
const launcherBody = `#!/usr/bin/env node

require(%q).main();
`

// RunAction is the post-action that executes the program a successful build
// produced. Exactly one of two modes applies: the default backend writes and
// executes a node launcher script, an alternate backend is invoked with its
// --run protocol.
type RunAction struct {
	// Module is the entry module, normally Main.
	Module string
	// OutputDir is the compiler's output directory.
	OutputDir string
	// WorkDir is the directory whose internal work dir receives the
	// launcher script.
	WorkDir string
	// Backend mirrors Build.Backend.
	Backend string
	// Args are forwarded to the program.
	Args []string

	Exec Execer
}

// Step returns the run step. The final run process inherits standard input
// so interactive programs work; nothing else in the pipeline does.
func (a *RunAction) Step() Step {
	return func(ctx context.Context) error {
		if a.Backend != "" {
			return a.runBackend(ctx)
		}
		return a.runLauncher(ctx)
	}
}

func (a *RunAction) runBackend(ctx context.Context) error {
	args := append([]string{"--run", a.Module + ".main"}, a.Args...)
	ctxlog.FromContext(ctx).Debug("Running program via backend.", "backend", a.Backend, "module", a.Module)
	code, err := a.Exec.RunInteractive(ctx, a.Backend, args...)
	if err != nil {
		return fmt.Errorf("backend %q could not start: %w", a.Backend, err)
	}
	if code != 0 {
		return &PhaseError{Phase: PhaseRun, ExitCode: code, Command: a.Backend}
	}
	return nil
}

func (a *RunAction) runLauncher(ctx context.Context) error {
	moduleIndex, err := filepath.Abs(filepath.Join(a.OutputDir, a.Module))
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}

	workDir := filepath.Join(a.WorkDir, fsutil.WorkDirName)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	launcher := filepath.Join(workDir, "run.js")
	body := fmt.Sprintf(launcherBody, moduleIndex)
	if err := os.WriteFile(launcher, []byte(body), 0o755); err != nil {
		return fmt.Errorf("failed to write launcher script: %w", err)
	}

	// The launcher is handed to node as an argument vector, so program
	// arguments containing whitespace or shell metacharacters pass through
	// untouched.
	ctxlog.FromContext(ctx).Debug("Executing launcher script.", "path", launcher)
	code, err := a.Exec.RunInteractive(ctx, "node", append([]string{launcher}, a.Args...)...)
	if err != nil {
		return fmt.Errorf("launcher could not start: %w", err)
	}
	if code != 0 {
		return &PhaseError{Phase: PhaseRun, ExitCode: code, Command: launcher}
	}
	return nil
}
