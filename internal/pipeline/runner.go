// Package pipeline executes one linear build invocation: before-hooks, the
// compile step, an optional post-action, and then either the else-hooks (on
// failure) or the then-hooks (on success). There is no task graph here; the
// whole pipeline is a single straight line, optionally re-run by the watch
// scheduler.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"pursbuild/internal/ctxlog"
	"pursbuild/internal/manifest"
)

// Step is one unit of pipeline work.
type Step func(ctx context.Context) error

// Runner sequences hooks around a compile step and an optional post-action.
type Runner struct {
	Exec  Execer
	Hooks manifest.Hooks
}

// Run executes the pipeline. Ordering contract:
//
//   - every before-hook runs first; a nonzero exit aborts immediately,
//     skipping the remaining before-hooks and the compile step
//   - compile runs, then post (when non-nil) on compile success
//   - if compile or post failed, the else-hooks run best-effort and the
//     original failure is re-raised afterwards; then-hooks do not run
//   - on success the then-hooks run, and any nonzero exit from one is fatal
func (r *Runner) Run(ctx context.Context, compile Step, post Step) error {
	if err := r.runHooks(ctx, PhaseBefore, r.Hooks.Before); err != nil {
		return err
	}

	err := compile(ctx)
	if err == nil && post != nil {
		err = post(ctx)
	}

	if err != nil {
		if elseErr := r.runHooks(ctx, PhaseElse, r.Hooks.Else); elseErr != nil {
			// The else-hook failure is fatal too, but the original failure
			// is what the user needs first.
			return errors.Join(err, elseErr)
		}
		return err
	}

	return r.runHooks(ctx, PhaseThen, r.Hooks.Then)
}

func (r *Runner) runHooks(ctx context.Context, phase Phase, commands []string) error {
	logger := ctxlog.FromContext(ctx)
	for _, command := range commands {
		logger.Debug("Running hook.", "phase", string(phase), "command", command)
		code, err := r.Exec.Shell(ctx, command)
		if err != nil {
			return fmt.Errorf("%s hook %q could not start: %w", phase, command, err)
		}
		if code != 0 {
			return &PhaseError{Phase: phase, ExitCode: code, Command: command}
		}
	}
	return nil
}
