package app

import (
	"context"
	"fmt"
	"path/filepath"

	"pursbuild/internal/cachedir"
	"pursbuild/internal/ctxlog"
	"pursbuild/internal/manifest"
	"pursbuild/internal/pipeline"
	"pursbuild/internal/watch"
)

// Run executes the configured command. In watch mode it blocks until the
// context is cancelled by an interrupt.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Starting.", "command", a.config.Command)

	if a.config.Command == CommandScript {
		return a.runScript(ctx)
	}

	m, err := manifest.Load(ctx, a.config.ManifestPath)
	if err != nil {
		return err
	}
	return a.runProject(ctx, ".", m)
}

// runScript resolves the deterministic scratch directory for the script,
// scaffolds it, and runs the normal pipeline rooted there.
func (a *App) runScript(ctx context.Context) error {
	abs, err := filepath.Abs(a.config.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to resolve script path: %w", err)
	}

	digest := cachedir.Key(cachedir.KeyInputs{
		ScriptPath:   abs,
		Tag:          a.config.Tag,
		Dependencies: a.config.ScriptDeps,
		Backend:      a.config.Backend,
		CompilerArgs: a.config.CompilerArgs,
		DepsOnly:     a.config.DepsOnly,
	})
	dir, err := cachedir.Resolve(digest)
	if err != nil {
		return err
	}
	a.logger.Debug("Using script cache directory.", "dir", dir, "digest", digest)

	if err := cachedir.Scaffold(dir, abs, a.config.ScriptDeps, a.config.Backend); err != nil {
		return err
	}
	m, err := manifest.Load(ctx, filepath.Join(dir, manifest.DefaultPath))
	if err != nil {
		return err
	}
	return a.runProject(ctx, dir, m)
}

// runProject assembles and runs the pipeline for the manifest rooted at
// root. The run and script commands attach the run post-action; watch mode
// wraps the whole invocation in the scheduler.
func (a *App) runProject(ctx context.Context, root string, m *manifest.Manifest) error {
	backend := m.Project.Backend
	if a.config.Backend != "" {
		backend = a.config.Backend
	}

	patterns, err := m.BuildPatterns(a.config.DepsOnly)
	if err != nil {
		return err
	}
	projectGlobs, err := m.ProjectPatterns()
	if err != nil {
		return err
	}
	packages, err := m.PackageGlobs()
	if err != nil {
		return err
	}

	declared := m.Project.Dependencies
	if a.config.Command == CommandScript {
		// Scratch projects have no package glob map; drift analysis would
		// only report noise there.
		declared = nil
		packages = nil
	}

	outputDir := filepath.Join(root, m.Project.Output)
	build := &pipeline.Build{
		Compiler:     m.Project.Compiler,
		Backend:      backend,
		CompilerArgs: a.config.CompilerArgs,
		Output:       outputDir,
		Patterns:     patterns,
		ProjectGlobs: projectGlobs,
		Packages:     packages,
		Declared:     declared,
		Exec:         a.exec,
	}
	// Configuration conflicts surface before any hook or subprocess runs.
	if err := build.Validate(); err != nil {
		return err
	}

	hooks := manifest.Hooks{
		Before: concat(m.Hooks.Before, a.config.ExtraBefore),
		Else:   concat(m.Hooks.Else, a.config.ExtraElse),
		Then:   concat(m.Hooks.Then, a.config.ExtraThen),
	}
	runner := &pipeline.Runner{Exec: a.exec, Hooks: hooks}

	var post pipeline.Step
	if a.config.Command == CommandRun || a.config.Command == CommandScript {
		action := &pipeline.RunAction{
			Module:    a.config.MainModule,
			OutputDir: outputDir,
			WorkDir:   root,
			Backend:   backend,
			Args:      a.config.ProgramArgs,
			Exec:      a.exec,
		}
		post = action.Step()
	}

	invoke := func(ctx context.Context) error {
		return runner.Run(ctx, build.Step(), post)
	}

	if !a.config.Watch {
		return invoke(ctx)
	}

	// In watch mode a failing build ends only that build; the loop lives on.
	if err := invoke(ctx); err != nil {
		a.logger.Error("Initial build failed; watching for changes.", "error", err)
	}
	scheduler := watch.New(watch.Config{
		Patterns:         patterns,
		Rebuild:          invoke,
		Clear:            a.config.Clear,
		AllowIgnoredDirs: a.config.AllowIgnoredDirs,
		Out:              a.outW,
	})
	return scheduler.Run(ctx)
}

func concat(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
