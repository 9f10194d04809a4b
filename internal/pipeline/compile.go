package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"pursbuild/internal/ctxlog"
	"pursbuild/internal/depcheck"
	"pursbuild/internal/globs"
	"pursbuild/internal/modgraph"
)

// ErrCodegenConflict is the configuration conflict between an alternate
// backend and an explicit codegen request: backend builds already compile to
// the intermediate representation, so the flag must not be passed twice.
var ErrCodegenConflict = errors.New(
	"an alternate backend already requests corefn codegen; remove the explicit --codegen flag",
)

// Build describes the core compile step of one invocation. It is assembled
// once from the manifest and flags and is read-only while the pipeline runs.
type Build struct {
	// Compiler is the compiler executable name.
	Compiler string
	// Backend is the alternate backend command; empty means direct JS
	// compilation.
	Backend string
	// CompilerArgs are extra arguments passed through to the compiler.
	CompilerArgs []string
	// Output is the compiler output directory, passed explicitly so builds
	// do not depend on the working directory.
	Output string
	// Patterns is the full source set handed to the compiler.
	Patterns []globs.Pattern

	// ProjectGlobs and Packages feed dependency usage analysis together
	// with Declared; see depcheck.
	ProjectGlobs []globs.Pattern
	Packages     []modgraph.PackageGlobs
	Declared     []string

	Exec Execer
}

// Validate reports configuration conflicts. It must be called (and pass)
// before any subprocess is spawned.
func (b *Build) Validate() error {
	if b.Backend == "" {
		return nil
	}
	for _, arg := range b.CompilerArgs {
		if arg == "--codegen" || arg == "-g" ||
			strings.HasPrefix(arg, "--codegen=") || strings.HasPrefix(arg, "-g=") {
			return ErrCodegenConflict
		}
	}
	return nil
}

// Step returns the compile step: direct compilation, or the two-phase
// compile-then-backend sequence when an alternate backend is configured.
// After a successful compile the dependency usage analysis runs, so a
// transitive-dependency violation fails this step before any hook sees
// control again.
func (b *Build) Step() Step {
	return func(ctx context.Context) error {
		if err := b.Validate(); err != nil {
			return err
		}
		logger := ctxlog.FromContext(ctx)

		args := []string{"compile"}
		for _, p := range b.Patterns {
			args = append(args, p.String())
		}
		if b.Output != "" {
			args = append(args, "--output", b.Output)
		}
		if b.Backend != "" {
			// Two-phase build: stop at the intermediate representation and
			// let the backend take over codegen.
			args = append(args, "--codegen", "corefn")
		}
		args = append(args, b.CompilerArgs...)

		logger.Debug("Invoking compiler.", "compiler", b.Compiler, "source_patterns", len(b.Patterns))
		code, err := b.Exec.Run(ctx, b.Compiler, args...)
		if err != nil {
			return fmt.Errorf("compiler %q could not start: %w", b.Compiler, err)
		}
		if code != 0 {
			return &PhaseError{Phase: PhaseCompile, ExitCode: code, Command: b.Compiler}
		}

		if b.Backend != "" {
			logger.Debug("Invoking alternate backend.", "backend", b.Backend)
			code, err := b.Exec.Run(ctx, b.Backend)
			if err != nil {
				return fmt.Errorf("backend %q could not start: %w", b.Backend, err)
			}
			if code != 0 {
				return &PhaseError{Phase: PhaseBackend, ExitCode: code, Command: b.Backend}
			}
		}

		return depcheck.Run(ctx, depcheck.Inputs{
			Graph:        b.loadGraph(ctx),
			ProjectGlobs: b.ProjectGlobs,
			Packages:     b.Packages,
			Declared:     b.Declared,
		})
	}
}

// loadGraph asks the compiler for the module import graph of the sources
// just compiled. Any failure to obtain one means the analysis is skipped,
// never that the build fails: corefn codegen suppresses graph output, and
// older compilers lack the subcommand.
func (b *Build) loadGraph(ctx context.Context) modgraph.Graph {
	logger := ctxlog.FromContext(ctx)
	if b.Backend != "" {
		logger.Debug("Backend build suppresses the module graph, skipping graph query.")
		return nil
	}

	args := []string{"graph"}
	for _, p := range b.Patterns {
		args = append(args, p.String())
	}
	out, code, err := b.Exec.Output(ctx, b.Compiler, args...)
	if err != nil || code != 0 {
		logger.Debug("Compiler did not emit a module graph.", "exit_code", code, "error", err)
		return nil
	}
	graph, err := modgraph.ParseJSON(bytes.NewReader(out))
	if err != nil {
		logger.Debug("Module graph output was not parseable.", "error", err)
		return nil
	}
	return graph
}
