package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursbuild/internal/globs"
	"pursbuild/internal/manifest"
	"pursbuild/internal/modgraph"
)

// fakeExec records every spawned command in order and returns scripted exit
// codes, so ordering tests never launch real processes.
type fakeExec struct {
	mu        sync.Mutex
	calls     []string
	argvs     [][]string
	exitCodes map[string]int
	outputs   map[string][]byte
	startErrs map[string]error
}

func newFakeExec() *fakeExec {
	return &fakeExec{
		exitCodes: map[string]int{},
		outputs:   map[string][]byte{},
		startErrs: map[string]error{},
	}
}

func (f *fakeExec) record(kind, command string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+":"+command)
	if err, ok := f.startErrs[command]; ok {
		return 0, err
	}
	return f.exitCodes[command], nil
}

func (f *fakeExec) Run(_ context.Context, name string, args ...string) (int, error) {
	return f.record("run", strings.Join(append([]string{name}, args...), " "))
}

func (f *fakeExec) RunInteractive(_ context.Context, name string, args ...string) (int, error) {
	f.mu.Lock()
	f.argvs = append(f.argvs, append([]string{name}, args...))
	f.mu.Unlock()
	return f.record("run-tty", strings.Join(append([]string{name}, args...), " "))
}

func (f *fakeExec) Output(_ context.Context, name string, args ...string) ([]byte, int, error) {
	command := strings.Join(append([]string{name}, args...), " ")
	code, err := f.record("output", command)
	return f.outputs[command], code, err
}

func (f *fakeExec) Shell(_ context.Context, command string) (int, error) {
	return f.record("shell", command)
}

func compilePatterns(t *testing.T, patterns ...string) []globs.Pattern {
	t.Helper()
	compiled, err := globs.CompileAll(patterns)
	require.NoError(t, err)
	return compiled
}

func TestRunnerOrdering(t *testing.T) {
	hooks := manifest.Hooks{
		Before: []string{"b1", "b2"},
		Else:   []string{"e1"},
		Then:   []string{"t1"},
	}

	recordingStep := func(exec *fakeExec, name string, err error) Step {
		return func(context.Context) error {
			exec.record("step", name)
			return err
		}
	}

	t.Run("success path runs before, compile, then", func(t *testing.T) {
		exec := newFakeExec()
		r := &Runner{Exec: exec, Hooks: hooks}

		err := r.Run(context.Background(), recordingStep(exec, "compile", nil), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"shell:b1", "shell:b2", "step:compile", "shell:t1"}, exec.calls)
	})

	t.Run("compile failure runs else and re-raises the failure", func(t *testing.T) {
		exec := newFakeExec()
		r := &Runner{Exec: exec, Hooks: hooks}
		compileErr := errors.New("compile exploded")

		err := r.Run(context.Background(), recordingStep(exec, "compile", compileErr), nil)
		require.ErrorIs(t, err, compileErr)
		assert.Equal(t, []string{"shell:b1", "shell:b2", "step:compile", "shell:e1"}, exec.calls)
	})

	t.Run("failing before hook skips everything else", func(t *testing.T) {
		exec := newFakeExec()
		exec.exitCodes["b1"] = 3
		r := &Runner{Exec: exec, Hooks: hooks}

		err := r.Run(context.Background(), recordingStep(exec, "compile", nil), nil)
		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseBefore, phaseErr.Phase)
		assert.Equal(t, 3, phaseErr.ExitCode)
		assert.Equal(t, []string{"shell:b1"}, exec.calls)
	})

	t.Run("post action failure also takes the else path", func(t *testing.T) {
		exec := newFakeExec()
		r := &Runner{Exec: exec, Hooks: hooks}
		postErr := errors.New("run exploded")

		err := r.Run(context.Background(), recordingStep(exec, "compile", nil), recordingStep(exec, "post", postErr))
		require.ErrorIs(t, err, postErr)
		assert.Equal(t, []string{"shell:b1", "shell:b2", "step:compile", "step:post", "shell:e1"}, exec.calls)
	})

	t.Run("post action is skipped when compile fails", func(t *testing.T) {
		exec := newFakeExec()
		r := &Runner{Exec: exec, Hooks: hooks}
		compileErr := errors.New("nope")

		err := r.Run(context.Background(), recordingStep(exec, "compile", compileErr), recordingStep(exec, "post", nil))
		require.ErrorIs(t, err, compileErr)
		assert.NotContains(t, exec.calls, "step:post")
	})

	t.Run("failing then hook is fatal", func(t *testing.T) {
		exec := newFakeExec()
		exec.exitCodes["t1"] = 1
		r := &Runner{Exec: exec, Hooks: hooks}

		err := r.Run(context.Background(), recordingStep(exec, "compile", nil), nil)
		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseThen, phaseErr.Phase)
	})

	t.Run("failing else hook surfaces with the original failure", func(t *testing.T) {
		exec := newFakeExec()
		exec.exitCodes["e1"] = 7
		r := &Runner{Exec: exec, Hooks: hooks}
		compileErr := errors.New("original failure")

		err := r.Run(context.Background(), recordingStep(exec, "compile", compileErr), nil)
		require.ErrorIs(t, err, compileErr, "the original failure is still reported")
		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseElse, phaseErr.Phase)
	})
}

func TestBuildValidate(t *testing.T) {
	t.Run("explicit codegen with a backend is rejected before any subprocess", func(t *testing.T) {
		exec := newFakeExec()
		b := &Build{
			Compiler:     "purs",
			Backend:      "psgo",
			CompilerArgs: []string{"--codegen", "corefn"},
			Exec:         exec,
		}
		err := b.Step()(context.Background())
		require.ErrorIs(t, err, ErrCodegenConflict)
		assert.Empty(t, exec.calls, "validation failures must precede process spawning")
	})

	t.Run("short codegen flag is also rejected", func(t *testing.T) {
		b := &Build{Backend: "psgo", CompilerArgs: []string{"-g", "corefn"}}
		require.ErrorIs(t, b.Validate(), ErrCodegenConflict)
	})

	t.Run("joined codegen forms are also rejected", func(t *testing.T) {
		for _, arg := range []string{"--codegen=corefn", "-g=corefn"} {
			b := &Build{Backend: "psgo", CompilerArgs: []string{arg}}
			require.ErrorIs(t, b.Validate(), ErrCodegenConflict, arg)
		}
	})

	t.Run("codegen without a backend is allowed", func(t *testing.T) {
		b := &Build{CompilerArgs: []string{"--codegen", "js"}}
		require.NoError(t, b.Validate())
	})
}

func TestBuildStep(t *testing.T) {
	patterns := compilePatterns(t, "src/**/*.purs")

	t.Run("direct build compiles then queries the graph", func(t *testing.T) {
		exec := newFakeExec()
		exec.outputs["purs graph src/**/*.purs"] = []byte(`{}`)
		b := &Build{Compiler: "purs", Patterns: patterns, Exec: exec}

		require.NoError(t, b.Step()(context.Background()))
		assert.Equal(t, []string{
			"run:purs compile src/**/*.purs",
			"output:purs graph src/**/*.purs",
		}, exec.calls)
	})

	t.Run("compiler failure is a tagged Compile result", func(t *testing.T) {
		exec := newFakeExec()
		exec.exitCodes["purs compile src/**/*.purs"] = 1
		b := &Build{Compiler: "purs", Patterns: patterns, Exec: exec}

		err := b.Step()(context.Background())
		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseCompile, phaseErr.Phase)
		assert.Equal(t, 1, phaseErr.ExitCode)
	})

	t.Run("backend build is two-phase and skips the graph", func(t *testing.T) {
		exec := newFakeExec()
		b := &Build{Compiler: "purs", Backend: "psgo", Patterns: patterns, Exec: exec}

		require.NoError(t, b.Step()(context.Background()))
		assert.Equal(t, []string{
			"run:purs compile src/**/*.purs --codegen corefn",
			"run:psgo",
		}, exec.calls)
	})

	t.Run("backend failure is a tagged Backend result", func(t *testing.T) {
		exec := newFakeExec()
		exec.exitCodes["psgo"] = 2
		b := &Build{Compiler: "purs", Backend: "psgo", Patterns: patterns, Exec: exec}

		err := b.Step()(context.Background())
		var phaseErr *PhaseError
		require.ErrorAs(t, err, &phaseErr)
		assert.Equal(t, PhaseBackend, phaseErr.Phase)
		assert.Equal(t, "psgo", phaseErr.Command)
	})

	t.Run("unavailable graph skips analysis instead of failing", func(t *testing.T) {
		exec := newFakeExec()
		exec.exitCodes["purs graph src/**/*.purs"] = 1
		b := &Build{
			Compiler: "purs",
			Patterns: patterns,
			Declared: []string{"totally-unused"},
			Exec:     exec,
		}
		require.NoError(t, b.Step()(context.Background()))
	})

	t.Run("transitive dependency usage fails the compile step", func(t *testing.T) {
		exec := newFakeExec()
		exec.outputs["purs graph src/**/*.purs"] = []byte(`{
			"Main": {"path": "src/Main.purs", "depends": ["Dep.Extra"]},
			"Dep.Extra": {"path": ".deps/extra/src/Extra.purs", "depends": []}
		}`)
		b := &Build{
			Compiler:     "purs",
			Patterns:     patterns,
			ProjectGlobs: compilePatterns(t, "src/**/*.purs"),
			Packages: []modgraph.PackageGlobs{
				{Name: "extra", Patterns: compilePatterns(t, ".deps/extra/**/*.purs")},
			},
			Declared: nil,
			Exec:     exec,
		}
		err := b.Step()(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extra")
	})
}
