package depcheck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pursbuild/internal/globs"
	"pursbuild/internal/modgraph"
)

func compile(t *testing.T, patterns ...string) []globs.Pattern {
	t.Helper()
	compiled, err := globs.CompileAll(patterns)
	require.NoError(t, err)
	return compiled
}

// fixture builds a graph where the project's Main imports one module from
// each listed package.
func fixture(t *testing.T, importedPackages ...string) (modgraph.Graph, []modgraph.PackageGlobs) {
	t.Helper()
	graph := modgraph.Graph{
		"Main": {Path: "src/Main.purs"},
	}
	var packages []modgraph.PackageGlobs
	node := graph["Main"]
	for _, pkg := range importedPackages {
		mod := modgraph.ModuleName("Dep." + pkg)
		node.Depends = append(node.Depends, mod)
		graph[mod] = modgraph.Node{Path: ".deps/" + pkg + "/src/Index.purs"}
	}
	graph["Main"] = node
	for _, pkg := range importedPackages {
		packages = append(packages, modgraph.PackageGlobs{
			Name:     pkg,
			Patterns: compile(t, ".deps/"+pkg+"/**/*.purs"),
		})
	}
	return graph, packages
}

func TestAnalyze(t *testing.T) {
	project := compile(t, "src/**/*.purs")

	t.Run("unused and transitive are computed from set difference", func(t *testing.T) {
		// Declared {A,B}, imported {B,C}: A is unused, C is transitive.
		graph, packages := fixture(t, "pkg-b", "pkg-c")
		report := Analyze(Inputs{
			Graph:        graph,
			ProjectGlobs: project,
			Packages:     packages,
			Declared:     []string{"pkg-a", "pkg-b"},
		})
		assert.Equal(t, []string{"pkg-a"}, report.Unused)
		assert.Equal(t, []string{"pkg-c"}, report.Transitive)
	})

	t.Run("self-imports among project modules do not count as usage", func(t *testing.T) {
		graph := modgraph.Graph{
			"P": {Path: "src/P.purs", Depends: []modgraph.ModuleName{"Q"}},
			"Q": {Path: "src/Q.purs"},
		}
		report := Analyze(Inputs{Graph: graph, ProjectGlobs: project})
		assert.Empty(t, report.Unused)
		assert.Empty(t, report.Transitive)
	})

	t.Run("default packages are never reported unused", func(t *testing.T) {
		graph, packages := fixture(t)
		report := Analyze(Inputs{
			Graph:        graph,
			ProjectGlobs: project,
			Packages:     packages,
			Declared:     []string{"psci-support"},
		})
		assert.Empty(t, report.Unused)
	})

	t.Run("unattributable imports are silently excluded", func(t *testing.T) {
		graph := modgraph.Graph{
			"Main":    {Path: "src/Main.purs", Depends: []modgraph.ModuleName{"Orphan"}},
			"Orphan":  {Path: "generated/Orphan.purs"},
			"Unknown": {Path: "elsewhere/Unknown.purs"},
		}
		report := Analyze(Inputs{Graph: graph, ProjectGlobs: project})
		assert.Empty(t, report.Transitive)
	})

	t.Run("imports of modules outside the graph are dropped", func(t *testing.T) {
		graph := modgraph.Graph{
			"Main": {Path: "src/Main.purs", Depends: []modgraph.ModuleName{"Foreign.Gone"}},
		}
		report := Analyze(Inputs{Graph: graph, ProjectGlobs: project})
		assert.Empty(t, report.Transitive)
	})

	t.Run("output is sorted for determinism", func(t *testing.T) {
		graph, packages := fixture(t, "zeta", "alpha")
		report := Analyze(Inputs{
			Graph:        graph,
			ProjectGlobs: project,
			Packages:     packages,
			Declared:     nil,
		})
		assert.Equal(t, []string{"alpha", "zeta"}, report.Transitive)
	})
}

func TestRun(t *testing.T) {
	project := compile(t, "src/**/*.purs")

	t.Run("nil graph skips analysis entirely", func(t *testing.T) {
		err := Run(context.Background(), Inputs{
			Graph:    nil,
			Declared: []string{"never-reported"},
		})
		assert.NoError(t, err)
	})

	t.Run("transitive usage fails the build", func(t *testing.T) {
		graph, packages := fixture(t, "pkg-c")
		err := Run(context.Background(), Inputs{
			Graph:        graph,
			ProjectGlobs: project,
			Packages:     packages,
		})
		require.Error(t, err)
		var transitiveErr *TransitiveError
		require.ErrorAs(t, err, &transitiveErr)
		assert.Equal(t, []string{"pkg-c"}, transitiveErr.Packages)
		assert.Contains(t, err.Error(), "pkg-c")
	})

	t.Run("unused dependencies alone do not fail", func(t *testing.T) {
		graph, packages := fixture(t)
		err := Run(context.Background(), Inputs{
			Graph:        graph,
			ProjectGlobs: project,
			Packages:     packages,
			Declared:     []string{"pkg-a"},
		})
		assert.NoError(t, err)
	})
}
