// Package depcheck detects drift between the dependencies a project declares
// and the dependencies its code actually imports. Declared-but-unused
// packages produce a warning; imported-but-undeclared (transitive) packages
// fail the build, because depending on code that no manifest pins is a
// reproducibility hazard.
package depcheck

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pursbuild/internal/ctxlog"
	"pursbuild/internal/globs"
	"pursbuild/internal/modgraph"
)

// defaultPackages are always treated as used. The REPL-support package is
// pulled in implicitly by interactive sessions, so flagging it as unused
// would only teach people to ignore the warning.
var defaultPackages = map[string]struct{}{
	"psci-support": {},
}

// Inputs collects everything one analysis pass needs. All fields are
// read-only for the duration of the pass.
type Inputs struct {
	// Graph is the module import graph from the most recent compile. A nil
	// graph disables analysis entirely.
	Graph modgraph.Graph
	// ProjectGlobs are the project's own source patterns, used to separate
	// project modules from dependency modules.
	ProjectGlobs []globs.Pattern
	// Packages maps declared packages to their source globs, in declaration
	// order.
	Packages []modgraph.PackageGlobs
	// Declared is the set of direct dependencies the project declares.
	Declared []string
}

// Report holds the two drift classes, each sorted by package name.
type Report struct {
	Unused     []string
	Transitive []string
}

// TransitiveError is returned when project code imports packages that are
// not declared as direct dependencies.
type TransitiveError struct {
	Packages []string
}

func (e *TransitiveError) Error() string {
	return fmt.Sprintf(
		"build depends on transitive dependencies that are not declared in the manifest: %s",
		strings.Join(e.Packages, ", "),
	)
}

// Analyze computes the usage report. It is a pure function over its inputs:
// no logging, no failure. Callers that want the standard diagnostics should
// use Run instead.
func Analyze(in Inputs) Report {
	projectModules := make(map[modgraph.ModuleName]struct{})
	for name, node := range in.Graph {
		if modgraph.IsProjectFile(node.Path, in.ProjectGlobs) {
			projectModules[name] = struct{}{}
		}
	}

	// Imports of project modules, excluding imports of other project
	// modules: a project file importing its sibling is not external usage.
	imported := make(map[modgraph.ModuleName]struct{})
	for name := range projectModules {
		for _, dep := range in.Graph.ImportsOf(name) {
			if _, own := projectModules[dep]; own {
				continue
			}
			imported[dep] = struct{}{}
		}
	}

	// Attribute each imported module to its owning package. Modules whose
	// file no package claims are excluded from analysis.
	importedPackages := make(map[string]struct{})
	for name := range imported {
		node, ok := in.Graph[name]
		if !ok {
			continue
		}
		if owner, ok := modgraph.OwnerPackage(node.Path, in.Packages); ok {
			importedPackages[owner] = struct{}{}
		}
	}

	declared := make(map[string]struct{}, len(in.Declared))
	for _, pkg := range in.Declared {
		declared[pkg] = struct{}{}
	}

	var report Report
	for pkg := range declared {
		if _, used := importedPackages[pkg]; used {
			continue
		}
		if _, exempt := defaultPackages[pkg]; exempt {
			continue
		}
		report.Unused = append(report.Unused, pkg)
	}
	for pkg := range importedPackages {
		if _, ok := declared[pkg]; !ok {
			report.Transitive = append(report.Transitive, pkg)
		}
	}
	sort.Strings(report.Unused)
	sort.Strings(report.Transitive)
	return report
}

// Run performs the analysis and applies the diagnostic policy: unused
// packages are logged as a warning, transitive usage returns a
// *TransitiveError. When no graph is available the whole pass is skipped.
func Run(ctx context.Context, in Inputs) error {
	logger := ctxlog.FromContext(ctx)
	if in.Graph == nil {
		logger.Debug("No module graph available, skipping dependency usage analysis.")
		return nil
	}

	report := Analyze(in)
	if len(report.Unused) > 0 {
		logger.Warn(
			"Declared dependencies appear unused; consider removing them from the manifest.",
			"packages", report.Unused,
		)
	}
	if len(report.Transitive) > 0 {
		return &TransitiveError{Packages: report.Transitive}
	}
	return nil
}
