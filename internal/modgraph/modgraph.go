// Package modgraph is a read-only query surface over the module import graph
// emitted by the compiler. The graph maps every compiled module to the source
// file it came from and the modules it imports; this package answers
// membership and ownership questions about those entries without ever
// mutating them.
package modgraph

import (
	"encoding/json"
	"fmt"
	"io"

	"pursbuild/internal/globs"
)

// ModuleName identifies a compiled module. Names are opaque and compared by
// exact string equality.
type ModuleName string

// Node is one entry of the module import graph: the file a module was
// compiled from and the modules it imports, in declaration order.
type Node struct {
	Path    string       `json:"path"`
	Depends []ModuleName `json:"depends"`
}

// Graph maps every known module to its node. A nil Graph means the compiler
// did not emit one; callers treat that as "no information", not an error.
type Graph map[ModuleName]Node

// ParseJSON decodes the compiler's module-graph output. The expected shape
// is an object keyed by module name:
//
//	{"Data.Maybe": {"path": "src/Data/Maybe.purs", "depends": ["Prelude"]}}
func ParseJSON(r io.Reader) (Graph, error) {
	var g Graph
	dec := json.NewDecoder(r)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode module graph: %w", err)
	}
	return g, nil
}

// ImportsOf returns the declared imports of a module, or nil when the module
// is not in the graph. Unknown modules are expected: generated and foreign
// modules live outside the graph.
func (g Graph) ImportsOf(m ModuleName) []ModuleName {
	node, ok := g[m]
	if !ok {
		return nil
	}
	return node.Depends
}

// IsProjectFile reports whether path matches any of the project's own source
// globs, distinguishing the project's files from dependency sources.
func IsProjectFile(path string, projectGlobs []globs.Pattern) bool {
	for _, p := range projectGlobs {
		if p.Matches(path) {
			return true
		}
	}
	return false
}

// PackageGlobs attributes source files to the package that owns them.
type PackageGlobs struct {
	Name     string
	Patterns []globs.Pattern
}

// OwnerPackage returns the first package whose globs match path, scanning
// packages in declaration order. First match wins when globs overlap. The
// second return is false when no package claims the path; such files are
// simply excluded from dependency analysis.
func OwnerPackage(path string, packages []PackageGlobs) (string, bool) {
	for _, pkg := range packages {
		for _, p := range pkg.Patterns {
			if p.Matches(path) {
				return pkg.Name, true
			}
		}
	}
	return "", false
}
