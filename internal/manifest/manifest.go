// Package manifest loads the project manifest, the single HCL file that
// declares what the project is made of: its own source globs, its declared
// dependencies, the package set's source globs, and the hook commands run
// around a build. The manifest is decoded once per invocation and is
// read-only afterwards.
package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"pursbuild/internal/ctxlog"
	"pursbuild/internal/globs"
	"pursbuild/internal/modgraph"
)

// DefaultPath is where the manifest lives unless the caller overrides it.
const DefaultPath = "pursbuild.hcl"

// Project is the decoded `project` block.
type Project struct {
	Name         string
	Sources      []string
	Output       string
	Compiler     string
	Backend      string
	Dependencies []string
}

// Package is one decoded `package` block. Declaration order is preserved
// because source attribution is first-match-wins across packages.
type Package struct {
	Name    string
	Sources []string
}

// Hooks are the shell commands run around the core build step.
type Hooks struct {
	Before []string
	Else   []string
	Then   []string
}

// Manifest is the fully decoded and validated project manifest.
type Manifest struct {
	Project  Project
	Packages []Package
	Hooks    Hooks
}

// fileRoot mirrors the top-level HCL structure of a manifest file.
type fileRoot struct {
	Project  *projectBlock   `hcl:"project,block"`
	Packages []*packageBlock `hcl:"package,block"`
	Hooks    *hooksBlock     `hcl:"hooks,block"`
}

type projectBlock struct {
	Name         string   `hcl:"name"`
	Sources      []string `hcl:"sources"`
	Output       *string  `hcl:"output,optional"`
	Compiler     *string  `hcl:"compiler,optional"`
	Backend      *string  `hcl:"backend,optional"`
	Dependencies []string `hcl:"dependencies,optional"`
}

type packageBlock struct {
	Name    string   `hcl:"name,label"`
	Sources []string `hcl:"sources"`
}

type hooksBlock struct {
	Before []string `hcl:"before,optional"`
	Else   []string `hcl:"else,optional"`
	Then   []string `hcl:"then,optional"`
}

// Load parses and validates the manifest at path.
func Load(ctx context.Context, path string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading project manifest.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, diags)
	}
	return decode(ctx, path, file.Body)
}

// Parse decodes a manifest held in memory. The filename only labels
// diagnostics.
func Parse(ctx context.Context, filename string, src []byte) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	return decode(ctx, filename, file.Body)
}

func decode(ctx context.Context, filename string, body hcl.Body) (*Manifest, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}
	if root.Project == nil {
		return nil, fmt.Errorf("manifest %s has no project block", filename)
	}

	m := &Manifest{
		Project: Project{
			Name:         root.Project.Name,
			Sources:      root.Project.Sources,
			Output:       "output",
			Compiler:     "purs",
			Dependencies: root.Project.Dependencies,
		},
	}
	if root.Project.Output != nil {
		m.Project.Output = *root.Project.Output
	}
	if root.Project.Compiler != nil {
		m.Project.Compiler = *root.Project.Compiler
	}
	if root.Project.Backend != nil {
		m.Project.Backend = *root.Project.Backend
	}
	for _, pkg := range root.Packages {
		m.Packages = append(m.Packages, Package{Name: pkg.Name, Sources: pkg.Sources})
	}
	if root.Hooks != nil {
		m.Hooks = Hooks{Before: root.Hooks.Before, Else: root.Hooks.Else, Then: root.Hooks.Then}
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", filename, err)
	}
	ctxlog.FromContext(ctx).Debug(
		"Manifest decoded.",
		"project", m.Project.Name,
		"packages", len(m.Packages),
		"dependencies", len(m.Project.Dependencies),
	)
	return m, nil
}

func (m *Manifest) validate() error {
	if m.Project.Name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if len(m.Project.Sources) == 0 {
		return fmt.Errorf("project %q declares no sources", m.Project.Name)
	}
	seen := make(map[string]struct{}, len(m.Packages))
	for _, pkg := range m.Packages {
		if _, dup := seen[pkg.Name]; dup {
			return fmt.Errorf("package %q is declared twice", pkg.Name)
		}
		seen[pkg.Name] = struct{}{}
	}
	// Surface malformed globs at configuration time rather than mid-build.
	if _, err := m.ProjectPatterns(); err != nil {
		return err
	}
	if _, err := m.PackageGlobs(); err != nil {
		return err
	}
	return nil
}

// ProjectPatterns compiles the project's own source globs.
func (m *Manifest) ProjectPatterns() ([]globs.Pattern, error) {
	return globs.CompileAll(m.Project.Sources)
}

// PackageGlobs compiles every package's globs, preserving declaration order.
func (m *Manifest) PackageGlobs() ([]modgraph.PackageGlobs, error) {
	out := make([]modgraph.PackageGlobs, 0, len(m.Packages))
	for _, pkg := range m.Packages {
		patterns, err := globs.CompileAll(pkg.Sources)
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", pkg.Name, err)
		}
		out = append(out, modgraph.PackageGlobs{Name: pkg.Name, Patterns: patterns})
	}
	return out, nil
}

// BuildPatterns compiles the full set of patterns handed to the compiler:
// every declared package's sources plus, unless depsOnly is set, the
// project's own sources.
func (m *Manifest) BuildPatterns(depsOnly bool) ([]globs.Pattern, error) {
	var raw []string
	for _, pkg := range m.Packages {
		raw = append(raw, pkg.Sources...)
	}
	if !depsOnly {
		raw = append(raw, m.Project.Sources...)
	}
	return globs.CompileAll(raw)
}
