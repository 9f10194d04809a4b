package cachedir

import (
	"fmt"
	"os"
	"path/filepath"

	"pursbuild/internal/manifest"
)

// Scaffold writes the self-contained scratch project into dir: a manifest
// whose only source is the script itself, declaring the requested
// dependencies. The manifest content is a pure function of the cache-key
// inputs, so rewriting it on every run is idempotent and never clobbers
// anything a previous run cached.
func Scaffold(dir, scriptPath string, dependencies []string, backend string) error {
	m := &manifest.Manifest{
		Project: manifest.Project{
			Name:         "script",
			Sources:      []string{filepath.ToSlash(scriptPath)},
			Output:       "output",
			Compiler:     "purs",
			Backend:      backend,
			Dependencies: dependencies,
		},
	}
	path := filepath.Join(dir, manifest.DefaultPath)
	if err := os.WriteFile(path, manifest.Encode(m), 0o644); err != nil {
		return fmt.Errorf("failed to write scratch manifest: %w", err)
	}
	return nil
}
