// Package fsutil provides the file system helpers shared by the build
// pipeline and the watch scheduler.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// WorkDirName is the tool's internal scratch directory inside a project.
// Paths under it are build output and must never be watched, or the tool
// would rebuild in response to its own writes.
const WorkDirName = ".pursbuild"

// ignoredDirs are directories excluded from watching by default. They hold
// version-control metadata or third-party output that no project glob
// should reach.
var ignoredDirs = map[string]struct{}{
	".git":             {},
	".hg":              {},
	".idea":            {},
	".vscode":          {},
	"node_modules":     {},
	"bower_components": {},
}

// IsIgnoredDir reports whether a directory basename is in the default
// ignore set.
func IsIgnoredDir(name string) bool {
	_, ok := ignoredDirs[name]
	return ok
}

// UnderWorkDir reports whether path has a segment belonging to the tool's
// internal work directory.
func UnderWorkDir(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == WorkDirName {
			return true
		}
	}
	return false
}

// CollectDirs walks root and returns root plus every directory below it,
// skipping the internal work directory and, unless allowIgnored is set, the
// default ignore set. The filesystem-watch backend registers directories
// individually, so recursion happens here.
func CollectDirs(root string, allowIgnored bool) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == WorkDirName {
			return filepath.SkipDir
		}
		if !allowIgnored && path != root && IsIgnoredDir(name) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}
