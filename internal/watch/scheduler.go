// Package watch keeps the build pipeline running against a changing
// filesystem. It partitions the configured source globs into watchable
// roots, installs filesystem watches on them, and re-invokes the pipeline on
// change, with debounced coalescing and strictly serialized rebuilds.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"pursbuild/internal/ctxlog"
	"pursbuild/internal/fsutil"
	"pursbuild/internal/globs"
)

// DefaultDebounce is the window within which change events collapse into a
// single rebuild.
const DefaultDebounce = 250 * time.Millisecond

// clearSequence resets the terminal before a rebuild when Clear is set.
const clearSequence = "\x1b[2J\x1b[H"

// Config assembles one scheduler. All fields are read-only after New.
type Config struct {
	// Patterns are the configured source globs, in their original,
	// uncollapsed form.
	Patterns []globs.Pattern
	// Rebuild runs one pipeline invocation. A failing rebuild is logged and
	// the loop keeps waiting for the next change.
	Rebuild func(ctx context.Context) error
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration
	// Clear wipes the terminal before each rebuild.
	Clear bool
	// AllowIgnoredDirs makes version-control-ignored directories eligible
	// for watching.
	AllowIgnoredDirs bool
	// Out receives the terminal clear sequence; defaults to stdout.
	Out io.Writer
}

// Scheduler owns the watch loop. It never overlaps two builds and drops no
// change event: events arriving mid-build surface as exactly one follow-up
// rebuild.
type Scheduler struct {
	cfg    Config
	coal   *coalescer
	warned map[string]struct{}
}

// New creates a scheduler from cfg.
func New(cfg Config) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Scheduler{
		cfg:    cfg,
		coal:   newCoalescer(cfg.Debounce),
		warned: make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, which is the watch loop's only exit.
// Setup failures (unresolvable roots, watch registration) are returned and
// terminate watch mode; failures inside a rebuild only end that rebuild.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	part := globs.PartitionByFilesystem(s.cfg.Patterns)
	s.warnMismatches(ctx, part.Mismatches)

	roots, err := watchRoots(part.Matches)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return fmt.Errorf("no watchable directories resolved from the configured sources")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	defer watcher.Close()
	defer s.coal.Stop()

	for _, root := range roots {
		if err := s.addRecursive(watcher, root); err != nil {
			return err
		}
	}
	logger.Info("Watching for file changes.", "roots", roots)

	go s.consumeEvents(ctx, watcher)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Watch loop interrupted.")
			return nil
		case <-s.coal.C():
			if s.cfg.Clear {
				fmt.Fprint(s.cfg.Out, clearSequence)
			}
			logger.Info("Change detected, rebuilding.")
			if err := s.cfg.Rebuild(ctx); err != nil {
				logger.Error("Rebuild failed; watching for further changes.", "error", err)
			}
		}
	}
}

// consumeEvents turns raw filesystem events into coalesced rebuild triggers
// and keeps the watch set growing as new directories appear.
func (s *Scheduler) consumeEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if fsutil.UnderWorkDir(event.Name) {
				continue
			}
			if !s.cfg.AllowIgnoredDirs && containsIgnoredDir(event.Name) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.addRecursive(watcher, event.Name); err != nil {
						logger.Warn("Failed to watch new directory.", "path", event.Name, "error", err)
					}
				}
			}
			logger.Debug("Filesystem event.", "op", event.Op.String(), "path", event.Name)
			s.coal.Notify()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Filesystem watcher error.", "error", err)
		}
	}
}

func (s *Scheduler) addRecursive(watcher *fsnotify.Watcher, root string) error {
	dirs, err := fsutil.CollectDirs(root, s.cfg.AllowIgnoredDirs)
	if err != nil {
		return fmt.Errorf("failed to enumerate watch directories under %s: %w", root, err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}

// warnMismatches reports patterns that currently resolve to nothing. Each
// pattern is warned about once per scheduler lifetime.
func (s *Scheduler) warnMismatches(ctx context.Context, mismatches []globs.Pattern) []string {
	var fresh []string
	for _, p := range mismatches {
		if _, seen := s.warned[p.String()]; seen {
			continue
		}
		s.warned[p.String()] = struct{}{}
		fresh = append(fresh, p.String())
	}
	if len(fresh) > 0 {
		ctxlog.FromContext(ctx).Warn(
			"Some source globs match no files; changes to them cannot be watched until matching files exist.",
			"globs", fresh,
		)
	}
	return fresh
}

// watchRoots resolves every matching pattern's watchable parent to an
// absolute directory, drops anything under the tool's own work directory,
// and collapses roots nested inside other roots.
func watchRoots(patterns []globs.Pattern) ([]string, error) {
	unique := make(map[string]struct{})
	for _, p := range patterns {
		parent := p.WatchableParent()
		abs, err := filepath.Abs(parent)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve watch root for %q: %w", p.String(), err)
		}
		if fsutil.UnderWorkDir(abs) {
			continue
		}
		unique[abs] = struct{}{}
	}

	sorted := make([]string, 0, len(unique))
	for root := range unique {
		sorted = append(sorted, root)
	}
	sort.Strings(sorted)

	var collapsed []string
	for _, root := range sorted {
		if len(collapsed) > 0 && isSubPath(collapsed[len(collapsed)-1], root) {
			continue
		}
		collapsed = append(collapsed, root)
	}
	return collapsed, nil
}

func isSubPath(parent, child string) bool {
	return child == parent || strings.HasPrefix(child, parent+string(filepath.Separator))
}

func containsIgnoredDir(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if fsutil.IsIgnoredDir(seg) {
			return true
		}
	}
	return false
}
