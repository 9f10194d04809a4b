// Package globs compiles source-path patterns and answers the two questions
// the rest of the tool keeps asking about them: does a concrete path belong
// to a pattern, and which directory must be watched to observe it.
package globs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern is a compiled source-path glob. The zero value is not usable;
// obtain instances through Compile.
type Pattern struct {
	raw     string
	slashed string
}

// PatternError reports a malformed glob pattern.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("malformed glob pattern %q", e.Pattern)
}

// Compile validates and compiles a single glob pattern. Patterns use
// doublestar semantics: `*`, `**`, `?` and character classes, matched
// against slash-separated paths regardless of platform.
func Compile(pattern string) (Pattern, error) {
	slashed := filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(slashed) {
		return Pattern{}, &PatternError{Pattern: pattern}
	}
	return Pattern{raw: pattern, slashed: slashed}, nil
}

// CompileAll compiles every pattern in order, failing on the first malformed
// one.
func CompileAll(patterns []string) ([]Pattern, error) {
	compiled := make([]Pattern, 0, len(patterns))
	for _, p := range patterns {
		c, err := Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

// String returns the pattern exactly as the user wrote it.
func (p Pattern) String() string {
	return p.raw
}

// Matches reports whether path satisfies the pattern. The path is normalized
// to slash form first, so callers may pass platform-native paths.
func (p Pattern) Matches(path string) bool {
	ok, err := doublestar.Match(p.slashed, filepath.ToSlash(path))
	if err != nil {
		// Compile already validated the pattern, so Match cannot fail on it.
		return false
	}
	return ok
}

// metaChars are the characters that make a path segment non-literal.
const metaChars = "*?[{"

// WatchableParent returns the longest literal directory prefix of the
// pattern, the root to which a filesystem watch must be attached to observe
// files matching it. A pattern without any wildcard names a concrete file,
// so its parent directory is returned. A pattern that starts with a wildcard
// yields ".".
func (p Pattern) WatchableParent() string {
	segments := strings.Split(p.slashed, "/")
	literal := make([]string, 0, len(segments))
	wildcard := false
	for _, seg := range segments {
		if strings.ContainsAny(seg, metaChars) {
			wildcard = true
			break
		}
		literal = append(literal, seg)
	}
	if !wildcard {
		// Concrete file path: watch the directory containing it.
		if len(literal) <= 1 {
			return "."
		}
		literal = literal[:len(literal)-1]
	}
	if len(literal) == 0 {
		return "."
	}
	return filepath.FromSlash(strings.Join(literal, "/"))
}

// HasMatches reports whether the pattern currently resolves to at least one
// file on disk.
func (p Pattern) HasMatches() bool {
	found, err := doublestar.FilepathGlob(p.raw, doublestar.WithFilesOnly())
	if err != nil {
		return false
	}
	return len(found) > 0
}
