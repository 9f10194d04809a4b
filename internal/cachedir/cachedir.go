// Package cachedir derives the deterministic scratch directory used by
// script runs. The directory name is content-addressed from the invocation's
// inputs, so running the same script with the same dependencies and options
// lands in the same directory and reuses whatever a prior run left there.
package cachedir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// keyVersion tags the canonical encoding. Bump it whenever a field is added
// or reordered so old cache directories are abandoned instead of misread.
const keyVersion = "pursbuild-script-key/v1"

// dirPrefix names cache directories under the system temp root.
const dirPrefix = "pursbuild-script"

// KeyInputs are the four inputs that identify a script invocation. Any
// change to any field must change the digest.
type KeyInputs struct {
	// ScriptPath is the absolute path of the script being run.
	ScriptPath string
	// Tag is an optional user-supplied discriminator.
	Tag string
	// Dependencies is the declared dependency list; treated as a set.
	Dependencies []string
	// Backend, CompilerArgs and DepsOnly are the build options that affect
	// what the scratch project produces.
	Backend      string
	CompilerArgs []string
	DepsOnly     bool
}

// Key computes the content-addressed digest of the inputs. The encoding is
// versioned and every field is length-prefixed, so no two distinct input
// tuples share an encoding.
func Key(in KeyInputs) string {
	h := sha256.New()

	writeField := func(data string) {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(data)))
		h.Write(length[:])
		h.Write([]byte(data))
	}

	writeField(keyVersion)
	writeField(in.ScriptPath)
	writeField(in.Tag)

	deps := make([]string, len(in.Dependencies))
	copy(deps, in.Dependencies)
	sort.Strings(deps)
	writeField(fmt.Sprintf("%d", len(deps)))
	for _, dep := range deps {
		writeField(dep)
	}

	writeField(in.Backend)
	// Argument order matters to the compiler, so it stays unsorted.
	writeField(fmt.Sprintf("%d", len(in.CompilerArgs)))
	for _, arg := range in.CompilerArgs {
		writeField(arg)
	}
	if in.DepsOnly {
		writeField("deps-only")
	} else {
		writeField("full")
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Resolve maps a digest to its directory under the system temp root,
// creating it if absent. Pre-existing contents are deliberately left alone;
// reuse is the whole point. A creation failure is fatal to the caller, there
// is no fallback location.
func Resolve(digest string) (string, error) {
	dir := filepath.Join(os.TempDir(), dirPrefix+"-"+digest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create script cache directory %s: %w", dir, err)
	}
	return dir, nil
}
