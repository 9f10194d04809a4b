package globs

// Partition is the result of splitting configured patterns by whether the
// current filesystem contains anything for them. Both slices preserve the
// input declaration order.
type Partition struct {
	// Matches are patterns that currently resolve to at least one file.
	Matches []Pattern
	// Mismatches resolve to nothing right now. A filesystem watch rooted at
	// their parent cannot fire for them until a matching file first appears
	// through some other means, so callers surface them as a warning.
	Mismatches []Pattern
}

// PartitionByFilesystem splits the given patterns into matches and
// mismatches against the current state of the filesystem. The operation is
// read-only and therefore idempotent for an unchanged tree.
func PartitionByFilesystem(patterns []Pattern) Partition {
	var part Partition
	for _, p := range patterns {
		if p.HasMatches() {
			part.Matches = append(part.Matches, p)
		} else {
			part.Mismatches = append(part.Mismatches, p)
		}
	}
	return part
}
