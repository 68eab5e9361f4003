package overlaykv

import "strings"

// pathSeparator delimits segments of a virtual storage path. A volume
// child name may not contain it.
const pathSeparator = '/'

// validateMountPath reports whether path is acceptable to Mount/Unmount:
// non-empty, beginning with '/', and containing no "//" run. A single
// trailing '/' is accepted here (and later ignored by the walk), matching
// the engine's documented asymmetry between mount-path validation and the
// more permissive trailing-slash handling of GetNode.
func validateMountPath(path string) bool {
	if path == "" || path[0] != pathSeparator {
		return false
	}
	return !strings.Contains(path, "//")
}

// splitFirstSegment splits path (with no leading separator) into its
// first segment and the remainder (without the separator between them).
// If path contains no separator, remainder is "".
func splitFirstSegment(path string) (segment, remainder string) {
	if i := strings.IndexByte(path, pathSeparator); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}
