package tarpath

import (
	"path/filepath"
	"strings"
)

// Segments splits a nested archive path into its ordered components and reports
// whether the path is rooted at the filesystem root rather than the base directory.
//
// Interior empty components and "." are dropped. A trailing separator produces a
// final empty segment which means "the directory itself" rather than a glob
// pattern; a path that reduces to nothing ("", "." or "/") is normalized the same
// way so the result is never empty.
func Segments(name string) (segments []string, rooted bool) {
	s := filepath.ToSlash(name)
	rooted = strings.HasPrefix(s, "/")
	if rooted {
		s = strings.TrimPrefix(s, "/")
	}

	parts := strings.Split(s, "/")
	segments = make([]string, 0, len(parts))
	for i, p := range parts {
		if p == "." || (p == "" && i != len(parts)-1) {
			continue
		}
		segments = append(segments, p)
	}

	if len(segments) == 0 {
		segments = []string{""}
	}

	return segments, rooted
}
