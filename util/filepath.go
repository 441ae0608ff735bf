package util

import "path/filepath"

// StemAndExt is a variant of filepath.Ext that detects extended extensions while
// also returning the stem.
//
// `filepath.Ext("file.tar.gz")` returns ".gz"; StemAndExt returns ".tar.gz" for
// the extension and "file" for the stem, which keeps derived names natural
// ("file-1.tar.gz" rather than "file.tar-1.gz") when passed to OpenExclFile.
//
// Only extensions of 5 characters or less are considered: if there is no `.` in
// the last 6 characters the returned ext is empty, unlike filepath.Ext which keeps
// searching until the last path separator.
func StemAndExt(path string) (stem, ext string) {
	n := len(path) - 1
	for i, j := n, max(0, n-6); i >= j; i-- {
		switch path[i] {
		case '\\', '/':
			stem = path[i+1:]
			return
		case '.':
			ext = path[i:] + ext
			path = path[:i]
			n = len(path)
			i, j = n, max(0, n-6)
			continue
		}
	}

	stem = filepath.Base(path)
	return
}
