// Package util holds small filesystem and string helpers shared by the library
// and the CLI.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// exclNames yields the candidate names tried on collision: "stem+ext" first,
// then "stem-1"+ext, "stem-2"+ext, and so on.
func exclNames(parent, stem, ext string) func(i int) string {
	return func(i int) string {
		if i == 0 {
			return filepath.Join(parent, stem+ext)
		}

		return filepath.Join(parent, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}

// OpenExclFile creates a new file for writing with the condition that the file did
// not exist prior to this call.
//
// The file is named stem+ext under parent; on collision numeric suffixes are tried
// ("stem-1.ext", "stem-2.ext", ...) so the extension stays in its natural place.
// Pair with StemAndExt to split names carrying extended extensions like ".tar.gz".
//
// The file is opened with flag `os.O_RDWR|os.O_CREATE|os.O_EXCL`. Caller is
// responsible for closing the file upon a successful return. Compared with
// os.CreateTemp this gives a predictable name at the cost of the retry loop. See
// MkExclDir for a dir equivalent.
func OpenExclFile(parent, stem, ext string, perm os.FileMode) (*os.File, error) {
	next := exclNames(parent, stem, ext)
	for i := 0; ; i++ {
		file, err := os.OpenFile(next(i), os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
		switch {
		case err == nil:
			return file, nil
		case errors.Is(err, os.ErrExist):
		default:
			return nil, fmt.Errorf("create file error: %w", err)
		}
	}
}

// MkExclDir creates a new child directory of parent that did not exist prior to
// this invocation, returning the path actually created.
//
// Stem is the desired name; on collision numeric suffixes are tried ("stem-1",
// "stem-2", ...). Compared with os.MkdirTemp this gives a predictable name at the
// cost of the retry loop.
func MkExclDir(parent, stem string, perm os.FileMode) (string, error) {
	next := exclNames(parent, stem, "")
	for i := 0; ; i++ {
		name := next(i)
		switch err := os.Mkdir(name, perm); {
		case err == nil:
			return name, nil
		case errors.Is(err, os.ErrExist):
		default:
			return "", fmt.Errorf("create directory error: %w", err)
		}
	}
}
