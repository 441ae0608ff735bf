package tarpath

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// candidate is a direct child of a directory that matched a glob segment,
// classified at match time as directory or not.
type candidate struct {
	path string
	dir  bool
}

// matchChildren returns the direct children of dir whose names match pattern,
// using shell-glob semantics (`*`, `?` and character classes, no `**`).
//
// The empty pattern is special-cased to mean dir itself. Entries carrying the
// reserved ExtractPrefix are never candidates so extracted content cannot shadow
// the archives it came from. Results are in lexicographic order, making "first
// match wins" deterministic across platforms.
func matchChildren(dir, pattern string) ([]candidate, error) {
	if pattern == "" {
		fi, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf(`stat directory "%s" error: %w`, dir, err)
		}
		if !fi.IsDir() {
			return nil, nil
		}

		return []candidate{{path: filepath.Clean(dir), dir: true}}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf(`list directory "%s" error: %w`, dir, err)
	}

	// os.ReadDir sorts by filename, so candidates come out lexicographic.
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ExtractPrefix) {
			continue
		}

		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf(`match pattern "%s" error: %w`, pattern, err)
		}
		if !ok {
			continue
		}

		candidates = append(candidates, candidate{
			path: filepath.Join(dir, name),
			dir:  isDir(entry, filepath.Join(dir, name)),
		})
	}

	return candidates, nil
}

// isDir classifies a directory entry, following symbolic links.
func isDir(entry fs.DirEntry, name string) bool {
	if entry.Type()&fs.ModeSymlink != 0 {
		fi, err := os.Stat(name)
		return err == nil && fi.IsDir()
	}

	return entry.IsDir()
}

// childNames lists the names of the entries in dir for Not-Found diagnostics.
// Errors are swallowed; the listing only decorates a failure that is already
// being reported.
func childNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names
}
