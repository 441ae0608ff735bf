// Package tarpath resolves paths that traverse transparently into archives.
//
// A nested archive path mixes ordinary directory names and archive file names. For
// example, given an archive /tmp/foobar/foo.tar with this structure:
//
//	foo.tar
//	    - foo1
//	    - bar.tar
//	        - bar1
//	        - foo3.tar.gz
//	            - foo4
//	    - abc/
//	        - def
//
// the contents of any file can be read as if every archive were a directory:
//
//	res, err := tarpath.Get(ctx, "/tmp/foobar/foo.tar/bar.tar/foo3.tar.gz/foo4")
//
// Archives encountered mid-path are extracted on demand into a sibling directory
// named with the reserved ExtractPrefix; the extracted directory doubles as a cache
// so repeated resolutions never extract the same archive twice. Segments may contain
// shell-glob wildcards, in which case every matching entry is tried independently.
package tarpath

import (
	"context"
	"errors"
	"os"
	"unicode/utf8"
)

// Mode controls how terminal files are read.
type Mode int

const (
	// ModeBinary returns the raw bytes of the file and never fails on content.
	ModeBinary Mode = iota
	// ModeText requires the file to be valid UTF-8 and fails with WrongModeError otherwise.
	ModeText
)

// Result is one entry that a nested archive path resolved to.
type Result struct {
	// Path is the location of the entry on the filesystem. For entries inside
	// archives, this points into the archive's extracted sibling directory.
	Path string
	// Dir is true if the entry is a directory, in which case Data is nil.
	Dir bool
	// Data is the content of the file, validated as UTF-8 under ModeText.
	Data []byte
}

// Resolver customises Get, GetAll and Results.
type Resolver struct {
	// Base is the directory the first path segment resolves against.
	//
	// Defaults to ".". Ignored for absolute paths.
	Base string

	// Mode controls how terminal files are read. Defaults to ModeBinary.
	Mode Mode

	// Codec extracts archives encountered mid-path.
	//
	// Defaults to a codec backed by github.com/mholt/archives which recognizes
	// tar, tar.gz, tar.xz, tar.zst, zip, 7z and rar among others.
	Codec Codec
}

func newResolver(optFns ...func(*Resolver)) *Resolver {
	r := &Resolver{
		Base:  ".",
		Codec: DefaultCodec,
	}
	for _, fn := range optFns {
		fn(r)
	}

	return r
}

// Get resolves the nested archive path and returns the first result.
//
// If nothing matches, the returned error unwraps to a *NotFoundError listing every
// failure encountered during resolution. Only the work needed to produce the first
// result is performed; archives on sibling branches are not extracted.
func Get(ctx context.Context, name string, optFns ...func(*Resolver)) (Result, error) {
	for res, err := range newResolver(optFns...).Results(ctx, name) {
		return res, err
	}

	// Results always yields at least one element.
	return Result{}, &NotFoundError{Path: name}
}

// GetAll resolves the nested archive path and returns every result.
//
// A path that matches nothing returns an empty slice and no error; any other
// failure (including a text-mode read of non-UTF-8 content) is returned as-is.
func GetAll(ctx context.Context, name string, optFns ...func(*Resolver)) ([]Result, error) {
	results := make([]Result, 0)
	for res, err := range newResolver(optFns...).Results(ctx, name) {
		if err != nil {
			var nfe *NotFoundError
			if errors.As(err, &nfe) {
				return results, nil
			}

			return nil, err
		}

		results = append(results, res)
	}

	return results, nil
}

func readFile(name string, mode Mode) (Result, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return Result{}, err
	}

	if mode == ModeText && !utf8.Valid(data) {
		return Result{}, &WrongModeError{Name: name}
	}

	return Result{Path: name, Data: data}, nil
}
