package tarpath

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// ErrNoMatch reports that a file could not be recognized as a supported archive
// format. Codec implementations must wrap it so the resolver can tell an
// unsupported archive apart from a genuine I/O failure.
var ErrNoMatch = errors.New("no supported archive format")

// Codec extracts recognized archives. Extraction is whole-archive: every entry is
// written under dir in one pass, preserving the relative structure.
type Codec interface {
	Extract(ctx context.Context, name, dir string) error
}

// DefaultCodec recognizes and extracts archives using github.com/mholt/archives,
// which sniffs the format from the file name and magic bytes.
var DefaultCodec Codec = archivesCodec{}

type archivesCodec struct{}

func (archivesCodec) Extract(ctx context.Context, name, dir string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf(`open archive "%s" error: %w`, name, err)
	}
	defer f.Close()

	// identify by content only; trusting the extension would let a file merely
	// named like an archive reach the extractor and fail with a generic read
	// error instead of reporting the format as unsupported.
	format, input, err := archives.Identify(ctx, "", f)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return fmt.Errorf(`identify "%s": %w`, name, ErrNoMatch)
		}

		return fmt.Errorf(`identify "%s" error: %w`, name, err)
	}

	// compression-only formats (a bare .gz, .xz, ...) hold no entries to recurse
	// into and are treated the same as an unrecognized file.
	ex, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf(`"%s" has no entries to extract: %w`, name, ErrNoMatch)
	}

	if err = ex.Extract(ctx, input, func(ctx context.Context, info archives.FileInfo) error {
		return writeEntry(dir, info)
	}); err != nil {
		return fmt.Errorf(`extract "%s" error: %w`, name, err)
	}

	return nil
}

// writeEntry writes one archive entry under dir, rejecting names that would
// escape it.
func writeEntry(dir string, info archives.FileInfo) (err error) {
	dir = filepath.Clean(dir)
	name := filepath.Join(dir, filepath.FromSlash(info.NameInArchive))
	if name != dir && !strings.HasPrefix(name, dir+string(filepath.Separator)) {
		return fmt.Errorf(`entry "%s" escapes extraction directory`, info.NameInArchive)
	}

	if info.IsDir() {
		return os.MkdirAll(name, 0755)
	}

	if err = os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}

	if info.LinkTarget != "" {
		return os.Symlink(info.LinkTarget, name)
	}

	src, err := info.Open()
	if err != nil {
		return fmt.Errorf(`open entry "%s" error: %w`, info.NameInArchive, err)
	}
	defer src.Close()

	perm := info.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}

	dst, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf(`create file "%s" error: %w`, name, err)
	}
	defer func() {
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(dst, src); err != nil {
		return fmt.Errorf(`write entry "%s" error: %w`, info.NameInArchive, err)
	}

	return nil
}
