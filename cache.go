package tarpath

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tarpath/tarpath/util"
)

// ExtractPrefix is the reserved name prefix of extraction targets. An archive's
// contents are extracted into a sibling directory named ExtractPrefix plus the
// archive's own name, so the target can never collide with legitimate archive
// contents and is trivially found again on the next resolution.
const ExtractPrefix = ".tarpath-extracted."

// ExtractTarget returns the extraction target for the named archive. The target
// is a sibling of the archive; its existence is the cache-hit signal.
func ExtractTarget(archive string) string {
	dir, name := filepath.Split(archive)
	return filepath.Join(dir, ExtractPrefix+name)
}

// ensureExtracted extracts the archive through the codec unless its target
// already exists, and returns the target.
//
// Extraction happens in an exclusively-created temporary sibling which is renamed
// into place only once every entry has been written, so a partially-populated
// target is never observable: an interrupted extraction leaves the real target
// absent and the next call starts over. If a concurrent extraction wins the
// rename, its completed target is used.
func ensureExtracted(ctx context.Context, codec Codec, archive string) (string, error) {
	target := ExtractTarget(archive)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	tmp, err := util.MkExclDir(filepath.Dir(target), filepath.Base(target)+".partial", 0755)
	if err != nil {
		return "", fmt.Errorf(`create extraction directory for "%s" error: %w`, archive, err)
	}

	if err = codec.Extract(ctx, archive, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return "", err
	}

	if err = os.Rename(tmp, target); err != nil {
		_ = os.RemoveAll(tmp)

		if _, statErr := os.Stat(target); statErr == nil {
			return target, nil
		}

		return "", fmt.Errorf(`rename extraction directory for "%s" error: %w`, archive, err)
	}

	return target, nil
}
