package tarpath

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when an entire resolution produced zero results. It
// aggregates every per-candidate failure recorded along the way; a single failed
// branch never surfaces here as long as any other branch produced a result.
type NotFoundError struct {
	// Path is the nested archive path as originally requested.
	Path string
	// Failures holds the per-candidate failures, typically *SegmentNotFoundError
	// and *UnsupportedArchiveError values.
	Failures []error
}

func (e *NotFoundError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf(`no results for "%s"`, e.Path)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, `no results for "%s":`, e.Path)
	for _, err := range e.Failures {
		_, _ = fmt.Fprintf(&sb, "\n\t%v", err)
	}

	return sb.String()
}

func (e *NotFoundError) Unwrap() []error {
	return e.Failures
}

// SegmentNotFoundError is one fan-out miss: a segment matched nothing in the
// directory being searched. Siblings lists the entries that were actually there.
type SegmentNotFoundError struct {
	Pattern  string
	Dir      string
	Siblings []string
}

func (e *SegmentNotFoundError) Error() string {
	if len(e.Siblings) == 0 {
		return fmt.Sprintf(`"%s" matches nothing in "%s" (directory is empty)`, e.Pattern, e.Dir)
	}

	return fmt.Sprintf(`"%s" matches nothing in "%s", found instead: %s`, e.Pattern, e.Dir, strings.Join(e.Siblings, ", "))
}

// UnsupportedArchiveError is returned when a path tries to recurse into a file
// that the codec does not recognize as an archive.
type UnsupportedArchiveError struct {
	Name string
	Err  error
}

func (e *UnsupportedArchiveError) Error() string {
	return fmt.Sprintf(`"%s" is not a supported archive: %v`, e.Name, e.Err)
}

func (e *UnsupportedArchiveError) Unwrap() error {
	return e.Err
}

// WrongModeError is returned when a file read under ModeText does not contain
// valid UTF-8. Unlike the errors above it is never aggregated: it reports a
// caller mistake, not a missing path.
type WrongModeError struct {
	Name string
}

func (e *WrongModeError) Error() string {
	return fmt.Sprintf(`"%s" is not valid UTF-8; read it with ModeBinary instead`, e.Name)
}
