package tarpath

import (
	"context"
	"errors"
	"iter"
)

// frame is one unit of pending resolution work: match the first remaining segment
// against a directory. If archive is set, the directory is not known yet and the
// archive must be extracted (or found in cache) first.
type frame struct {
	segments []string
	dir      string
	archive  string
}

// Results resolves the nested archive path lazily and produces every match in
// order.
//
// The iterator performs only the work needed to produce the elements actually
// consumed: stopping after the first element skips extraction and traversal of any
// remaining candidate. Candidates of a glob segment are visited in lexicographic
// order at every level.
//
// A resolution that produces no results yields exactly one element carrying a
// *NotFoundError that aggregates every per-candidate failure. A text-mode read of
// non-UTF-8 content yields a *WrongModeError immediately and ends the sequence; it
// signals a caller mistake rather than a missing path.
func (r *Resolver) Results(ctx context.Context, name string) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		segments, rooted := Segments(name)

		base := r.Base
		if base == "" {
			base = "."
		}
		if rooted {
			base = "/"
		}

		codec := r.Codec
		if codec == nil {
			codec = DefaultCodec
		}

		stack := []frame{{segments: segments, dir: base}}

		var failures []error
		produced := false

		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				yield(Result{}, err)
				return
			}

			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			dir := f.dir
			if f.archive != "" {
				target, err := ensureExtracted(ctx, codec, f.archive)
				if err != nil {
					// an unrecognized or broken archive fails this candidate only.
					if errors.Is(err, ErrNoMatch) {
						err = &UnsupportedArchiveError{Name: f.archive, Err: err}
					}
					failures = append(failures, err)
					continue
				}
				dir = target
			}

			segment, rest := f.segments[0], f.segments[1:]

			candidates, err := matchChildren(dir, segment)
			if err != nil {
				failures = append(failures, err)
				continue
			}
			if len(candidates) == 0 {
				failures = append(failures, &SegmentNotFoundError{
					Pattern:  segment,
					Dir:      dir,
					Siblings: childNames(dir),
				})
				continue
			}

			if len(rest) == 0 {
				for _, c := range candidates {
					if c.dir {
						produced = true
						if !yield(Result{Path: c.path, Dir: true}, nil) {
							return
						}
						continue
					}

					res, err := readFile(c.path, r.Mode)
					if err != nil {
						var wme *WrongModeError
						if errors.As(err, &wme) {
							yield(Result{}, err)
							return
						}
						failures = append(failures, err)
						continue
					}

					produced = true
					if !yield(res, nil) {
						return
					}
				}
				continue
			}

			// push in reverse so the lexicographically first candidate is resolved
			// first and extraction of later candidates stays pending until needed.
			for i := len(candidates) - 1; i >= 0; i-- {
				c := candidates[i]
				if c.dir {
					stack = append(stack, frame{segments: rest, dir: c.path})
				} else {
					stack = append(stack, frame{segments: rest, archive: c.path})
				}
			}
		}

		if !produced {
			yield(Result{}, &NotFoundError{Path: name, Failures: failures})
		}
	}
}
