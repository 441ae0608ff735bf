package tarpath

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testEntry struct {
	name string
	data []byte
}

func writeTar(t *testing.T, name string, entries []testEntry) {
	t.Helper()

	f, err := os.Create(name)
	assert.NoError(t, err)

	writeTarTo(t, f, entries)
	assert.NoError(t, f.Close())
}

func writeTarGz(t *testing.T, name string, entries []testEntry) {
	t.Helper()

	f, err := os.Create(name)
	assert.NoError(t, err)

	zw := gzip.NewWriter(f)
	writeTarTo(t, zw, entries)
	assert.NoError(t, zw.Close())
	assert.NoError(t, f.Close())
}

func writeTarTo(t *testing.T, w io.Writer, entries []testEntry) {
	t.Helper()

	tw := tar.NewWriter(w)
	for _, e := range entries {
		assert.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.data))}))
		_, err := tw.Write(e.data)
		assert.NoError(t, err)
	}
	assert.NoError(t, tw.Close())
}

// tarBytes builds a tar archive in memory, for nesting archives inside archives.
func tarBytes(t *testing.T, entries []testEntry) []byte {
	t.Helper()

	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	name := filepath.Join(dir, "a.tar")
	writeTar(t, name, entries)

	data, err := os.ReadFile(name)
	assert.NoError(t, err)
	return data
}

func withBase(dir string) func(*Resolver) {
	return func(r *Resolver) {
		r.Base = dir
	}
}

func withText(r *Resolver) {
	r.Mode = ModeText
}

func TestGet_SimpleFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("Test content"), 0644))

	res, err := Get(t.Context(), "test.txt", withBase(dir), withText)
	assert.NoError(t, err)
	assert.Equal(t, "Test content", string(res.Data))
	assert.False(t, res.Dir)
	assert.Equal(t, filepath.Join(dir, "test.txt"), res.Path)
}

func TestGet_NestedArchive(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	inner := tarBytes(t, []testEntry{{"file.txt", []byte("Inner file content")}})
	writeTar(t, filepath.Join(dir, "outer.tar"), []testEntry{{"inner.tar", inner}})

	res, err := Get(t.Context(), "outer.tar/inner.tar/file.txt", withBase(dir), withText)
	assert.NoError(t, err)
	assert.Equal(t, "Inner file content", string(res.Data))

	// each level leaves its extraction target behind as a sibling.
	outerTarget := filepath.Join(dir, ExtractPrefix+"outer.tar")
	assert.DirExists(t, outerTarget)
	assert.FileExists(t, filepath.Join(outerTarget, "inner.tar"))

	innerTarget := filepath.Join(outerTarget, ExtractPrefix+"inner.tar")
	assert.DirExists(t, innerTarget)
	assert.FileExists(t, filepath.Join(innerTarget, "file.txt"))
}

func TestGet_DeepNested(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	level3 := tarBytes(t, []testEntry{{"deep_file.txt", []byte("Deep nested content")}})
	level2 := tarBytes(t, []testEntry{{"level3.tar", level3}})
	writeTar(t, filepath.Join(dir, "level1.tar"), []testEntry{{"level2.tar", level2}})

	res, err := Get(t.Context(), "level1.tar/level2.tar/level3.tar/deep_file.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, "Deep nested content", string(res.Data))

	// exactly one cache target per level.
	t1 := filepath.Join(dir, ExtractPrefix+"level1.tar")
	t2 := filepath.Join(t1, ExtractPrefix+"level2.tar")
	t3 := filepath.Join(t2, ExtractPrefix+"level3.tar")
	for _, target := range []string{t1, t2, t3} {
		assert.DirExists(t, target)
	}
}

func TestGet_MixedDirectoriesAndArchives(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	writeTarGz(t, filepath.Join(dir, "multi.tar.gz"), []testEntry{
		{"root_file.txt", []byte("Root level file")},
		{"subdir/sub_file.txt", []byte("Subdirectory file")},
	})

	res, err := Get(t.Context(), "multi.tar.gz/subdir/sub_file.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, "Subdirectory file", string(res.Data))

	res, err = Get(t.Context(), "multi.tar.gz/root_file.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, "Root level file", string(res.Data))
}

func TestGet_NotFoundListsSiblings(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("other"), 0644))

	_, err = Get(t.Context(), "nonexistent.txt", withBase(dir))

	var nfe *NotFoundError
	assert.ErrorAs(t, err, &nfe)
	assert.Equal(t, "nonexistent.txt", nfe.Path)

	var snf *SegmentNotFoundError
	assert.ErrorAs(t, err, &snf)
	assert.Contains(t, snf.Siblings, "other.txt")
}

func TestGet_WrongMode(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	data := []byte{0x80, 0x81, 0x82, 0x83}
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "invalid_utf8.txt"), data, 0644))

	_, err = Get(t.Context(), "invalid_utf8.txt", withBase(dir), withText)

	var wme *WrongModeError
	assert.ErrorAs(t, err, &wme)

	// the same file reads fine in binary mode.
	res, err := Get(t.Context(), "invalid_utf8.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, data, res.Data)
}

func TestGet_TerminalDirectory(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	for _, optFns := range [][]func(*Resolver){
		{withBase(dir)},
		{withBase(dir), withText},
	} {
		res, err := Get(t.Context(), "subdir", optFns...)
		assert.NoError(t, err)
		assert.True(t, res.Dir)
		assert.Nil(t, res.Data)
		assert.Equal(t, filepath.Join(dir, "subdir"), res.Path)
	}
}

func TestGet_TrailingSeparator(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	writeTar(t, filepath.Join(dir, "outer.tar"), []testEntry{{"file.txt", []byte("x")}})

	// a trailing separator denotes the (extracted) directory itself.
	res, err := Get(t.Context(), "outer.tar/", withBase(dir))
	assert.NoError(t, err)
	assert.True(t, res.Dir)
	assert.Equal(t, filepath.Join(dir, ExtractPrefix+"outer.tar"), res.Path)
}

func TestGetAll_Glob(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "test1.txt"), []byte("Content 1"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "test2.txt"), []byte("Content 2"), 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("Other content"), 0644))

	results, err := GetAll(t.Context(), "test*.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "Content 1", string(results[0].Data))
	assert.Equal(t, "Content 2", string(results[1].Data))

	// single-result mode returns the first element of all-results mode.
	res, err := Get(t.Context(), "test*.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, results[0], res)
}

func TestGetAll_GlobInsideArchive(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	writeTar(t, filepath.Join(dir, "logs.tar"), []testEntry{
		{"log1.txt", []byte("Log entry 1")},
		{"log2.txt", []byte("Log entry 2")},
		{"readme.txt", []byte("Readme content")},
	})

	results, err := GetAll(t.Context(), "logs.tar/log*.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, "Log entry 1", string(results[0].Data))
	assert.Equal(t, "Log entry 2", string(results[1].Data))
}

func TestGetAll_Empty(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	results, err := GetAll(t.Context(), "nonexistent*.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestGet_Idempotent(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	inner := tarBytes(t, []testEntry{{"file.txt", []byte("Inner file content")}})
	writeTar(t, filepath.Join(dir, "outer.tar"), []testEntry{{"inner.tar", inner}})

	res1, err := Get(t.Context(), "outer.tar/inner.tar/file.txt", withBase(dir))
	assert.NoError(t, err)

	// plant a marker in the extraction target; a second resolution must reuse the
	// cached target rather than extract again and wipe it.
	marker := filepath.Join(dir, ExtractPrefix+"outer.tar", "marker")
	assert.NoError(t, os.WriteFile(marker, nil, 0644))

	res2, err := Get(t.Context(), "outer.tar/inner.tar/file.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, res1, res2)
	assert.FileExists(t, marker)
}

func TestResults_FirstMatchIsLazy(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	writeTar(t, filepath.Join(dir, "a.tar"), []testEntry{{"file.txt", []byte("from a")}})
	writeTar(t, filepath.Join(dir, "b.tar"), []testEntry{{"file.txt", []byte("from b")}})

	r := &Resolver{Base: dir}
	for res, err := range r.Results(t.Context(), "*.tar/file.txt") {
		assert.NoError(t, err)
		assert.Equal(t, "from a", string(res.Data))
		break
	}

	// only the first candidate was needed, so b.tar must not have been extracted.
	assert.DirExists(t, filepath.Join(dir, ExtractPrefix+"a.tar"))
	assert.NoDirExists(t, filepath.Join(dir, ExtractPrefix+"b.tar"))
}

func TestGet_UnsupportedArchive(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "fake.tar"), []byte("This is not a real tar file"), 0644))

	_, err = Get(t.Context(), "fake.tar/somefile.txt", withBase(dir))

	var nfe *NotFoundError
	assert.ErrorAs(t, err, &nfe)

	var uae *UnsupportedArchiveError
	assert.ErrorAs(t, err, &uae)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestGet_UnsupportedArchiveDoesNotAbortFanOut(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	// fake.tar sorts before good.tar, so the broken candidate is tried first and
	// must not stop its sibling from producing a result.
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "fake.tar"), []byte("not a tar"), 0644))
	writeTar(t, filepath.Join(dir, "good.tar"), []testEntry{{"file.txt", []byte("from good")}})

	res, err := Get(t.Context(), "*.tar/file.txt", withBase(dir))
	assert.NoError(t, err)
	assert.Equal(t, "from good", string(res.Data))
}

func TestGet_AbsolutePath(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("absolute"), 0644))

	// absolute paths ignore Base entirely.
	res, err := Get(t.Context(), filepath.Join(dir, "test.txt"), withBase("/nonexistent"))
	assert.NoError(t, err)
	assert.Equal(t, "absolute", string(res.Data))
}

func TestGet_ExtractionTargetsAreNotCandidates(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	writeTar(t, filepath.Join(dir, "only.tar"), []testEntry{{"file.txt", []byte("x")}})

	_, err = Get(t.Context(), "only.tar/file.txt", withBase(dir))
	assert.NoError(t, err)

	// the freshly created target must not show up in a glob over its parent.
	results, err := GetAll(t.Context(), "*", withBase(dir))
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "only.tar"), results[0].Path)
}

func TestGetAll_WrongModeEscalatesImmediately(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte{0xff, 0xfe}, 0644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("fine"), 0644))

	_, err = GetAll(t.Context(), "*", withBase(dir), withText)

	var wme *WrongModeError
	assert.ErrorAs(t, err, &wme)
}

func TestGet_CanceledContext(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("x"), 0644))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = Get(ctx, "test.txt", withBase(dir))
	assert.ErrorIs(t, err, context.Canceled)
}
