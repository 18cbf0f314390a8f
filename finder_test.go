package dupfind

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFs counts opens so tests can tell whether a file was read.
type countingFs struct {
	afero.Fs
	opens atomic.Int64
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.opens.Add(1)
	return c.Fs.OpenFile(name, flag, perm)
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestFinder(t *testing.T, method string, fsys afero.Fs, opts ...Option) *Finder {
	t.Helper()
	opts = append([]Option{WithFs(fsys), WithLogger(quietLogger())}, opts...)
	f, err := New(method, opts...)
	require.NoError(t, err)
	return f
}

func setPaths(sets []DuplicateSet) [][]string {
	out := make([][]string, len(sets))
	for i, s := range sets {
		out[i] = s.Paths()
	}
	return out
}

func TestFindExactGroups(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/d/A", "helloworld")
	writeFile(t, fsys, "/d/B", "helloworld")
	writeFile(t, fsys, "/d/C", "xyz")
	writeFile(t, fsys, "/d/D", "xyz")
	writeFile(t, fsys, "/d/E", "unique")

	f := newTestFinder(t, "exact", fsys)
	res, err := f.FindDir(context.Background(), "/d", false)
	require.NoError(t, err)

	assert.Equal(t, Exact, res.Strategy)
	assert.Equal(t, [][]string{{"/d/A", "/d/B"}, {"/d/C", "/d/D"}}, setPaths(res.Sets))
	assert.Equal(t, 5, res.Files)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, res.Redundant())
}

func TestFindAllDistinct(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for i := range 10 {
		writeFile(t, fsys, fmt.Sprintf("/d/f%d", i), fmt.Sprintf("content %d", i))
	}

	res, err := newTestFinder(t, "exact", fsys).FindDir(context.Background(), "/d", false)
	require.NoError(t, err)
	assert.Empty(t, res.Sets)
	assert.Equal(t, 10, res.Files)
}

func TestFindEmptyInput(t *testing.T) {
	res, err := newTestFinder(t, "exact", afero.NewMemMapFs()).Find(context.Background(), slices.Values([]string(nil)))
	require.NoError(t, err)
	assert.Empty(t, res.Sets)
	assert.Zero(t, res.Files)
}

func TestNewUnknownStrategyReadsNothing(t *testing.T) {
	fsys := &countingFs{Fs: afero.NewMemMapFs()}
	writeFile(t, fsys.Fs, "/d/a", "x")

	_, err := New("zzz", WithFs(fsys))
	require.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Zero(t, fsys.opens.Load())
}

func TestNewInvalidOptions(t *testing.T) {
	_, err := New("perceptual", WithHashSize(12))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = New("perceptual", WithTolerance(-3))
	assert.ErrorIs(t, err, ErrInvalidOption)

	// Perceptual settings do not apply to exact.
	_, err = New("exact", WithHashSize(12))
	assert.NoError(t, err)
}

func TestNewRejectsUnusableOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero workers", func(o *Options) { o.Workers = 0 }},
		{"negative workers", func(o *Options) { o.Workers = -2 }},
		{"nil filesystem", func(o *Options) { o.Fs = nil }},
		{"nil logger", func(o *Options) { o.Logger = nil }},
		{"negative inode cache", func(o *Options) { o.InodeCache = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New("exact", tt.opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
			assert.Nil(t, f)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	f, err := New("xxh", WithWorkers(0))
	require.NoError(t, err)
	assert.Equal(t, Exact, f.Strategy().Kind())
	assert.Positive(t, f.Workers())

	f, err = New("header", WithWorkers(3))
	require.NoError(t, err)
	assert.Equal(t, 3, f.Workers())
}

func TestFindWorkerCountDoesNotChangeResult(t *testing.T) {
	fsys := afero.NewMemMapFs()
	var paths []string
	for i := range 60 {
		p := fmt.Sprintf("/d/f%02d", i)
		writeFile(t, fsys, p, fmt.Sprintf("group %d", i%7))
		paths = append(paths, p)
	}
	writeFile(t, fsys, "/d/solo", "alone")
	paths = append(paths, "/d/solo")

	var want [][]string
	for workers := 1; workers <= 8; workers++ {
		f := newTestFinder(t, "exact", fsys, WithWorkers(workers))
		res, err := f.Find(context.Background(), slices.Values(paths))
		require.NoError(t, err)

		got := setPaths(res.Sets)
		if want == nil {
			want = got
			require.Len(t, want, 7)
			continue
		}
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestFindFailureIsolation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/d/a", "same")
	writeFile(t, fsys, "/d/b", "same")

	var events []Event
	f := newTestFinder(t, "exact", fsys,
		WithWorkers(4),
		WithObserver(func(ev Event) { events = append(events, ev) }),
	)

	res, err := f.Find(context.Background(), slices.Values([]string{"/d/a", "/d/missing", "/d/b"}))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"/d/a", "/d/b"}}, setPaths(res.Sets))
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 1, res.Failed)

	require.Len(t, events, 3)
	failed := 0
	for _, ev := range events {
		if ev.Err != nil {
			failed++
			assert.Equal(t, "/d/missing", ev.Path)
			assert.ErrorIs(t, ev.Err, ErrIO)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestFindPartitionAndCardinality(t *testing.T) {
	fsys := afero.NewMemMapFs()
	var paths []string
	// Group g has g+1 members: sizes 1..5.
	for g := range 5 {
		for m := range g + 1 {
			p := fmt.Sprintf("/d/g%d_m%d", g, m)
			writeFile(t, fsys, p, fmt.Sprintf("payload-%d", g))
			paths = append(paths, p)
		}
	}

	res, err := newTestFinder(t, "exact", fsys, WithWorkers(3)).Find(context.Background(), slices.Values(paths))
	require.NoError(t, err)

	require.Len(t, res.Sets, 4)
	seen := map[string]bool{}
	for i, set := range res.Sets {
		assert.Len(t, set.Files, i+2)
		assert.GreaterOrEqual(t, len(set.Files), 2)
		for _, file := range set.Files {
			assert.False(t, seen[file.Path], "%s appears in two sets", file.Path)
			seen[file.Path] = true
		}
	}
	assert.False(t, seen["/d/g0_m0"])
	assert.Equal(t, 1+2+3+4, res.Redundant())
}

func TestFindHeaderGroupsByPrefix(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/d/a.log", "HEADER-1 tail one")
	writeFile(t, fsys, "/d/b.log", "HEADER-1 another tail")
	writeFile(t, fsys, "/d/c.log", "HEADER-2 tail one")

	f := newTestFinder(t, "header", fsys, WithHeaderLength(8))
	res, err := f.FindDir(context.Background(), "/d", false)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"/d/a.log", "/d/b.log"}}, setPaths(res.Sets))

	// Whole-content hashing separates them.
	res, err = newTestFinder(t, "exact", fsys).FindDir(context.Background(), "/d", false)
	require.NoError(t, err)
	assert.Empty(t, res.Sets)
}

func TestFindEmptyFilesAreDuplicates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/d/empty1", "")
	writeFile(t, fsys, "/d/empty2", "")
	writeFile(t, fsys, "/d/full", "x")

	res, err := newTestFinder(t, "exact", fsys).FindDir(context.Background(), "/d", false)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"/d/empty1", "/d/empty2"}}, setPaths(res.Sets))
}

func TestFindPerceptualTolerance(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writePNG(t, fsys, "/img/small.png", 64, false)
	writePNG(t, fsys, "/img/large.png", 128, false)
	writePNG(t, fsys, "/img/copy.png", 128, false)
	writePNG(t, fsys, "/img/inverted.png", 128, true)
	writeFile(t, fsys, "/img/readme.txt", "not an image")

	f := newTestFinder(t, "perceptual", fsys, WithTolerance(12))
	res, err := f.FindDir(context.Background(), "/img", false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Sets, 1)
	assert.Equal(t, []string{"/img/copy.png", "/img/large.png", "/img/small.png"}, res.Sets[0].Paths())
}

func TestFindPerceptualExactMatchWithoutTolerance(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writePNG(t, fsys, "/img/a.png", 96, false)
	writePNG(t, fsys, "/img/b.png", 96, false)

	res, err := newTestFinder(t, "img", fsys).FindDir(context.Background(), "/img", false)
	require.NoError(t, err)
	require.Len(t, res.Sets, 1)
	assert.Equal(t, []string{"/img/a.png", "/img/b.png"}, res.Sets[0].Paths())
}

func TestFindCancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/d/a", "x")
	writeFile(t, fsys, "/d/b", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := &countingFs{Fs: fsys}
	res, err := newTestFinder(t, "exact", fs).Find(ctx, slices.Values([]string{"/d/a", "/d/b"}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Zero(t, fs.opens.Load())
}

func TestFindDirMissingRoot(t *testing.T) {
	_, err := newTestFinder(t, "exact", afero.NewMemMapFs()).FindDir(context.Background(), "/nope", true)
	assert.Error(t, err)
}

func TestFindDirRecursive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/d/a", "dup")
	writeFile(t, fsys, "/d/sub/b", "dup")

	f := newTestFinder(t, "exact", fsys)

	res, err := f.FindDir(context.Background(), "/d", false)
	require.NoError(t, err)
	assert.Empty(t, res.Sets)

	res, err = f.FindDir(context.Background(), "/d", true)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"/d/a", "/d/sub/b"}}, setPaths(res.Sets))
}

func writePNG(t *testing.T, fsys afero.Fs, path string, size int, invert bool) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradientImage(size, invert)))
	writeFile(t, fsys, path, buf.String())
}
