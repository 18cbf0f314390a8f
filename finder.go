package dupfind

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/aweris/dupfind/internal/walk"
)

// Finder groups files into duplicate sets with one fingerprinting strategy.
type Finder struct {
	strategy Strategy
	opts     *Options
}

// New creates a Finder for the strategy named by method ("exact", "header"
// or "perceptual"). Configuration errors are reported here, before any file
// is touched.
func New(method string, opts ...Option) (*Finder, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	kind, err := ParseStrategy(method)
	if err != nil {
		return nil, err
	}

	if err := options.validate(); err != nil {
		return nil, err
	}

	strategy, err := NewStrategy(kind, options.StrategyConfig)
	if err != nil {
		return nil, err
	}

	return &Finder{strategy: strategy, opts: options}, nil
}

// Strategy returns the validated strategy the Finder fingerprints with.
func (f *Finder) Strategy() Strategy { return f.strategy }

// Workers returns the number of files fingerprinted in parallel.
func (f *Finder) Workers() int { return f.opts.Workers }

// Result is the outcome of one run.
type Result struct {
	Strategy StrategyKind
	Sets     []DuplicateSet

	// Files counts files fingerprinted successfully, Failed those dropped
	// because of an I/O or decode error.
	Files  int
	Failed int
}

// Redundant returns the number of files that could be removed while keeping
// one file per set.
func (r *Result) Redundant() int {
	n := 0
	for _, set := range r.Sets {
		n += len(set.Files) - 1
	}
	return n
}

// FindDir enumerates the regular files under root and groups them.
// Enumeration failures abort the run before any file is fingerprinted.
func (f *Finder) FindDir(ctx context.Context, root string, recursive bool) (*Result, error) {
	paths, err := walk.Files(f.opts.Fs, root, recursive, f.opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", root, err)
	}
	return f.Find(ctx, slices.Values(paths))
}

// Find fingerprints every path in parallel and returns the duplicate sets.
// Files that fail to fingerprint are left out; they never abort the run.
// If ctx is cancelled no further paths are dispatched and ctx.Err() is
// returned once in-flight files finish.
func (f *Finder) Find(ctx context.Context, paths iter.Seq[string]) (*Result, error) {
	r, err := f.newRun()
	if err != nil {
		return nil, err
	}

	p := pool.New().WithMaxGoroutines(f.opts.Workers)

	cancelled := false
	for path := range paths {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		p.Go(func() { r.process(path) })
	}

	// Barrier: every insert is visible once Wait returns.
	p.Wait()

	if cancelled {
		return nil, ctx.Err()
	}

	res := &Result{
		Strategy: f.strategy.Kind(),
		Sets:     r.classes.extract(f.strategy.Tolerance()),
		Files:    int(r.files.Load()),
		Failed:   int(r.failed.Load()),
	}

	r.log.WithFields(logrus.Fields{
		"files":   res.Files,
		"failed":  res.Failed,
		"classes": r.classes.len(),
		"sets":    len(res.Sets),
	}).Debug("grouping finished")

	return res, nil
}

// run holds the state scoped to a single Find call.
type run struct {
	strategy Strategy
	opts     *Options
	log      logrus.FieldLogger

	classes *classMap
	memo    *lru.Cache[fileID, Fingerprint]

	files  atomic.Int64
	failed atomic.Int64

	observeMu sync.Mutex
}

func (f *Finder) newRun() (*run, error) {
	r := &run{
		strategy: f.strategy,
		opts:     f.opts,
		log: f.opts.Logger.WithFields(logrus.Fields{
			"strategy": f.strategy.Kind(),
			"workers":  f.opts.Workers,
		}),
		classes: newClassMap(),
	}

	if f.opts.InodeCache > 0 {
		memo, err := lru.New[fileID, Fingerprint](f.opts.InodeCache)
		if err != nil {
			return nil, fmt.Errorf("create inode cache: %w", err)
		}
		r.memo = memo
	}

	return r, nil
}

func (r *run) process(path string) {
	file, fp, err := r.fingerprint(path)
	if err != nil {
		r.failed.Add(1)
		r.log.WithField("path", path).WithError(err).Debug("skipping file")
	} else {
		r.files.Add(1)
		r.classes.add(fp, file)
	}

	if r.opts.Observer != nil {
		r.observeMu.Lock()
		r.opts.Observer(Event{Path: path, Err: err})
		r.observeMu.Unlock()
	}
}

func (r *run) fingerprint(path string) (File, Fingerprint, error) {
	info, err := r.opts.Fs.Stat(path)
	if err != nil {
		return File{}, "", ioError(path, err)
	}
	file := File{Path: path, Size: info.Size(), ModTime: info.ModTime()}

	id, linked := fileIdentity(info)
	if linked && r.memo != nil {
		if fp, ok := r.memo.Get(id); ok {
			return file, fp, nil
		}
	}

	fp, err := r.strategy.Fingerprint(r.opts.Fs, path)
	if err != nil {
		return File{}, "", err
	}

	if linked && r.memo != nil {
		r.memo.Add(id, fp)
	}
	return file, fp, nil
}
