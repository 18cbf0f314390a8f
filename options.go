package dupfind

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultInodeCacheSize bounds the hard-link memo of a single run.
const DefaultInodeCacheSize = 4096

// Event reports one completed file, successful or not.
type Event struct {
	Path string
	Err  error
}

// Observer is notified once per completed file. Calls are serialized by the
// Finder, so an Observer need not be safe for concurrent use. It is not
// required for correctness and should return quickly.
type Observer func(Event)

// Options configures a Finder.
type Options struct {
	StrategyConfig

	Workers    int
	Fs         afero.Fs
	Observer   Observer
	Logger     logrus.FieldLogger
	InodeCache int
}

// validate rejects settings a custom Option may have left unusable.
func (o *Options) validate() error {
	switch {
	case o.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidOption, o.Workers)
	case o.Fs == nil:
		return fmt.Errorf("%w: filesystem is nil", ErrInvalidOption)
	case o.Logger == nil:
		return fmt.Errorf("%w: logger is nil", ErrInvalidOption)
	case o.InodeCache < 0:
		return fmt.Errorf("%w: inode cache size must not be negative, got %d", ErrInvalidOption, o.InodeCache)
	}
	return nil
}

// Option is a functional option for configuring New.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		StrategyConfig: DefaultStrategyConfig(),
		Workers:        runtime.NumCPU(),
		Fs:             afero.NewOsFs(),
		Logger:         logrus.StandardLogger(),
		InodeCache:     DefaultInodeCacheSize,
	}
}

// WithWorkers sets the number of files fingerprinted in parallel.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithFs sets the filesystem files are read from.
func WithFs(fsys afero.Fs) Option {
	return func(o *Options) {
		if fsys != nil {
			o.Fs = fsys
		}
	}
}

// WithObserver registers a per-file completion callback.
func WithObserver(fn Observer) Option {
	return func(o *Options) { o.Observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithHeaderLength sets the prefix length of the header strategy.
func WithHeaderLength(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.HeaderLength = n
		}
	}
}

// WithHashSize sets the perceptual hash grid size.
func WithHashSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.HashSize = n
		}
	}
}

// WithTolerance sets the perceptual Hamming tolerance. A positive tolerance
// adds a merge pass after hashing whose cost grows with the number of
// distinct fingerprints and with the tolerance itself; small values stay
// close to linear.
func WithTolerance(n int) Option {
	return func(o *Options) { o.Tolerance = n }
}

// WithInodeCache sets the size of the hard-link memo. Zero disables it.
func WithInodeCache(n int) Option {
	return func(o *Options) {
		if n >= 0 {
			o.InodeCache = n
		}
	}
}
