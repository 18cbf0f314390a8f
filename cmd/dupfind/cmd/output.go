package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/aweris/dupfind/internal/compression"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// chainCloser closes its closers in order, e.g. the zstd frame before the file.
type chainCloser struct {
	io.Writer
	closers []io.Closer
}

func (c *chainCloser) Close() error {
	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// openOutput returns stdout for an empty path or "-", otherwise the created
// file, compressed when the path ends in .zst.
func openOutput(stdout io.Writer, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	if !compression.HasExt(path) {
		return f, nil
	}

	zw, err := compression.NewWriter(f, 3)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	return &chainCloser{Writer: zw, closers: []io.Closer{zw, f}}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && f == os.Stdout && !color.NoColor
}
