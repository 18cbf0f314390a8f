package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/aweris/dupfind"
)

// progress prints a running file counter. The Finder serializes observer
// calls, so no locking is needed here.
type progress struct {
	w      io.Writer
	total  int
	done   int
	failed int
}

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

var faint = color.New(color.Faint)

func (p *progress) observe(ev dupfind.Event) {
	p.done++
	if ev.Err != nil {
		p.failed++
	}

	faint.Fprintf(p.w, "\r%s ", nowStr())
	fmt.Fprintf(p.w, "%d/%d files", p.done, p.total)
	if p.failed > 0 {
		color.New(color.FgYellow).Fprintf(p.w, " (%d skipped)", p.failed)
	}
	if p.done == p.total {
		fmt.Fprintln(p.w)
	}
}

func nowStr() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
