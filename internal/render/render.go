// Package render writes duplicate sets for people and for machines.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/aweris/dupfind"
)

// Options controls how file names are printed.
type Options struct {
	// FullPaths prints paths as given instead of base names.
	FullPaths bool

	// Color enables bold/coloured terminal output in text renderings.
	Color bool
}

func (o Options) name(path string) string {
	if o.FullPaths {
		return path
	}
	return filepath.Base(path)
}

// Groups converts duplicate sets into lists of names.
func Groups(sets []dupfind.DuplicateSet, opts Options) [][]string {
	groups := make([][]string, 0, len(sets))
	for _, set := range sets {
		names := make([]string, len(set.Files))
		for i, f := range set.Files {
			names[i] = opts.name(f.Path)
		}
		groups = append(groups, names)
	}
	return groups
}

// Text writes one bracketed line per set: "[a, b, c]".
func Text(w io.Writer, sets []dupfind.DuplicateSet, opts Options) error {
	return TextGroups(w, Groups(sets, opts), opts)
}

// TextGroups is Text for groups that were already reduced to names.
func TextGroups(w io.Writer, groups [][]string, opts Options) error {
	bracket := newColor(opts, color.Bold)
	for _, names := range groups {
		if _, err := bracket.Fprintf(w, "[%s]\n", strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// JSON writes the sets as an array of arrays of names.
func JSON(w io.Writer, sets []dupfind.DuplicateSet, opts Options) error {
	return json.NewEncoder(w).Encode(Groups(sets, opts))
}

// planJSON is the machine form of a dupfind.Plan.
type planJSON struct {
	Keep   string   `json:"keep"`
	Remove []string `json:"remove"`
}

// PlanText lists, per set, the kept file and the removal candidates.
func PlanText(w io.Writer, plans []dupfind.Plan, opts Options) error {
	keep := newColor(opts, color.FgGreen, color.Bold)
	remove := newColor(opts, color.FgRed)
	for i, plan := range plans {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := keep.Fprintf(w, "keep   %s\n", opts.name(plan.Keep.Path)); err != nil {
			return err
		}
		for _, f := range plan.Remove {
			if _, err := remove.Fprintf(w, "remove %s\n", opts.name(f.Path)); err != nil {
				return err
			}
		}
	}
	return nil
}

// PlanJSON writes plans as [{"keep": "...", "remove": ["..."]}].
func PlanJSON(w io.Writer, plans []dupfind.Plan, opts Options) error {
	out := make([]planJSON, 0, len(plans))
	for _, plan := range plans {
		p := planJSON{Keep: opts.name(plan.Keep.Path), Remove: make([]string, len(plan.Remove))}
		for i, f := range plan.Remove {
			p.Remove[i] = opts.name(f.Path)
		}
		out = append(out, p)
	}
	return json.NewEncoder(w).Encode(out)
}

func newColor(opts Options, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}
