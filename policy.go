package dupfind

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// KeepPolicy chooses which file of a duplicate set to keep. It only selects;
// nothing is deleted.
type KeepPolicy string

const (
	KeepOldest   KeepPolicy = "oldest"
	KeepNewest   KeepPolicy = "newest"
	KeepBiggest  KeepPolicy = "biggest"
	KeepSmallest KeepPolicy = "smallest"
)

// ParseKeepPolicy maps a policy name to a KeepPolicy.
func ParseKeepPolicy(name string) (KeepPolicy, error) {
	switch p := KeepPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case KeepOldest, KeepNewest, KeepBiggest, KeepSmallest:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

// Plan is the outcome of applying a KeepPolicy to one duplicate set.
type Plan struct {
	Keep   File   `json:"keep"`
	Remove []File `json:"remove"`
}

// Select returns the file to keep and the rest of the set as removal
// candidates. Ties are broken by path.
func (p KeepPolicy) Select(set DuplicateSet) (kept File, removable []File) {
	if len(set.Files) == 0 {
		return File{}, nil
	}

	files := slices.Clone(set.Files)
	slices.SortStableFunc(files, func(a, b File) int {
		if c := p.compare(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return files[0], files[1:]
}

// Plan applies the policy to every set.
func (p KeepPolicy) Plan(sets []DuplicateSet) []Plan {
	plans := make([]Plan, 0, len(sets))
	for _, set := range sets {
		kept, removable := p.Select(set)
		plans = append(plans, Plan{Keep: kept, Remove: removable})
	}
	return plans
}

// compare orders a before b when a is the better file to keep.
func (p KeepPolicy) compare(a, b File) int {
	switch p {
	case KeepOldest:
		return a.ModTime.Compare(b.ModTime)
	case KeepNewest:
		return b.ModTime.Compare(a.ModTime)
	case KeepBiggest:
		return cmp.Compare(b.Size, a.Size)
	case KeepSmallest:
		return cmp.Compare(a.Size, b.Size)
	default:
		return 0
	}
}
