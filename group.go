package dupfind

import (
	"encoding/binary"
	"slices"
	"strings"
	"sync"
	"time"
)

// File is one fingerprinted file together with the metadata a keep policy
// compares.
type File struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// DuplicateSet is a group of two or more files with the same fingerprint.
// With a perceptual tolerance, Fingerprint is the smallest fingerprint of
// the merged group.
type DuplicateSet struct {
	Fingerprint Fingerprint `json:"fingerprint"`
	Files       []File      `json:"files"`
}

// Paths returns the paths of the files in the set.
func (s DuplicateSet) Paths() []string {
	paths := make([]string, len(s.Files))
	for i, f := range s.Files {
		paths[i] = f.Path
	}
	return paths
}

// classMap maps each fingerprint to the files that produced it. It is
// written by workers during fan-out and read once after the barrier.
type classMap struct {
	mu      sync.Mutex
	classes map[Fingerprint][]File
}

func newClassMap() *classMap {
	return &classMap{classes: make(map[Fingerprint][]File)}
}

func (m *classMap) add(fp Fingerprint, file File) {
	m.mu.Lock()
	m.classes[fp] = append(m.classes[fp], file)
	m.mu.Unlock()
}

func (m *classMap) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.classes)
}

// extract returns the classes with at least two members, sorted by path
// within and across sets. A positive tolerance first merges classes whose
// fingerprints are within that Hamming distance.
func (m *classMap) extract(tolerance int) []DuplicateSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	classes := m.classes
	if tolerance > 0 {
		classes = mergeWithin(classes, tolerance)
	}

	var sets []DuplicateSet
	for fp, files := range classes {
		if len(files) < 2 {
			continue
		}
		files = slices.Clone(files)
		slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Path, b.Path) })
		sets = append(sets, DuplicateSet{Fingerprint: fp, Files: files})
	}

	slices.SortFunc(sets, func(a, b DuplicateSet) int {
		return strings.Compare(a.Files[0].Path, b.Files[0].Path)
	})
	return sets
}

// mergeWithin joins classes into connected components where an edge is a
// pair of fingerprints within tolerance. The result does not depend on map
// iteration order.
func mergeWithin(classes map[Fingerprint][]File, tolerance int) map[Fingerprint][]File {
	keys := make([]Fingerprint, 0, len(classes))
	for fp := range classes {
		keys = append(keys, fp)
	}
	slices.Sort(keys)

	parent := make([]int, len(keys))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for _, bucket := range blockBuckets(keys, tolerance) {
		for x, i := range bucket {
			for _, j := range bucket[x+1:] {
				ri, rj := find(i), find(j)
				if ri == rj {
					continue
				}
				d, err := keys[i].Distance(keys[j])
				if err != nil || d > tolerance {
					continue
				}
				// Smallest index wins so the surviving key is the smallest fingerprint.
				if ri < rj {
					parent[rj] = ri
				} else {
					parent[ri] = rj
				}
			}
		}
	}

	merged := make(map[Fingerprint][]File, len(keys))
	for i, fp := range keys {
		root := keys[find(i)]
		merged[root] = append(merged[root], classes[fp]...)
	}
	return merged
}

// blockBuckets splits every key into tolerance+1 bit blocks and buckets key
// indexes by (length, block, block bits). Two keys within tolerance differ in
// at most tolerance blocks, so they share a bucket; only pairs inside a
// bucket need a distance check.
func blockBuckets(keys []Fingerprint, tolerance int) map[string][]int {
	buckets := make(map[string][]int)
	blocks := tolerance + 1
	var key []byte
	for i, fp := range keys {
		nbits := len(fp) * 8
		if blocks > nbits {
			// Every pair of this length is within tolerance.
			key = binary.AppendUvarint(key[:0], uint64(len(fp)))
			buckets[string(key)] = append(buckets[string(key)], i)
			continue
		}
		for b := range blocks {
			lo, hi := b*nbits/blocks, (b+1)*nbits/blocks
			key = binary.AppendUvarint(key[:0], uint64(len(fp)))
			key = binary.AppendUvarint(key, uint64(b))
			key = appendBits(key, fp, lo, hi)
			buckets[string(key)] = append(buckets[string(key)], i)
		}
	}
	return buckets
}

// appendBits appends bits [lo, hi) of fp, most significant first, packed
// into bytes.
func appendBits(dst []byte, fp Fingerprint, lo, hi int) []byte {
	var cur byte
	n := 0
	for k := lo; k < hi; k++ {
		bit := fp[k/8]>>(7-k%8)&1
		cur = cur<<1 | bit
		if n++; n == 8 {
			dst = append(dst, cur)
			cur, n = 0, 0
		}
	}
	if n > 0 {
		dst = append(dst, cur<<(8-n))
	}
	return dst
}
