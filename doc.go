// Package dupfind finds groups of content-equivalent files.
//
// Equivalence is decided by a fingerprinting strategy chosen once per run:
//
//   - exact: seeded 64-bit xxHash of the whole content
//   - header: the first N bytes of the file (approximate, cheap)
//   - perceptual: a difference hash of the decoded image, tolerant of
//     re-encoding and small resizes
//
// Files are fingerprinted in parallel and folded into classes keyed by
// fingerprint; classes with two or more members are returned as duplicate
// sets. Files that cannot be read or decoded are skipped without aborting
// the run.
//
// Basic usage:
//
//	finder, err := dupfind.New("exact", dupfind.WithWorkers(8))
//	if err != nil {
//	    // unknown strategy or invalid option; nothing was read
//	}
//
//	res, _ := finder.FindDir(ctx, "/photos", true)
//	for _, set := range res.Sets {
//	    fmt.Println(set.Paths())
//	}
//
// Picking a keeper per set:
//
//	plans := dupfind.KeepNewest.Plan(res.Sets)
//	for _, p := range plans {
//	    fmt.Println("keep", p.Keep.Path, "remove", len(p.Remove))
//	}
//
// Near-identical images:
//
//	finder, _ := dupfind.New("perceptual", dupfind.WithTolerance(4))
package dupfind
