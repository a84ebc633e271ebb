package cache

import "github.com/lumipallolabs/facetmap/internal/search"

// Delta is how one bucket changed between two snapshots
type Delta struct {
	Prev    int64
	Cur     int64
	IsNew   bool
	Removed bool
}

// Change returns Cur-Prev
func (d Delta) Change() int64 { return d.Cur - d.Prev }

// Grew reports whether the bucket count went up
func (d Delta) Grew() bool { return d.Cur > d.Prev }

// Shrunk reports whether the bucket count went down
func (d Delta) Shrunk() bool { return d.Cur < d.Prev }

// Diff compares the buckets of facet in current against previous
// Buckets that vanished are reported with Removed set.
func Diff(current, previous search.Response, facet string) map[string]Delta {
	out := make(map[string]Delta)

	cur, _ := current.Facet(facet)
	prevFacet, hasPrev := previous.Facet(facet)

	prevMap := make(map[string]int64, len(prevFacet.Buckets))
	for _, b := range prevFacet.Buckets {
		prevMap[b.Value] = b.Count
	}

	for _, b := range cur.Buckets {
		prev, exists := prevMap[b.Value]
		out[b.Value] = Delta{Prev: prev, Cur: b.Count, IsNew: !exists && hasPrev}
		delete(prevMap, b.Value)
	}
	for v, prev := range prevMap {
		out[v] = Delta{Prev: prev, Removed: true}
	}
	return out
}

// Summary counts the buckets that grew, shrunk, appeared and disappeared
type Summary struct {
	Grew, Shrunk, New, Removed int
}

// Summarize tallies a diff
func Summarize(d map[string]Delta) Summary {
	var s Summary
	for _, v := range d {
		switch {
		case v.Removed:
			s.Removed++
		case v.IsNew:
			s.New++
		case v.Grew():
			s.Grew++
		case v.Shrunk():
			s.Shrunk++
		}
	}
	return s
}
