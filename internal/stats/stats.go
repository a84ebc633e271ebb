package stats

import (
	"gonum.org/v1/gonum/floats"

	"github.com/lumipallolabs/facetmap/internal/search"
)

// ViewStat holds the extremes of sibling bucket counts for one facet
type ViewStat struct {
	Max float64
	Min float64
}

// Map holds one ViewStat per facet name
type Map map[string]ViewStat

// FromResponse computes a ViewStat for every facet in resp
// Facets without buckets are left out so lookups report them as undefined
func FromResponse(resp search.Response) Map {
	m := make(Map, len(resp.FacetResults))
	for _, f := range resp.FacetResults {
		if len(f.Buckets) == 0 {
			continue
		}
		counts := make([]float64, len(f.Buckets))
		for i, b := range f.Buckets {
			counts[i] = float64(b.Count)
		}
		m[f.Name] = ViewStat{
			Max: floats.Max(counts),
			Min: floats.Min(counts),
		}
	}
	return m
}

// Max returns the maximum for a facet and whether it is defined
func (m Map) Max(facet string) (float64, bool) {
	s, ok := m[facet]
	if !ok {
		return 0, false
	}
	return s.Max, true
}
