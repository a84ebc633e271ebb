// Package scanner builds a local facet index by walking a directory tree.
//
// The index carries the same fields as the remote search index
// (mode_first_char, user_id, group_id) plus mime_type and extension, and
// answers terms aggregations in the same request and response shape, so a
// local tree can stand in for the remote service.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lumipallolabs/facetmap/internal/search"
)

// Field names carried by every record
const (
	FieldMode      = "mode_first_char"
	FieldUser      = "user_id"
	FieldGroup     = "group_id"
	FieldMime      = "mime_type"
	FieldExtension = "extension"
)

// Fields lists the facets an index can aggregate
var Fields = []string{FieldMode, FieldUser, FieldGroup, FieldMime, FieldExtension}

// Progress reports scanning progress
type Progress struct {
	FilesScanned int64
	DirsScanned  int64
	CurrentPath  string
}

// Scanner defines the interface for filesystem scanning
type Scanner interface {
	// Scan walks root and returns an index of every entry below it
	Scan(ctx context.Context, root string) (*Index, error)

	// Progress returns a channel that receives progress updates
	Progress() <-chan Progress
}

// Record is one indexed filesystem entry
type Record struct {
	Path   string
	Fields map[string]string
}

// Index is the result of a scan
type Index struct {
	Root    string
	Records []Record
}

// Query implements search.Querier
func (ix *Index) Query(ctx context.Context, req search.Request) (search.Response, error) {
	if err := ctx.Err(); err != nil {
		return search.Response{}, err
	}
	for _, f := range req.Facets {
		if f.Type != "" && f.Type != search.FacetTerms {
			return search.Response{}, fmt.Errorf("facet %s: unsupported type %q", f.Field, f.Type)
		}
	}
	for _, f := range req.Filters {
		if f.Type != search.FilterMatchAny {
			return search.Response{}, fmt.Errorf("filter on %s: unsupported type %q", f.Field, f.Type)
		}
	}

	counts := make([]map[string]int64, len(req.Facets))
	for i := range counts {
		counts[i] = make(map[string]int64)
	}
	for _, r := range ix.Records {
		if !matches(r, req) {
			continue
		}
		for i, f := range req.Facets {
			if v, ok := r.Fields[f.Field]; ok {
				counts[i][v]++
			}
		}
	}

	resp := search.Response{FacetResults: make([]search.FacetResult, len(req.Facets))}
	for i, f := range req.Facets {
		resp.FacetResults[i] = search.FacetResult{Name: f.Field, Buckets: terms(counts[i], f.Size)}
	}
	return resp, nil
}

func matches(r Record, req search.Request) bool {
	if q := req.Query; q != "" && q != search.MatchAll && !strings.Contains(r.Path, q) {
		return false
	}
	for _, f := range req.Filters {
		v, ok := r.Fields[f.Field]
		if !ok {
			return false
		}
		hit := false
		for _, want := range f.Values {
			if v == want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// terms orders buckets by descending count, then value, and caps them at size
func terms(counts map[string]int64, size int) []search.Bucket {
	out := make([]search.Bucket, 0, len(counts))
	for v, n := range counts {
		out = append(out, search.Bucket{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if size > 0 && len(out) > size {
		out = out[:size]
	}
	return out
}

// Ensure Index implements search.Querier
var _ search.Querier = (*Index)(nil)
