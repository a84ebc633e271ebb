// Package search defines the faceted aggregation query types and clients for the
// remote search service.
//
// Only bucket aggregates are ever requested: every Request built here carries
// Limit 0, which tells the service to skip raw matching records.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// MatchAll is the query string selecting every record
const MatchAll = "*"

// FilterMatchAny keeps records whose field equals any of the filter values
const FilterMatchAny = "match_any"

// FacetTerms aggregates a field into value buckets
const FacetTerms = "terms"

// FacetRequest asks for one facet in the response
type FacetRequest struct {
	Field string `json:"field_name"`
	Type  string `json:"type"`
	Size  int    `json:"size"`
}

// Filter restricts the records a query aggregates over
type Filter struct {
	Type   string   `json:"type"`
	Field  string   `json:"field_name"`
	Values []string `json:"values"`
}

// Request is an aggregation query
type Request struct {
	Query   string         `json:"q"`
	Facets  []FacetRequest `json:"facets"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	Filters []Filter       `json:"filters"`
}

// Bucket is one aggregated value and how many records carry it
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// UnmarshalJSON accepts bucket values encoded as strings, numbers or booleans
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value json.RawMessage `json:"value"`
		Count int64           `json:"count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Count = raw.Count

	v := bytes.TrimSpace(raw.Value)
	switch {
	case len(v) == 0 || string(v) == "null":
		b.Value = ""
	case v[0] == '"':
		return json.Unmarshal(v, &b.Value)
	default:
		// numbers and booleans keep their literal form
		b.Value = string(v)
	}
	return nil
}

// FacetResult holds the buckets for one requested facet
type FacetResult struct {
	Name    string   `json:"name"`
	Buckets []Bucket `json:"buckets"`
}

// Response is the aggregation service's answer
type Response struct {
	FacetResults []FacetResult `json:"facet_results"`
}

// Facet returns the result with the given name
func (r Response) Facet(name string) (FacetResult, bool) {
	for _, f := range r.FacetResults {
		if f.Name == name {
			return f, true
		}
	}
	return FacetResult{}, false
}

// Querier runs aggregation queries
type Querier interface {
	Query(ctx context.Context, req Request) (Response, error)
}

// QuerierFunc adapts a function to Querier
type QuerierFunc func(ctx context.Context, req Request) (Response, error)

// Query implements Querier
func (f QuerierFunc) Query(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// RootRequest builds the top-level match-all aggregation over every facet
func RootRequest(facets []FacetRequest) Request {
	return Request{
		Query:   MatchAll,
		Facets:  facets,
		Offset:  0,
		Limit:   0,
		Filters: []Filter{},
	}
}

// DrillRequest aggregates facet over the records whose field equals value
func DrillRequest(facet FacetRequest, field, value string) Request {
	return Request{
		Query:  MatchAll,
		Facets: []FacetRequest{facet},
		Offset: 0,
		Limit:  0,
		Filters: []Filter{{
			Type:   FilterMatchAny,
			Field:  field,
			Values: []string{value},
		}},
	}
}

// Key returns a stable identity for the request, used for caching
func (r Request) Key() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%s|%d", r.Query, len(r.Facets))
	}
	return string(data)
}

// String summarizes the request for logs
func (r Request) String() string {
	facets := make([]string, len(r.Facets))
	for i, f := range r.Facets {
		facets[i] = f.Field
	}
	s := fmt.Sprintf("q=%s facets=%v", strconv.Quote(r.Query), facets)
	for _, f := range r.Filters {
		s += fmt.Sprintf(" %s(%s=%v)", f.Type, f.Field, f.Values)
	}
	return s
}
