package stats

import (
	"testing"

	"github.com/lumipallolabs/facetmap/internal/search"
)

func TestFromResponse(t *testing.T) {
	resp := search.Response{FacetResults: []search.FacetResult{
		{Name: "group_id", Buckets: []search.Bucket{{Value: "a", Count: 90}, {Value: "b", Count: 10}, {Value: "c", Count: 40}}},
		{Name: "user_id", Buckets: []search.Bucket{{Value: "x", Count: 7}}},
		{Name: "empty"},
	}}

	m := FromResponse(resp)

	if got := m["group_id"]; got.Max != 90 || got.Min != 10 {
		t.Errorf("group_id: expected {90 10}, got %+v", got)
	}
	if got := m["user_id"]; got.Max != 7 || got.Min != 7 {
		t.Errorf("user_id: expected {7 7}, got %+v", got)
	}
	if _, ok := m.Max("empty"); ok {
		t.Error("facet without buckets should be undefined")
	}
	if _, ok := m.Max("missing"); ok {
		t.Error("missing facet should be undefined")
	}
}
