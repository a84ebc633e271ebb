package hierarchy

import (
	"errors"
	"math"
	"testing"

	"github.com/lumipallolabs/facetmap/internal/model"
	"github.com/lumipallolabs/facetmap/internal/search"
)

func buckets(counts ...int64) []search.Bucket {
	out := make([]search.Bucket, len(counts))
	for i, c := range counts {
		out[i] = search.Bucket{Value: string(rune('a' + i)), Count: c}
	}
	return out
}

func TestBuildRootWeight(t *testing.T) {
	sets := [][]int64{
		{90, 10},
		{1},
		{0, 0, 0},
		{5, 3, 8, 1, 1, 13, 2},
	}

	for _, counts := range sets {
		root, err := Build(Input{RootName: "group_id", Buckets: buckets(counts...)})
		if err != nil {
			t.Fatalf("%v: build failed: %v", counts, err)
		}
		var want float64
		for _, c := range counts {
			want += float64(c)
		}
		if root.Weight != want {
			t.Errorf("%v: expected root weight %v, got %v", counts, want, root.Weight)
		}
	}
}

func TestBuildSortsStable(t *testing.T) {
	root, err := Build(Input{RootName: "r", Buckets: []search.Bucket{
		{Value: "first-tie", Count: 5},
		{Value: "big", Count: 50},
		{Value: "second-tie", Count: 5},
		{Value: "small", Count: 1},
	}})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	want := []string{"big", "first-tie", "second-tie", "small"}
	for i, c := range root.Children {
		if c.Name != want[i] {
			t.Errorf("child %d: expected %s, got %s", i, want[i], c.Name)
		}
		if c.Parent != root || c.Depth != 1 {
			t.Errorf("child %s not linked: parent=%v depth=%d", c.Name, c.Parent != nil, c.Depth)
		}
	}
	if root.Depth != 0 || root.Parent != nil {
		t.Error("root must be at depth 0 without parent")
	}
}

func TestBuildNested(t *testing.T) {
	nested := map[string][]search.Bucket{
		"a": {{Value: "x", Count: 3}, {Value: "y", Count: 7}},
		"b": nil,
	}
	root, err := Build(Input{
		RootName: "r",
		Buckets:  []search.Bucket{{Value: "a", Count: 999}, {Value: "b", Count: 4}},
		Nested:   func(b search.Bucket) []search.Bucket { return nested[b.Value] },
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	a := root.Child("a")
	if a == nil || a.Kind != model.KindInternal {
		t.Fatalf("expected internal node a, got %+v", a)
	}
	if a.Weight != 10 {
		t.Errorf("internal weight must be sum of children, got %v", a.Weight)
	}
	if a.Children[0].Name != "y" || a.Children[0].Depth != 2 {
		t.Errorf("expected y first at depth 2, got %s at %d", a.Children[0].Name, a.Children[0].Depth)
	}
	if root.Weight != 14 {
		t.Errorf("expected root weight 14, got %v", root.Weight)
	}

	// every internal node sums its children
	root.Walk(func(n *model.Node) {
		if n.IsLeaf() {
			return
		}
		var sum float64
		for _, c := range n.Children {
			sum += c.Weight
		}
		if math.Abs(sum-n.Weight) > 1e-9 {
			t.Errorf("%s: children sum %v != weight %v", n.Name, sum, n.Weight)
		}
	})
}

func TestBuildDeferred(t *testing.T) {
	root, err := Build(Input{
		RootName: "group_id",
		Buckets:  buckets(3, 4),
		Deferred: true,
		Name:     func(b search.Bucket) string { return "group:" + b.Value },
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	for _, c := range root.Children {
		if c.Kind != model.KindDeferred || !c.Drillable() {
			t.Errorf("%s: expected deferred drillable node", c.Name)
		}
	}
	if root.Children[0].Name != "group:b" {
		t.Errorf("unexpected name %s", root.Children[0].Name)
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(Input{RootName: "r"}); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Build(Input{RootName: "r", Buckets: buckets(1, -1)}); !errors.Is(err, ErrNegativeWeight) {
		t.Errorf("expected ErrNegativeWeight, got %v", err)
	}

	_, err := Build(Input{
		RootName: "r",
		Buckets:  buckets(1),
		Nested:   func(search.Bucket) []search.Bucket { return []search.Bucket{{Value: "bad", Count: -2}} },
	})
	if !errors.Is(err, ErrNegativeWeight) {
		t.Errorf("expected ErrNegativeWeight for nested bucket, got %v", err)
	}
}
