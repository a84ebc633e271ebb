package model

import "testing"

func TestNodeWeight(t *testing.T) {
	child1 := &Node{Name: "a", Weight: 100}
	child2 := &Node{Name: "b", Weight: 200}
	parent := &Node{
		Name:     "group_id",
		Kind:     KindInternal,
		Children: []*Node{child1, child2},
	}

	// Must call ComputeWeights to cache totals
	parent.ComputeWeights()

	if parent.Weight != 300 {
		t.Errorf("expected 300, got %v", parent.Weight)
	}
}

func TestNodePath(t *testing.T) {
	root := &Node{Name: "group_id"}
	child := &Node{Name: "staff", Parent: root, Depth: 1}
	leaf := &Node{Name: "user:42", Parent: child, Depth: 2}

	if got := leaf.Path(); got != "group_id/staff/user:42" {
		t.Errorf("unexpected path %q", got)
	}
	if leaf.Root() != root {
		t.Error("expected root to be found from leaf")
	}
	if root.Path() != "group_id" {
		t.Errorf("unexpected root path %q", root.Path())
	}
}

func TestDrillable(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want bool
	}{
		{"leaf", &Node{Kind: KindLeaf}, false},
		{"deferred", &Node{Kind: KindDeferred}, true},
		{"internal", &Node{Kind: KindInternal, Children: []*Node{{}}}, true},
		{"empty internal", &Node{Kind: KindInternal}, false},
	}
	for _, tt := range tests {
		if got := tt.node.Drillable(); got != tt.want {
			t.Errorf("%s: Drillable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSortByWeight(t *testing.T) {
	nodes := []*Node{
		{Name: "small", Weight: 100},
		{Name: "tie1", Weight: 500},
		{Name: "large", Weight: 1000},
		{Name: "tie2", Weight: 500},
	}

	SortByWeight(nodes)

	want := []string{"large", "tie1", "tie2", "small"}
	for i, n := range nodes {
		if n.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], n.Name)
		}
	}
}

func TestRectOverlaps(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	b := Rect{10, 0, 20, 10}
	c := Rect{5, 5, 15, 15}

	if a.Overlaps(b, 1e-9) {
		t.Error("touching rects should not overlap")
	}
	if !a.Overlaps(c, 1e-9) {
		t.Error("expected overlap")
	}
	if !(Rect{0, 0, 20, 20}).Contains(c, 0) {
		t.Error("expected containment")
	}
	if a.Area() != 100 {
		t.Errorf("expected area 100, got %v", a.Area())
	}
}
