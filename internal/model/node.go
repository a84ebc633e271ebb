package model

import "strings"

// Kind tags how a node's children are known
type Kind int

const (
	// KindLeaf has no children and cannot be drilled into
	KindLeaf Kind = iota
	// KindInternal has its children attached
	KindInternal
	// KindDeferred has children that are fetched on demand (drill-down)
	KindDeferred
)

// String returns a human-readable kind name
func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindInternal:
		return "internal"
	case KindDeferred:
		return "deferred"
	default:
		return ""
	}
}

// Rect is an axis-aligned box in the coordinate domain of the rendered level
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// Width returns the horizontal extent
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Area returns Width*Height
func (r Rect) Area() float64 { return r.Width() * r.Height() }

// Contains reports whether o lies inside r, allowing eps of float slack
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.X0 >= r.X0-eps && o.Y0 >= r.Y0-eps && o.X1 <= r.X1+eps && o.Y1 <= r.Y1+eps
}

// Overlaps reports whether r and o share interior area beyond eps
func (r Rect) Overlaps(o Rect, eps float64) bool {
	w := min(r.X1, o.X1) - max(r.X0, o.X0)
	h := min(r.Y1, o.Y1) - max(r.Y0, o.Y0)
	return w > eps && h > eps
}

// Node is a weighted entity in the facet hierarchy
type Node struct {
	Name     string
	Weight   float64 // own count for leaves, sum of children for internal nodes
	Kind     Kind
	Children []*Node
	Parent   *Node // lookup only
	Depth    int

	// Rect is valid only when HasRect is set (after layout)
	Rect    Rect
	HasRect bool

	// Order is the position of the originating bucket in the response
	Order int
}

// IsLeaf reports whether the node has no attached children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Drillable reports whether zooming into the node makes sense
func (n *Node) Drillable() bool {
	return n.Kind == KindDeferred || (n.Kind == KindInternal && len(n.Children) > 0)
}

// Ancestors returns the node followed by each parent up to the root
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for p := n; p != nil; p = p.Parent {
		out = append(out, p)
	}
	return out
}

// Path joins the names from the root down to the node with "/"
func (n *Node) Path() string {
	anc := n.Ancestors()
	names := make([]string, len(anc))
	for i, a := range anc {
		names[len(anc)-1-i] = a.Name
	}
	return strings.Join(names, "/")
}

// Root walks parents up to the top of the tree
func (n *Node) Root() *Node {
	p := n
	for p.Parent != nil {
		p = p.Parent
	}
	return p
}

// Child returns the direct child with the given name, or nil
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ComputeWeights recomputes and caches weights bottom-up
// Call this once after building or re-linking the tree
func (n *Node) ComputeWeights() float64 {
	if len(n.Children) == 0 {
		return n.Weight
	}
	var total float64
	for _, child := range n.Children {
		total += child.ComputeWeights()
	}
	n.Weight = total
	return total
}

// Walk visits n and every descendant in pre-order
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// ClearRects drops layout from the whole subtree
func (n *Node) ClearRects() {
	n.Walk(func(m *Node) {
		m.Rect = Rect{}
		m.HasRect = false
	})
}
