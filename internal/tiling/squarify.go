package tiling

import (
	"github.com/jeffwilliams/squarify"
	"github.com/lumipallolabs/facetmap/internal/model"
)

// Squarify lays children out in rows chosen to keep tiles close to square
type Squarify struct{}

// Name implements Strategy
func (Squarify) Name() string { return "squarify" }

// treemapItem wraps a node for the squarify algorithm
type treemapItem struct {
	node     *model.Node
	size     float64
	children []*treemapItem
}

// Size implements squarify.TreeSizer
func (t *treemapItem) Size() float64 { return t.size }

// NumChildren implements squarify.TreeSizer
func (t *treemapItem) NumChildren() int { return len(t.children) }

// Child implements squarify.TreeSizer
func (t *treemapItem) Child(i int) squarify.TreeSizer { return t.children[i] }

// Partition implements Strategy
func (Squarify) Partition(nodes []*model.Node, value float64, r model.Rect) {
	if len(nodes) == 0 {
		return
	}
	// nothing to weigh: the first node takes everything, like binary splitting
	if value <= 0 {
		collapse(nodes, r)
		return
	}

	root := &treemapItem{size: value}
	for _, n := range nodes {
		if n.Weight <= 0 {
			continue
		}
		root.children = append(root.children, &treemapItem{node: n, size: n.Weight})
	}

	// zero-weight nodes sit on the far corner with no area
	for _, n := range nodes {
		setRect(n, model.Rect{X0: r.X1, Y0: r.Y1, X1: r.X1, Y1: r.Y1})
	}

	rect := squarify.Rect{X: r.X0, Y: r.Y0, W: r.Width(), H: r.Height()}
	blocks, metas := squarify.Squarify(root, rect, squarify.Options{
		MaxDepth: 1,
		Sort:     true,
	})

	for i, block := range blocks {
		// depth 0 = immediate children of root
		if i >= len(metas) || metas[i].Depth != 0 {
			continue
		}
		item, ok := block.TreeSizer.(*treemapItem)
		if !ok || item.node == nil {
			continue
		}
		setRect(item.node, model.Rect{
			X0: block.X,
			Y0: block.Y,
			X1: block.X + block.W,
			Y1: block.Y + block.H,
		})
	}
}

func collapse(nodes []*model.Node, r model.Rect) {
	setRect(nodes[0], r)
	for _, n := range nodes[1:] {
		setRect(n, model.Rect{X0: r.X1, Y0: r.Y1, X1: r.X1, Y1: r.Y1})
	}
}
