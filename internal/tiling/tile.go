// Package tiling partitions rectangles among weighted children.
//
// Every partition is computed on a fixed reference rectangle whose aspect
// ratio matches the display, then remapped into the target rectangle with an
// independent linear scale per axis. Splitting a tall, narrow zoomed pane
// directly produces slivers; splitting at the reference scale does not.
package tiling

import (
	"errors"
	"fmt"

	"github.com/lumipallolabs/facetmap/internal/model"
)

// ErrDegenerateRectangle is returned when a target has no area
var ErrDegenerateRectangle = errors.New("degenerate rectangle")

// Unit is the coordinate domain every level is laid out in
var Unit = model.Rect{X0: 0, Y0: 0, X1: 1, Y1: 1}

// Strategy assigns rects to nodes so they partition r proportional to weight
// value is the sum of the node weights
type Strategy interface {
	Partition(nodes []*model.Node, value float64, r model.Rect)
	Name() string
}

// Engine tiles nodes using a reference rectangle of Width x Height
type Engine struct {
	Width    float64
	Height   float64
	Strategy Strategy
}

// New creates an engine for the given display size using binary splitting
func New(width, height float64) *Engine {
	return &Engine{Width: width, Height: height, Strategy: Binary{}}
}

// Reference returns the rectangle partitions are computed on
func (e *Engine) Reference() model.Rect {
	return model.Rect{X0: 0, Y0: 0, X1: e.Width, Y1: e.Height}
}

// Tile assigns a rect to every direct child of node, partitioning (x0,y0,x1,y1)
func (e *Engine) Tile(node *model.Node, x0, y0, x1, y1 float64) error {
	if x1 <= x0 || y1 <= y0 {
		return fmt.Errorf("%w: (%g,%g,%g,%g)", ErrDegenerateRectangle, x0, y0, x1, y1)
	}
	ref := e.Reference()
	if ref.X1 <= 0 || ref.Y1 <= 0 {
		return fmt.Errorf("%w: reference %gx%g", ErrDegenerateRectangle, e.Width, e.Height)
	}

	children := node.Children
	switch len(children) {
	case 0:
		return nil
	case 1:
		setRect(children[0], model.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1})
		return nil
	}

	var value float64
	for _, c := range children {
		value += c.Weight
	}

	e.strategy().Partition(children, value, ref)

	// remap from the reference rectangle into the target
	sx := (x1 - x0) / ref.X1
	sy := (y1 - y0) / ref.Y1
	for _, c := range children {
		c.Rect = model.Rect{
			X0: x0 + c.Rect.X0*sx,
			Y0: y0 + c.Rect.Y0*sy,
			X1: x0 + c.Rect.X1*sx,
			Y1: y0 + c.Rect.Y1*sy,
		}
		c.HasRect = true
	}
	return nil
}

// Layout places root over the unit square and tiles every internal node top-down
func (e *Engine) Layout(root *model.Node) error {
	return e.LayoutIn(root, Unit)
}

// LayoutIn places root over r and tiles every internal node top-down
func (e *Engine) LayoutIn(root *model.Node, r model.Rect) error {
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		return fmt.Errorf("%w: (%g,%g,%g,%g)", ErrDegenerateRectangle, r.X0, r.Y0, r.X1, r.Y1)
	}
	setRect(root, r)
	return e.layoutChildren(root)
}

func (e *Engine) layoutChildren(n *model.Node) error {
	if len(n.Children) == 0 {
		return nil
	}
	r := n.Rect
	if r.X1 <= r.X0 || r.Y1 <= r.Y0 {
		// zero-weight subtrees collapse onto their parent's edge
		n.Walk(func(m *model.Node) {
			if m != n {
				setRect(m, r)
			}
		})
		return nil
	}
	if err := e.Tile(n, r.X0, r.Y0, r.X1, r.Y1); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := e.layoutChildren(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) strategy() Strategy {
	if e.Strategy == nil {
		return Binary{}
	}
	return e.Strategy
}

func setRect(n *model.Node, r model.Rect) {
	n.Rect = r
	n.HasRect = true
}

// ByName returns the strategy registered under name
func ByName(name string) (Strategy, error) {
	switch name {
	case "", "binary":
		return Binary{}, nil
	case "squarify":
		return Squarify{}, nil
	default:
		return nil, fmt.Errorf("unknown tiling strategy %q", name)
	}
}
