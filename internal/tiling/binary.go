package tiling

import "github.com/lumipallolabs/facetmap/internal/model"

// Binary recursively bisects the weight-ordered children near half their total,
// cutting along the longer side each time
type Binary struct{}

// Name implements Strategy
func (Binary) Name() string { return "binary" }

// Partition implements Strategy
func (Binary) Partition(nodes []*model.Node, value float64, r model.Rect) {
	n := len(nodes)
	if n == 0 {
		return
	}
	sums := make([]float64, n+1)
	for i, c := range nodes {
		sums[i+1] = sums[i] + c.Weight
	}
	b := bisector{nodes: nodes, sums: sums}
	b.partition(0, n, value, r.X0, r.Y0, r.X1, r.Y1)
}

type bisector struct {
	nodes []*model.Node
	sums  []float64
}

func (b *bisector) partition(i, j int, value, x0, y0, x1, y1 float64) {
	if i >= j-1 {
		setRect(b.nodes[i], model.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1})
		return
	}

	valueOffset := b.sums[i]
	valueTarget := value/2 + valueOffset
	k, hi := i+1, j-1
	for k < hi {
		mid := int(uint(k+hi) >> 1)
		if b.sums[mid] < valueTarget {
			k = mid + 1
		} else {
			hi = mid
		}
	}
	if valueTarget-b.sums[k-1] < b.sums[k]-valueTarget && i+1 < k {
		k--
	}

	valueLeft := b.sums[k] - valueOffset
	valueRight := value - valueLeft

	if x1-x0 > y1-y0 {
		xk := x1
		if value != 0 {
			xk = (x0*valueRight + x1*valueLeft) / value
		}
		b.partition(i, k, valueLeft, x0, y0, xk, y1)
		b.partition(k, j, valueRight, xk, y0, x1, y1)
		return
	}

	yk := y1
	if value != 0 {
		yk = (y0*valueRight + y1*valueLeft) / value
	}
	b.partition(i, k, valueLeft, x0, y0, x1, yk)
	b.partition(k, j, valueRight, x0, yk, x1, y1)
}
