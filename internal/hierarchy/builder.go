// Package hierarchy converts flat facet buckets into a weighted node tree.
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/lumipallolabs/facetmap/internal/model"
	"github.com/lumipallolabs/facetmap/internal/search"
)

var (
	// ErrEmptyInput is returned when there are no buckets to lay out
	ErrEmptyInput = errors.New("no buckets to lay out")
	// ErrNegativeWeight is returned when a bucket count is below zero
	ErrNegativeWeight = errors.New("negative bucket count")
)

// Input describes one tree to build
type Input struct {
	RootName string
	Buckets  []search.Bucket

	// Nested optionally returns sub-buckets grouped under a bucket
	Nested func(search.Bucket) []search.Bucket

	// Deferred marks leaf buckets whose children are fetched on zoom-in
	Deferred bool

	// Name optionally maps a bucket to its node name (defaults to the value)
	Name func(search.Bucket) string
}

// Build returns a fully linked tree rooted at in.RootName
// Children are sorted by descending weight, ties keep bucket order.
func Build(in Input) (*model.Node, error) {
	if len(in.Buckets) == 0 {
		return nil, ErrEmptyInput
	}

	root := &model.Node{
		Name:     in.RootName,
		Kind:     model.KindInternal,
		Children: make([]*model.Node, 0, len(in.Buckets)),
	}

	for i, b := range in.Buckets {
		child, err := in.node(b, i)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, child)
	}

	root.ComputeWeights()
	link(root, nil, 0)
	return root, nil
}

func (in Input) node(b search.Bucket, order int) (*model.Node, error) {
	if b.Count < 0 {
		return nil, fmt.Errorf("%w: %q has count %d", ErrNegativeWeight, b.Value, b.Count)
	}

	n := &model.Node{
		Name:   in.name(b),
		Weight: float64(b.Count),
		Kind:   model.KindLeaf,
		Order:  order,
	}

	var subs []search.Bucket
	if in.Nested != nil {
		subs = in.Nested(b)
	}
	if len(subs) > 0 {
		n.Kind = model.KindInternal
		n.Children = make([]*model.Node, 0, len(subs))
		for j, s := range subs {
			if s.Count < 0 {
				return nil, fmt.Errorf("%w: %q/%q has count %d", ErrNegativeWeight, b.Value, s.Value, s.Count)
			}
			n.Children = append(n.Children, &model.Node{
				Name:   s.Value,
				Weight: float64(s.Count),
				Kind:   model.KindLeaf,
				Order:  j,
			})
		}
	} else if in.Deferred {
		n.Kind = model.KindDeferred
	}
	return n, nil
}

func (in Input) name(b search.Bucket) string {
	if in.Name != nil {
		return in.Name(b)
	}
	return b.Value
}

// link sets parent pointers and depths, sorting children on the way down
func link(n, parent *model.Node, depth int) {
	n.Parent = parent
	n.Depth = depth
	model.SortByWeight(n.Children)
	for _, c := range n.Children {
		link(c, n, depth+1)
	}
}
