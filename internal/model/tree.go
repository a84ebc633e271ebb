package model

import "sort"

// SortByWeight sorts nodes by weight descending; ties keep their original order
func SortByWeight(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Weight > nodes[j].Weight
	})
}
