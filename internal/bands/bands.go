// Package bands maps a node's share of the view maximum onto five fixed color bands.
package bands

import "math"

// Band is one of five discrete color classes, A highest
type Band int

const (
	E Band = iota // lowest
	D
	C
	B
	A // highest
)

// thresholds are checked high to low, first match wins
var thresholds = []struct {
	min  float64
	band Band
}{
	{0.9, A},
	{0.7, B},
	{0.6, C},
	{0.3, D},
}

// Classify returns the band for weight relative to max
// A max that is zero, negative or not a number maps everything to E.
func Classify(weight, max float64) Band {
	if max <= 0 || math.IsNaN(max) || math.IsNaN(weight) {
		return E
	}
	ratio := weight / max
	for _, t := range thresholds {
		if ratio >= t.min {
			return t.band
		}
	}
	return E
}

// ClassifyDefined is Classify for a max that may be undefined
func ClassifyDefined(weight, max float64, ok bool) Band {
	if !ok {
		return E
	}
	return Classify(weight, max)
}

// String returns the band letter
func (b Band) String() string {
	switch b {
	case A:
		return "A"
	case B:
		return "B"
	case C:
		return "C"
	case D:
		return "D"
	case E:
		return "E"
	default:
		return "?"
	}
}

// Color returns the band's fill, taken from the Tableau 10 scheme
func (b Band) Color() string {
	switch b {
	case A:
		return "#e15759" // red
	case B:
		return "#f28e2c" // orange
	case C:
		return "#edc949" // yellow
	case D:
		return "#4e79a7" // blue
	default:
		return "#76b7b2" // teal
	}
}
