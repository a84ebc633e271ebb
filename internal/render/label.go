package render

import (
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/lumipallolabs/facetmap/internal/bands"
	"github.com/lumipallolabs/facetmap/internal/model"
)

// SplitWords breaks a name before every uppercase letter that starts a new
// word, i.e. one followed by a non-uppercase letter. "groupByUserID" becomes
// "group", "By", "UserID".
func SplitWords(name string) []string {
	runes := []rune(name)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsUpper(runes[i+1]) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return words
}

// FormatCount formats a weight with thousands separators
func FormatCount(w float64) string {
	return humanize.Comma(int64(w))
}

// Truncate shortens s to fit width terminal cells, marking the cut with "…"
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// NewItem builds the drawable item for n
// The root of a level is labelled with its full path; children with their own name.
func NewItem(n *model.Node, isRoot bool, band bands.Band, t Transform, header int) Item {
	path := n.Path()
	it := Item{
		ID:        path,
		Name:      n.Name,
		Rect:      n.Rect,
		Band:      band,
		Color:     band.Color(),
		Title:     path + "\n" + FormatCount(n.Weight),
		Weight:    n.Weight,
		Depth:     n.Depth,
		IsRoot:    isRoot,
		Drillable: n.Drillable(),
		Node:      n,
	}
	if isRoot {
		it.Label = path
		it.Lines = append(SplitWords(path), FormatCount(n.Weight))
		it.Device = DeviceRect{X: 0, Y: -header, W: t.Width(), H: header}
		return it
	}
	it.Label = n.Name
	it.Lines = append(SplitWords(n.Name), FormatCount(n.Weight))
	it.Device = t.Apply(n.Rect)
	return it
}

// Text joins the item's lines into a single string
func (it Item) Text() string {
	return strings.Join(it.Lines, " ")
}
