package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lumipallolabs/facetmap/internal/cache"
	"github.com/lumipallolabs/facetmap/internal/render"
)

// Header displays the source and the active path (2 lines)
type Header struct {
	source   string
	version  string
	width    int
	root     render.Item
	hasRoot  bool
	depth    int
	loading  bool
	status   string
	diff     cache.Summary
	hasDiff  bool
	selected render.Item
	hasSel   bool
}

// NewHeader creates a new header component
func NewHeader(source, version string) Header {
	return Header{source: source, version: version}
}

// SetWidth sets the header width
func (h *Header) SetWidth(w int) {
	h.width = w
}

// SetFrame shows the header item of f
func (h *Header) SetFrame(f render.Frame) {
	h.root, h.hasRoot = f.Root()
	h.depth = f.Level
}

// SetSelected shows the selected item's title
func (h *Header) SetSelected(it render.Item, ok bool) {
	h.selected, h.hasSel = it, ok
}

// SetLoading sets the fetch-in-flight state with a short description
func (h *Header) SetLoading(loading bool, status string) {
	h.loading = loading
	h.status = status
}

// SetDiff shows bucket changes against the previous snapshot
func (h *Header) SetDiff(s cache.Summary) {
	h.diff = s
	h.hasDiff = true
}

// View renders the header
// Line 1: facetmap 0.1.0  source               Level: N
// Line 2: group_id/staff [band]                 status or selection
func (h Header) View() string {
	nameStyle := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(ColorDim)

	// === LINE 1: App name (left) | Level and diff (right) ===
	line1Left := nameStyle.Render("facetmap") + dimStyle.Render(" "+h.version)
	if h.source != "" {
		line1Left += dimStyle.Render("  ") + StatsStyle.Render(h.source)
	}

	var right []string
	if h.hasDiff && (h.diff.Grew+h.diff.Shrunk+h.diff.New+h.diff.Removed) > 0 {
		right = append(right,
			GrewStyle.Render(fmt.Sprintf("▲%d", h.diff.Grew)),
			ShrunkStyle.Render(fmt.Sprintf("▼%d", h.diff.Shrunk)),
			dimStyle.Render(fmt.Sprintf("+%d -%d", h.diff.New, h.diff.Removed)))
	}
	right = append(right, dimStyle.Render("Level: ")+StatsStyle.Render(fmt.Sprint(h.depth)))
	line1 := spread(line1Left, strings.Join(right, dimStyle.Render("  ")), h.width)

	// === LINE 2: Path (left) | Status or selection (right) ===
	var line2Left string
	if h.hasRoot {
		pathStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(BandColor(h.root.Band)).
			Bold(true).
			Padding(0, 1)
		line2Left = pathStyle.Render(h.root.Label) + dimStyle.Render(" "+render.FormatCount(h.root.Weight))
	}

	var line2Right string
	switch {
	case h.loading:
		line2Right = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true).Render(h.status)
	case h.status != "":
		line2Right = ErrorStyle.Render(h.status)
	case h.hasSel:
		line2Right = StatsStyle.Render(h.selected.Name) + dimStyle.Render(" "+render.FormatCount(h.selected.Weight))
		if h.selected.Drillable {
			line2Right += dimStyle.Render("  ") + KeyHint.Render("enter") + dimStyle.Render(" zoom")
		}
	}
	line2 := spread(line2Left, line2Right, h.width)

	return lipgloss.JoinVertical(lipgloss.Left, line1, line2)
}

// spread places left and right at the edges of width
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return left + strings.Repeat(" ", gap) + right
}
