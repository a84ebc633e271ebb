package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lumipallolabs/facetmap/internal/bands"
)

const helpKeyColumnWidth = 14 // Width for key column in help text (includes padding)

// HelpOverlay displays keyboard shortcuts in a centered overlay
type HelpOverlay struct {
	visible bool
	width   int
	height  int
	version string
}

// NewHelpOverlay creates a new help overlay component
func NewHelpOverlay(version string) HelpOverlay {
	return HelpOverlay{version: version}
}

// Toggle toggles the visibility of the help overlay
func (h *HelpOverlay) Toggle() {
	h.visible = !h.visible
}

// SetVisible sets the visibility of the help overlay
func (h *HelpOverlay) SetVisible(visible bool) {
	h.visible = visible
}

// IsVisible returns whether the help overlay is visible
func (h HelpOverlay) IsVisible() bool {
	return h.visible
}

// SetSize sets the dimensions of the help overlay
func (ho *HelpOverlay) SetSize(w, h int) {
	ho.width = w
	ho.height = h
}

// View renders the help overlay
func (h HelpOverlay) View() string {
	if !h.visible {
		return ""
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 3)

	sectionStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	keyStyle := HelpOverlayKey
	descStyle := lipgloss.NewStyle().Foreground(ColorText)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var content strings.Builder

	nameStyle := lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	content.WriteString(nameStyle.Render("facetmap"))
	if h.version != "" {
		content.WriteString(dimStyle.Render(" " + h.version))
	}
	content.WriteString("\n")

	content.WriteString(sectionStyle.Render("Navigation"))
	content.WriteString("\n")
	content.WriteString(formatHelpLine(keyStyle, descStyle, "↑↓←→ hjkl", "Move between blocks"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "g", "Select largest"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "Enter / click", "Zoom in"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "Esc / ⌫", "Zoom out or cancel"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "/", "Jump to a name"))

	content.WriteString(sectionStyle.Render("Actions"))
	content.WriteString("\n")
	content.WriteString(formatHelpLine(keyStyle, descStyle, "r", "Reload"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "q", "Quit"))

	content.WriteString(sectionStyle.Render("Bands"))
	content.WriteString("\n")
	for _, b := range []bands.Band{bands.A, bands.B, bands.C, bands.D, bands.E} {
		swatch := lipgloss.NewStyle().Foreground(BandColor(b)).Render("██")
		content.WriteString(" " + swatch + " " + descStyle.Render(bandRange(b)) + "\n")
	}

	content.WriteString("\n")
	content.WriteString(dimStyle.Render("Press any key to close"))

	box := boxStyle.Render(content.String())
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}

func bandRange(b bands.Band) string {
	switch b {
	case bands.A:
		return "90% of the largest bucket or more"
	case bands.B:
		return "70-90%"
	case bands.C:
		return "60-70%"
	case bands.D:
		return "30-60%"
	default:
		return "below 30%"
	}
}

// formatHelpLine formats a single help line with key and description
func formatHelpLine(keyStyle, descStyle lipgloss.Style, key, desc string) string {
	return keyStyle.Width(helpKeyColumnWidth).Render(key) + descStyle.Render(desc) + "\n"
}

// HelpBar renders a bottom help bar with key hints
func HelpBar(width int) string {
	descStyle := lipgloss.NewStyle().Foreground(ColorDim)

	type hint struct {
		key  string
		desc string
	}

	fullHints := []hint{
		{"↑↓←→", "navigate"},
		{"Enter", "zoom in"},
		{"Esc", "zoom out"},
		{"/", "jump"},
		{"r", "reload"},
		{"?", "help"},
		{"q", "quit"},
	}

	compactHints := []hint{
		{"↑↓←→", "nav"},
		{"Enter", "in"},
		{"Esc", "out"},
		{"?", "help"},
		{"q", "quit"},
	}

	minimalHints := []hint{
		{"?", "help"},
		{"q", "quit"},
	}

	var hints []hint
	if width >= 100 {
		hints = fullHints
	} else if width >= 60 {
		hints = compactHints
	} else {
		hints = minimalHints
	}

	var parts []string
	for _, h := range hints {
		parts = append(parts, HelpKey.Render(h.key)+" "+descStyle.Render(h.desc))
	}

	separator := "   "
	if width < 80 {
		separator = "  "
	}

	bar := strings.Join(parts, separator)
	return HelpStyle.Width(width).MaxHeight(1).Render(bar)
}
