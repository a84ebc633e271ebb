package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lumipallolabs/facetmap/internal/bands"
)

// Chrome colors; block colors come from the bands
var (
	ColorPrimary    = lipgloss.Color("#C084FC") // soft violet
	ColorDanger     = lipgloss.Color("#FF5555") // red
	ColorMuted      = lipgloss.Color("#4A5568") // darker muted
	ColorBorder     = lipgloss.Color("#4A5568") // border
	ColorBackground = lipgloss.Color("#1F1F23") // dark background
	ColorCyan       = lipgloss.Color("#00FFFF") // neon cyan
	ColorText       = lipgloss.Color("#E4E4E7") // default text
	ColorDim        = lipgloss.Color("#9CA3AF")

	ColorGrew   = lipgloss.Color("#F472B6") // pink - bucket grew
	ColorShrunk = lipgloss.Color("#5EEAD4") // teal - bucket shrank
)

// Styles
var (
	StatsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	TreemapPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorder).
				Padding(0, 1)

	// Help bar - dimmer with bright key highlights
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3D4555")).
			Padding(0, 1)

	HelpKey = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Background(lipgloss.Color("#1E3A4C")).
		Padding(0, 1)

	KeyHint = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Background(lipgloss.Color("#1E3A4C")).
		Padding(0, 1)

	HelpOverlayKey = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Padding(0, 1)

	GrewStyle   = lipgloss.NewStyle().Foreground(ColorGrew)
	ShrunkStyle = lipgloss.NewStyle().Foreground(ColorShrunk)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorDanger).
			Padding(0, 1)
)

// BandColor returns the terminal color for a percentile band
func BandColor(b bands.Band) lipgloss.Color {
	return lipgloss.Color(b.Color())
}
