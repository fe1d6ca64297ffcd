package viewer

import "github.com/charmbracelet/lipgloss"

var (
	accentFg  = lipgloss.Color("#7C3AED")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	markerFg  = lipgloss.Color("#EF4444")

	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(baseDimFg)
	markerStyle = lipgloss.NewStyle().Foreground(markerFg)

	// bucketStyles follow the raster renderer's bucket colors
	bucketStyles = []lipgloss.Style{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#4285F4")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FBBC05")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#EA4335")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#E91E63")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#9C27B0")),
	}
)

func bucketStyle(index int) lipgloss.Style {
	i := min(max(index, 1), len(bucketStyles)) - 1
	return bucketStyles[i]
}
