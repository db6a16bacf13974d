package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	colorHealthy = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Yellow/Orange
	colorError   = lipgloss.Color("#EF4444") // Red
	colorDim     = lipgloss.Color("#6B7280") // Gray
)

var statusStyles = map[string]lipgloss.Style{
	"healthy":  lipgloss.NewStyle().Bold(true).Foreground(colorHealthy),
	"degraded": lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
	"error":    lipgloss.NewStyle().Bold(true).Foreground(colorError),
}

var dimStyle = lipgloss.NewStyle().Foreground(colorDim)

// statusWord colors a status for banner lines. Unknown and mixed render
// dim. When stdout is not a terminal lipgloss emits plain text, so
// piped output stays clean.
func statusWord(status string) string {
	word := strings.ToUpper(status)
	if style, ok := statusStyles[status]; ok {
		return style.Render(word)
	}
	return dimStyle.Render(word)
}
