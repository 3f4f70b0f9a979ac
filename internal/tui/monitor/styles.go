package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/gzn7264/ai-travel-planner/internal/queue"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)
	syncingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	kindStyles = map[queue.Kind]lipgloss.Style{
		queue.KindCreate: lipgloss.NewStyle().Foreground(successColor),
		queue.KindUpdate: lipgloss.NewStyle().Foreground(warningColor),
		queue.KindDelete: lipgloss.NewStyle().Foreground(errorColor),
	}
)

// formatKind renders a change kind as a fixed-width colored badge
func formatKind(k queue.Kind) string {
	label := map[queue.Kind]string{
		queue.KindCreate: "[NEW]",
		queue.KindUpdate: "[UPD]",
		queue.KindDelete: "[DEL]",
	}[k]
	style, ok := kindStyles[k]
	if !ok || label == "" {
		return subtleStyle.Render("[???]")
	}
	return style.Render(label)
}
