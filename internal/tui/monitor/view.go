package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.Err != nil {
		return m.renderError()
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	available := m.Height - lipgloss.Height(header) - lipgloss.Height(footer)
	queueHeight := available / 2
	historyHeight := available - queueHeight

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.renderQueuePanel(queueHeight),
		m.renderHistoryPanel(historyHeight),
		footer,
	)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder
	s.WriteString("tp sync watch (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Status: %s\n", m.statusLine()))
	s.WriteString(fmt.Sprintf("Pending: %d\n", len(m.Pending)))
	s.WriteString("\nq:quit s:sync r:refresh")
	return s.String()
}

func (m Model) renderError() string {
	return fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.Err)
}

func (m Model) statusLine() string {
	status := output.FormatStatus(m.State.Status)
	if m.State.Status == tpsync.StatusSyncing {
		status = m.spinner.View() + " " + status
	}
	online := "online"
	if !m.State.Online {
		online = "offline"
	}
	return status + "  " + subtleStyle.Render(online)
}

// renderHeader renders the one-line sync summary and the last error
func (m Model) renderHeader() string {
	last := "never"
	if m.State.HasSynced() {
		last = output.FormatTimeAgo(m.State.LastSyncedAt)
	}
	line := fmt.Sprintf(" %s  %s  %s",
		m.statusLine(),
		titleStyle.Render(fmt.Sprintf("%d pending", len(m.Pending))),
		timestampStyle.Render("last sync "+last),
	)
	if m.State.LastError == "" {
		return line
	}
	return line + "\n " + errorStyle.Render(output.Truncate(m.State.LastError, m.Width-2))
}

// renderQueuePanel lists queued changes in the order they will be sent
func (m Model) renderQueuePanel(height int) string {
	var content strings.Builder

	if len(m.Pending) == 0 {
		content.WriteString(subtleStyle.Render("Nothing waiting. Everything is saved to the cloud."))
	} else {
		offset := clampOffset(m.ScrollOffset[PanelQueue], len(m.Pending))
		visible := m.visibleItems(len(m.Pending), offset, height-3)
		for i := offset; i < offset+visible; i++ {
			content.WriteString(m.formatChange(m.Pending[i]))
			content.WriteString("\n")
		}
	}

	return m.wrapPanel(fmt.Sprintf("QUEUE (%d)", len(m.Pending)), content.String(), height, PanelQueue)
}

// renderHistoryPanel lists push and pull outcomes, newest first
func (m Model) renderHistoryPanel(height int) string {
	var content strings.Builder

	if len(m.History) == 0 {
		content.WriteString(subtleStyle.Render("No sync activity yet"))
	} else {
		offset := clampOffset(m.ScrollOffset[PanelHistory], len(m.History))
		visible := m.visibleItems(len(m.History), offset, height-3)
		for i := offset; i < offset+visible; i++ {
			content.WriteString(output.FormatHistoryEntry(m.History[i]))
			content.WriteString("\n")
		}
	}

	return m.wrapPanel("HISTORY", content.String(), height, PanelHistory)
}

func (m Model) renderFooter() string {
	keys := m.help.View(m.keys)
	refresh := timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))

	if m.ShowHelp {
		return lipgloss.JoinVertical(lipgloss.Left, " "+keys, " "+refresh)
	}

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}
	return fmt.Sprintf(" %s%s%s", keys, strings.Repeat(" ", padding), refresh)
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	contentWidth := m.Width - 4 // border and padding
	contentHeight := height - 3 // title and border
	if contentHeight < 1 {
		contentHeight = 1
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = output.Truncate(line, contentWidth)
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left,
		panelTitleStyle.Render(title),
		strings.Join(lines, "\n"),
	)
	return style.Width(m.Width - 2).Render(inner)
}

// formatChange formats one queued change
func (m Model) formatChange(c queue.Change) string {
	target := c.Collection.Singular()
	if c.Parent != "" {
		target += " of " + output.ShortID(c.Parent)
	}
	line := fmt.Sprintf("%s %s %s %s",
		timestampStyle.Render(c.EnqueuedAt.Local().Format("15:04")),
		formatKind(c.Kind),
		titleStyle.Render(output.ShortID(c.LocalID)),
		target,
	)
	switch {
	case c.IsMarker():
		line += " " + subtleStyle.Render("never sent, dropped on next pass")
	case c.Collection.Nested() && c.ParentServerID == "":
		line += " " + subtleStyle.Render("waiting for plan")
	case !c.Ready():
		line += " " + subtleStyle.Render("waiting for create")
	case c.Attempts > 0:
		line += " " + errorStyle.Render(fmt.Sprintf("%d failed: %s", c.Attempts, c.LastError))
	}
	return line
}

// visibleItems calculates how many items can be shown given scroll offset and height
func (m Model) visibleItems(total, offset, height int) int {
	remaining := total - offset
	if remaining > height {
		return height
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

func clampOffset(offset, total int) int {
	if offset >= total {
		offset = total - 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}
