// Package output provides styled terminal output helpers (success, error,
// warning, entity and sync status formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/shopspring/decimal"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	moneyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	statusStyles = map[tpsync.Status]lipgloss.Style{
		tpsync.StatusIdle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		tpsync.StatusSyncing: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		tpsync.StatusSynced:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		tpsync.StatusPartial: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		tpsync.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeStoreError   = "store_error"
	ErrCodeNotLoggedIn  = "not_logged_in"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// SyncMark returns a marker for an entity's sync state: a dot while a
// change is waiting for the remote store.
func SyncMark(meta models.SyncMeta) string {
	if meta.Synced {
		return successStyle.Render("✓")
	}
	return warningStyle.Render("●")
}

// FormatStatus formats a sync status with color
func FormatStatus(s tpsync.Status) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatMoney renders an amount with two decimals and an optional currency.
func FormatMoney(d decimal.Decimal, currency string) string {
	s := d.StringFixed(2)
	if currency != "" {
		s += " " + currency
	}
	return moneyStyle.Render(s)
}

// FormatDates renders a trip's date range, or nothing if unset.
func FormatDates(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case end == "" || end == start:
		return start
	case start == "":
		return "until " + end
	}
	return start + " → " + end
}

// Truncate shortens s to width display cells.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// FormatPlanShort formats a plan on one line.
func FormatPlanShort(meta models.SyncMeta, p models.Plan, width int) string {
	parts := []string{
		SyncMark(meta),
		titleStyle.Render(ShortID(meta.LocalID)),
		Truncate(p.Title, width),
		subtleStyle.Render(p.Destination),
	}
	if d := FormatDates(p.StartDate, p.EndDate); d != "" {
		parts = append(parts, subtleStyle.Render(d))
	}
	if p.GeneratedByAI {
		parts = append(parts, subtleStyle.Render("ai"))
	}
	return strings.Join(parts, "  ")
}

// FormatPlanLong formats a plan with its metadata and itinerary.
func FormatPlanLong(meta models.SyncMeta, p models.Plan) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", meta.LocalID, p.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Destination: %s\n", p.Destination))
	if d := FormatDates(p.StartDate, p.EndDate); d != "" {
		sb.WriteString(fmt.Sprintf("Dates: %s\n", d))
	}
	sb.WriteString(fmt.Sprintf("Budget: %s", FormatMoney(p.Budget, "")))
	if p.Travelers > 0 {
		sb.WriteString(fmt.Sprintf(" | Travelers: %d", p.Travelers))
	}
	sb.WriteString("\n")
	if len(p.Preferences) > 0 {
		sb.WriteString(fmt.Sprintf("Preferences: %s\n", strings.Join(p.Preferences, ", ")))
	}
	sb.WriteString(FormatSyncMeta(meta))
	return sb.String()
}

// FormatSyncMeta renders the sync metadata block shown by show commands.
func FormatSyncMeta(meta models.SyncMeta) string {
	var sb strings.Builder
	if meta.ServerID != "" {
		sb.WriteString(subtleStyle.Render(fmt.Sprintf("Server ID: %s\n", meta.ServerID)))
	}
	state := "synced"
	if !meta.Synced {
		state = "not yet saved to cloud"
	}
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("Sync: %s, updated %s\n", state, FormatTimeAgo(meta.UpdatedAt))))
	return sb.String()
}

// FormatExpenseShort formats an expense on one line.
func FormatExpenseShort(meta models.SyncMeta, x models.Expense, currency string) string {
	parts := []string{
		SyncMark(meta),
		titleStyle.Render(ShortID(meta.LocalID)),
		fmt.Sprintf("%-14s", x.Category),
		FormatMoney(x.Amount, currency),
	}
	if x.Date != "" {
		parts = append(parts, subtleStyle.Render(x.Date))
	}
	if x.Description != "" {
		parts = append(parts, Truncate(x.Description, 40))
	}
	return strings.Join(parts, "  ")
}

// FormatBudget renders a budget with its per-category split.
func FormatBudget(b models.Budget) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total: %s\n", FormatMoney(b.Total, b.Currency)))
	rows := []struct {
		name string
		v    decimal.Decimal
	}{
		{"accommodation", b.Accommodation},
		{"transportation", b.Transportation},
		{"food", b.Food},
		{"activities", b.Activities},
		{"other", b.Other},
	}
	for _, r := range rows {
		if r.v.IsZero() {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-15s %s\n", r.name, FormatMoney(r.v, b.Currency)))
	}
	return sb.String()
}

// FormatSyncState renders the state reported by sync status.
func FormatSyncState(st tpsync.State) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", FormatStatus(st.Status)))
	online := successStyle.Render("online")
	if !st.Online {
		online = warningStyle.Render("offline")
	}
	sb.WriteString(fmt.Sprintf("Remote:   %s\n", online))
	sb.WriteString(fmt.Sprintf("Pending:  %d\n", st.Pending))
	if st.HasSynced() {
		sb.WriteString(fmt.Sprintf("Last:     %s\n", FormatTimeAgo(st.LastSyncedAt)))
	} else {
		sb.WriteString("Last:     never\n")
	}
	if st.LastError != "" {
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error:    %s", st.LastError)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatHistoryEntry formats one push or pull outcome.
func FormatHistoryEntry(h tpsync.HistoryEntry) string {
	arrow := "↑"
	if h.Direction == "pull" {
		arrow = "↓"
	}
	outcome := successStyle.Render(h.Outcome)
	switch h.Outcome {
	case tpsync.OutcomeFailed:
		outcome = errorStyle.Render(h.Outcome)
	case tpsync.OutcomeDropped:
		outcome = subtleStyle.Render(h.Outcome)
	}
	line := fmt.Sprintf("%s  %s %-6s %-8s %-10s %s",
		subtleStyle.Render(h.Timestamp.Local().Format("15:04:05")),
		arrow, h.Action, h.Collection.Singular(), ShortID(h.LocalID), outcome)
	if h.Error != "" {
		line += "  " + subtleStyle.Render(Truncate(h.Error, 60))
	}
	return line
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// ShortID returns the distinguishing tail of a local id. UUIDv7 ids share
// their leading timestamp bits, so the tail is what tells them apart.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

// SectionHeader returns a formatted section header for CLI output
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
