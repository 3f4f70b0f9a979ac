package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

// minMarkdownWidth keeps glamour from wrapping every word onto its own line.
const minMarkdownWidth = 20

// TerminalWidth returns the width of stdout, then $COLUMNS, then fallback.
func TerminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		return w
	}
	if fallback <= 0 {
		return 80
	}
	return fallback
}

// RenderMarkdown renders markdown wrapped to the terminal.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(80))
}

// RenderMarkdownWithWidth renders markdown wrapped at width columns. Blank
// input renders as nothing.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width, minMarkdownWidth)),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// ItineraryMarkdown renders a plan's itinerary as markdown, one section per
// day. Days are dated when the plan has a valid start date.
func ItineraryMarkdown(p models.Plan) string {
	if len(p.Itinerary) == 0 {
		return ""
	}
	start, err := time.Parse("2006-01-02", p.StartDate)
	dated := err == nil

	var sb strings.Builder
	sb.WriteString("## Itinerary\n")
	for _, day := range p.Itinerary {
		fmt.Fprintf(&sb, "\n### Day %d", day.Day)
		if dated {
			fmt.Fprintf(&sb, " (%s)", start.AddDate(0, 0, day.Day-1).Format("Mon Jan 2"))
		}
		sb.WriteString("\n\n")
		for _, a := range day.Activities {
			sb.WriteString("- " + a + "\n")
		}
	}
	return sb.String()
}
