// Package input reads list-valued flags from stdin and files (@file syntax)
// and parses the itinerary and preference formats the plan commands accept.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/output"
)

// ExpandFlagValues expands flag values that use - (stdin) or @file syntax.
// Returns the expanded values and whether stdin was consumed.
func ExpandFlagValues(values []string, stdinUsed bool) ([]string, bool) {
	return expand(values, stdinUsed, os.Stdin)
}

func expand(values []string, stdinUsed bool, stdin io.Reader) ([]string, bool) {
	var result []string
	for _, v := range values {
		switch {
		case v == "-":
			if stdinUsed {
				output.Warning("stdin already used, ignoring additional - flag")
				continue
			}
			stdinUsed = true
			result = append(result, ReadLinesFromReader(stdin)...)
		case strings.HasPrefix(v, "@"):
			path := strings.TrimPrefix(v, "@")
			file, err := os.Open(path)
			if err != nil {
				output.Warning("failed to read %s: %v", path, err)
				continue
			}
			result = append(result, ReadLinesFromReader(file)...)
			file.Close()
		default:
			result = append(result, v)
		}
	}
	return result, stdinUsed
}

// ReadLinesFromReader reads non-empty lines from a reader.
func ReadLinesFromReader(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// SplitList parses a comma-separated value into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseItinerary parses lines of the form "N: activity; activity" into
// itinerary days. Lines naming the same day are merged, and days come back
// in ascending order.
func ParseItinerary(lines []string) ([]models.ItineraryDay, error) {
	byDay := make(map[int]*models.ItineraryDay)
	var order []int
	for _, line := range lines {
		num, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("itinerary line %q: expected \"day: activity; activity\"", line)
		}
		day, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(num)), "day")))
		if err != nil || day < 1 {
			return nil, fmt.Errorf("itinerary line %q: invalid day %q", line, strings.TrimSpace(num))
		}
		d, seen := byDay[day]
		if !seen {
			d = &models.ItineraryDay{Day: day}
			byDay[day] = d
			order = append(order, day)
		}
		for _, a := range strings.Split(rest, ";") {
			if a = strings.TrimSpace(a); a != "" {
				d.Activities = append(d.Activities, a)
			}
		}
	}

	slices.Sort(order)
	days := make([]models.ItineraryDay, 0, len(order))
	for _, n := range order {
		days = append(days, *byDay[n])
	}
	return days, nil
}

// FormatItinerary is the inverse of ParseItinerary.
func FormatItinerary(days []models.ItineraryDay) []string {
	lines := make([]string, 0, len(days))
	for _, d := range days {
		lines = append(lines, fmt.Sprintf("%d: %s", d.Day, strings.Join(d.Activities, "; ")))
	}
	return lines
}
