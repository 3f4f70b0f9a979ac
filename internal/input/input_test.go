package input

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

func TestExpandFlagValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.txt")
	if err := os.WriteFile(path, []byte("food\n\n  museums  \n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, used := expand([]string{"hiking", "@" + path, "-", "-"}, false, strings.NewReader("trains\n"))
	want := []string{"hiking", "food", "museums", "trains"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expand = %v, want %v", got, want)
	}
	if !used {
		t.Error("stdin should be marked used")
	}
}

func TestExpandMissingFileIsSkipped(t *testing.T) {
	got, _ := expand([]string{"@/nonexistent/prefs.txt", "beach"}, false, strings.NewReader(""))
	if !reflect.DeepEqual(got, []string{"beach"}) {
		t.Errorf("expand = %v", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{" , ,", nil},
		{"food", []string{"food"}},
		{"food, temples ,onsen", []string{"food", "temples", "onsen"}},
	}
	for _, tt := range tests {
		if got := SplitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseItinerary(t *testing.T) {
	days, err := ParseItinerary([]string{
		"2: Tsukiji; teamLab",
		"Day 1: Senso-ji; Ueno park",
		"2: Shibuya crossing",
	})
	if err != nil {
		t.Fatalf("ParseItinerary: %v", err)
	}
	want := []models.ItineraryDay{
		{Day: 1, Activities: []string{"Senso-ji", "Ueno park"}},
		{Day: 2, Activities: []string{"Tsukiji", "teamLab", "Shibuya crossing"}},
	}
	if !reflect.DeepEqual(days, want) {
		t.Errorf("days = %+v", days)
	}

	if got := FormatItinerary(days); got[0] != "1: Senso-ji; Ueno park" {
		t.Errorf("FormatItinerary = %q", got)
	}
}

func TestParseItineraryErrors(t *testing.T) {
	for _, line := range []string{"no separator", "zero: museum", "0: museum", "-1: museum"} {
		if _, err := ParseItinerary([]string{line}); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}
