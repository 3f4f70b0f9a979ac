package planform

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gzn7264/ai-travel-planner/internal/models"
)

func TestNewFormState(t *testing.T) {
	fs := NewFormState()
	if fs.Mode != FormModeCreate {
		t.Errorf("mode = %s", fs.Mode)
	}
	if fs.Form == nil {
		t.Fatal("form not built")
	}
	if fs.Travelers != "1" {
		t.Errorf("travelers default = %q", fs.Travelers)
	}
}

func TestEditRoundTrip(t *testing.T) {
	p := models.Plan{
		Title:         "Japan",
		Destination:   "Tokyo",
		StartDate:     "2026-04-01",
		EndDate:       "2026-04-14",
		Budget:        decimal.RequireFromString("3200.50"),
		Travelers:     2,
		Preferences:   []string{"food", "temples"},
		Itinerary:     []models.ItineraryDay{{Day: 1, Activities: []string{"Senso-ji", "Ueno park"}}},
		GeneratedByAI: true,
	}

	fs := NewFormStateForEdit("plan-1", p)
	if fs.Mode != FormModeEdit || fs.PlanID != "plan-1" {
		t.Errorf("unexpected edit state %+v", fs)
	}

	got, err := fs.ToPlan()
	if err != nil {
		t.Fatalf("ToPlan: %v", err)
	}
	if got.Title != p.Title || got.Destination != p.Destination || got.Travelers != 2 {
		t.Errorf("plan = %+v", got)
	}
	if !got.Budget.Equal(p.Budget) {
		t.Errorf("budget = %s", got.Budget)
	}
	if len(got.Preferences) != 2 || got.Preferences[1] != "temples" {
		t.Errorf("preferences = %v", got.Preferences)
	}
	if len(got.Itinerary) != 1 || len(got.Itinerary[0].Activities) != 2 {
		t.Errorf("itinerary = %+v", got.Itinerary)
	}
	if !got.GeneratedByAI {
		t.Error("generated_by_ai lost in edit")
	}
}

func TestToPlanTrimsAndRejectsBadNumbers(t *testing.T) {
	fs := NewFormState()
	fs.Title = "  Oslo  "
	fs.Destination = " Oslo "
	fs.Budget = ""
	got, err := fs.ToPlan()
	if err != nil {
		t.Fatalf("ToPlan: %v", err)
	}
	if got.Title != "Oslo" || got.Destination != "Oslo" || !got.Budget.IsZero() {
		t.Errorf("plan = %+v", got)
	}

	fs.Budget = "lots"
	if _, err := fs.ToPlan(); err == nil {
		t.Error("expected budget error")
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) error
		in   string
		ok   bool
	}{
		{"empty date", validDate, "", true},
		{"date", validDate, "2026-05-01", true},
		{"bad date", validDate, "May 1", false},
		{"amount", validAmount, "12.50", true},
		{"negative amount", validAmount, "-1", false},
		{"count", validCount, "3", true},
		{"bad count", validCount, "three", false},
		{"title", required(errTitleRequired), "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.in)
			if (err == nil) != tt.ok {
				t.Errorf("%q: err = %v", tt.in, err)
			}
		})
	}
}
