package models

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRefKey(t *testing.T) {
	tests := []struct {
		ref  Ref
		want string
	}{
		{PlansRef(), "plans"},
		{BudgetsRef("p1"), "budgets/p1"},
		{ExpensesRef("p1"), "expenses/p1"},
	}
	for _, tt := range tests {
		if got := tt.ref.Key(); got != tt.want {
			t.Errorf("Key(%+v) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestCollectionNested(t *testing.T) {
	if CollectionPlans.Nested() {
		t.Error("plans should not be nested")
	}
	if !CollectionBudgets.Nested() || !CollectionExpenses.Nested() {
		t.Error("budgets and expenses should be nested")
	}
	if IsValidCollection("trips") {
		t.Error("unknown collection reported valid")
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name      string
		plan      Plan
		wantField string
	}{
		{"valid", Plan{Title: "Japan", Destination: "Tokyo", StartDate: "2024-01-01", EndDate: "2024-01-05"}, ""},
		{"missing title", Plan{Destination: "Tokyo"}, "title"},
		{"missing destination", Plan{Title: "Japan"}, "destination"},
		{"bad date", Plan{Title: "Japan", Destination: "Tokyo", StartDate: "01/01/2024"}, "start_date"},
		{"end before start", Plan{Title: "Japan", Destination: "Tokyo", StartDate: "2024-01-05", EndDate: "2024-01-01"}, "end_date"},
		{"negative budget", Plan{Title: "Japan", Destination: "Tokyo", Budget: decimal.NewFromInt(-1)}, "budget"},
		{"bad itinerary day", Plan{Title: "Japan", Destination: "Tokyo", Itinerary: []ItineraryDay{{Day: 0}}}, "itinerary[0].day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(CollectionPlans, tt.plan)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
			}
			if _, ok := ve.Fields[tt.wantField]; !ok {
				t.Fatalf("expected field %q in %v", tt.wantField, ve.Fields)
			}
		})
	}
}

func TestValidateExpenseAmount(t *testing.T) {
	err := Validate(CollectionExpenses, Expense{Category: "food", Amount: decimal.Zero})
	if !IsValidationError(err) {
		t.Fatalf("zero amount should fail validation, got %v", err)
	}
	if err := Validate(CollectionExpenses, Expense{Category: "food", Amount: decimal.RequireFromString("12.50")}); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	for _, raw := range []string{``, `{`, `{"title":"a","destination":"b","bogus":1}`} {
		if _, err := Decode[Plan](CollectionPlans, json.RawMessage(raw)); !IsValidationError(err) {
			t.Errorf("Decode(%q): expected validation error, got %v", raw, err)
		}
	}
}

func TestMergePatch(t *testing.T) {
	base := json.RawMessage(`{"title":"Japan","destination":"Tokyo","travelers":2}`)
	patch := json.RawMessage(`{"title":"Japan 2025","travelers":null}`)

	merged, err := MergePatch(base, patch)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(merged, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["title"] != "Japan 2025" {
		t.Errorf("title = %v", fields["title"])
	}
	if fields["destination"] != "Tokyo" {
		t.Errorf("destination = %v", fields["destination"])
	}
	if _, ok := fields["travelers"]; ok {
		t.Error("null patch value should remove the key")
	}
}

func TestBudgetMath(t *testing.T) {
	b := Budget{
		Total:         decimal.NewFromInt(10000),
		Accommodation: decimal.NewFromInt(3000),
		Food:          decimal.NewFromInt(2000),
	}
	if !b.Allocated().Equal(decimal.NewFromInt(5000)) {
		t.Errorf("allocated = %s", b.Allocated())
	}
	spent := TotalExpenses([]Expense{
		{Amount: decimal.NewFromInt(1500)},
		{Amount: decimal.RequireFromString("300.25")},
	})
	if !b.Remaining(spent).Equal(decimal.RequireFromString("8199.75")) {
		t.Errorf("remaining = %s", b.Remaining(spent))
	}
}

func TestNewLocalIDOrdered(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		id, err := NewLocalID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if !IsLocalID(id) {
			t.Fatalf("not a local id: %q", id)
		}
		ids[i] = id
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("local ids should sort in creation order")
	}
}
