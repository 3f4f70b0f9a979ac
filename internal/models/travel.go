package models

import (
	"github.com/shopspring/decimal"
)

// Plan is a travel plan.
type Plan struct {
	Title         string          `json:"title" validate:"required,max=200"`
	Destination   string          `json:"destination" validate:"required,max=200"`
	StartDate     string          `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       string          `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Budget        decimal.Decimal `json:"budget" validate:"gte=0"`
	Travelers     int             `json:"travelers,omitempty" validate:"gte=0,lte=100"`
	Preferences   []string        `json:"preferences,omitempty" validate:"dive,required"`
	Itinerary     []ItineraryDay  `json:"itinerary,omitempty" validate:"dive"`
	GeneratedByAI bool            `json:"generated_by_ai,omitempty"`
}

// ItineraryDay lists the activities planned for one day of a trip.
type ItineraryDay struct {
	Day        int      `json:"day" validate:"gte=1"`
	Activities []string `json:"activities" validate:"dive,required"`
}

// Budget is the spending plan of a trip, split by category.
type Budget struct {
	Total          decimal.Decimal `json:"total" validate:"gte=0"`
	Accommodation  decimal.Decimal `json:"accommodation" validate:"gte=0"`
	Transportation decimal.Decimal `json:"transportation" validate:"gte=0"`
	Food           decimal.Decimal `json:"food" validate:"gte=0"`
	Activities     decimal.Decimal `json:"activities" validate:"gte=0"`
	Other          decimal.Decimal `json:"other" validate:"gte=0"`
	Currency       string          `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// Allocated returns the sum of the per-category amounts.
func (b Budget) Allocated() decimal.Decimal {
	return decimal.Sum(b.Accommodation, b.Transportation, b.Food, b.Activities, b.Other)
}

// Remaining returns the budget total minus what has been spent.
func (b Budget) Remaining(spent decimal.Decimal) decimal.Decimal {
	return b.Total.Sub(spent)
}

// Expense is one spending line item of a trip.
type Expense struct {
	Category    string          `json:"category" validate:"required,max=50"`
	Description string          `json:"description,omitempty" validate:"max=500"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// TotalExpenses sums the amounts of the given expenses.
func TotalExpenses(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
