// Package planform is the interactive plan editor used by
// `tp plan create -i` and `tp plan update -i`.
package planform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/gzn7264/ai-travel-planner/internal/input"
	"github.com/gzn7264/ai-travel-planner/internal/models"
)

var (
	errTitleRequired       = errors.New("title is required")
	errDestinationRequired = errors.New("destination is required")
)

// FormMode represents the mode of the form
type FormMode string

const (
	FormModeCreate FormMode = "create"
	FormModeEdit   FormMode = "edit"
)

// FormState holds the values bound to the plan form. Numeric fields are
// kept as strings while editing and parsed by ToPlan.
type FormState struct {
	Mode   FormMode
	Form   *huh.Form
	PlanID string // edit mode only

	Title       string
	Destination string
	StartDate   string
	EndDate     string
	Budget      string
	Travelers   string
	Preferences string // comma-separated
	Itinerary   string // one "day: activity; activity" line per day

	// Unbound fields carried through an edit unchanged.
	generatedByAI bool
}

// NewFormState creates a form state for a new plan.
func NewFormState() *FormState {
	fs := &FormState{Mode: FormModeCreate, Travelers: "1"}
	fs.buildForm()
	return fs
}

// NewFormStateForEdit creates a form state populated with an existing plan.
func NewFormStateForEdit(planID string, p models.Plan) *FormState {
	fs := &FormState{
		Mode:          FormModeEdit,
		PlanID:        planID,
		Title:         p.Title,
		Destination:   p.Destination,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Preferences:   strings.Join(p.Preferences, ", "),
		Itinerary:     strings.Join(input.FormatItinerary(p.Itinerary), "\n"),
		generatedByAI: p.GeneratedByAI,
	}
	if !p.Budget.IsZero() {
		fs.Budget = p.Budget.String()
	}
	if p.Travelers > 0 {
		fs.Travelers = strconv.Itoa(p.Travelers)
	}
	fs.buildForm()
	return fs
}

func required(err error) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return err
		}
		return nil
	}
}

func validDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err != nil {
		return errors.New("use YYYY-MM-DD")
	}
	return nil
}

func validAmount(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return errors.New("enter a non-negative amount")
	}
	return nil
}

func validCount(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n < 0 {
		return errors.New("enter a whole number")
	}
	return nil
}

// buildForm constructs the huh.Form based on current state
func (fs *FormState) buildForm() {
	titleStr := "New Plan"
	if fs.Mode == FormModeEdit {
		titleStr = "Edit Plan: " + fs.PlanID
	}

	trip := huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Value(&fs.Title).
			Placeholder("Two weeks in Japan").
			Validate(required(errTitleRequired)),
		huh.NewInput().
			Title("Destination").
			Value(&fs.Destination).
			Placeholder("Tokyo").
			Validate(required(errDestinationRequired)),
		huh.NewInput().
			Title("Start date").
			Value(&fs.StartDate).
			Placeholder("YYYY-MM-DD").
			Validate(validDate),
		huh.NewInput().
			Title("End date").
			Value(&fs.EndDate).
			Placeholder("YYYY-MM-DD").
			Validate(validDate),
	).Title(titleStr)

	details := huh.NewGroup(
		huh.NewInput().
			Title("Budget").
			Value(&fs.Budget).
			Placeholder("0.00").
			Validate(validAmount),
		huh.NewInput().
			Title("Travelers").
			Value(&fs.Travelers).
			Validate(validCount),
		huh.NewInput().
			Title("Preferences").
			Value(&fs.Preferences).
			Placeholder("food, museums, hiking"),
		huh.NewText().
			Title("Itinerary").
			Description("One line per day, e.g. 1: Senso-ji; Ueno park").
			Value(&fs.Itinerary).
			Validate(func(s string) error {
				_, err := input.ParseItinerary(input.ReadLinesFromReader(strings.NewReader(s)))
				return err
			}).
			Lines(5),
	).Title("Details")

	fs.Form = huh.NewForm(trip, details).WithTheme(huh.ThemeDracula())
}

// Run shows the form on the terminal and blocks until it is submitted.
func (fs *FormState) Run() error {
	return fs.Form.Run()
}

// ToPlan converts form values to a Plan.
func (fs *FormState) ToPlan() (models.Plan, error) {
	p := models.Plan{
		Title:         strings.TrimSpace(fs.Title),
		Destination:   strings.TrimSpace(fs.Destination),
		StartDate:     strings.TrimSpace(fs.StartDate),
		EndDate:       strings.TrimSpace(fs.EndDate),
		Preferences:   input.SplitList(fs.Preferences),
		GeneratedByAI: fs.generatedByAI,
	}
	if s := strings.TrimSpace(fs.Budget); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Plan{}, fmt.Errorf("budget: %w", err)
		}
		p.Budget = d
	}
	if s := strings.TrimSpace(fs.Travelers); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return models.Plan{}, fmt.Errorf("travelers: %w", err)
		}
		p.Travelers = n
	}
	days, err := input.ParseItinerary(input.ReadLinesFromReader(strings.NewReader(fs.Itinerary)))
	if err != nil {
		return models.Plan{}, err
	}
	if len(days) > 0 {
		p.Itinerary = days
	}
	return p, nil
}
