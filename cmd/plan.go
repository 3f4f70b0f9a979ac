package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/input"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
	"github.com/gzn7264/ai-travel-planner/internal/store"
	"github.com/gzn7264/ai-travel-planner/internal/tui/planform"
)

// entityJSON is the --json shape of every entity.
type entityJSON struct {
	models.SyncMeta
	Data any `json:"data"`
}

var planCmd = &cobra.Command{
	Use:     "plan",
	Aliases: []string{"plans", "trip"},
	Short:   "Create and manage travel plans",
	GroupID: "core",
}

var planCreateCmd = &cobra.Command{
	Use:     "create [title]",
	Aliases: []string{"new", "add"},
	Short:   "Create a new travel plan",
	Long: `Create a travel plan. It is saved locally right away and synced to
your account in the background.

Itinerary days are given as "N: activity; activity", one --day per day, or
read from a file with --day @itinerary.txt.`,
	Example: `  tp plan create "Two weeks in Japan" -d Tokyo --start 2026-04-01 --end 2026-04-14 --budget 3200
  tp plan create -i`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}

		var p models.Plan
		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			fs := planform.NewFormState()
			if len(args) > 0 {
				fs.Title = args[0]
			}
			if err := fs.Run(); err != nil {
				return err
			}
			if p, err = fs.ToPlan(); err != nil {
				output.Error("%v", err)
				return err
			}
		} else {
			if len(args) > 0 {
				p.Title = args[0]
			}
			if err := applyPlanFlags(cmd, &p); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		created, err := e.Plans().Create(cmd.Context(), p)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(entityJSON{created.SyncMeta, created.Data})
		}
		fmt.Printf("CREATED %s %s\n", output.ShortID(created.LocalID), created.Data.Title)
		return nil
	},
}

var planListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List travel plans",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		plans, err := e.Plans().List()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		query, _ := cmd.Flags().GetString("search")
		plans = searchPlans(query, plans)

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			out := make([]entityJSON, 0, len(plans))
			for _, p := range plans {
				out = append(out, entityJSON{p.SyncMeta, p.Data})
			}
			return output.JSON(out)
		}

		if len(plans) == 0 {
			if query != "" {
				fmt.Printf("No plans match %q.\n", query)
				return nil
			}
			fmt.Println("No plans yet. Create one with 'tp plan create'.")
			return nil
		}
		width := output.TerminalWidth(80) - 40
		unsynced := 0
		for _, p := range plans {
			if !p.Synced {
				unsynced++
			}
			fmt.Println(output.FormatPlanShort(p.SyncMeta, p.Data, width))
		}
		if unsynced > 0 {
			fmt.Println(output.SectionHeader("sync") + fmt.Sprintf("%d of %d plans not yet saved to cloud", unsynced, len(plans)))
		}
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:     "show <id>",
	Aliases: []string{"view"},
	Short:   "Show a plan with its budget, spending and itinerary",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		id, err := resolvePlanID(e, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if pull, _ := cmd.Flags().GetBool("pull"); pull {
			_, _, err := e.LoadAndMerge(cmd.Context(), models.PlansRef(), id)
			if errors.Is(err, store.ErrNotFound) {
				output.Warning("%v", err)
				return nil
			}
			if err != nil {
				output.Error("%v", err)
				return err
			}
		}

		p, err := e.Plans().Get(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		spending, err := e.Spending(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(map[string]any{
				"plan":     entityJSON{p.SyncMeta, p.Data},
				"spending": spending,
			})
		}

		fmt.Print(output.FormatPlanLong(p.SyncMeta, p.Data))
		fmt.Print(output.SectionHeader("spending"))
		fmt.Print(formatSpending(spending, ""))

		if md := output.ItineraryMarkdown(p.Data); md != "" {
			rendered, err := output.RenderMarkdown(md)
			if err != nil {
				rendered = md
			}
			fmt.Print(rendered)
		}
		return nil
	},
}

var planUpdateCmd = &cobra.Command{
	Use:     "update <id>",
	Aliases: []string{"edit"},
	Short:   "Update a travel plan",
	Long:    `Update the fields given as flags. Unset flags keep their current values.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		id, err := resolvePlanID(e, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		var edit func(*models.Plan) error
		if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
			cur, err := e.Plans().Get(id)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			fs := planform.NewFormStateForEdit(output.ShortID(id), cur.Data)
			if err := fs.Run(); err != nil {
				return err
			}
			next, err := fs.ToPlan()
			if err != nil {
				output.Error("%v", err)
				return err
			}
			edit = func(p *models.Plan) error { *p = next; return nil }
		} else {
			if !anyChanged(cmd, planFlagNames...) {
				output.Error("nothing to update; pass at least one field flag")
				return errors.New("nothing to update")
			}
			edit = func(p *models.Plan) error { return applyPlanFlags(cmd, p) }
		}

		updated, err := editPlan(cmd.Context(), e.Plans(), id, edit)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Printf("UPDATED %s %s\n", output.ShortID(updated.LocalID), updated.Data.Title)
		return nil
	},
}

var planDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a plan with its budget and expenses",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		id, err := resolvePlanID(e, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.Plans().Delete(cmd.Context(), id); err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Printf("DELETED %s\n", output.ShortID(id))
		return nil
	},
}

var planPullCmd = &cobra.Command{
	Use:   "pull [id]",
	Short: "Fetch plans from your account and merge them locally",
	Long: `Without an id, merges every plan and then each plan's budget and
expenses. With an id, refreshes that one plan.

Local changes not yet synced always win; otherwise the most recently
updated version is kept.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if len(args) == 1 {
			id, err := resolvePlanID(e, args[0])
			if err != nil {
				output.Error("%v", err)
				return err
			}
			_, d, err := e.LoadAndMerge(ctx, models.PlansRef(), id)
			if errors.Is(err, store.ErrNotFound) {
				output.Warning("%v", err)
				return nil
			}
			if err != nil {
				output.Error("%v", err)
				return err
			}
			fmt.Printf("%s: kept %s version (%s)\n", output.ShortID(id), d.Outcome, d.Reason)
			return nil
		}

		res, err := e.ReconcilePlans(ctx)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		plans, err := e.Plans().List()
		if err != nil {
			return err
		}
		for _, p := range plans {
			r, err := e.ReconcileChildren(ctx, p.LocalID)
			if err != nil {
				output.Warning("%s: %v", output.ShortID(p.LocalID), err)
				continue
			}
			res.Adopted += r.Adopted
			res.Replaced += r.Replaced
			res.Linked += r.Linked
			res.Dropped += r.Dropped
			res.Kept += r.Kept
		}
		output.Success("Pulled: %d new, %d updated, %d removed, %d kept local", res.Adopted, res.Replaced, res.Dropped, res.Kept)
		return nil
	},
}

var planFlagNames = []string{"title", "destination", "start", "end", "budget", "travelers", "pref", "day", "ai"}

func addPlanFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringP("destination", "d", "", "Destination")
	fs.String("start", "", "Start date (YYYY-MM-DD, today, +7d, fri)")
	fs.String("end", "", "End date (YYYY-MM-DD, +14d, ...)")
	amountFlag(fs, "budget", "Overall budget")
	fs.Int("travelers", 0, "Number of travelers")
	fs.StringArray("pref", nil, "Preference, comma-separated or repeated (@file, - for stdin)")
	fs.StringArray("day", nil, `Itinerary day as "N: activity; activity" (@file, - for stdin)`)
	fs.Bool("ai", false, "Mark the plan as AI-generated")
	fs.BoolP("interactive", "i", false, "Edit in an interactive form")
}

// applyPlanFlags copies every changed plan flag onto p.
func applyPlanFlags(cmd *cobra.Command, p *models.Plan) error {
	fs := cmd.Flags()
	if fs.Changed("title") {
		p.Title, _ = fs.GetString("title")
	}
	if fs.Changed("destination") {
		p.Destination, _ = fs.GetString("destination")
	}
	if fs.Changed("start") {
		d, err := getDate(fs, "start")
		if err != nil {
			return err
		}
		p.StartDate = d
	}
	if fs.Changed("end") {
		d, err := getDate(fs, "end")
		if err != nil {
			return err
		}
		p.EndDate = d
	}
	if d, ok := getAmount(fs, "budget"); ok {
		p.Budget = d
	}
	if fs.Changed("travelers") {
		p.Travelers, _ = fs.GetInt("travelers")
	}
	if fs.Changed("ai") {
		p.GeneratedByAI, _ = fs.GetBool("ai")
	}

	stdinUsed := false
	if fs.Changed("pref") {
		raw, _ := fs.GetStringArray("pref")
		var values []string
		values, stdinUsed = input.ExpandFlagValues(raw, stdinUsed)
		p.Preferences = nil
		for _, v := range values {
			p.Preferences = append(p.Preferences, input.SplitList(v)...)
		}
	}
	if fs.Changed("day") {
		raw, _ := fs.GetStringArray("day")
		lines, _ := input.ExpandFlagValues(raw, stdinUsed)
		days, err := input.ParseItinerary(lines)
		if err != nil {
			return err
		}
		p.Itinerary = days
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Destination = strings.TrimSpace(p.Destination)
	return nil
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if f := cmd.Flags().Lookup(n); f != nil && f.Changed {
			return true
		}
	}
	return false
}

// editPlan applies edit to a plan, surfacing an edit error instead of
// storing a half-applied plan.
func editPlan(ctx context.Context, plans *repo.Plans, id string, edit func(*models.Plan) error) (repo.Entity[models.Plan], error) {
	cur, err := plans.Get(id)
	if err != nil {
		return repo.Entity[models.Plan]{}, err
	}
	next := cur.Data
	if err := edit(&next); err != nil {
		return repo.Entity[models.Plan]{}, err
	}
	return plans.Edit(ctx, id, func(p *models.Plan) { *p = next })
}

func resolvePlanID(e *engine.Engine, arg string) (string, error) {
	plans, err := e.Plans().List()
	if err != nil {
		return "", err
	}
	id, err := resolveID(metasOf(plans), arg)
	if err != nil {
		return "", fmt.Errorf("plan %w", err)
	}
	return id, nil
}

func init() {
	planCreateCmd.Flags().String("title", "", "Title (or pass as argument)")
	addPlanFlags(planCreateCmd)
	planCreateCmd.Flags().Bool("json", false, "Output the created plan as JSON")

	planUpdateCmd.Flags().String("title", "", "Title")
	addPlanFlags(planUpdateCmd)

	planListCmd.Flags().Bool("json", false, "Output as JSON")
	planListCmd.Flags().StringP("search", "s", "", "Fuzzy-match title, destination or id")
	planShowCmd.Flags().Bool("json", false, "Output as JSON")
	planShowCmd.Flags().Bool("pull", false, "Refresh the plan from your account first")

	planCmd.AddCommand(planCreateCmd, planListCmd, planShowCmd, planUpdateCmd, planDeleteCmd, planPullCmd)
	rootCmd.AddCommand(planCmd)
}

// planSearchSource matches across id, title and destination at once.
type planSearchSource []repo.Entity[models.Plan]

func (s planSearchSource) String(i int) string {
	return s[i].LocalID + " " + s[i].Data.Title + " " + s[i].Data.Destination
}

func (s planSearchSource) Len() int { return len(s) }

// searchPlans keeps the plans matching query, best match first.
func searchPlans(query string, plans []repo.Entity[models.Plan]) []repo.Entity[models.Plan] {
	query = strings.TrimSpace(query)
	if query == "" {
		return plans
	}
	matches := fuzzy.FindFrom(query, planSearchSource(plans))
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	out := make([]repo.Entity[models.Plan], len(matches))
	for i, m := range matches {
		out[i] = plans[m.Index]
	}
	return out
}
