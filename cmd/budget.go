package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
)

var budgetCmd = &cobra.Command{
	Use:     "budget",
	Short:   "Set and show a plan's budget",
	GroupID: "core",
}

var budgetCategories = []string{"accommodation", "transportation", "food", "activities", "other"}

var budgetSetCmd = &cobra.Command{
	Use:   "set <plan>",
	Short: "Set a plan's budget",
	Long: `Create the plan's budget, or change the amounts given as flags on the
existing one.`,
	Example: `  tp budget set 1a2b3c4d --total 3000 --food 600 --currency EUR`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		planID, err := resolvePlanID(e, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if !anyChanged(cmd, append(budgetCategories, "total", "currency")...) {
			output.Error("nothing to set; pass --total or a category amount")
			return errors.New("nothing to set")
		}

		budgets := e.Budgets(planID)
		cur, _, err := repo.Current(budgets)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		b := cur.Data
		applyBudgetFlags(cmd, &b)

		saved, err := repo.SetBudget(cmd.Context(), budgets, b)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Printf("BUDGET %s\n", output.ShortID(planID))
		fmt.Print(output.FormatBudget(saved.Data))
		if alloc := saved.Data.Allocated(); alloc.GreaterThan(saved.Data.Total) {
			output.Warning("categories add up to %s, more than the total", alloc.StringFixed(2))
		}
		return nil
	},
}

var budgetShowCmd = &cobra.Command{
	Use:   "show <plan>",
	Short: "Show a plan's budget and what has been spent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		planID, err := resolvePlanID(e, args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		b, ok, err := repo.Current(e.Budgets(planID))
		if err != nil {
			output.Error("%v", err)
			return err
		}
		spending, err := e.Spending(planID)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			out := map[string]any{"spending": spending}
			if ok {
				out["budget"] = entityJSON{b.SyncMeta, b.Data}
			}
			return output.JSON(out)
		}

		if ok {
			fmt.Print(output.FormatBudget(b.Data))
			fmt.Print(output.FormatSyncMeta(b.SyncMeta))
		} else {
			fmt.Println("No budget set; using the plan's overall budget.")
		}
		fmt.Print(output.SectionHeader("spending"))
		fmt.Print(formatSpending(spending, b.Data.Currency))
		return nil
	},
}

func applyBudgetFlags(cmd *cobra.Command, b *models.Budget) {
	fs := cmd.Flags()
	if d, ok := getAmount(fs, "total"); ok {
		b.Total = d
	}
	if d, ok := getAmount(fs, "accommodation"); ok {
		b.Accommodation = d
	}
	if d, ok := getAmount(fs, "transportation"); ok {
		b.Transportation = d
	}
	if d, ok := getAmount(fs, "food"); ok {
		b.Food = d
	}
	if d, ok := getAmount(fs, "activities"); ok {
		b.Activities = d
	}
	if d, ok := getAmount(fs, "other"); ok {
		b.Other = d
	}
	if fs.Changed("currency") {
		c, _ := fs.GetString("currency")
		b.Currency = strings.ToUpper(strings.TrimSpace(c))
	}
}

// formatSpending renders spent and remaining amounts with a per-category
// breakdown.
func formatSpending(s repo.Spending, currency string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Budget:    %s\n", output.FormatMoney(s.Budget, currency)))
	sb.WriteString(fmt.Sprintf("Spent:     %s\n", output.FormatMoney(s.Spent, currency)))
	remaining := output.FormatMoney(s.Remaining, currency)
	if s.Remaining.IsNegative() {
		remaining += " (over budget)"
	}
	sb.WriteString(fmt.Sprintf("Remaining: %s\n", remaining))

	cats := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		sb.WriteString(fmt.Sprintf("  %-15s %s\n", c, output.FormatMoney(s.ByCategory[c], currency)))
	}
	return sb.String()
}

func init() {
	amountFlag(budgetSetCmd.Flags(), "total", "Total budget")
	for _, c := range budgetCategories {
		amountFlag(budgetSetCmd.Flags(), c, "Amount set aside for "+c)
	}
	budgetSetCmd.Flags().String("currency", "", "Three-letter currency code")

	budgetShowCmd.Flags().Bool("json", false, "Output as JSON")

	budgetCmd.AddCommand(budgetSetCmd, budgetShowCmd)
	rootCmd.AddCommand(budgetCmd)
}
