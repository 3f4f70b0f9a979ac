package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/dateparse"
	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/models"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/repo"
)

var expenseCmd = &cobra.Command{
	Use:     "expense",
	Aliases: []string{"expenses", "spend"},
	Short:   "Record and manage a plan's expenses",
	GroupID: "core",
}

var expenseAddCmd = &cobra.Command{
	Use:     "add <plan> <amount> <category> [description]",
	Aliases: []string{"create"},
	Short:   "Record an expense",
	Example: `  tp expense add 1a2b3c4d 42.50 food "Ramen in Shinjuku"
  tp expense add 1a2b3c4d 120 transportation --date 2026-04-02`,
	Args: cobra.RangeArgs(3, 4),
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

		var amount decimalValue
		if err := amount.Set(args[1]); err != nil {
			output.Error("%v", err)
			return err
		}
		x := models.Expense{
			Amount:   amount.d,
			Category: strings.ToLower(strings.TrimSpace(args[2])),
		}
		if len(args) == 4 {
			x.Description = strings.TrimSpace(args[3])
		}
		if x.Date, err = getDate(cmd.Flags(), "date"); err != nil {
			output.Error("%v", err)
			return err
		}
		if x.Date == "" {
			x.Date = time.Now().Format(dateparse.Layout)
		}

		created, err := e.Expenses(planID).Create(cmd.Context(), x)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(entityJSON{created.SyncMeta, created.Data})
		}
		fmt.Printf("ADDED %s %s %s\n", output.ShortID(created.LocalID), created.Data.Category, created.Data.Amount.StringFixed(2))
		return nil
	},
}

var expenseListCmd = &cobra.Command{
	Use:     "list <plan>",
	Aliases: []string{"ls"},
	Short:   "List a plan's expenses",
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
		expenses, err := e.Expenses(planID).List()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if cat, _ := cmd.Flags().GetString("category"); cat != "" {
			expenses = filterExpenses(expenses, cat)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			out := make([]entityJSON, 0, len(expenses))
			for _, x := range expenses {
				out = append(out, entityJSON{x.SyncMeta, x.Data})
			}
			return output.JSON(out)
		}

		if len(expenses) == 0 {
			fmt.Println("No expenses recorded.")
			return nil
		}
		currency := planCurrency(e, planID)
		items := make([]models.Expense, 0, len(expenses))
		for _, x := range expenses {
			items = append(items, x.Data)
			fmt.Println(output.FormatExpenseShort(x.SyncMeta, x.Data, currency))
		}
		fmt.Printf("\n%d expenses, total %s\n", len(expenses), output.FormatMoney(models.TotalExpenses(items), currency))
		return nil
	},
}

var expenseUpdateCmd = &cobra.Command{
	Use:     "update <plan> <id>",
	Aliases: []string{"edit"},
	Short:   "Update an expense",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		planID, id, err := resolveExpenseID(e, args[0], args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if !anyChanged(cmd, "amount", "category", "desc", "date") {
			output.Error("nothing to update; pass at least one field flag")
			return errors.New("nothing to update")
		}

		fs := cmd.Flags()
		date, err := getDate(fs, "date")
		if err != nil {
			output.Error("%v", err)
			return err
		}
		updated, err := e.Expenses(planID).Edit(cmd.Context(), id, func(x *models.Expense) {
			if d, ok := getAmount(fs, "amount"); ok {
				x.Amount = d
			}
			if fs.Changed("category") {
				c, _ := fs.GetString("category")
				x.Category = strings.ToLower(strings.TrimSpace(c))
			}
			if fs.Changed("desc") {
				x.Description, _ = fs.GetString("desc")
			}
			if fs.Changed("date") {
				x.Date = date
			}
		})
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Printf("UPDATED %s %s %s\n", output.ShortID(id), updated.Data.Category, updated.Data.Amount.StringFixed(2))
		return nil
	},
}

var expenseDeleteCmd = &cobra.Command{
	Use:     "delete <plan> <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an expense",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		planID, id, err := resolveExpenseID(e, args[0], args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := e.Expenses(planID).Delete(cmd.Context(), id); err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Printf("DELETED %s\n", output.ShortID(id))
		return nil
	},
}

var expensePullCmd = &cobra.Command{
	Use:   "pull <plan>",
	Short: "Fetch a plan's budget and expenses from your account",
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
		res, err := e.ReconcileChildren(cmd.Context(), planID)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Pulled: %d new, %d updated, %d removed, %d kept local", res.Adopted, res.Replaced, res.Dropped, res.Kept)
		return nil
	},
}

func filterExpenses(all []repo.Entity[models.Expense], category string) []repo.Entity[models.Expense] {
	category = strings.ToLower(strings.TrimSpace(category))
	var out []repo.Entity[models.Expense]
	for _, x := range all {
		if x.Data.Category == category {
			out = append(out, x)
		}
	}
	return out
}

// planCurrency returns the currency of the plan's budget, if one is set.
func planCurrency(e *engine.Engine, planID string) string {
	b, ok, err := repo.Current(e.Budgets(planID))
	if err != nil || !ok {
		return ""
	}
	return b.Data.Currency
}

func resolveExpenseID(e *engine.Engine, planArg, arg string) (string, string, error) {
	planID, err := resolvePlanID(e, planArg)
	if err != nil {
		return "", "", err
	}
	expenses, err := e.Expenses(planID).List()
	if err != nil {
		return "", "", err
	}
	id, err := resolveID(metasOf(expenses), arg)
	if err != nil {
		return "", "", fmt.Errorf("expense %w", err)
	}
	return planID, id, nil
}

func init() {
	expenseAddCmd.Flags().String("date", "", "Date of the expense (YYYY-MM-DD, yesterday, last fri; default today)")
	expenseAddCmd.Flags().Bool("json", false, "Output the created expense as JSON")

	expenseListCmd.Flags().String("category", "", "Only show this category")
	expenseListCmd.Flags().Bool("json", false, "Output as JSON")

	amountFlag(expenseUpdateCmd.Flags(), "amount", "Amount")
	expenseUpdateCmd.Flags().String("category", "", "Category")
	expenseUpdateCmd.Flags().String("desc", "", "Description")
	expenseUpdateCmd.Flags().String("date", "", "Date (YYYY-MM-DD, yesterday, -2d)")

	expenseCmd.AddCommand(expenseAddCmd, expenseListCmd, expenseUpdateCmd, expenseDeleteCmd, expensePullCmd)
	rootCmd.AddCommand(expenseCmd)
}
