package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	"github.com/gzn7264/ai-travel-planner/internal/queue"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push local changes to your account",
	Long: `Send every queued local change to your account, then report what is
still waiting. Use --pull to also merge remote changes afterwards.`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE:    runSyncNow,
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Push local changes to your account",
	Args:  cobra.NoArgs,
	RunE:  runSyncNow,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and the pending change queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		st := e.SyncStatus()
		pending, err := e.Pending()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(map[string]any{"state": st, "pending": pending})
		}

		fmt.Print(output.FormatSyncState(st))
		if p, ok := e.Session().CurrentPrincipal(); ok {
			user := p.UserID
			if user == "" {
				user = "(api key)"
			}
			fmt.Printf("Account:  %s @ %s\n", user, p.ServerURL)
		} else {
			fmt.Println("Account:  not logged in")
		}
		if len(pending) > 0 {
			fmt.Print(output.SectionHeader("pending"))
			fmt.Println(summarizePending(pending))
		}
		return nil
	},
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	st, err := e.SyncNow(ctx)
	if errors.Is(err, tpsync.ErrNoPrincipal) {
		output.Error("not logged in; run 'tp auth login' first")
		return err
	}
	if err != nil {
		output.Error("%v", err)
		return err
	}

	if pull, _ := cmd.Flags().GetBool("pull"); pull {
		if err := pullAll(ctx, e); err != nil {
			output.Warning("pull: %v", err)
		}
		st = e.SyncStatus()
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return output.JSON(st)
	}
	switch st.Status {
	case tpsync.StatusSynced:
		output.Success("Everything is saved to the cloud.")
	case tpsync.StatusError:
		output.Error("sync failed: %s", st.LastError)
		return errors.New(st.LastError)
	default:
		output.Warning("%d changes still waiting: %s", st.Pending, st.LastError)
	}
	return nil
}

// pullAll merges every plan and each plan's children.
func pullAll(ctx context.Context, e *engine.Engine) error {
	if _, err := e.ReconcilePlans(ctx); err != nil {
		return err
	}
	plans, err := e.Plans().List()
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range plans {
		if _, err := e.ReconcileChildren(ctx, p.LocalID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", output.ShortID(p.LocalID), err))
		}
	}
	return errors.Join(errs...)
}

// summarizePending counts queued changes per kind and collection.
func summarizePending(pending []queue.Change) string {
	type key struct {
		kind queue.Kind
		coll string
	}
	counts := make(map[key]int)
	var order []key
	failing := 0
	for _, c := range pending {
		k := key{c.Kind, c.Collection.Singular()}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
		if c.Attempts > 0 {
			failing++
		}
	}
	var s string
	for i, k := range order {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d %s %s", counts[k], k.coll, k.kind)
	}
	if failing > 0 {
		s += fmt.Sprintf(" (%d retrying)", failing)
	}
	return s
}

func init() {
	for _, c := range []*cobra.Command{syncCmd, syncNowCmd} {
		c.Flags().Bool("pull", false, "Also merge remote changes after pushing")
		c.Flags().Bool("json", false, "Output the resulting state as JSON")
	}
	syncStatusCmd.Flags().Bool("json", false, "Output as JSON")

	syncCmd.AddCommand(syncNowCmd, syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
