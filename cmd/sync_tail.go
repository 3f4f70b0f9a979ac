package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/engine"
	"github.com/gzn7264/ai-travel-planner/internal/output"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

var syncLogCmd = &cobra.Command{
	Use:     "log",
	Aliases: []string{"tail"},
	Short:   "Show recent push and pull activity",
	Long: `Show recent push/pull outcomes. Use -f to follow in real-time.

Examples:
  tp sync log          # Show last 20 entries
  tp sync log -f       # Follow new entries in real-time
  tp sync log -n 50    # Show last 50 entries`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")

		e, err := openEngine()
		if err != nil {
			return err
		}

		var last time.Time
		if lines > 0 {
			entries, err := e.History(lines)
			if err != nil {
				output.Error("read history: %v", err)
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut && !follow {
				return output.JSON(entries)
			}
			for _, h := range entries {
				fmt.Println(output.FormatHistoryEntry(h))
			}
			if n := len(entries); n > 0 {
				last = entries[n-1].Timestamp
			}
		}
		if !follow {
			return nil
		}
		if last.IsZero() {
			last = time.Now()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		interval, _ := cmd.Flags().GetDuration("interval")
		return followHistory(ctx, e, last, interval)
	},
}

// followHistory prints entries newer than last until ctx is done.
func followHistory(ctx context.Context, e *engine.Engine, last time.Time, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		entries, err := e.History(200)
		if err != nil {
			return err
		}
		for _, h := range historySince(entries, last) {
			if h.Timestamp.Equal(last) {
				continue
			}
			fmt.Println(output.FormatHistoryEntry(h))
			last = h.Timestamp
		}
	}
}

// historySince filters entries at or after since.
func historySince(entries []tpsync.HistoryEntry, since time.Time) []tpsync.HistoryEntry {
	var out []tpsync.HistoryEntry
	for _, h := range entries {
		if !h.Timestamp.Before(since) {
			out = append(out, h)
		}
	}
	return out
}

func init() {
	syncLogCmd.Flags().BoolP("follow", "f", false, "Follow new entries")
	syncLogCmd.Flags().IntP("lines", "n", 20, "Number of past entries to show")
	syncLogCmd.Flags().Duration("interval", time.Second, "Poll interval when following")
	syncLogCmd.Flags().Bool("json", false, "Output as JSON")
	syncCmd.AddCommand(syncLogCmd)
}
