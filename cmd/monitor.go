package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/tui/monitor"
)

var syncWatchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"monitor"},
	Short:   "Live view of sync state, queue and history",
	Long: `Launch a live-updating view of the sync state, the queue of changes
waiting to be sent and recent push/pull outcomes. While it runs, changes
are synced in the background on the auto-sync interval.

Key bindings:
  s          Sync now
  r          Refresh
  Tab        Switch panel
  j/k        Scroll
  ?          Toggle help
  q          Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		if _, ok := e.Session().CurrentPrincipal(); ok && AutoSyncEnabled() {
			e.Arm()
		}

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		p := tea.NewProgram(monitor.NewModel(e, interval), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func init() {
	syncWatchCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval")
	syncCmd.AddCommand(syncWatchCmd)
}
