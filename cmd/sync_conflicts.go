package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gzn7264/ai-travel-planner/internal/output"
)

var syncConflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show local versions overwritten by newer remote ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 || limit > 1000 {
			output.Error("limit must be between 1 and 1000")
			return fmt.Errorf("invalid limit: %d", limit)
		}
		sinceStr, _ := cmd.Flags().GetString("since")

		var since time.Time
		if sinceStr != "" {
			d, err := parseAge(sinceStr)
			if err != nil {
				output.Error("invalid duration %q: %v", sinceStr, err)
				return err
			}
			since = time.Now().Add(-d)
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		conflicts, err := e.Conflicts(limit, since)
		if err != nil {
			output.Error("query conflicts: %v", err)
			return err
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(conflicts)
		}

		if len(conflicts) == 0 {
			fmt.Println("No sync conflicts found.")
			return nil
		}

		fmt.Println("Recent sync conflicts:")
		fmt.Printf("  %-19s %-8s %-10s %s\n", "TIME", "TYPE", "ENTITY", "LOCAL EDIT")
		for _, c := range conflicts {
			fmt.Printf("  %-19s %-8s %-10s %s\n",
				c.OverwrittenAt.Local().Format("2006-01-02 15:04:05"),
				c.Collection.Singular(),
				output.ShortID(c.LocalID),
				output.FormatTimeAgo(c.LocalUpdated),
			)
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				fmt.Printf("    local:  %s\n", output.Truncate(string(c.LocalData), 100))
				fmt.Printf("    remote: %s\n", output.Truncate(string(c.RemoteData), 100))
			}
		}
		return nil
	},
}

// parseAge parses a Go duration, also accepting a whole number of days
// such as "7d".
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count")
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func init() {
	syncConflictsCmd.Flags().Int("limit", 20, "Maximum conflicts to show")
	syncConflictsCmd.Flags().String("since", "", "Only show conflicts newer than this (e.g. 24h, 7d)")
	syncConflictsCmd.Flags().BoolP("verbose", "v", false, "Show both versions")
	syncConflictsCmd.Flags().Bool("json", false, "Output as JSON")
	syncCmd.AddCommand(syncConflictsCmd)
}
