package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <plugin-id>",
	Short: "Show daily download stats for a plugin (requires API key)",
	Long: `Show daily download and view counts for a plugin.

This is a member-only catalog endpoint: it needs an API key whose owner
is a member of the project. Without a key the command fails immediately
instead of round-tripping to the catalog.

Examples:
  oremon stats nucleus --api-key <key>
  oremon stats nucleus --days 7 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Int("days", 30, "Number of past days to include")
	statsCmd.Flags().Bool("json", false, "Output as JSON (non-interactive)")
}

func runStats(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if days <= 0 {
		days = 30
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)

	stats, err := getClient().ProjectStats(cmd.Context(), args[0], from, to)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	dates := make([]string, 0, len(stats))
	for date := range stats {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tDOWNLOADS\tVIEWS")
	_, _ = fmt.Fprintln(w, "----\t---------\t-----")
	for _, date := range dates {
		day := stats[date]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", date, day.Downloads, day.Views)
	}
	_ = w.Flush()
	return nil
}
