package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DrZoddiak/ore-monitor/internal/inventory"
	"github.com/DrZoddiak/ore-monitor/internal/logger"
	"github.com/DrZoddiak/ore-monitor/internal/reconcile"
	"github.com/DrZoddiak/ore-monitor/internal/ui/styles"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check local plugin jars against the catalog",
	Long: `Check local plugin jars against the catalog.

The path may name a single jar or a directory, which is scanned
recursively. Each jar's embedded descriptor is compared against the
plugin's promoted version (or the latest listed version with
--policy latest). Unreadable jars are reported, never skipped silently.

Examples:
  oremon check                   # Check the current directory
  oremon check ./mods
  oremon check ./mods/nucleus.jar
  oremon check ./mods --policy latest --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("policy", "", "Comparison policy: promoted or latest (default from config)")
	checkCmd.Flags().Int("concurrency", 0, "Maximum concurrent catalog lookups (default from config)")
	checkCmd.Flags().Bool("json", false, "Output as JSON (non-interactive)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	policy, _ := cmd.Flags().GetString("policy")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if policy == "" {
		policy = cfg.CheckPolicy
	}
	switch reconcile.Policy(policy) {
	case reconcile.PolicyPromoted, reconcile.PolicyLatest:
	default:
		return fmt.Errorf("unknown policy %q (expected promoted or latest)", policy)
	}
	if concurrency <= 0 {
		concurrency = cfg.CheckConcurrency
	}

	scanner := inventory.NewScanner(logger.Log)
	artifacts, err := scanner.Scan(path)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		fmt.Println("No plugin archives found.")
		return nil
	}

	engine := reconcile.New(getClient(), reconcile.Options{
		Policy:      reconcile.Policy(policy),
		Concurrency: concurrency,
		Logger:      logger.Log,
	})
	results, err := engine.Check(cmd.Context(), artifacts)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printCheckJSON(results)
	}
	printCheckTable(results)
	return nil
}

// checkReport is the JSON shape of one reconciliation result.
type checkReport struct {
	Path   string `json:"path"`
	Plugin string `json:"plugin,omitempty"`
	Local  string `json:"local_version,omitempty"`
	Remote string `json:"remote_version,omitempty"`
	Status string `json:"status"`
	Newer  string `json:"newer,omitempty"`
	Error  string `json:"error,omitempty"`
}

func printCheckJSON(results []reconcile.Result) error {
	reports := make([]checkReport, 0, len(results))
	for _, r := range results {
		report := checkReport{
			Path:   r.Artifact.Path,
			Remote: r.Remote,
			Status: string(r.Status),
			Newer:  r.Newer,
		}
		if r.Artifact.Descriptor != nil {
			report.Plugin = r.Artifact.Descriptor.ModID
			report.Local = r.Artifact.Descriptor.Version
		}
		if r.Artifact.Err != nil {
			report.Error = r.Artifact.Err.Error()
		}
		reports = append(reports, report)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}

func printCheckTable(results []reconcile.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "FILE\tPLUGIN\tLOCAL\tREMOTE\tSTATUS")
	_, _ = fmt.Fprintln(w, "----\t------\t-----\t------\t------")

	var outdated, unknown, unparseable int
	for _, r := range results {
		plugin, local := "-", "-"
		if r.Artifact.Descriptor != nil {
			plugin = r.Artifact.Descriptor.ModID
			local = r.Artifact.Descriptor.Version
		}
		remote := r.Remote
		if remote == "" {
			remote = "-"
		}

		switch r.Status {
		case reconcile.StatusOutdated:
			outdated++
		case reconcile.StatusUnknown:
			unknown++
		case reconcile.StatusUnparseable:
			unparseable++
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			filepath.Base(r.Artifact.Path), plugin, local, remote, formatStatus(r))
	}

	_ = w.Flush()

	fmt.Println()
	summary := fmt.Sprintf("Checked %d archive(s)", len(results))
	if outdated > 0 {
		summary += fmt.Sprintf(", %d outdated", outdated)
	}
	if unknown > 0 {
		summary += fmt.Sprintf(", %d unknown to catalog", unknown)
	}
	if unparseable > 0 {
		summary += fmt.Sprintf(", %d unparseable", unparseable)
	}
	fmt.Println(summary)
}

func formatStatus(r reconcile.Result) string {
	switch r.Status {
	case reconcile.StatusUpToDate:
		return styles.SuccessText.Render("up to date")
	case reconcile.StatusOutdated:
		return styles.FormatUpdateAvailable(r.Newer)
	case reconcile.StatusAhead:
		return styles.MutedText.Render("ahead of catalog")
	case reconcile.StatusUnknown:
		return styles.WarningText.Render("unknown to catalog")
	case reconcile.StatusUnparseable:
		msg := "unparseable"
		if r.Artifact.Err != nil {
			msg = r.Artifact.Err.Error()
		}
		return styles.ErrorText.Render(msg)
	default:
		return string(r.Status)
	}
}
