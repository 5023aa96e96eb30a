package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DrZoddiak/ore-monitor/internal/ore"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog for plugins",
	Long: `Search the catalog for plugins matching a query.

Without a query the catalog's default ordering is returned. Filters
narrow the result set; limit and offset page through it.

Examples:
  oremon search nucleus
  oremon search --category admin_tools --sort downloads
  oremon search economy --owner Erigitic --limit 5
  oremon search nucleus --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringSliceP("category", "c", nil, "Filter by category (comma separated)")
	searchCmd.Flags().StringSliceP("tags", "t", nil, "Filter by tags (comma separated)")
	searchCmd.Flags().StringP("owner", "o", "", "Filter by plugin owner")
	searchCmd.Flags().StringP("sort", "s", "", "Sort strategy (stars, downloads, views, newest, updated, ...)")
	searchCmd.Flags().BoolP("relevance", "r", false, "Weigh relevance when sorting")
	searchCmd.Flags().IntP("limit", "l", 0, "Maximum number of results per page")
	searchCmd.Flags().Int("offset", 0, "Offset to start the result page from")
	searchCmd.Flags().Bool("json", false, "Output as JSON (non-interactive)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	var query string
	if len(args) > 0 {
		query = args[0]
	}

	categories, _ := cmd.Flags().GetStringSlice("category")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	owner, _ := cmd.Flags().GetString("owner")
	sortBy, _ := cmd.Flags().GetString("sort")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	q := ore.SearchQuery{
		Query:      query,
		Categories: categories,
		Tags:       tags,
		Owner:      owner,
		Sort:       sortBy,
		Limit:      limit,
		Offset:     offset,
	}
	if cmd.Flags().Changed("relevance") {
		relevance, _ := cmd.Flags().GetBool("relevance")
		q.Relevance = &relevance
	}

	list, err := getClient().Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(list)
	}
	return printProjectTable(list)
}

// printProjectTable renders one search page as a table
func printProjectTable(list *ore.ProjectList) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ID\tNAME\tOWNER\tCATEGORY\tPROMOTED\tDOWNLOADS\tDESCRIPTION")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t--------\t--------\t---------\t-----------")

	for _, p := range list.Result {
		promoted := ""
		if pv, ok := p.PromotedFor(0); ok {
			promoted = pv.Version
		}

		desc := p.Description
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.PluginID,
			p.Name,
			p.Namespace.Owner,
			p.Category,
			promoted,
			p.Stats.Downloads,
			desc,
		)
	}

	_ = w.Flush()

	fmt.Println()
	fmt.Printf("Showing %d of %d result(s) (offset %d)\n",
		len(list.Result), list.Pagination.Count, list.Pagination.Offset)
	return nil
}
