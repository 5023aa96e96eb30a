package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DrZoddiak/ore-monitor/internal/ore"
	"github.com/DrZoddiak/ore-monitor/internal/resolver"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin <plugin-id>",
	Short: "Show a plugin and its promoted version",
	Long: `Show a plugin's catalog record and its promoted version.

A plugin without a promoted release is shown without one; that is not
an error.

Examples:
  oremon plugin nucleus
  oremon plugin nucleus --json
  oremon plugin versions nucleus
  oremon plugin versions nucleus 2.1.4`,
	Args: cobra.ExactArgs(1),
	RunE: runPlugin,
}

var pluginVersionsCmd = &cobra.Command{
	Use:   "versions <plugin-id> [name]",
	Short: "List a plugin's versions, or show one by name",
	Long: `List a plugin's versions newest first, or show one version by name.

The full listing is paged through transparently; limit and offset
select a window of it.

Examples:
  oremon plugin versions nucleus
  oremon plugin versions nucleus --limit 10 --offset 20
  oremon plugin versions nucleus 2.1.4`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPluginVersions,
}

func init() {
	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginVersionsCmd)

	pluginCmd.Flags().Bool("json", false, "Output as JSON (non-interactive)")

	pluginVersionsCmd.Flags().IntP("limit", "l", 0, "Maximum number of versions to list (0 for all)")
	pluginVersionsCmd.Flags().Int("offset", 0, "Offset to start the listing from")
	pluginVersionsCmd.Flags().Bool("json", false, "Output as JSON (non-interactive)")
}

func runPlugin(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	res, err := resolver.New(getClient()).Resolve(cmd.Context(), resolver.Request{
		PluginID: args[0],
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(res.Project)
	}
	printProject(res.Project, res.Promoted)
	return nil
}

func runPluginVersions(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req := resolver.Request{
		PluginID: args[0],
		Versions: true,
		Limit:    limit,
		Offset:   offset,
	}
	if len(args) > 1 {
		req.VersionName = args[1]
	}

	res, err := resolver.New(getClient()).Resolve(cmd.Context(), req)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if res.Version != nil {
		if jsonOutput {
			return encoder.Encode(res.Version)
		}
		printVersion(req.PluginID, res.Version)
		return nil
	}

	if jsonOutput {
		return encoder.Encode(res.VersionList)
	}
	return printVersionTable(res.VersionList)
}

func printProject(p *ore.Project, promoted *ore.PromotedVersion) {
	fmt.Printf("Plugin ID : %s\n", p.PluginID)
	fmt.Printf("Name : %s\n", p.Name)
	fmt.Printf("Owner : %s\n", p.Namespace.Owner)
	fmt.Printf("Category : %s\n", p.Category)
	if p.Description != "" {
		fmt.Printf("Description : %s\n", p.Description)
	}
	fmt.Printf("Last Updated : %s\n", p.LastUpdated.Format("2006-01-02 15:04"))
	fmt.Printf("Downloads : %d\n", p.Stats.Downloads)
	fmt.Printf("Stars : %d\n", p.Stats.Stars)

	if promoted == nil {
		fmt.Println("Promoted Version : (none)")
		return
	}

	tags := make([]string, 0, len(promoted.Tags))
	for _, t := range promoted.Tags {
		display := t.DisplayData
		if display == "" {
			display = t.Data
		}
		if display != "" {
			tags = append(tags, t.Name+" "+display)
		} else {
			tags = append(tags, t.Name)
		}
	}
	if len(tags) > 0 {
		fmt.Printf("Promoted Version : %s (%s)\n", promoted.Version, strings.Join(tags, ", "))
	} else {
		fmt.Printf("Promoted Version : %s\n", promoted.Version)
	}
}

func printVersion(pluginID string, v *ore.Version) {
	fmt.Printf("Plugin ID : %s\n", pluginID)
	fmt.Printf("Version : %s\n", v.Name)
	if v.Author != "" {
		fmt.Printf("Author : %s\n", v.Author)
	}
	fmt.Printf("Created : %s\n", v.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Review State : %s\n", v.ReviewState)
	fmt.Printf("Downloads : %d\n", v.Stats.Downloads)
	fmt.Printf("File : %s (%d bytes)\n", v.FileInfo.Name, v.FileInfo.SizeBytes)
	if v.FileInfo.MD5Hash != "" {
		fmt.Printf("MD5 : %s\n", v.FileInfo.MD5Hash)
	}
	for _, dep := range v.Dependencies {
		if dep.Version != "" {
			fmt.Printf("Depends : %s@%s\n", dep.PluginID, dep.Version)
		} else {
			fmt.Printf("Depends : %s\n", dep.PluginID)
		}
	}
}

func printVersionTable(versions []ore.Version) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "VERSION\tCREATED\tREVIEW\tDOWNLOADS\tFILE")
	_, _ = fmt.Fprintln(w, "-------\t-------\t------\t---------\t----")

	for _, v := range versions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			v.Name,
			v.CreatedAt.Format("2006-01-02"),
			v.ReviewState,
			v.Stats.Downloads,
			v.FileInfo.Name,
		)
	}

	_ = w.Flush()

	fmt.Println()
	fmt.Printf("%d version(s)\n", len(versions))
	return nil
}
