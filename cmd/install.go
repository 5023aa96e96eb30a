package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrZoddiak/ore-monitor/internal/installer"
	"github.com/DrZoddiak/ore-monitor/internal/logger"
	"github.com/DrZoddiak/ore-monitor/internal/ui/styles"
)

var installCmd = &cobra.Command{
	Use:   "install <plugin-id> <version>",
	Short: "Download a plugin version into a directory",
	Long: `Download a plugin version's jar into a directory.

The artifact is written to a temporary file first and moved into place
atomically, so an interrupted download never leaves a partial jar under
its final name. Installing the same version again overwrites the file.

Examples:
  oremon install nucleus 2.1.4
  oremon install nucleus 2.1.4 --dir ./mods`,
	Args: cobra.ExactArgs(2),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().StringP("dir", "d", ".", "Directory to install into")
}

func runInstall(cmd *cobra.Command, args []string) error {
	pluginID, versionName := args[0], args[1]
	dir, _ := cmd.Flags().GetString("dir")

	inst := installer.New(getClient(), logger.Log)
	path, err := inst.Install(cmd.Context(), pluginID, versionName, dir)
	if err != nil {
		return err
	}

	fmt.Println(styles.FormatSuccess(fmt.Sprintf("Installed %s %s to %s", pluginID, versionName, path)))
	return nil
}
