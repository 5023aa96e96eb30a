package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DrZoddiak/ore-monitor/internal/config"
	"github.com/DrZoddiak/ore-monitor/internal/installer"
	"github.com/DrZoddiak/ore-monitor/internal/inventory"
	"github.com/DrZoddiak/ore-monitor/internal/logger"
	"github.com/DrZoddiak/ore-monitor/internal/ore"
	"github.com/DrZoddiak/ore-monitor/internal/ui/styles"
)

// Version info set via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

var (
	verbose bool
	cfgFile string
	apiKey  string

	cfg       *config.Config
	oreClient *ore.Client
)

var rootCmd = &cobra.Command{
	Use:     "oremon",
	Short:   "Ore plugin catalog CLI",
	Version: version + " (" + commit + ")",
	Long: `A CLI for the SpongePowered Ore plugin catalog.

Searches the catalog, inspects plugins and their versions, installs
plugin jars, and checks a local directory for outdated plugins.

Quick start:
  oremon search nucleus          Search the catalog
  oremon plugin nucleus          Show a plugin and its promoted version
  oremon install nucleus 2.1.4   Download a version into the current dir
  oremon check ./mods            Compare local jars against the catalog`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Exit codes: callers distinguish user error, missing identifiers, a broken
// catalog and local filesystem trouble.
const (
	exitOK          = 0
	exitFailure     = 1
	exitNotFound    = 2
	exitUnavailable = 3
	exitFilesystem  = 4
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logger.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.FormatError(err.Error()))
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the documented exit classes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, ore.ErrPluginNotFound), errors.Is(err, ore.ErrVersionNotFound):
		return exitNotFound
	case errors.Is(err, ore.ErrUnreachable), errors.Is(err, ore.ErrCatalogUnavailable):
		return exitUnavailable
	case errors.Is(err, inventory.ErrPathNotFound), errors.Is(err, inventory.ErrPathUnreadable),
		errors.Is(err, installer.ErrTargetUnwritable):
		return exitFilesystem
	default:
		return exitFailure
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(verbose); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if apiKey != "" {
			cfg.APIKey = apiKey
		}
		return nil
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default $XDG_CONFIG_HOME/oremon/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Catalog API key for member-only endpoints")
}

// getClient returns the shared catalog client, initializing it if needed
func getClient() *ore.Client {
	if oreClient != nil {
		return oreClient
	}
	oreClient = ore.NewClient(ore.Options{
		BaseURL:        cfg.BaseURL,
		DownloadURL:    cfg.DownloadURL,
		APIKey:         cfg.APIKey,
		ConnectTimeout: cfg.ConnectTimeout,
		RequestTimeout: cfg.RequestTimeout,
		RetryCount:     cfg.RetryCount,
		RetryWait:      cfg.RetryWait,
		Logger:         logger.Log,
	})
	return oreClient
}
