// Package cli wires the ricettario components into cobra commands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ricettario/internal/config"
	"ricettario/internal/metrics"
	"ricettario/pkg/logger"
)

// App holds what every command needs once flags are parsed.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	Metrics *metrics.Metrics
	Version string

	configFile  string
	debug       bool
	metricsFile string

	// newLogger is replaced in tests
	newLogger func(logger.Config) (logger.Logger, error)
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRoot(&App{Version: version, newLogger: logger.New})
}

func newRoot(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "ricettario",
		Short:         "Recipe extraction and normalization pipeline",
		Long:          `Scrapes recipe pages, normalizes them into the site corpus and matches them with YouTube videos.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Log != nil {
				_ = app.Log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&app.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&app.metricsFile, "metrics-file", "", "write prometheus metrics in text format to this file when the command ends")

	root.AddCommand(
		newScrapeCommand(app),
		newDiscoverCommand(app),
		newResolveCommand(app),
		newImportCSVCommand(app),
		newExportCSVCommand(app),
		newSyncDBCommand(app),
		newServeCommand(app),
		newVersionCommand(app),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

func (a *App) setup() error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	log, err := a.newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.Config, a.Log, a.Metrics = cfg, log, metrics.New()
	return nil
}

// flushMetrics writes the textfile when --metrics-file was given.
func (a *App) flushMetrics() error {
	if a.metricsFile == "" {
		return nil
	}
	if err := a.Metrics.WriteTextfile(a.metricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.Log.Debug("Metrics written", logger.String("path", a.metricsFile))
	return nil
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), app.Version)
		},
	}
}

func printVersion(w io.Writer, version string) {
	fmt.Fprintf(w, "ricettario version %s\n", version)
}
