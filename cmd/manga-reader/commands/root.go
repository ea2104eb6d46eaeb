// Package commands implements the headless command line of the manga reader.
package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ytget/manga-reader/internal/config"
	"github.com/ytget/manga-reader/internal/logger"
	"github.com/ytget/manga-reader/internal/metrics"
	"github.com/ytget/manga-reader/internal/services"
)

var (
	// Version information injected at build time.
	Version = "dev"

	// Global flags.
	cfgFile  string
	logLevel string

	// cfg is loaded before any subcommand runs
	cfg *config.Pipeline
)

var rootCmd = &cobra.Command{
	Use:   "manga-reader",
	Short: "Manga reader asset pipeline tools",
	Long: `Headless access to the manga reader's asset pipeline: stream galleries
from the configured source, decode thumbnails of a local folder and manage
the store of completed galleries.

Configuration is read from $XDG_CONFIG_HOME/manga-reader/config.yaml and
MANGAREADER_* environment variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/manga-reader/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (DEBUG|INFO|WARN|ERROR)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(thumbsCmd)
	rootCmd.AddCommand(galleriesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "manga-reader %s\n", Version)
	},
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	logger.InitWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

// assemble builds the pipeline and, if enabled, serves its metrics until
// ctx is done.
func assemble(ctx context.Context, inMemoryStore bool) (*services.Set, error) {
	reg := prometheus.NewRegistry()
	set, err := services.New(cfg, services.Options{
		Registerer:    reg,
		InMemoryStore: inMemoryStore,
		UserAgent:     "manga-reader/" + Version,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				logger.Warn("metrics endpoint stopped", logger.Err(err)...)
			}
		}()
	}
	return set, nil
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

func closeSet(set *services.Set) {
	if err := set.Close(); err != nil {
		PrintErr("%v", fmt.Errorf("shutdown: %w", err))
	}
}
