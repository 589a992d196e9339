// Package cli provides the trackfinder command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/trackfinder/internal/config"
	"github.com/ewilliams-labs/trackfinder/internal/logging"
)

// globals holds the persistent flags and what PersistentPreRunE builds from them.
type globals struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "trackfinder",
		Short: "Trackfinder - search a music catalog and find similar tracks",
		Long: `Trackfinder loads a track catalog and a precomputed nearest-neighbor table
from local files, HTTP(S), S3 or MinIO, and answers searches and similarity
lookups from the command line or over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("TRACKFINDER_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(g),
		newSearchCmd(g),
		newSimilarCmd(g),
		newRandomCmd(g),
		newBrowseCmd(g),
		newImportCmd(g),
	)
	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (g *globals) setup(stderr io.Writer) error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("cli: %w", err)
	}
	g.cfg = cfg
	g.logger = logger
	return nil
}
