// Command battlelog-archiver archives a BF4 player's Battlelog data: profile
// and stats metadata, the full battle-report index, and every battle report,
// written to a profile-scoped directory.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brisppy/battlelog-archiver/internal/app"
	"github.com/brisppy/battlelog-archiver/internal/config"
	"github.com/brisppy/battlelog-archiver/pkg/logging"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

var (
	flagConfig    string
	flagOutput    string
	flagLogLevel  string
	flagPretty    bool
	flagBatchSize int
)

var rootCmd = &cobra.Command{
	Use:   "battlelog-archiver <profile-name> <cookie-path>",
	Short: "Archive a BF4 player's Battlelog data",
	Long: `Archives all Battlelog data for a BF4 soldier: profile, club, weapon,
vehicle, detailed, assignment and award stats, the full battle-report index,
and every individual battle report.

The cookie path must point to a Netscape-format cookies.txt export of an
authenticated battlelog.battlefield.com session. Ensure the profile's battle
reports are visible to that session, otherwise they cannot be archived.`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}

		// Flag overrides beat the config file.
		if cmd.Flags().Changed("output") {
			cfg.Archive.OutputDir = flagOutput
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Logging.Level = flagLogLevel
		}
		if cmd.Flags().Changed("pretty") {
			cfg.Logging.Pretty = flagPretty
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.Engine.BatchSize = flagBatchSize
		}

		logging.Setup(logging.Config{
			Level:  logging.LogLevel(cfg.Logging.Level),
			Pretty: cfg.Logging.Pretty,
			Output: os.Stderr,
		})

		return app.Run(context.Background(), app.Options{
			ProfileName: args[0],
			CookiePath:  args[1],
			Config:      cfg,
		})
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to a TOML config file")
	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "bf4-battlelog-archive", "archive output directory")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&flagPretty, "pretty", true, "human-readable log output")
	rootCmd.Flags().IntVar(&flagBatchSize, "batch-size", 20, "reports fetched concurrently per batch")
}
