package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasktree/internal/paths"
	"github.com/mesh-intelligence/tasktree/pkg/tasktree"
	"github.com/mesh-intelligence/tasktree/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Persistent flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagDriver    string
	flagLogLevel  string
)

// cfg and logger are assembled once in PersistentPreRunE and shared by all
// commands.
var (
	cfg    types.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "taskd",
	Short:   "taskd serves a hierarchical task tree over HTTP",
	Long:    "taskd stores tasks as a tree, keeps parent and child references consistent, and exposes the tree over a JSON API.",
	Version: tasktree.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file in the working directory can feed the DB_* variables.
		// Absence is fine.
		_ = godotenv.Load()

		configDir, err := paths.ResolveConfigDir(flagConfigDir)
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		v, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		cfg, err = buildConfig(v)
		if err != nil {
			return err
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
		}
		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory for the sqlite database (default: platform data dir)")
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "store driver: sqlite or postgres (default: sqlite)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error (default: info)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}
