// Package cli provides the insightduck command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightduck/insightduck/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "insightduck",
		Short: "InsightDuck - dataset profiling and cleaning server",
		Long: `InsightDuck profiles, cleans and charts tabular datasets stored in DuckDB.

It serves an HTTP API for uploading CSV files, inspecting their structure
and quality, applying type conversions and imputations, and exporting the
cleaned result.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./insightduck.yaml)")
	rootCmd.PersistentFlags().String("server-host", "", "Listen host")
	rootCmd.PersistentFlags().Int("server-port", 0, "Listen port")
	rootCmd.PersistentFlags().String("store-database", "", "Path to DuckDB database (\":memory:\" for in-memory)")
	rootCmd.PersistentFlags().Int("store-workers", 0, "Number of cached store connections")
	rootCmd.PersistentFlags().String("metadata-path", "", "Path to SQLite metadata database")
	rootCmd.PersistentFlags().Bool("auth-disabled", false, "Disable token validation (local development)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newTablesCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig loads the effective configuration for a command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cfgFile, cmd.Root().PersistentFlags())
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
