package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/viant/vecindex/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vecindex",
	Short: "Vector similarity indexes fed by document change listeners",
	Long: `vecindex - embed documents, keep vector indexes current and query them.

Configuration is read from ~/.vecindex/config.yaml unless --config is given.
Files ending in .toml are parsed as TOML.

Examples:
  # Add a document and index it
  vecindex doc put readme content="vector search in Go"
  vecindex ingest

  # Query an index
  vecindex query docs "how do I search vectors" -n 5

  # Follow a directory
  vecindex watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.vecindex/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the configuration. A missing default file yields the
// built-in defaults; a missing explicit file is an error.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	cfg, err := config.Load()
	if config.IsNotFound(err) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	lc := cfg.Logging
	if verbose {
		lc.Level = "debug"
	}
	return lc.Logger(os.Stderr)
}
