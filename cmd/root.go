// Package cmd implements the bureau command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bureauhq/bureau/internal/app"
	"github.com/bureauhq/bureau/internal/config"
	"github.com/bureauhq/bureau/internal/log"
)

var debugLogging bool

var rootCmd = &cobra.Command{
	Use:   "bureau",
	Short: "Bureau is an office knowledge assistant",
	Long: `Bureau answers employee questions from indexed company documents,
recalls earlier conversations and fetches personal records from the
employee portal. Run "bureau serve" to expose the HTTP API, "bureau ask"
for a one-off question, or "bureau ingest" to index documents.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for command output.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if debugLogging || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level, JSON: false})
}

// loadApp loads configuration and assembles the application graph.
func loadApp(ctx context.Context) (*app.App, error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
