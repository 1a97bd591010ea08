package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"topic-scraper/config"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// cliOptions holds the persistent flags and what PersistentPreRunE builds from them
type cliOptions struct {
	configPath string
	verbose    bool

	logger *log.Logger
	cfg    *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error("Command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "topic-scraper",
		Short:         "Scrape GitHub topics and their top repositories into CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), level)
			log.SetDefault(opts.logger)

			cfg, err := loadConfig(opts.configPath, opts.logger)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newScrapeCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newScheduleCmd(opts))
	return root
}

// newLogger creates a logger with timestamps formatted as "HH:MM:SS.ms"
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// loadConfig loads configuration from file or returns defaults when the file doesn't exist
func loadConfig(path string, logger *log.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info("Config file not found, using defaults", "path", path)
		return config.GetDefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded config", "path", path)
	return cfg, nil
}
