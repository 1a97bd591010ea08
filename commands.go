package main

import (
	"context"
	"errors"
	"fmt"

	"topic-scraper/db"
	"topic-scraper/report"
	"topic-scraper/scheduler"

	"github.com/spf13/cobra"
)

func newScrapeCmd(opts *cliOptions) *cobra.Command {
	var (
		baseURL    string
		outputDir  string
		topicsFile string
		engine     string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the topics listing and every topic's repositories once",
		Long: `Scrape fetches <base-url>/topics, writes the topics file, then visits every
topic and writes <output-dir>/<topic>_repos.csv for each topic with repositories.

A failed run is logged and the command still exits 0 unless --strict is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if topicsFile != "" {
				cfg.TopicsFile = topicsFile
			}
			if engine != "" {
				cfg.Fetcher.Engine = engine
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			p, err := newPipeline(cmd.Context(), cfg, opts.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.run(cmd.Context())
			if err != nil {
				opts.logger.Error("An error occurred", "err", err)
				if strict {
					return err
				}
				return nil
			}
			if strict {
				return res.Err()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "site root to scrape (overrides base_url)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for per-topic files (overrides output_dir)")
	cmd.Flags().StringVarP(&topicsFile, "topics-file", "t", "", "path of the topics file (overrides topics_file)")
	cmd.Flags().StringVar(&engine, "engine", "", `fetcher engine, "colly" or "rod" (overrides fetcher.engine)`)
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero if the run fails or any topic is skipped")
	return cmd
}

func newAnalyzeCmd(opts *cliOptions) *cobra.Command {
	var (
		outputDir  string
		topicsFile string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize the files written by the last scrape",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			if topicsFile != "" {
				cfg.TopicsFile = topicsFile
			}

			if err := report.Run(cmd.OutOrStdout(), cfg.TopicsFile, cfg.OutputDir); err != nil {
				return err
			}

			if cfg.Database.Driver != "" {
				printLatestRun(cmd, opts)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory holding per-topic files (overrides output_dir)")
	cmd.Flags().StringVarP(&topicsFile, "topics-file", "t", "", "path of the topics file (overrides topics_file)")
	return cmd
}

// printLatestRun reports the archived status of the most recent run, if any
func printLatestRun(cmd *cobra.Command, opts *cliOptions) {
	database, err := db.Open(cmd.Context(), opts.cfg.Database.Driver, opts.cfg.Database.DSN, opts.logger)
	if err != nil {
		opts.logger.Warn("Failed to open run archive", "err", err)
		return
	}
	defer database.Close()

	run, err := database.LatestRun(cmd.Context())
	if errors.Is(err, db.ErrRunNotFound) {
		return
	}
	if err != nil {
		opts.logger.Warn("Failed to read run archive", "err", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nLast archived run %s: %s, %d topics, %d repositories, %d failed topics\n",
		run.ID, run.Status, run.TopicsCount, run.ReposCount, run.FailedTopics)
}

func newScheduleCmd(opts *cliOptions) *cobra.Command {
	var (
		cronExpr string
		listen   string
		now      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Scrape repeatedly on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cronExpr != "" {
				cfg.Schedule.Cron = cronExpr
			}
			if listen != "" {
				cfg.Metrics.Listen = listen
			}
			ctx := cmd.Context()

			p, err := newPipeline(ctx, cfg, opts.logger)
			if err != nil {
				return err
			}
			defer p.Close()

			sched, err := scheduler.NewScheduler(ctx, cfg.Schedule.Cron, func(ctx context.Context) error {
				_, err := p.run(ctx)
				return err
			}, opts.logger)
			if err != nil {
				return err
			}

			if cfg.Metrics.Listen != "" {
				go func() {
					if err := p.metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
						opts.logger.Error("Metrics server stopped", "err", err)
					}
				}()
				opts.logger.Info("Serving metrics", "addr", cfg.Metrics.Listen)
			}

			if now {
				if err := sched.RunNow(); err != nil {
					opts.logger.Error("Initial run failed", "err", err)
				}
			}

			sched.Start()
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", `cron expression such as "0 3 * * *" or "@daily" (overrides schedule.cron)`)
	cmd.Flags().StringVar(&listen, "listen", "", "serve /metrics on this address (overrides metrics.listen)")
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately before waiting for the schedule")
	return cmd
}
