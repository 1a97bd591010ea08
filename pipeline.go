package main

import (
	"context"
	"fmt"

	"topic-scraper/config"
	"topic-scraper/db"
	"topic-scraper/fetcher"
	"topic-scraper/metrics"
	"topic-scraper/models"
	"topic-scraper/notify"
	"topic-scraper/parser"
	"topic-scraper/scraper"
	"topic-scraper/sheets"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
)

// pipeline is a configured scraper plus the optional outputs that follow a run
type pipeline struct {
	cfg      *config.Config
	logger   *log.Logger
	scraper  *scraper.Scraper
	metrics  *metrics.Metrics
	sheets   *sheets.Writer
	notifier *notify.Notifier
	closers  []func() error
}

// newPipeline builds everything cfg enables. The fetcher and the database are
// required once configured; Sheets and Telegram failures only disable them.
func newPipeline(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline, error) {
	p := &pipeline{cfg: cfg, logger: logger, metrics: metrics.New()}

	f, closeFetcher, err := fetcher.New(cfg.Fetcher.Engine,
		fetcher.WithUserAgent(cfg.Fetcher.UserAgent),
		fetcher.WithTimeout(cfg.Fetcher.Timeout),
		fetcher.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	p.closers = append(p.closers, closeFetcher)

	opts := []scraper.Option{scraper.WithLogger(logger), scraper.WithMetrics(p.metrics)}

	if cfg.Database.Driver != "" {
		database, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, database.Close)
		opts = append(opts, scraper.WithRecorder(database))
	}

	if cfg.Sheets.SpreadsheetURL != "" {
		if id := sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL); id == "" {
			logger.Warn("Could not extract spreadsheet ID, export disabled", "url", cfg.Sheets.SpreadsheetURL)
		} else if w, err := sheets.NewWriter(ctx, id, cfg.Sheets.CredentialsPath, logger); err != nil {
			logger.Warn("Failed to initialize Google Sheets writer, export disabled", "err", err)
		} else {
			p.sheets = w
		}
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		if n, err := notify.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger); err != nil {
			logger.Warn("Failed to initialize Telegram notifier, notifications disabled", "err", err)
		} else {
			p.notifier = n
		}
	}

	p.scraper = scraper.NewScraper(f, parser.NewParser(cfg.Selectors, logger), cfg.BaseURL, cfg.OutputDir, opts...)
	return p, nil
}

// run performs one full scrape and hands the result to the configured outputs
func (p *pipeline) run(ctx context.Context) (*scraper.Result, error) {
	res, err := p.scraper.ScrapeAll(ctx, p.cfg.TopicsFile)

	if werr := p.metrics.WriteTextfile(p.cfg.Metrics.Textfile); werr != nil {
		p.logger.Warn("Failed to write metrics", "err", werr)
	}
	if err != nil {
		return res, err
	}

	p.export(ctx, res)
	return res, nil
}

func (p *pipeline) export(ctx context.Context, res *scraper.Result) {
	if p.sheets != nil {
		repos := make(map[string][]models.Repository, len(res.TopicRepos))
		for _, tr := range res.TopicRepos {
			repos[tr.Topic.Title] = tr.Repos
		}
		if err := p.sheets.ExportRun(ctx, res.StartedAt, res.Topics, repos); err != nil {
			p.logger.Warn("Failed to write to Google Sheets", "err", err)
		}
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyRun(res, p.cfg.Telegram.MinStars); err != nil {
			p.logger.Warn("Failed to send Telegram summary", "err", err)
		}
	}
}

// Close releases the fetcher and database in reverse order of creation
func (p *pipeline) Close() error {
	var errs *multierror.Error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
