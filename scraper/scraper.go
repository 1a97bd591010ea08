// Package scraper runs a full scrape: the topics listing page first, then
// every topic's repository page, persisting each as a CSV file.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"topic-scraper/fetcher"
	"topic-scraper/metrics"
	"topic-scraper/models"
	"topic-scraper/parser"
	"topic-scraper/tabular"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// TopicsPath is the path of the listing page relative to the base URL
const TopicsPath = "/topics"

// Recorder archives a run. db.DB implements it.
type Recorder interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	SaveTopics(ctx context.Context, runID string, topics []models.Topic) error
	SaveRepos(ctx context.Context, runID string, topic models.Topic, repos []models.Repository) error
	FinishRun(ctx context.Context, runID string, status string, failedTopics int, finishedAt time.Time) error
}

// Scraper sequences fetch, extract and persist across the topic list
type Scraper struct {
	fetcher   fetcher.Fetcher
	parser    *parser.Parser
	baseURL   string
	outputDir string
	logger    *log.Logger
	recorder  Recorder
	metrics   *metrics.Metrics
}

// Option configures a Scraper
type Option func(*Scraper)

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Scraper) {
		s.logger = l
	}
}

// WithRecorder archives every run through r
func WithRecorder(r Recorder) Option {
	return func(s *Scraper) {
		s.recorder = r
	}
}

// WithMetrics records fetch and extraction counters in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// NewScraper creates a Scraper that reads from baseURL and writes per-topic
// files under outputDir
func NewScraper(f fetcher.Fetcher, p *parser.Parser, baseURL, outputDir string, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:   f,
		parser:    p,
		baseURL:   strings.TrimRight(baseURL, "/"),
		outputDir: outputDir,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScrapeAll scrapes the topics listing, writes it to topicsOutputPath, then
// scrapes each topic's repositories in source order.
//
// A failure while loading or writing the listing is returned. A failure on a
// single topic is logged, recorded in the result and the run moves on.
func (s *Scraper) ScrapeAll(ctx context.Context, topicsOutputPath string) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := s.logger.With("run", result.RunID)

	s.record(logger, "start run", func(r Recorder) error {
		return r.StartRun(ctx, result.RunID, result.StartedAt)
	})

	topics, err := s.scrapeTopics(ctx, logger, topicsOutputPath)
	if err != nil {
		s.finish(ctx, logger, result, err)
		return nil, err
	}
	result.Topics = topics
	result.TopicsFile = topicsOutputPath

	s.record(logger, "save topics", func(r Recorder) error {
		return r.SaveTopics(ctx, result.RunID, topics)
	})

	for _, topic := range topics {
		if err := ctx.Err(); err != nil {
			s.finish(ctx, logger, result, err)
			return result, err
		}

		tr, err := s.scrapeTopic(ctx, logger, topic)
		if err != nil {
			logger.Error("Error processing topic", "topic", topic.Title, "err", err)
			result.addTopicError(topic, err)
			continue
		}
		result.TopicRepos = append(result.TopicRepos, tr)

		if len(tr.Repos) > 0 {
			s.record(logger, "save repositories", func(r Recorder) error {
				return r.SaveRepos(ctx, result.RunID, topic, tr.Repos)
			})
		}
	}

	s.finish(ctx, logger, result, nil)
	logger.Info("Scrape finished",
		"topics", len(result.Topics),
		"files", len(result.RepoFiles()),
		"failed", len(result.TopicErrors),
		"elapsed", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return result, nil
}

// scrapeTopics loads the listing page and writes the topics file
func (s *Scraper) scrapeTopics(ctx context.Context, logger *log.Logger, topicsOutputPath string) ([]models.Topic, error) {
	if err := tabular.EnsureDir(s.outputDir); err != nil {
		return nil, err
	}

	doc, err := s.fetch(ctx, metrics.KindListing, s.baseURL+TopicsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch topics: %w", err)
	}

	extracted, err := s.parser.ExtractTopics(doc, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract topics: %w", err)
	}
	s.metrics.Extracted(0, extracted.Truncated, 0)

	if err := tabular.WriteTopics(topicsOutputPath, extracted.Topics); err != nil {
		return nil, err
	}
	s.metrics.FileWritten()

	logger.Info("Saved topics", "count", len(extracted.Topics), "path", topicsOutputPath)
	return extracted.Topics, nil
}

// scrapeTopic loads one topic page and writes its repositories file if any were found
func (s *Scraper) scrapeTopic(ctx context.Context, logger *log.Logger, topic models.Topic) (TopicRepos, error) {
	tr := TopicRepos{Topic: topic}

	doc, err := s.fetch(ctx, metrics.KindTopic, topic.URL)
	if err != nil {
		return tr, err
	}

	extracted := s.parser.ExtractRepos(doc, s.baseURL)
	s.metrics.Extracted(len(extracted.Repos), extracted.Truncated, len(extracted.Skipped))
	tr.Repos = extracted.Repos
	tr.Truncated = extracted.Truncated
	tr.Skipped = len(extracted.Skipped)

	if len(tr.Repos) == 0 {
		logger.Debug("No repositories found", "topic", topic.Title)
		return tr, nil
	}

	path := tabular.RepoFilePath(s.outputDir, topic.Title)
	if err := tabular.WriteRepos(path, tr.Repos); err != nil {
		return tr, err
	}
	s.metrics.FileWritten()
	tr.File = path

	logger.Info("Saved repositories", "topic", topic.Title, "count", len(tr.Repos), "path", path)
	return tr, nil
}

func (s *Scraper) fetch(ctx context.Context, kind, url string) (*goquery.Document, error) {
	start := time.Now()
	doc, err := s.fetcher.Fetch(ctx, url)
	s.metrics.ObserveFetch(kind, time.Since(start), err)
	return doc, err
}

func (s *Scraper) finish(ctx context.Context, logger *log.Logger, result *Result, fatal error) {
	result.FinishedAt = time.Now()
	s.metrics.RunFinished(result.FinishedAt, len(result.TopicErrors))

	status := "done"
	if fatal != nil {
		status = "failed"
	}
	// the archive is written even when ctx was canceled
	s.record(logger, "finish run", func(r Recorder) error {
		return r.FinishRun(context.WithoutCancel(ctx), result.RunID, status, len(result.TopicErrors), result.FinishedAt)
	})
}

// record calls fn on the recorder, if any. Archive failures never fail a run.
func (s *Scraper) record(logger *log.Logger, what string, fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		logger.Warn("Failed to archive run", "step", what, "err", err)
	}
}
