package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page kinds used as the "kind" label
const (
	KindListing = "listing"
	KindTopic   = "topic"
)

// Metrics holds the scraper's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetched   *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	ReposExtracted prometheus.Counter
	ItemsSkipped   *prometheus.CounterVec
	FilesWritten   prometheus.Counter
	LastRun        prometheus.Gauge
	LastRunFailed  prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topic_scraper_pages_fetched_total",
			Help: "Pages fetched successfully",
		}, []string{"kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topic_scraper_fetch_errors_total",
			Help: "Pages that failed to load",
		}, []string{"kind"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topic_scraper_fetch_duration_seconds",
			Help:    "Time spent fetching one page",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		ReposExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topic_scraper_repos_extracted_total",
			Help: "Repository records extracted",
		}),
		ItemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "topic_scraper_items_skipped_total",
			Help: "Items dropped during extraction, by reason",
		}, []string{"reason"}),
		FilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "topic_scraper_files_written_total",
			Help: "CSV files written",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topic_scraper_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		LastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "topic_scraper_last_run_failed_topics",
			Help: "Topics that failed in the last run",
		}),
	}

	m.Registry.MustRegister(
		m.PagesFetched,
		m.FetchErrors,
		m.FetchDuration,
		m.ReposExtracted,
		m.ItemsSkipped,
		m.FilesWritten,
		m.LastRun,
		m.LastRunFailed,
	)
	return m
}

// ObserveFetch records one fetch attempt
func (m *Metrics) ObserveFetch(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(kind).Inc()
		return
	}
	m.PagesFetched.WithLabelValues(kind).Inc()
}

// Extracted records repositories kept and items dropped from one page
func (m *Metrics) Extracted(repos, truncated, skipped int) {
	if m == nil {
		return
	}
	m.ReposExtracted.Add(float64(repos))
	m.ItemsSkipped.WithLabelValues("truncated").Add(float64(truncated))
	m.ItemsSkipped.WithLabelValues("malformed").Add(float64(skipped))
}

// FileWritten records one CSV file
func (m *Metrics) FileWritten() {
	if m == nil {
		return
	}
	m.FilesWritten.Inc()
}

// RunFinished records the end of a run
func (m *Metrics) RunFinished(at time.Time, failedTopics int) {
	if m == nil {
		return
	}
	m.LastRun.Set(float64(at.Unix()))
	m.LastRunFailed.Set(float64(failedTopics))
}

// WriteTextfile writes the current values in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is canceled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
