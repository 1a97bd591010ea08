package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
)

// Fetcher interface defines the contract for fetching implementations
type Fetcher interface {
	// Fetch issues a single GET for url and returns the parsed document.
	// Any response other than 200 OK yields a *FetchError.
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// FetchError reports a page that could not be loaded. StatusCode is 0 when
// no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load page %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to load page %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type settings struct {
	userAgent string
	timeout   time.Duration
	logger    *log.Logger
}

// Option configures a fetcher
type Option func(*settings)

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		s.userAgent = ua
	}
}

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

func newSettings(opts []Option) *settings {
	s := &settings{logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New returns the fetcher for engine ("colly" or "rod"). Callers must Close it.
func New(engine string, opts ...Option) (Fetcher, func() error, error) {
	switch engine {
	case "", "colly":
		return NewCollyFetcher(opts...), func() error { return nil }, nil
	case "rod":
		rf, err := NewRodFetcher(opts...)
		if err != nil {
			return nil, nil, err
		}
		return rf, rf.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetcher engine %q", engine)
	}
}
