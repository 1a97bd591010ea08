package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFetcher implements the Fetcher interface using rod (headless browser).
// Use it when the listing markup is rendered by JavaScript.
type RodFetcher struct {
	browser   *rod.Browser
	userAgent string
	timeout   time.Duration
	logger    *log.Logger
}

// NewRodFetcher launches a headless browser and connects to it
func NewRodFetcher(opts ...Option) (*RodFetcher, error) {
	s := newSettings(opts)

	// This should be mounted as a volume to use disk instead of memory
	userDataDir := os.Getenv("SCRAPER_BROWSER_DIR")
	if userDataDir == "" {
		userDataDir = "/tmp/topic-scraper-browser"
	}
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		s.logger.Warn("Failed to create browser data directory", "dir", userDataDir, "err", err)
		userDataDir = ""
	}

	l := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		NoSandbox(true).
		Leakless(false). // Disable leakless to avoid antivirus issues
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions").
		Set("mute-audio")
	if userDataDir != "" {
		l = l.UserDataDir(userDataDir)
	}

	// Prefer a system Chrome/Chromium over downloading one
	for _, path := range []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	} {
		if _, err := os.Stat(path); err == nil {
			l = l.Bin(path)
			break
		}
	}

	browserURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RodFetcher{
		browser:   browser,
		userAgent: s.userAgent,
		timeout:   timeout,
		logger:    s.logger,
	}, nil
}

// Close closes the browser
func (rf *RodFetcher) Close() error {
	if rf.browser != nil {
		return rf.browser.Close()
	}
	return nil
}

// Fetch implements the Fetcher interface
func (rf *RodFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	page, err := rf.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to create page: %w", err)}
	}
	defer page.Close()

	if rf.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: rf.userAgent}); err != nil {
			rf.logger.Warn("Failed to set user agent", "err", err)
		}
	}

	page = page.Timeout(rf.timeout)
	defer page.CancelTimeout()

	// The first document response is the page itself; sub-resources are ignored
	status := 0
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		return true
	})

	rf.logger.Debug("Navigating", "url", url)
	if err := page.Navigate(url); err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to navigate: %w", err)}
	}
	wait()

	if status != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: status}
	}

	if err := page.WaitLoad(); err != nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("failed to load: %w", err)}
	}
	if err := page.WaitStable(500 * time.Millisecond); err != nil {
		rf.logger.Warn("Page did not stabilize within timeout, continuing anyway", "url", url, "err", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("failed to get HTML: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	return doc, nil
}
