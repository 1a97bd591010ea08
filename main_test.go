package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topicsHTML = `<html><body>
<a class="no-underline flex-1 d-flex flex-column" href="/topics/3d">
  <p class="f3 lh-condensed mb-0 mt-1 Link--primary">3D</p>
  <p class="f5 color-fg-muted mb-0 mt-1">3D modeling</p>
</a>
<a class="no-underline flex-1 d-flex flex-column" href="/topics/ajax">
  <p class="f3 lh-condensed mb-0 mt-1 Link--primary">Ajax</p>
  <p class="f5 color-fg-muted mb-0 mt-1">Asynchronous JavaScript</p>
</a>
</body></html>`

const reposHTML = `<html><body>
<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/mrdoob">mrdoob</a> / <a href="/mrdoob/three.js">three.js</a></h3>
<span id="repo-stars-counter-star">98.4k</span>
</body></html>`

func newGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/topics":
			w.Write([]byte(topicsHTML))
		case "/topics/3d":
			w.Write([]byte(reposHTML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	dir        string
	configPath string
	outputDir  string
	topicsFile string
	textfile   string
}

func newTestEnv(t *testing.T, baseURL string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		outputDir:  filepath.Join(dir, "topic_repos"),
		topicsFile: filepath.Join(dir, "topics.csv"),
		textfile:   filepath.Join(dir, "scraper.prom"),
	}
	cfg := fmt.Sprintf(`base_url: %s
output_dir: %s
topics_file: %s
database:
  driver: sqlite
  dsn: %s
metrics:
  textfile: %s
`, baseURL, env.outputDir, env.topicsFile, filepath.Join(dir, "runs.db"), env.textfile)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0644))
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { log.SetDefault(log.New(os.Stderr)) })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScrapeThenAnalyze(t *testing.T) {
	srv := newGitHubServer(t)
	env := newTestEnv(t, srv.URL)

	_, err := execute(t, "scrape", "--config", env.configPath)
	require.NoError(t, err)

	assert.FileExists(t, env.topicsFile)
	assert.FileExists(t, filepath.Join(env.outputDir, "3d_repos.csv"))
	assert.NoFileExists(t, filepath.Join(env.outputDir, "ajax_repos.csv"))

	prom, err := os.ReadFile(env.textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "topic_scraper_repos_extracted_total 1")

	out, err := execute(t, "analyze", "--config", env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Total topics scraped: 2")
	assert.Contains(t, out, "mrdoob/three.js")
	assert.Contains(t, out, "98,400")
	assert.Contains(t, out, "done, 2 topics, 1 repositories, 1 failed topics")
}

func TestScrapeFlagsOverrideConfig(t *testing.T) {
	srv := newGitHubServer(t)
	env := newTestEnv(t, "http://127.0.0.1:1")
	topics := filepath.Join(env.dir, "other.csv")

	_, err := execute(t, "scrape", "--config", env.configPath, "--base-url", srv.URL, "--topics-file", topics)
	require.NoError(t, err)
	assert.FileExists(t, topics)
}

func TestScrapeFailureExitCode(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	env := newTestEnv(t, srv.URL)

	_, err := execute(t, "scrape", "--config", env.configPath)
	assert.NoError(t, err)

	_, err = execute(t, "scrape", "--config", env.configPath, "--strict")
	assert.ErrorContains(t, err, "status 404")
}

func TestScrapeStrictSkippedTopic(t *testing.T) {
	srv := newGitHubServer(t)
	env := newTestEnv(t, srv.URL)

	_, err := execute(t, "scrape", "--config", env.configPath, "--strict")
	assert.ErrorContains(t, err, `topic "Ajax"`)
}

func TestScrapeRejectsUnknownEngine(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	_, err := execute(t, "scrape", "--config", env.configPath, "--engine", "curl")
	assert.ErrorContains(t, err, `unknown fetcher engine "curl"`)
}

func TestMissingConfigUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, "https://github.com", cfg.BaseURL)
	assert.Equal(t, "topic_repos", cfg.OutputDir)
}

func TestInvalidConfigIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetcher:\n  engine: wget\n"), 0644))

	_, err := loadConfig(path, log.New(io.Discard))
	assert.Error(t, err)
}

func TestScheduleRejectsInvalidCron(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	_, err := execute(t, "schedule", "--config", env.configPath, "--cron", "whenever")
	assert.ErrorContains(t, err, "invalid schedule")
}
