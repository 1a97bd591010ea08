package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"topic-scraper/config"
	"topic-scraper/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://github.com"

func newTestParser() *Parser {
	return NewParser(config.SelectorConfig{}, log.New(os.Stderr))
}

func loadDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func loadFixture(t *testing.T, name string) *goquery.Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return loadDoc(t, string(data))
}

func topicHTML(titles, descs, links int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < titles; i++ {
		sb.WriteString(`<p class="f3 lh-condensed mb-0 mt-1 Link--primary">Topic ` + string(rune('A'+i)) + `</p>`)
	}
	for i := 0; i < descs; i++ {
		sb.WriteString(`<p class="f5 color-fg-muted mb-0 mt-1">Description ` + string(rune('A'+i)) + `</p>`)
	}
	for i := 0; i < links; i++ {
		sb.WriteString(`<a class="no-underline flex-1 d-flex flex-column" href="/topics/` + string(rune('a'+i)) + `"></a>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestExtractTopicsFixture(t *testing.T) {
	result, err := newTestParser().ExtractTopics(loadFixture(t, "topics.html"), baseURL)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Truncated)
	require.Len(t, result.Topics, 3)
	assert.Equal(t, models.Topic{
		Title:       "3D",
		Description: "3D refers to the use of three-dimensional graphics, modeling, and animation.",
		URL:         "https://github.com/topics/3d",
	}, result.Topics[0])
	assert.Equal(t, "Ajax", result.Topics[1].Title)
	assert.Equal(t, "https://github.com/topics/ajax", result.Topics[1].URL)
	// absolute hrefs are kept, text is trimmed
	assert.Equal(t, "Algorithm", result.Topics[2].Title)
	assert.Equal(t, "https://github.com/topics/algorithm", result.Topics[2].URL)
}

func TestExtractTopicsPositionalPairing(t *testing.T) {
	tests := []struct {
		name              string
		titles, descs, ls int
		wantCount         int
		wantTruncated     int
	}{
		{"equal lengths", 4, 4, 4, 4, 0},
		{"fewer descriptions", 3, 2, 3, 2, 2},
		{"fewer links", 3, 3, 1, 1, 4},
		{"no titles", 0, 2, 2, 0, 4},
		{"empty page", 0, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := loadDoc(t, topicHTML(tt.titles, tt.descs, tt.ls))
			result, err := newTestParser().ExtractTopics(doc, baseURL)
			require.NoError(t, err)
			assert.Len(t, result.Topics, tt.wantCount)
			assert.Equal(t, tt.wantTruncated, result.Truncated)

			// source order, i-th title with i-th description and link
			for i, topic := range result.Topics {
				letter := string(rune('A' + i))
				assert.Equal(t, "Topic "+letter, topic.Title)
				assert.Equal(t, "Description "+letter, topic.Description)
				assert.Equal(t, baseURL+"/topics/"+strings.ToLower(letter), topic.URL)
				assert.NotEmpty(t, topic.URL)
			}
		})
	}
}

func TestExtractTopicsMissingHref(t *testing.T) {
	doc := loadDoc(t, `<html><body>
		<p class="f3 lh-condensed mb-0 mt-1 Link--primary">Ajax</p>
		<p class="f5 color-fg-muted mb-0 mt-1">desc</p>
		<a class="no-underline flex-1 d-flex flex-column">no href</a>
	</body></html>`)

	_, err := newTestParser().ExtractTopics(doc, baseURL)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.ErrorIs(t, err, errMissingHref)
}

func TestExtractTopicsBlankTitleKept(t *testing.T) {
	doc := loadDoc(t, `<html><body>
		<p class="f3 lh-condensed mb-0 mt-1 Link--primary">Ajax</p>
		<p class="f3 lh-condensed mb-0 mt-1 Link--primary"> </p>
		<p class="f3 lh-condensed mb-0 mt-1 Link--primary">Go</p>
		<p class="f5 color-fg-muted mb-0 mt-1">Async</p>
		<p class="f5 color-fg-muted mb-0 mt-1">nameless</p>
		<p class="f5 color-fg-muted mb-0 mt-1">Gopher</p>
		<a class="no-underline flex-1 d-flex flex-column" href="/topics/ajax"></a>
		<a class="no-underline flex-1 d-flex flex-column" href="/topics/x"></a>
		<a class="no-underline flex-1 d-flex flex-column" href="/topics/go"></a>
	</body></html>`)

	result, err := newTestParser().ExtractTopics(doc, baseURL)
	require.NoError(t, err)
	require.Len(t, result.Topics, 3)
	assert.Zero(t, result.Truncated)
	assert.Equal(t, models.Topic{Title: "", Description: "nameless", URL: baseURL + "/topics/x"}, result.Topics[1])
	assert.Equal(t, "Go", result.Topics[2].Title)
}

func TestExtractTopicsCustomSelectors(t *testing.T) {
	doc := loadDoc(t, `<html><body>
		<h2 class="name">Go</h2><div class="about">The Go language</div><a class="go" href="/topics/go">go</a>
	</body></html>`)

	p := NewParser(config.SelectorConfig{
		TopicTitle:       "h2.name",
		TopicDescription: "div.about",
		TopicLink:        "a.go",
	}, nil)
	result, err := p.ExtractTopics(doc, "http://localhost:8080")
	require.NoError(t, err)
	require.Len(t, result.Topics, 1)
	assert.Equal(t, "http://localhost:8080/topics/go", result.Topics[0].URL)
}

func TestExtractReposFixture(t *testing.T) {
	result := newTestParser().ExtractRepos(loadFixture(t, "topic_repos.html"), baseURL)

	assert.Empty(t, result.Skipped)
	assert.Equal(t, 0, result.Truncated)
	assert.Equal(t, []models.Repository{
		{Username: "mrdoob", RepoName: "three.js", Stars: 98400, RepoURL: "https://github.com/mrdoob/three.js"},
		{Username: "libgdx", RepoName: "libgdx", Stars: 22500, RepoURL: "https://github.com/libgdx/libgdx"},
		{Username: "pmndrs", RepoName: "react-three-fiber", Stars: 950, RepoURL: "https://github.com/pmndrs/react-three-fiber"},
	}, result.Repos)
}

func TestExtractReposSkipsMalformedPair(t *testing.T) {
	doc := loadDoc(t, `<html><body>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/a">a</a> / <a href="/a/one">one</a></h3>
		<span id="repo-stars-counter-star">1k</span>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/broken">broken</a></h3>
		<span id="repo-stars-counter-star">5</span>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/c">c</a> / <a href="/c/three">three</a></h3>
		<span id="repo-stars-counter-star">7</span>
	</body></html>`)

	result := newTestParser().ExtractRepos(doc, baseURL)
	require.Len(t, result.Repos, 2)
	assert.Equal(t, "a/one", result.Repos[0].FullName())
	assert.Equal(t, 1000, result.Repos[0].Stars)
	assert.Equal(t, "c/three", result.Repos[1].FullName())
	require.Len(t, result.Skipped, 1)
	assert.ErrorIs(t, result.Skipped[0], errMissingLink)
}

func TestExtractReposSkipReasons(t *testing.T) {
	doc := loadDoc(t, `<html><body>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/a">a</a> / <a>nohref</a></h3>
		<span id="repo-stars-counter-star">1</span>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/b">b</a> / <a href="/b/bad">bad</a></h3>
		<span id="repo-stars-counter-star">lots</span>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/c">c</a> / <a href="/c/neg">neg</a></h3>
		<span id="repo-stars-counter-star">-4</span>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/d">d</a> / <a href="/d/ok">ok</a></h3>
		<span id="repo-stars-counter-star">12</span>
	</body></html>`)

	result := newTestParser().ExtractRepos(doc, baseURL)
	require.Len(t, result.Repos, 1)
	assert.Equal(t, "d/ok", result.Repos[0].FullName())
	require.Len(t, result.Skipped, 3)
	assert.ErrorIs(t, result.Skipped[0], errMissingHref)

	var parseErr *ParseError
	assert.ErrorAs(t, result.Skipped[1], &parseErr)
	assert.Equal(t, "star count", parseErr.Field)
	assert.ErrorIs(t, result.Skipped[2], models.ErrInvalidRepository)
}

func TestExtractReposTruncates(t *testing.T) {
	doc := loadDoc(t, `<html><body>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/a">a</a> / <a href="/a/one">one</a></h3>
		<h3 class="f3 color-fg-muted text-normal lh-condensed"><a href="/b">b</a> / <a href="/b/two">two</a></h3>
		<span id="repo-stars-counter-star">3</span>
	</body></html>`)

	result := newTestParser().ExtractRepos(doc, baseURL)
	assert.Len(t, result.Repos, 1)
	assert.Equal(t, 1, result.Truncated)
	assert.Empty(t, result.Skipped)
}

func TestExtractReposEmptyPage(t *testing.T) {
	result := newTestParser().ExtractRepos(loadDoc(t, "<html><body><p>nothing here</p></body></html>"), baseURL)
	assert.Empty(t, result.Repos)
	assert.Empty(t, result.Skipped)
}

func TestPairLength(t *testing.T) {
	n, discarded := pairLength(3, 2, 3)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, discarded)

	n, discarded = pairLength()
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, discarded)
}
