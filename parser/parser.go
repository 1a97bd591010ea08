package parser

import (
	"fmt"
	"net/url"
	"strings"

	"topic-scraper/config"
	"topic-scraper/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
)

// Parser extracts topic and repository data from GitHub pages.
//
// Each role on a page (title, description, link, ...) is selected on its own
// and the collections are paired by position. When the collections differ in
// length the pairing stops at the shortest one; the number of discarded
// trailing elements is reported as Truncated.
type Parser struct {
	sel    config.SelectorConfig
	logger *log.Logger
}

// TopicResult is the outcome of ExtractTopics
type TopicResult struct {
	Topics    []models.Topic
	Truncated int
}

// RepoResult is the outcome of ExtractRepos
type RepoResult struct {
	Repos     []models.Repository
	Truncated int
	Skipped   []error
}

// NewParser creates a new Parser instance. Empty selectors fall back to the defaults.
func NewParser(sel config.SelectorConfig, logger *log.Logger) *Parser {
	def := config.DefaultSelectors()
	if sel.TopicTitle == "" {
		sel.TopicTitle = def.TopicTitle
	}
	if sel.TopicDescription == "" {
		sel.TopicDescription = def.TopicDescription
	}
	if sel.TopicLink == "" {
		sel.TopicLink = def.TopicLink
	}
	if sel.RepoBlock == "" {
		sel.RepoBlock = def.RepoBlock
	}
	if sel.RepoStars == "" {
		sel.RepoStars = def.RepoStars
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{sel: sel, logger: logger}
}

// ExtractTopics extracts topics from the topics listing page.
// Any malformed entry fails the whole extraction.
func (p *Parser) ExtractTopics(doc *goquery.Document, baseURL string) (TopicResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return TopicResult{}, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	titles := doc.Find(p.sel.TopicTitle)
	descs := doc.Find(p.sel.TopicDescription)
	links := doc.Find(p.sel.TopicLink)

	n, truncated := pairLength(titles.Length(), descs.Length(), links.Length())
	if truncated > 0 {
		p.logger.Warn("Topic collections differ in length, truncating",
			"titles", titles.Length(), "descriptions", descs.Length(), "links", links.Length(), "discarded", truncated)
	}

	topics := make([]models.Topic, 0, n)
	for i := 0; i < n; i++ {
		link := links.Eq(i)
		href, ok := link.Attr("href")
		if !ok {
			return TopicResult{}, &ParseError{Field: "topic link", Text: cleanText(link), Err: errMissingHref}
		}
		topicURL, err := resolveURL(base, href)
		if err != nil {
			return TopicResult{}, &ParseError{Field: "topic link", Text: href, Err: err}
		}

		title := cleanText(titles.Eq(i))
		topic, err := models.NewTopic(title, cleanText(descs.Eq(i)), topicURL)
		if err != nil {
			return TopicResult{}, &ParseError{Field: "topic", Text: title, Err: err}
		}
		topics = append(topics, topic)
	}

	return TopicResult{Topics: topics, Truncated: truncated}, nil
}

// ExtractRepos extracts repositories from a topic page.
// A malformed entry is logged and skipped; it never fails the page.
func (p *Parser) ExtractRepos(doc *goquery.Document, baseURL string) RepoResult {
	var result RepoResult

	base, baseErr := url.Parse(baseURL)

	blocks := doc.Find(p.sel.RepoBlock)
	stars := doc.Find(p.sel.RepoStars)

	n, truncated := pairLength(blocks.Length(), stars.Length())
	result.Truncated = truncated
	if truncated > 0 {
		p.logger.Warn("Repository collections differ in length, truncating",
			"repos", blocks.Length(), "stars", stars.Length(), "discarded", truncated)
	}

	for i := 0; i < n; i++ {
		var (
			repo models.Repository
			err  error
		)
		if baseErr != nil {
			err = fmt.Errorf("invalid base URL %q: %w", baseURL, baseErr)
		} else {
			repo, err = p.extractRepo(blocks.Eq(i), stars.Eq(i), base)
		}
		if err != nil {
			p.logger.Warn("Error processing repository", "index", i, "err", err)
			result.Skipped = append(result.Skipped, err)
			continue
		}
		result.Repos = append(result.Repos, repo)
	}

	return result
}

// extractRepo builds one record from a repository block and its star count element
func (p *Parser) extractRepo(block, star *goquery.Selection, base *url.URL) (models.Repository, error) {
	links := block.Find("a")
	if links.Length() < 2 {
		return models.Repository{}, &ParseError{Field: "repository block", Text: cleanText(block), Err: errMissingLink}
	}
	owner := links.Eq(0)
	name := links.Eq(1)

	href, ok := name.Attr("href")
	if !ok {
		return models.Repository{}, &ParseError{Field: "repository link", Text: cleanText(name), Err: errMissingHref}
	}
	repoURL, err := resolveURL(base, href)
	if err != nil {
		return models.Repository{}, &ParseError{Field: "repository link", Text: href, Err: err}
	}

	count, err := ParseStarCount(star.Text())
	if err != nil {
		return models.Repository{}, err
	}

	return models.NewRepository(cleanText(owner), cleanText(name), count, repoURL)
}

// pairLength returns how many positional pairs can be formed from collections
// of the given lengths and how many trailing elements are left over in total.
func pairLength(lengths ...int) (n, discarded int) {
	if len(lengths) == 0 {
		return 0, 0
	}
	n = lengths[0]
	for _, l := range lengths[1:] {
		if l < n {
			n = l
		}
	}
	for _, l := range lengths {
		discarded += l - n
	}
	return n, discarded
}

func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func cleanText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
