// Package notify sends a short run summary to a Telegram chat.
package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"topic-scraper/filter"
	"topic-scraper/models"
	"topic-scraper/scraper"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects messages longer than this
const maxMessageLen = 4096

// Summary is what gets reported after a run
type Summary struct {
	RunID  string
	Topics int
	Files  int
	Repos  int
	Top    []TopRepo
	Failed []FailedTopic
}

// TopRepo is the most starred repository of one topic
type TopRepo struct {
	Topic string
	Repo  models.Repository
}

// FailedTopic is a topic that could not be scraped
type FailedTopic struct {
	Topic string
	Err   string
}

// SummaryFromResult builds a Summary. Only topics whose best repository has at
// least minStars stars are listed in Top.
func SummaryFromResult(res *scraper.Result, minStars int) Summary {
	s := Summary{
		RunID:  res.RunID,
		Topics: len(res.Topics),
		Files:  len(res.RepoFiles()),
		Repos:  res.TotalRepos(),
	}
	f := filter.NewFilter(minStars)
	for _, tr := range res.TopicRepos {
		best, ok := mostStarred(f.Apply(tr.Repos))
		if !ok {
			continue
		}
		s.Top = append(s.Top, TopRepo{Topic: tr.Topic.Title, Repo: best})
	}
	for _, te := range res.TopicErrors {
		s.Failed = append(s.Failed, FailedTopic{Topic: te.Topic.Title, Err: te.Err.Error()})
	}
	return s
}

func mostStarred(repos []models.Repository) (models.Repository, bool) {
	if len(repos) == 0 {
		return models.Repository{}, false
	}
	best := repos[0]
	for _, r := range repos[1:] {
		if r.Stars > best.Stars {
			best = r
		}
	}
	return best, true
}

// FormatSummary renders the summary as plain text
func FormatSummary(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scrape finished (run %s)\n", s.RunID)
	fmt.Fprintf(&b, "Topics: %s\n", humanize.Comma(int64(s.Topics)))
	fmt.Fprintf(&b, "Repositories: %s in %s files\n", humanize.Comma(int64(s.Repos)), humanize.Comma(int64(s.Files)))

	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "Failed topics: %d\n", len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(&b, "  - %s: %s\n", f.Topic, f.Err)
		}
	}

	if len(s.Top) > 0 {
		b.WriteString("\nTop repositories:\n")
		for _, t := range s.Top {
			fmt.Fprintf(&b, "%s: %s ★ %s\n", t.Topic, t.Repo.FullName(), humanize.Comma(int64(t.Repo.Stars)))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Notifier posts messages to one chat
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *log.Logger
}

// NewNotifier authorizes the bot token against the Telegram API
func NewNotifier(token string, chatID int64, logger *log.Logger) (*Notifier, error) {
	return newNotifier(token, tgbotapi.APIEndpoint, chatID, logger)
}

// newNotifier takes the endpoint format ("<base>/bot%s/%s") so tests can point it elsewhere
func newNotifier(token, endpoint string, chatID int64, logger *log.Logger) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is not set")
	}
	if logger == nil {
		logger = log.Default()
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	logger.Debug("Authorized on account", "username", bot.Self.UserName)

	return &Notifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// Send posts text, split into as many messages as needed
func (n *Notifier) Send(text string) error {
	for _, part := range splitMessage(text, maxMessageLen) {
		if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, part)); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

// NotifyRun formats and sends the summary of res
func (n *Notifier) NotifyRun(res *scraper.Result, minStars int) error {
	if err := n.Send(FormatSummary(SummaryFromResult(res, minStars))); err != nil {
		return err
	}
	n.logger.Info("Sent run summary", "chat", n.chatID, "run", res.RunID)
	return nil
}

// splitMessage splits text on line boundaries into parts no longer than maxLen
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			parts = append(parts, current.String())
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > maxLen {
			flush()
			// A single line that is too long is cut into pieces
			for len(line) >= maxLen {
				cut := runeCut(line, maxLen)
				parts = append(parts, line[:cut])
				line = line[cut:]
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()

	return parts
}

// runeCut returns the largest index <= n that does not split a UTF-8 sequence
func runeCut(s string, n int) int {
	cut := n
	for cut > 0 && cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		return n
	}
	return cut
}
