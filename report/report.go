// Package report summarizes the CSV files left by a scrape run.
package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"topic-scraper/models"
	"topic-scraper/tabular"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

// Report is the analysis of one topics file and its repository files
type Report struct {
	TopicsFile string
	Topics     []TopicStats
	Files      []string
	TotalRepos int
	TotalStars int64
}

// TopicStats describes one topic's repository file
type TopicStats struct {
	Topic models.Topic
	File  string // empty when the topic has no repository file
	Repos int
	Stars int64
	Top   *models.Repository // first row of the file
}

// Analyze reads topicsPath and every repository file under outputDir that
// belongs to one of its topics. Missing repository files are not an error.
func Analyze(topicsPath, outputDir string) (*Report, error) {
	topics, err := tabular.ReadTopics(topicsPath)
	if err != nil {
		return nil, err
	}

	r := &Report{TopicsFile: topicsPath, Files: []string{topicsPath}}
	for _, topic := range topics {
		ts := TopicStats{Topic: topic}

		path := tabular.RepoFilePath(outputDir, topic.Title)
		repos, err := tabular.ReadRepos(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("topic %q: %w", topic.Title, err)
		default:
			ts.File = path
			ts.Repos = len(repos)
			for _, repo := range repos {
				ts.Stars += int64(repo.Stars)
			}
			if len(repos) > 0 {
				top := repos[0]
				ts.Top = &top
			}
			r.Files = append(r.Files, path)
		}

		r.TotalRepos += ts.Repos
		r.TotalStars += ts.Stars
		r.Topics = append(r.Topics, ts)
	}
	return r, nil
}

// Render writes the created files, a per-topic table and the totals to w
func (r *Report) Render(w io.Writer) error {
	fmt.Fprintf(w, "Total topics scraped: %s\n\n", humanize.Comma(int64(len(r.Topics))))

	fmt.Fprintln(w, "Created files:")
	for _, f := range r.Files {
		fmt.Fprintf(w, "- %s\n", f)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Topic", "Repos", "Top repository", "Stars"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, ts := range r.Topics {
		top, stars := "-", "-"
		if ts.Top != nil {
			top = ts.Top.FullName()
			stars = humanize.Comma(int64(ts.Top.Stars))
		}
		table.Append([]string{ts.Topic.Title, strconv.Itoa(ts.Repos), top, stars})
	}
	table.Render()

	_, err := fmt.Fprintf(w, "\nTotal repositories found: %s\nTotal stars across all repos: %s\n",
		humanize.Comma(int64(r.TotalRepos)), humanize.Comma(r.TotalStars))
	return err
}

// Run analyzes and renders in one step
func Run(w io.Writer, topicsPath, outputDir string) error {
	r, err := Analyze(topicsPath, outputDir)
	if err != nil {
		return err
	}
	return r.Render(w)
}
