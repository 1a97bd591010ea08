package scraper

import (
	"fmt"
	"time"

	"topic-scraper/models"

	"github.com/hashicorp/go-multierror"
)

// Result describes one ScrapeAll run
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Topics is the full listing in source order
	Topics     []models.Topic
	TopicsFile string

	// TopicRepos holds every topic whose page loaded, in source order,
	// including topics that yielded no repositories
	TopicRepos []TopicRepos

	// TopicErrors holds the topics that were skipped
	TopicErrors []TopicError

	errs *multierror.Error
}

// TopicRepos is the outcome of one topic page
type TopicRepos struct {
	Topic     models.Topic
	Repos     []models.Repository
	File      string // empty when no repositories were found
	Truncated int
	Skipped   int
}

// TopicError records a topic that failed
type TopicError struct {
	Topic models.Topic
	Err   error
}

func (e TopicError) Error() string {
	return fmt.Sprintf("topic %q: %v", e.Topic.Title, e.Err)
}

func (e TopicError) Unwrap() error {
	return e.Err
}

func (r *Result) addTopicError(topic models.Topic, err error) {
	te := TopicError{Topic: topic, Err: err}
	r.TopicErrors = append(r.TopicErrors, te)
	r.errs = multierror.Append(r.errs, te)
}

// Err returns the skipped topic failures combined, or nil if every topic loaded
func (r *Result) Err() error {
	return r.errs.ErrorOrNil()
}

// RepoFiles returns the repository files written, in topic order
func (r *Result) RepoFiles() []string {
	var files []string
	for _, tr := range r.TopicRepos {
		if tr.File != "" {
			files = append(files, tr.File)
		}
	}
	return files
}

// TotalRepos returns the number of repositories written across all topics
func (r *Result) TotalRepos() int {
	total := 0
	for _, tr := range r.TopicRepos {
		total += len(tr.Repos)
	}
	return total
}
