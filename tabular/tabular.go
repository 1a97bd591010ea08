// Package tabular reads and writes topic and repository records as CSV files.
// Column names and order come from the csv struct tags on the models.
package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"topic-scraper/models"

	"github.com/gocarina/gocsv"
)

// RepoFileSuffix is appended to the normalized topic title to name its repository file
const RepoFileSuffix = "_repos.csv"

// NormalizeTitle turns a topic title into a filesystem-safe key:
// lowercase, with whitespace and path separators replaced by underscores.
func NormalizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, strings.ToLower(title))
}

// RepoFileName returns the file name used for a topic's repositories
func RepoFileName(title string) string {
	return NormalizeTitle(title) + RepoFileSuffix
}

// RepoFilePath returns the path of a topic's repository file under dir
func RepoFilePath(dir, title string) string {
	return filepath.Join(dir, RepoFileName(title))
}

// EnsureDir creates dir (and parents) if it doesn't exist
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteTopics writes topics to path with the header Title,Description,URL
func WriteTopics(path string, topics []models.Topic) error {
	if topics == nil {
		topics = []models.Topic{}
	}
	return writeFile(path, &topics)
}

// WriteRepos writes repositories to path with the header username,repo_name,stars,repo_url
func WriteRepos(path string, repos []models.Repository) error {
	if repos == nil {
		repos = []models.Repository{}
	}
	return writeFile(path, &repos)
}

// ReadTopics reads a file written by WriteTopics
func ReadTopics(path string) ([]models.Topic, error) {
	var topics []models.Topic
	if err := readFile(path, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// ReadRepos reads a file written by WriteRepos
func ReadRepos(path string) ([]models.Repository, error) {
	var repos []models.Repository
	if err := readFile(path, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func writeFile(path string, records interface{}) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := gocsv.MarshalFile(records, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func readFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
