package models

import (
	"errors"
	"fmt"
)

// ErrInvalidTopic is returned when a topic is missing a required field
var ErrInvalidTopic = errors.New("invalid topic")

// ErrInvalidRepository is returned when a repository record is missing a required field
var ErrInvalidRepository = errors.New("invalid repository")

// Topic represents one entry of the topics listing page
type Topic struct {
	Title       string `csv:"Title"`
	Description string `csv:"Description"`
	URL         string `csv:"URL"`
}

// NewTopic creates a Topic, rejecting an empty URL.
// Title and description may be blank; the listing page sometimes renders them empty.
func NewTopic(title, description, url string) (Topic, error) {
	if url == "" {
		return Topic{}, fmt.Errorf("%w: empty url for %q", ErrInvalidTopic, title)
	}
	return Topic{Title: title, Description: description, URL: url}, nil
}

// Repository represents one repository listed on a topic page
type Repository struct {
	Username string `csv:"username"`
	RepoName string `csv:"repo_name"`
	Stars    int    `csv:"stars"`
	RepoURL  string `csv:"repo_url"`
}

// NewRepository creates a Repository record
func NewRepository(username, repoName string, stars int, repoURL string) (Repository, error) {
	switch {
	case username == "":
		return Repository{}, fmt.Errorf("%w: empty username", ErrInvalidRepository)
	case repoName == "":
		return Repository{}, fmt.Errorf("%w: empty repo name", ErrInvalidRepository)
	case repoURL == "":
		return Repository{}, fmt.Errorf("%w: empty url for %s/%s", ErrInvalidRepository, username, repoName)
	case stars < 0:
		return Repository{}, fmt.Errorf("%w: negative star count %d", ErrInvalidRepository, stars)
	}
	return Repository{Username: username, RepoName: repoName, Stars: stars, RepoURL: repoURL}, nil
}

// FullName returns "owner/name"
func (r Repository) FullName() string {
	return r.Username + "/" + r.RepoName
}
