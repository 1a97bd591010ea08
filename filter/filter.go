package filter

import (
	"topic-scraper/models"
)

// Filter applies filter criteria to repositories
type Filter struct {
	minStars int
}

// NewFilter creates a Filter keeping repositories with at least minStars stars
func NewFilter(minStars int) *Filter {
	return &Filter{minStars: minStars}
}

// Apply returns the repositories that match, in their original order
func (f *Filter) Apply(repos []models.Repository) []models.Repository {
	var filtered []models.Repository
	for _, repo := range repos {
		if f.Matches(repo) {
			filtered = append(filtered, repo)
		}
	}
	return filtered
}

// Matches checks if a repository matches all filter criteria
func (f *Filter) Matches(repo models.Repository) bool {
	return repo.Stars >= f.minStars
}
