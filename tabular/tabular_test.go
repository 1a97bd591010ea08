package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"topic-scraper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"3D", "3d"},
		{"Machine learning", "machine_learning"},
		{"Amazon Web Services", "amazon_web_services"},
		{"CI/CD", "ci_cd"},
		{"already_normal", "already_normal"},
		{"Tab\tand\nnewline", "tab_and_newline"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	inputs := []string{"3D", "Machine Learning", "  Leading and trailing  ", "Node.js", "C++", "Ünïcode Títle", "a/b\\c"}
	for _, in := range inputs {
		once := NormalizeTitle(in)
		assert.Equal(t, once, NormalizeTitle(once), "input %q", in)
		assert.Equal(t, strings.ToLower(once), once)
		assert.False(t, strings.ContainsFunc(once, unicode.IsSpace), "normalized %q contains whitespace", once)
	}
}

func TestRepoFilePath(t *testing.T) {
	assert.Equal(t, "machine_learning_repos.csv", RepoFileName("Machine Learning"))
	assert.Equal(t, filepath.Join("out", "3d_repos.csv"), RepoFilePath("out", "3D"))
}

func TestWriteTopics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "topics.csv")
	topics := []models.Topic{
		{Title: "3D", Description: "Graphics, modeling, and animation.", URL: "https://github.com/topics/3d"},
		{Title: "Ajax", Description: "", URL: "https://github.com/topics/ajax"},
	}

	require.NoError(t, WriteTopics(path, topics))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Title,Description,URL", lines[0])
	assert.Equal(t, `3D,"Graphics, modeling, and animation.",https://github.com/topics/3d`, lines[1])

	got, err := ReadTopics(path)
	require.NoError(t, err)
	assert.Equal(t, topics, got)
}

func TestWriteTopicsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.csv")
	require.NoError(t, WriteTopics(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Title,Description,URL", strings.TrimSpace(string(data)))
}

func TestWriteRepos(t *testing.T) {
	path := filepath.Join(t.TempDir(), RepoFileName("3D"))
	repos := []models.Repository{
		{Username: "mrdoob", RepoName: "three.js", Stars: 98400, RepoURL: "https://github.com/mrdoob/three.js"},
		{Username: "pmndrs", RepoName: "react-three-fiber", Stars: 900, RepoURL: "https://github.com/pmndrs/react-three-fiber"},
	}

	require.NoError(t, WriteRepos(path, repos))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "username,repo_name,stars,repo_url\n"))
	assert.Contains(t, string(data), "mrdoob,three.js,98400,https://github.com/mrdoob/three.js")

	got, err := ReadRepos(path)
	require.NoError(t, err)
	assert.Equal(t, repos, got)
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadRepos(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
