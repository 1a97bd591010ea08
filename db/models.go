package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"topic-scraper/models"
)

// Run statuses
const (
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ErrRunNotFound is returned when a run ID is unknown
var ErrRunNotFound = errors.New("run not found")

// Run represents one archived scrape run
type Run struct {
	ID           string
	Status       string // "in_progress", "done", "failed"
	TopicsCount  int
	ReposCount   int
	FailedTopics int
}

// StartRun creates a run row with status 'in_progress'
func (db *DB) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO runs (id, status, started_at)
		VALUES (?, ?, ?)
	`), runID, StatusInProgress, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SaveTopics stores the topics of a run in source order
func (db *DB) SaveTopics(ctx context.Context, runID string, topics []models.Topic) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, db.rebind(`
			INSERT INTO topics (run_id, position, title, description, url)
			VALUES (?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare topic insert: %w", err)
		}
		defer stmt.Close()

		for i, topic := range topics {
			if _, err := stmt.ExecContext(ctx, runID, i, topic.Title, topic.Description, topic.URL); err != nil {
				return fmt.Errorf("failed to save topic %q: %w", topic.Title, err)
			}
		}

		_, err = tx.ExecContext(ctx, db.rebind(`UPDATE runs SET topics_count = ? WHERE id = ?`), len(topics), runID)
		if err != nil {
			return fmt.Errorf("failed to update topics count: %w", err)
		}
		return nil
	})
}

// SaveRepos stores the repositories found for one topic of a run
func (db *DB) SaveRepos(ctx context.Context, runID string, topic models.Topic, repos []models.Repository) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, db.rebind(`
			INSERT INTO repositories (run_id, topic_title, position, username, repo_name, stars, repo_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare repository insert: %w", err)
		}
		defer stmt.Close()

		for i, repo := range repos {
			if _, err := stmt.ExecContext(ctx, runID, topic.Title, i, repo.Username, repo.RepoName, repo.Stars, repo.RepoURL); err != nil {
				return fmt.Errorf("failed to save repository %s: %w", repo.FullName(), err)
			}
		}

		_, err = tx.ExecContext(ctx, db.rebind(`UPDATE runs SET repos_count = repos_count + ? WHERE id = ?`), len(repos), runID)
		if err != nil {
			return fmt.Errorf("failed to update repos count: %w", err)
		}
		return nil
	})
}

// FinishRun marks a run as done or failed
func (db *DB) FinishRun(ctx context.Context, runID string, status string, failedTopics int, finishedAt time.Time) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE runs SET status = ?, failed_topics = ?, finished_at = ?
		WHERE id = ?
	`), status, failedTopics, finishedAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := db.conn.QueryRowContext(ctx, db.rebind(`
		SELECT id, status, topics_count, repos_count, failed_topics
		FROM runs
		WHERE id = ?
	`), runID).Scan(&run.ID, &run.Status, &run.TopicsCount, &run.ReposCount, &run.FailedTopics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// LatestRun returns the most recently started run
func (db *DB) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, status, topics_count, repos_count, failed_topics
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`).Scan(&run.ID, &run.Status, &run.TopicsCount, &run.ReposCount, &run.FailedTopics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}

// ListTopics returns the topics of a run in source order
func (db *DB) ListTopics(ctx context.Context, runID string) ([]models.Topic, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT title, description, url
		FROM topics
		WHERE run_id = ?
		ORDER BY position
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.Title, &t.Description, &t.URL); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ListRepos returns the repositories stored for one topic of a run
func (db *DB) ListRepos(ctx context.Context, runID, topicTitle string) ([]models.Repository, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT username, repo_name, stars, repo_url
		FROM repositories
		WHERE run_id = ? AND topic_title = ?
		ORDER BY position
	`), runID, topicTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []models.Repository
	for rows.Next() {
		var r models.Repository
		if err := rows.Scan(&r.Username, &r.RepoName, &r.Stars, &r.RepoURL); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
