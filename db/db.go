package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection that archives scrape runs
type DB struct {
	conn   *sql.DB
	driver string
	logger *log.Logger
}

// Open connects to the database and initializes the schema.
// driver is "postgres" (lib/pq) or "sqlite" (modernc.org/sqlite).
func Open(ctx context.Context, driver, dsn string, logger *log.Logger) (*DB, error) {
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if logger == nil {
		logger = log.Default()
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, driver: driver, logger: logger}
	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema(ctx context.Context) error {
	idColumn := "SERIAL PRIMARY KEY"
	if db.driver == "sqlite" {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []struct {
		name  string
		query string
	}{
		{"runs", `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
				topics_count INTEGER NOT NULL DEFAULT 0,
				repos_count INTEGER NOT NULL DEFAULT 0,
				failed_topics INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP NOT NULL,
				finished_at TIMESTAMP,
				CONSTRAINT valid_status CHECK (status IN ('in_progress', 'done', 'failed'))
			)`},
		{"topics", `
			CREATE TABLE IF NOT EXISTS topics (
				id ` + idColumn + `,
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				url TEXT NOT NULL
			)`},
		{"repositories", `
			CREATE TABLE IF NOT EXISTS repositories (
				id ` + idColumn + `,
				run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
				topic_title TEXT NOT NULL,
				position INTEGER NOT NULL,
				username TEXT NOT NULL,
				repo_name TEXT NOT NULL,
				stars INTEGER NOT NULL,
				repo_url TEXT NOT NULL
			)`},
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", stmt.name, err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_run_id ON topics(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_run_id ON repositories(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_repositories_topic ON repositories(run_id, topic_title)`,
	}
	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			db.logger.Warn("Failed to create index", "query", idx, "err", err)
		}
	}

	db.logger.Debug("Database schema initialized", "driver", db.driver)
	return nil
}

// rebind rewrites ? placeholders into the $N form lib/pq expects
func (db *DB) rebind(query string) string {
	if db.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
