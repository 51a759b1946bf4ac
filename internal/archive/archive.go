// Package archive persists completed conversation exchanges in SQLite
// so history survives restarts and is queryable over the API.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultHistoryLimit = 50

// Exchange is one completed user/assistant turn.
type Exchange struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UserText          string    `json:"user_text"`
	AssistantText     string    `json:"assistant_text"`
	Iterations        int       `json:"iterations"`
	ContinueListening bool      `json:"continue_listening"`
}

// Store is a SQLite-backed exchange archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path and runs
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS exchanges (
			id                 TEXT PRIMARY KEY,
			created_at         TIMESTAMP NOT NULL,
			user_text          TEXT NOT NULL,
			assistant_text     TEXT NOT NULL,
			iterations         INTEGER NOT NULL,
			continue_listening INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_exchanges_created_at
			ON exchanges (created_at DESC);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one exchange and returns its id. A zero ID or
// CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, ex Exchange) (string, error) {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchanges
			(id, created_at, user_text, assistant_text, iterations, continue_listening)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.CreatedAt, ex.UserText, ex.AssistantText, ex.Iterations, ex.ContinueListening,
	)
	if err != nil {
		return "", fmt.Errorf("record exchange: %w", err)
	}
	return ex.ID, nil
}

// Recent returns the newest exchanges, most recent first. A limit of
// zero or less uses the default.
func (s *Store) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, user_text, assistant_text, iterations, continue_listening
		FROM exchanges
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.CreatedAt, &ex.UserText, &ex.AssistantText, &ex.Iterations, &ex.ContinueListening); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

// Count returns the number of archived exchanges.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&n)
	return n, err
}
