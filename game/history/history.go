// Package history archives finished games in SQLite.
//
// A game is archived when its last player leaves and the session tears down.
// The archive is write-mostly: the server records one row per closed session
// and serves the most recent rows through GET /api/history.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotConfigured = errors.New("history store is not configured")

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	session_id     TEXT PRIMARY KEY,
	code           TEXT NOT NULL,
	host           TEXT NOT NULL,
	players_joined INTEGER NOT NULL,
	created_at     INTEGER NOT NULL,
	ended_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS matches_ended_at ON matches (ended_at DESC);
`

// Match is one archived game.
type Match struct {
	SessionID     string    `json:"session_id"`
	Code          string    `json:"code"`
	Host          string    `json:"host"`
	PlayersJoined int       `json:"players_joined"`
	CreatedAt     time.Time `json:"created_at"`
	EndedAt       time.Time `json:"ended_at"`
}

// Store persists matches in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the SQLite database at path and creates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps the pragmas below in effect for every query
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts m. Recording the same session twice keeps the first row.
func (s *Store) Record(ctx context.Context, m Match) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if strings.TrimSpace(m.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if m.EndedAt.IsZero() {
		m.EndedAt = time.Now().UTC()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = m.EndedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO matches (
		   session_id, code, host, players_joined, created_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?)`,
		m.SessionID,
		m.Code,
		m.Host,
		m.PlayersJoined,
		toMillis(m.CreatedAt),
		toMillis(m.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// Recent returns up to limit matches, most recently ended first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Match, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, code, host, players_joined, created_at, ended_at
		 FROM matches
		 ORDER BY ended_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var (
			m                  Match
			createdAt, endedAt int64
		)
		if err := rows.Scan(&m.SessionID, &m.Code, &m.Host, &m.PlayersJoined, &createdAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.CreatedAt = fromMillis(createdAt)
		m.EndedAt = fromMillis(endedAt)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}
