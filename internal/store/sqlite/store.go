// Package sqlite implements the companion store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence for books and notes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a new SQLite store at the given path.
// It configures WAL mode, migrates any legacy notes table, and runs
// the idempotent schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}

	// A failed migration leaves the old table in place (the transaction
	// rolls back); the store still opens so the rest of the app keeps
	// working against whatever layout is there.
	if err := s.migrateLegacyNotes(); err != nil {
		if logger != nil {
			logger.Error("legacy notes migration failed, continuing with existing layout", "error", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	// The (conversation_id, turn_index) pair is the idempotence key for
	// session captures. Created outside schema.sql so a database that
	// already holds colliding rows still opens; dedup then falls back to
	// the note ID alone.
	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_conversation_turn
		ON notes(conversation_id, turn_index)`)
	if err != nil {
		if logger != nil {
			logger.Warn("could not create turn uniqueness index", "error", err)
		}
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrateLegacyNotes upgrades a first-generation notes table in place.
// The old layout stored free-form title/body text with a unix-epoch
// createdAt column. Rows are carried over with title as the question and
// body as the answer, preserving the original timestamps.
func (s *Store) migrateLegacyNotes() error {
	var hasTable int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='notes'`).Scan(&hasTable)
	if err != nil {
		return err
	}
	if hasTable == 0 {
		return nil
	}

	var hasQuestion int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('notes') WHERE name='question'`).Scan(&hasQuestion)
	if err != nil {
		return err
	}
	if hasQuestion > 0 {
		// Already on the current layout.
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`ALTER TABLE notes RENAME TO notes_legacy`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE notes (
		id TEXT PRIMARY KEY,
		conversation_id TEXT,
		turn_index INTEGER NOT NULL DEFAULT 0,
		book_id TEXT,
		book_title TEXT NOT NULL,
		author TEXT,
		chapter_number INTEGER,
		chapter_name TEXT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		question_type TEXT,
		topic TEXT,
		tags TEXT,
		created_at TEXT NOT NULL,
		owner_id TEXT NOT NULL
	)`); err != nil {
		return err
	}

	rows, err := tx.Query(
		`SELECT id, title, body, bookTitle, author, chapterNumber, tags, createdAt FROM notes_legacy`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type legacyNote struct {
		id        string
		title     string
		body      string
		bookTitle sql.NullString
		author    sql.NullString
		chapter   sql.NullInt64
		tags      sql.NullString
		createdAt int64
	}

	var legacy []legacyNote
	for rows.Next() {
		var n legacyNote
		if err := rows.Scan(&n.id, &n.title, &n.body, &n.bookTitle, &n.author,
			&n.chapter, &n.tags, &n.createdAt); err != nil {
			return err
		}
		legacy = append(legacy, n)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for _, n := range legacy {
		// Old rows stored epoch milliseconds; very old ones used seconds.
		var created time.Time
		if n.createdAt > 1_000_000_000_000 {
			created = time.UnixMilli(n.createdAt)
		} else {
			created = time.Unix(n.createdAt, 0)
		}

		_, err := tx.Exec(`INSERT INTO notes
			(id, conversation_id, turn_index, book_title, author, chapter_number,
			 question, answer, tags, created_at, owner_id)
			VALUES (?, NULL, 0, ?, ?, ?, ?, ?, ?, ?, 'local')`,
			n.id,
			n.bookTitle.String,
			nullString(n.author.String),
			n.chapter,
			n.title,
			n.body,
			nullString(n.tags.String),
			formatTime(created),
		)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DROP TABLE notes_legacy`); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("migrated legacy notes table", "rows", len(legacy))
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// nullString returns a sql.NullString, treating "" as NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt64 returns a sql.NullInt64, treating 0 as NULL.
func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
