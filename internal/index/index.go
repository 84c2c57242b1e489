// Package index maintains a SQLite index of the letter directory. It only
// serves the HTTP list/search endpoints; the archive core never reads it.
package index

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS letters (
	filename   TEXT PRIMARY KEY,
	date       TEXT NOT NULL,
	year       INTEGER NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_letters_year ON letters(year);
`

// LetterRow is one indexed letter.
type LetterRow struct {
	Filename  string    `json:"filename"`
	Date      string    `json:"date"`
	Year      int       `json:"year"`
	Title     string    `json:"title,omitempty"`
	Role      string    `json:"role"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Filename string `json:"filename"`
	Date     string `json:"date"`
	Title    string `json:"title,omitempty"`
}

// DB wraps a sql.DB with letter-index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// UpsertLetter inserts or replaces one letter row.
func (db *DB) UpsertLetter(row LetterRow, content string) error {
	_, err := db.conn.Exec(`
		INSERT INTO letters (filename, date, year, title, role, content, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			date       = excluded.date,
			year       = excluded.year,
			title      = excluded.title,
			role       = excluded.role,
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, row.Filename, row.Date, row.Year, row.Title, row.Role, content, row.Checksum, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert letter: %w", err)
	}
	return nil
}

// DeleteLetter removes one letter row.
func (db *DB) DeleteLetter(filename string) error {
	if _, err := db.conn.Exec(`DELETE FROM letters WHERE filename = ?`, filename); err != nil {
		return fmt.Errorf("index: delete letter: %w", err)
	}
	return nil
}

// ListLetters returns letters newest first, optionally filtered by year.
// year 0 means all years; limit 0 means no limit.
func (db *DB) ListLetters(year, limit, offset int) ([]LetterRow, int, error) {
	where, args := "", []any{}
	if year != 0 {
		where = "WHERE year = ?"
		args = append(args, year)
	}

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM letters "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count letters: %w", err)
	}

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT filename, date, year, title, role, checksum, updated_at
		FROM letters `+where+`
		ORDER BY filename DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list letters: %w", err)
	}
	defer rows.Close()

	var out []LetterRow
	for rows.Next() {
		var r LetterRow
		if err := rows.Scan(&r.Filename, &r.Date, &r.Year, &r.Title, &r.Role, &r.Checksum, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Search matches q against letter titles and content, newest first.
func (db *DB) Search(q string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + q + "%"
	rows, err := db.conn.Query(`
		SELECT filename, date, title
		FROM letters
		WHERE title LIKE ? OR content LIKE ?
		ORDER BY filename DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Filename, &r.Date, &r.Title); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns filename -> checksum for every indexed letter.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT filename, checksum FROM letters`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var f, cs string
		if err := rows.Scan(&f, &cs); err != nil {
			return nil, err
		}
		out[f] = cs
	}
	return out, rows.Err()
}
