package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps the ledger in a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	timeout time.Duration
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout=2000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, timeout: 5 * time.Second}, nil
}

func (s *SQLiteStore) Backend() string { return "sqlite" }

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads every row in stored order.
func (s *SQLiteStore) Load() (*Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	doc := &Document{Version: FormatVersion}
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, err
	default:
		if v, err := strconv.Atoi(version); err == nil {
			doc.Version = v
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, id, title, description, created_at_utc FROM notifications ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		var created string
		if err := rows.Scan(&rec.Category, &rec.ID, &rec.Title, &rec.Description, &created); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("entry %s/%s: %w", rec.Category, rec.ID, err)
		}
		rec.CreatedAtUTC = t
		doc.Entries = append(doc.Entries, rec)
	}
	return doc, rows.Err()
}

// Save replaces all rows in one transaction.
func (s *SQLiteStore) Save(doc *Document) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notifications (position, category, id, title, description, created_at_utc)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range doc.Entries {
		created := rec.CreatedAtUTC.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, i, rec.Category, rec.ID, rec.Title, rec.Description, created); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(doc.Version)); err != nil {
		return err
	}
	return tx.Commit()
}
