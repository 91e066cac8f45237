package payto

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// migrations are applied in order; PRAGMA user_version records how many
// have run.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS sends (
		id TEXT PRIMARY KEY,
		input TEXT,
		kind TEXT,
		address TEXT,
		token TEXT,
		chain TEXT,
		amount TEXT,
		time INTEGER,
		status TEXT
	);

	CREATE TABLE IF NOT EXISTS usernames (
		handle TEXT PRIMARY KEY,
		address TEXT NOT NULL
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS resolutions (
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (kind, name)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		handle TEXT,
		address TEXT,
		phone TEXT,
		email TEXT,
		created_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		doc TEXT NOT NULL
	);
	`,
}

// OpenDB opens (creating if needed) the local store and brings its schema
// up to date.
func OpenDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection keeps :memory: databases and pragmas consistent
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bound parameters
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the applied migration count.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

func SaveSend(ctx context.Context, db *sql.DB, s Send) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sends
		(id, input, kind, address, token, chain, amount, time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Input, s.Kind, s.Address, s.Token, s.Chain, s.Amount, s.Time, s.Status)
	return err
}

// LoadSend returns sql.ErrNoRows when id is unknown.
func LoadSend(ctx context.Context, db *sql.DB, id string) (Send, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, input, kind, address, token, chain, amount, time, status
		FROM sends WHERE id = ?
	`, id)
	return scanSend(row)
}

func ListSends(ctx context.Context, db *sql.DB, limit int) ([]Send, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, input, kind, address, token, chain, amount, time, status
		FROM sends ORDER BY time DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Send
	for rows.Next() {
		s, err := scanSend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSend(row scanner) (Send, error) {
	var s Send
	var address sql.NullString
	err := row.Scan(&s.ID, &s.Input, &s.Kind, &address, &s.Token, &s.Chain, &s.Amount, &s.Time, &s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Send{}, err
	}
	if err != nil {
		return Send{}, fmt.Errorf("scan send: %w", err)
	}
	s.Address = address.String
	return s, nil
}
