// Package sqlite implements the facility store on an embedded SQLite database
// for single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id           INTEGER PRIMARY KEY AUTOINCREMENT,
	telegram_id       INTEGER NOT NULL UNIQUE,
	name              TEXT    NOT NULL,
	email             TEXT    NOT NULL,
	room              TEXT    NOT NULL,
	verified          INTEGER NOT NULL DEFAULT 0,
	verification_hash TEXT    NOT NULL DEFAULT '',
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS slots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	time_begin INTEGER NOT NULL,
	time_end   INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS slots_time_range ON slots(time_begin, time_end);
CREATE INDEX IF NOT EXISTS slots_user_id ON slots(user_id);

CREATE TABLE IF NOT EXISTS ballots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	telegram_id INTEGER NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
	user_id     INTEGER NOT NULL,
	time_begin  INTEGER NOT NULL,
	time_end    INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ballots_time_begin ON ballots(time_begin);
CREATE INDEX IF NOT EXISTS ballots_telegram_id ON ballots(telegram_id);
`

// Store persists users, slots and ballots in SQLite. All access goes through a
// single connection, so every call is serialized and BookSlot's overlap check
// and insert cannot interleave with another booking.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Stats returns row counts for the status command.
func (s *Store) Stats(ctx context.Context) (domain.Stats, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Stats{}, err
	}

	var stats domain.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM slots),
			(SELECT COUNT(*) FROM ballots)`,
	).Scan(&stats.Users, &stats.Slots, &stats.Ballots)
	if err != nil {
		return domain.Stats{}, domain.WrapStore("count rows", err)
	}
	return stats, nil
}

// withTx runs fn in a transaction, rolling back when it fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback (%v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
