// Package storage is the local native store: calendars, events and reminders
// in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/icalbridge/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// Seeded rows. The local source is the only one that can create calendars.
const (
	LocalSourceID      = "local"
	LocalSourceTitle   = "Local"
	DefaultCalendarID  = "calendar-default"
	DefaultRemindersID = "reminders-default"
)

// Storage implements store.Store on SQLite. Writes are applied immediately,
// so the commit flag of the reminder and calendar writes has no effect.
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Storage)(nil)

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; also keeps the foreign_keys pragma on every statement
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL UNIQUE,
			supports_creation INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS calendars (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			entity INTEGER NOT NULL,
			source_id TEXT NOT NULL REFERENCES sources(id),
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			start_at INTEGER NOT NULL,
			end_at INTEGER NOT NULL,
			time_zone TEXT NOT NULL DEFAULT 'UTC',
			tz_offset INTEGER NOT NULL DEFAULT 0,
			all_day INTEGER NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			alarms TEXT NOT NULL DEFAULT '[]',
			rrule TEXT NOT NULL DEFAULT '',
			exdates TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_calendar ON events(calendar_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL REFERENCES calendars(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			due TEXT,
			notes TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME,
			alarms TEXT NOT NULL DEFAULT '[]',
			rrule TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_calendar ON reminders(calendar_id)`,
		// Event metadata
		`ALTER TABLE events ADD COLUMN availability INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE events ADD COLUMN status INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE events ADD COLUMN organizer TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE events ADD COLUMN attendees TEXT NOT NULL DEFAULT '[]'`,
		// Seed the local source and the default collections
		`INSERT OR IGNORE INTO sources (id, title, supports_creation) VALUES ('` + LocalSourceID + `', '` + LocalSourceTitle + `', 1)`,
		`INSERT OR IGNORE INTO calendars (id, title, entity, source_id, is_default) VALUES ('` + DefaultCalendarID + `', 'Calendar', 0, '` + LocalSourceID + `', 1)`,
		`INSERT OR IGNORE INTO calendars (id, title, entity, source_id, is_default) VALUES ('` + DefaultRemindersID + `', 'Reminders', 1, '` + LocalSourceID + `', 1)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// RequestAccess always grants: the database file is ours
func (s *Storage) RequestAccess(ctx context.Context, entity store.EntityType, done store.AccessCallback) {
	go func() {
		if err := s.db.PingContext(ctx); err != nil {
			done(false, fmt.Errorf("ping db: %w", err))
			return
		}
		done(true, nil)
	}()
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
