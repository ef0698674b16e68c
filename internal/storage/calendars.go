package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tazhate/icalbridge/internal/store"
)

const calendarColumns = `c.id, c.title, c.entity, s.id, s.title, s.supports_creation`

func scanCalendar(row interface{ Scan(...any) error }) (*store.Calendar, error) {
	c := &store.Calendar{Source: &store.Source{}}
	var entity int
	if err := row.Scan(&c.Identifier, &c.Title, &entity, &c.Source.Identifier, &c.Source.Title, &c.Source.SupportsCalendarCreation); err != nil {
		return nil, err
	}
	c.Entity = store.EntityType(entity)
	return c, nil
}

func (s *Storage) Calendars(ctx context.Context, entity store.EntityType) ([]*store.Calendar, error) {
	return listCalendars(ctx, s.db, entity)
}

func listCalendars(ctx context.Context, q queryer, entity store.EntityType) ([]*store.Calendar, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars c JOIN sources s ON s.id = c.source_id
		 WHERE c.entity = ? ORDER BY c.rowid`,
		int(entity),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cals []*store.Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		cals = append(cals, c)
	}
	return cals, rows.Err()
}

// calendarMap indexes every calendar by id
func calendarMap(ctx context.Context, q queryer) (map[string]*store.Calendar, error) {
	out := make(map[string]*store.Calendar)
	for _, entity := range []store.EntityType{store.EntityEvent, store.EntityReminder} {
		cals, err := listCalendars(ctx, q, entity)
		if err != nil {
			return nil, err
		}
		for _, c := range cals {
			out[c.Identifier] = c
		}
	}
	return out, nil
}

// DefaultCalendar returns the seeded default, or the first calendar when it
// was removed
func (s *Storage) DefaultCalendar(ctx context.Context, entity store.EntityType) (*store.Calendar, error) {
	c, err := scanCalendar(s.db.QueryRowContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars c JOIN sources s ON s.id = c.source_id
		 WHERE c.entity = ? ORDER BY c.is_default DESC, c.rowid LIMIT 1`,
		int(entity),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Storage) Sources(ctx context.Context) ([]*store.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, supports_creation FROM sources ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*store.Source
	for rows.Next() {
		src := &store.Source{}
		if err := rows.Scan(&src.Identifier, &src.Title, &src.SupportsCalendarCreation); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SaveCalendar inserts a calendar without an identifier, otherwise renames it
func (s *Storage) SaveCalendar(ctx context.Context, cal *store.Calendar, _ bool) error {
	if cal.Identifier != "" {
		res, err := s.db.ExecContext(ctx, `UPDATE calendars SET title = ? WHERE id = ?`, cal.Title, cal.Identifier)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("calendar %s not found", cal.Identifier)
		}
		return nil
	}

	if cal.Source == nil {
		return errors.New("calendar has no source")
	}
	var supports bool
	err := s.db.QueryRowContext(ctx, `SELECT supports_creation FROM sources WHERE id = ?`, cal.Source.Identifier).Scan(&supports)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("source %s not found", cal.Source.Identifier)
	}
	if err != nil {
		return err
	}
	if !supports {
		return fmt.Errorf("source %s cannot create calendars", cal.Source.Title)
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO calendars (id, title, entity, source_id) VALUES (?, ?, ?, ?)`,
		id, cal.Title, int(cal.Entity), cal.Source.Identifier,
	); err != nil {
		return err
	}
	cal.Identifier = id
	return nil
}

// RemoveCalendar deletes the calendar along with its events or reminders
func (s *Storage) RemoveCalendar(ctx context.Context, cal *store.Calendar, _ bool) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendars WHERE id = ?`, cal.Identifier)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("calendar %s not found", cal.Identifier)
	}
	return nil
}
