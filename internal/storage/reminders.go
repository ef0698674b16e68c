package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/icalbridge/internal/store"
)

const reminderColumns = `id, calendar_id, title, due, notes, url, priority, completed, completed_at,
	alarms, rrule, created_at, updated_at`

func (s *Storage) loadReminders(ctx context.Context, q queryer, where string, args ...any) ([]*store.NativeReminder, error) {
	cals, err := calendarMap(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load calendars: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*store.NativeReminder
	for rows.Next() {
		r := &store.NativeReminder{}
		var (
			calendarID, alarms, rrule         string
			due                               sql.NullString
			completedAt, createdAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&r.Identifier, &calendarID, &r.Title, &due, &r.Notes, &r.URL, &r.Priority,
			&r.Completed, &completedAt, &alarms, &rrule, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Calendar = cals[calendarID]
		if due.Valid && due.String != "" {
			var c store.DateComponents
			if err := json.Unmarshal([]byte(due.String), &c); err != nil {
				return nil, fmt.Errorf("reminder %s due: %w", r.Identifier, err)
			}
			r.DueDateComponents = &c
		}
		if r.Alarms, err = decodeAlarms(alarms); err != nil {
			return nil, fmt.Errorf("reminder %s alarms: %w", r.Identifier, err)
		}
		if r.RecurrenceRules, err = decodeRules(rrule); err != nil {
			return nil, fmt.Errorf("reminder %s rrule: %w", r.Identifier, err)
		}
		r.CompletionDate = nullTime(completedAt)
		r.CreationDate = nullTime(createdAt)
		r.LastModified = nullTime(updatedAt)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// FetchReminders runs the query on its own goroutine and reports through done
func (s *Storage) FetchReminders(ctx context.Context, pred store.ReminderPredicate, done store.RemindersCallback) {
	where := `1 = 1`
	var args []any
	if len(pred.Calendars) > 0 {
		ids := store.CalendarIDs(pred.Calendars)
		where = `calendar_id IN (?` + strings.Repeat(`, ?`, len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	go func() {
		reminders, err := s.loadReminders(ctx, s.db, where, args...)
		if err != nil {
			done(nil, fmt.Errorf("query reminders: %w", err))
			return
		}
		done(reminders, nil)
	}()
}

// SaveReminder inserts a reminder without an identifier, otherwise rewrites it
func (s *Storage) SaveReminder(ctx context.Context, r *store.NativeReminder, _ bool) error {
	if r.Calendar == nil {
		return errors.New("reminder has no calendar")
	}

	var due sql.NullString
	if r.DueDateComponents != nil {
		b, err := json.Marshal(r.DueDateComponents)
		if err != nil {
			return fmt.Errorf("encode due date: %w", err)
		}
		due = sql.NullString{String: string(b), Valid: true}
	}
	alarms, err := encodeAlarms(r.Alarms)
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}
	rrule, err := encodeRules(r.RecurrenceRules)
	if err != nil {
		return fmt.Errorf("encode rrule: %w", err)
	}
	var completedAt sql.NullTime
	if r.Completed && r.CompletionDate != nil {
		completedAt = sql.NullTime{Time: *r.CompletionDate, Valid: true}
	}

	now := s.now()
	if r.Identifier == "" {
		id := uuid.NewString()
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO reminders (id, calendar_id, title, due, notes, url, priority, completed, completed_at,
				alarms, rrule, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, r.Calendar.Identifier, r.Title, due, r.Notes, r.URL, r.Priority, r.Completed, completedAt,
			alarms, rrule, now, now,
		); err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
		r.Identifier = id
		r.CreationDate = &now
		r.LastModified = &now
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET calendar_id = ?, title = ?, due = ?, notes = ?, url = ?, priority = ?, completed = ?,
			completed_at = ?, alarms = ?, rrule = ?, updated_at = ?
		 WHERE id = ?`,
		r.Calendar.Identifier, r.Title, due, r.Notes, r.URL, r.Priority, r.Completed, completedAt,
		alarms, rrule, now, r.Identifier,
	)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reminder %s not found", r.Identifier)
	}
	r.LastModified = &now
	return nil
}

func (s *Storage) RemoveReminder(ctx context.Context, r *store.NativeReminder, _ bool) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, r.Identifier)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reminder %s not found", r.Identifier)
	}
	return nil
}
