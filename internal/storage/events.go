package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/icalbridge/internal/store"
)

const eventColumns = `id, calendar_id, title, start_at, end_at, time_zone, tz_offset, all_day,
	location, notes, url, alarms, rrule, exdates, availability, status, organizer, attendees, updated_at`

func (s *Storage) loadEvents(ctx context.Context, q queryer, where string, args ...any) ([]*store.NativeEvent, error) {
	cals, err := calendarMap(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load calendars: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE `+where+` ORDER BY start_at, rowid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*store.NativeEvent
	for rows.Next() {
		ev := &store.NativeEvent{}
		var (
			calendarID, tz, alarms, rrule, exdates, attendees string
			startAt, endAt                                    int64
			offset                                            int
			updatedAt                                         sql.NullTime
		)
		if err := rows.Scan(&ev.Identifier, &calendarID, &ev.Title, &startAt, &endAt, &tz, &offset, &ev.AllDay,
			&ev.Location, &ev.Notes, &ev.URL, &alarms, &rrule, &exdates, &ev.Availability, &ev.Status,
			&ev.Organizer, &attendees, &updatedAt); err != nil {
			return nil, err
		}

		loc := loadZone(tz, offset)
		ev.Calendar = cals[calendarID]
		ev.Start = time.Unix(startAt, 0).In(loc)
		ev.End = time.Unix(endAt, 0).In(loc)
		if ev.Alarms, err = decodeAlarms(alarms); err != nil {
			return nil, fmt.Errorf("event %s alarms: %w", ev.Identifier, err)
		}
		if ev.RecurrenceRules, err = decodeRules(rrule); err != nil {
			return nil, fmt.Errorf("event %s rrule: %w", ev.Identifier, err)
		}
		if ev.ExceptionDates, err = decodeTimes(exdates, loc); err != nil {
			return nil, fmt.Errorf("event %s exdates: %w", ev.Identifier, err)
		}
		if ev.Attendees, err = decodeStrings(attendees); err != nil {
			return nil, fmt.Errorf("event %s attendees: %w", ev.Identifier, err)
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			ev.LastModified = &t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventsMatching expands every series overlapping the window into its
// occurrences, ordered by start
func (s *Storage) EventsMatching(ctx context.Context, pred store.EventPredicate) ([]*store.NativeEvent, error) {
	where := `start_at <= ? AND (rrule != '' OR end_at >= ?)`
	args := []any{pred.End.Unix(), pred.Start.Unix()}
	if len(pred.Calendars) > 0 {
		ids := store.CalendarIDs(pred.Calendars)
		where += ` AND calendar_id IN (?` + strings.Repeat(`, ?`, len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	series, err := s.loadEvents(ctx, s.db, where, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	var out []*store.NativeEvent
	for _, ev := range series {
		occs, err := store.Expand(ev, pred.Start, pred.End)
		if err != nil {
			return nil, fmt.Errorf("expand event %s: %w", ev.Identifier, err)
		}
		out = append(out, occs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Storage) Event(ctx context.Context, identifier string) (*store.NativeEvent, error) {
	return s.event(ctx, s.db, identifier)
}

func (s *Storage) event(ctx context.Context, q queryer, identifier string) (*store.NativeEvent, error) {
	events, err := s.loadEvents(ctx, q, `id = ?`, identifier)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// txWriter binds the primitive event writes to one transaction
type txWriter struct {
	s   *Storage
	ctx context.Context
	tx  *sql.Tx
}

func (w txWriter) InsertEvent(ev *store.NativeEvent) error { return w.s.insertEvent(w.ctx, w.tx, ev) }
func (w txWriter) UpdateEvent(ev *store.NativeEvent) error { return w.s.updateEvent(w.ctx, w.tx, ev) }
func (w txWriter) DeleteEvent(ev *store.NativeEvent) error {
	return w.s.deleteEvent(w.ctx, w.tx, ev.Identifier)
}

// SaveEvent inserts an event without an identifier, otherwise applies the
// change to the stored event with store.SaveSpan
func (s *Storage) SaveEvent(ctx context.Context, ev *store.NativeEvent, span store.Span) error {
	if ev.Calendar == nil {
		return errors.New("event has no calendar")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if ev.Identifier == "" {
			ev.Identifier = uuid.NewString()
			return s.insertEvent(ctx, tx, ev)
		}
		master, err := s.event(ctx, tx, ev.Identifier)
		if err != nil {
			return err
		}
		return store.SaveSpan(txWriter{s, ctx, tx}, master, ev, span, uuid.NewString)
	})
}

func (s *Storage) RemoveEvent(ctx context.Context, ev *store.NativeEvent, span store.Span) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		master, err := s.event(ctx, tx, ev.Identifier)
		if err != nil {
			return err
		}
		return store.RemoveSpan(txWriter{s, ctx, tx}, master, ev, span)
	})
}

type eventValues struct {
	tz                                string
	offset                            int
	alarms, rrule, exdates, attendees string
}

func encodeEvent(ev *store.NativeEvent) (eventValues, error) {
	var (
		v   eventValues
		err error
	)
	v.tz, v.offset = zone(ev.Start)
	if v.alarms, err = encodeAlarms(ev.Alarms); err != nil {
		return v, err
	}
	if v.rrule, err = encodeRules(ev.RecurrenceRules); err != nil {
		return v, err
	}
	exdates := slices.Clone(ev.ExceptionDates)
	slices.SortFunc(exdates, func(a, b time.Time) int { return a.Compare(b) })
	if v.exdates, err = encodeTimes(slices.CompactFunc(exdates, time.Time.Equal)); err != nil {
		return v, err
	}
	if v.attendees, err = encodeStrings(ev.Attendees); err != nil {
		return v, err
	}
	return v, nil
}

func (s *Storage) insertEvent(ctx context.Context, q queryer, ev *store.NativeEvent) error {
	v, err := encodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	now := s.now()
	_, err = q.ExecContext(ctx,
		`INSERT INTO events (id, calendar_id, title, start_at, end_at, time_zone, tz_offset, all_day, location, notes, url,
			alarms, rrule, exdates, availability, status, organizer, attendees, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Identifier, ev.Calendar.Identifier, ev.Title, ev.Start.Unix(), ev.End.Unix(), v.tz, v.offset, ev.AllDay,
		ev.Location, ev.Notes, ev.URL, v.alarms, v.rrule, v.exdates, ev.Availability, ev.Status, ev.Organizer, v.attendees, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	ev.LastModified = &now
	return nil
}

func (s *Storage) updateEvent(ctx context.Context, q queryer, ev *store.NativeEvent) error {
	v, err := encodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	now := s.now()
	_, err = q.ExecContext(ctx,
		`UPDATE events SET calendar_id = ?, title = ?, start_at = ?, end_at = ?, time_zone = ?, tz_offset = ?, all_day = ?,
			location = ?, notes = ?, url = ?, alarms = ?, rrule = ?, exdates = ?, availability = ?, status = ?,
			organizer = ?, attendees = ?, updated_at = ?
		 WHERE id = ?`,
		ev.Calendar.Identifier, ev.Title, ev.Start.Unix(), ev.End.Unix(), v.tz, v.offset, ev.AllDay,
		ev.Location, ev.Notes, ev.URL, v.alarms, v.rrule, v.exdates, ev.Availability, ev.Status,
		ev.Organizer, v.attendees, now, ev.Identifier,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	ev.LastModified = &now
	return nil
}

func (s *Storage) deleteEvent(ctx context.Context, q queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
