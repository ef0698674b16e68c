package service

import (
	"context"
	"time"

	"github.com/tazhate/icalbridge/internal/codec"
	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/store"
)

// ListEvents returns the event occurrences overlapping [start, end] in store
// order. An empty calendarName searches every calendar.
func (m *CalendarManager) ListEvents(ctx context.Context, start, end time.Time, calendarName string) (_ []*domain.Event, err error) {
	defer func(started time.Time) { m.observe("list_events", started, err) }(time.Now())

	pred := store.EventPredicate{Start: start, End: end}
	if calendarName != "" {
		cal, err := m.calendarByTitle(ctx, store.EntityEvent, calendarName)
		if err != nil {
			return nil, err
		}
		pred.Calendars = []*store.Calendar{cal}
	}

	natives, err := m.store.EventsMatching(ctx, pred)
	if err != nil {
		return nil, storeErr("events matching", err)
	}
	m.log.Debug("events listed", applog.CalendarKey, calendarName, "count", len(natives))

	events := make([]*domain.Event, 0, len(natives))
	for _, ev := range natives {
		events = append(events, m.decodeEvent(ev))
	}
	return events, nil
}

// CreateEvent saves a new event and returns it with its store identifier
func (m *CalendarManager) CreateEvent(ctx context.Context, req *domain.CreateEventRequest) (_ *domain.Event, err error) {
	defer func(started time.Time) { m.observe("create_event", started, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ev := &store.NativeEvent{
		Title:    req.Title,
		Start:    req.StartTime,
		End:      req.EndTime,
		AllDay:   req.AllDay,
		Location: req.Location,
		Notes:    req.Notes,
		URL:      req.URL,
		Alarms:   codec.EncodeAlarms(req.AlarmsMinutesOffsets),
	}
	if req.RecurrenceRule != nil {
		ev.RecurrenceRules = []*store.RecurrenceRule{codec.EncodeRecurrence(req.RecurrenceRule)}
	}
	cal, err := m.calendarOrDefault(ctx, store.EntityEvent, req.CalendarName)
	if err != nil {
		return nil, err
	}
	ev.Calendar = cal

	if err := m.store.SaveEvent(ctx, ev, store.SpanThisEvent); err != nil {
		return nil, storeErr("save event", err)
	}
	m.log.Info("event created", applog.EventIDKey, ev.Identifier, applog.CalendarKey, cal.Title)
	return m.decodeEvent(ev), nil
}

// UpdateEvent applies the fields present in req to the event and every later
// occurrence of its series
func (m *CalendarManager) UpdateEvent(ctx context.Context, id string, req *domain.UpdateEventRequest) (_ *domain.Event, err error) {
	defer func(started time.Time) { m.observe("update_event", started, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev, err := m.nativeEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.saveEventUpdate(ctx, ev, req)
}

// UpdateEventOccurrence edits one occurrence of a recurring event and every
// later one. Earlier occurrences keep their current fields.
func (m *CalendarManager) UpdateEventOccurrence(ctx context.Context, id string, occurrence time.Time, req *domain.UpdateEventRequest) (_ *domain.Event, err error) {
	defer func(started time.Time) { m.observe("update_event_occurrence", started, err) }(time.Now())

	if err := req.Validate(); err != nil {
		return nil, err
	}
	ev, err := m.occurrence(ctx, id, occurrence)
	if err != nil {
		return nil, err
	}
	return m.saveEventUpdate(ctx, ev, req)
}

func (m *CalendarManager) saveEventUpdate(ctx context.Context, ev *store.NativeEvent, req *domain.UpdateEventRequest) (*domain.Event, error) {
	if err := m.applyEventUpdate(ctx, ev, req); err != nil {
		return nil, err
	}
	if ev.End.Before(ev.Start) {
		return nil, &domain.ValidationError{Field: "end_time", Message: "must not be before start_time"}
	}
	if err := m.store.SaveEvent(ctx, ev, store.SpanFutureEvents); err != nil {
		return nil, storeErr("save event", err)
	}
	m.log.Info("event updated", applog.EventIDKey, ev.Identifier)
	return m.decodeEvent(ev), nil
}

func (m *CalendarManager) applyEventUpdate(ctx context.Context, ev *store.NativeEvent, req *domain.UpdateEventRequest) error {
	if v, ok := req.Title.Get(); ok {
		ev.Title = v
	}
	if v, ok := req.StartTime.Get(); ok {
		ev.Start = v
	}
	if v, ok := req.EndTime.Get(); ok {
		ev.End = v
	}
	if v, ok := req.CalendarName.Get(); ok {
		cal, err := m.calendarByTitle(ctx, store.EntityEvent, v)
		if err != nil {
			return err
		}
		ev.Calendar = cal
	}
	applyText(&ev.Location, req.Location)
	applyText(&ev.Notes, req.Notes)
	applyText(&ev.URL, req.URL)
	if !req.AllDay.IsAbsent() {
		ev.AllDay, _ = req.AllDay.Get()
	}
	if !req.AlarmsMinutesOffsets.IsAbsent() {
		offsets, _ := req.AlarmsMinutesOffsets.Get()
		ev.Alarms = codec.EncodeAlarms(offsets)
	}
	if !req.RecurrenceRule.IsAbsent() {
		ev.RecurrenceRules = nil
		if rule, ok := req.RecurrenceRule.Get(); ok {
			ev.RecurrenceRules = []*store.RecurrenceRule{codec.EncodeRecurrence(&rule)}
		}
	}
	return nil
}

// DeleteEvent removes the event. For a recurring event the whole series goes.
func (m *CalendarManager) DeleteEvent(ctx context.Context, id string) (err error) {
	defer func(started time.Time) { m.observe("delete_event", started, err) }(time.Now())

	ev, err := m.nativeEventByID(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.RemoveEvent(ctx, ev, store.SpanFutureEvents); err != nil {
		return storeErr("remove event", err)
	}
	m.log.Info("event deleted", applog.EventIDKey, id)
	return nil
}

// DeleteEventOccurrence removes one occurrence and every later one, ending the
// series before it
func (m *CalendarManager) DeleteEventOccurrence(ctx context.Context, id string, occurrence time.Time) (err error) {
	defer func(started time.Time) { m.observe("delete_event_occurrence", started, err) }(time.Now())

	ev, err := m.occurrence(ctx, id, occurrence)
	if err != nil {
		return err
	}
	if err := m.store.RemoveEvent(ctx, ev, store.SpanFutureEvents); err != nil {
		return storeErr("remove event", err)
	}
	m.log.Info("event occurrences deleted", applog.EventIDKey, id, "from", occurrence)
	return nil
}

// FindEventByID returns nil, nil when the store does not know id
func (m *CalendarManager) FindEventByID(ctx context.Context, id string) (*domain.Event, error) {
	if id == "" {
		return nil, nil
	}
	ev, err := m.store.Event(ctx, id)
	if err != nil {
		return nil, storeErr("event by id", err)
	}
	if ev == nil {
		return nil, nil
	}
	return m.decodeEvent(ev), nil
}

func (m *CalendarManager) nativeEventByID(ctx context.Context, id string) (*store.NativeEvent, error) {
	found, err := m.FindEventByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &domain.EventNotFoundError{ID: id}
	}
	if ev, ok := m.handles.event(found.Handle); ok {
		return ev, nil
	}
	// pruned between decode and lookup
	ev, err := m.store.Event(ctx, id)
	if err != nil {
		return nil, storeErr("event by id", err)
	}
	if ev == nil {
		return nil, &domain.EventNotFoundError{ID: id}
	}
	return ev, nil
}

// occurrence finds the occurrence of id that originally starts at t
func (m *CalendarManager) occurrence(ctx context.Context, id string, t time.Time) (*store.NativeEvent, error) {
	natives, err := m.store.EventsMatching(ctx, store.EventPredicate{Start: t, End: t.Add(time.Nanosecond)})
	if err != nil {
		return nil, storeErr("events matching", err)
	}
	for _, ev := range natives {
		if ev.Identifier == id && ev.OccurrenceDate.Equal(t) {
			return ev, nil
		}
	}
	return nil, &domain.EventNotFoundError{ID: id}
}

func (m *CalendarManager) decodeEvent(ev *store.NativeEvent) *domain.Event {
	out := &domain.Event{
		Identifier:           ev.Identifier,
		Title:                ev.Title,
		StartTime:            ev.Start,
		EndTime:              ev.End,
		OccurrenceDate:       ev.OccurrenceDate,
		Location:             ev.Location,
		Notes:                ev.Notes,
		URL:                  ev.URL,
		AllDay:               ev.AllDay,
		AlarmsMinutesOffsets: codec.DecodeAlarms(ev.Alarms),
		HasAlarms:            len(ev.Alarms) > 0,
		RecurrenceRule:       codec.DecodeFirstRecurrence(ev.RecurrenceRules),
		Availability:         ev.Availability,
		Status:               ev.Status,
		Organizer:            ev.Organizer,
		Attendees:            ev.Attendees,
		LastModified:         ev.LastModified,
	}
	if out.OccurrenceDate.IsZero() {
		out.OccurrenceDate = ev.Start
	}
	if ev.Calendar != nil {
		out.CalendarName = ev.Calendar.Title
	}
	out.Handle = m.handles.putEvent(ev, m.now())
	return out
}

// applyText sets a text field, or empties it when the update clears it
func applyText(dst *string, v domain.Optional[string]) {
	if v.IsAbsent() {
		return
	}
	*dst, _ = v.Get()
}
