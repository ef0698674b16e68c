package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/store"
)

// ListCalendars returns the event calendars in store order
func (m *CalendarManager) ListCalendars(ctx context.Context) (_ []*domain.Calendar, err error) {
	defer func(started time.Time) { m.observe("list_calendars", started, err) }(time.Now())

	cals, err := m.store.Calendars(ctx, store.EntityEvent)
	if err != nil {
		return nil, storeErr("list calendars", err)
	}
	out := make([]*domain.Calendar, 0, len(cals))
	for _, c := range cals {
		out = append(out, decodeCalendar(c))
	}
	return out, nil
}

// ListCalendarNames returns the titles of the event calendars
func (m *CalendarManager) ListCalendarNames(ctx context.Context) ([]string, error) {
	cals, err := m.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cals))
	for _, c := range cals {
		names = append(names, c.Title)
	}
	return names, nil
}

// CreateCalendar creates an event calendar in the named source. An empty
// sourceName falls back to the configured default source, then to the first
// source that can create calendars.
func (m *CalendarManager) CreateCalendar(ctx context.Context, name, sourceName string) (_ *domain.Calendar, err error) {
	defer func(started time.Time) { m.observe("create_calendar", started, err) }(time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "is required"}
	}
	if sourceName == "" {
		sourceName = m.defaultSource
	}

	sources, err := m.store.Sources(ctx)
	if err != nil {
		return nil, storeErr("list sources", err)
	}
	var (
		source    *store.Source
		available []string
	)
	for _, s := range sources {
		if !s.SupportsCalendarCreation {
			continue
		}
		available = append(available, s.Title)
		if source == nil && (sourceName == "" || s.Title == sourceName) {
			source = s
		}
	}
	if source == nil {
		return nil, &domain.ValidationError{
			Field:   "source_name",
			Message: fmt.Sprintf("no suitable source %q found, available sources: %s", sourceName, strings.Join(available, ", ")),
		}
	}

	cal := &store.Calendar{Title: name, Entity: store.EntityEvent, Source: source}
	if err := m.store.SaveCalendar(ctx, cal, true); err != nil {
		return nil, storeErr("save calendar", err)
	}
	m.log.Info("calendar created", "calendar", name, "source", source.Title, "id", cal.Identifier)
	return decodeCalendar(cal), nil
}

// DeleteCalendar removes the event calendar with the given identifier and
// checks that it is gone
func (m *CalendarManager) DeleteCalendar(ctx context.Context, calendarID string) (err error) {
	defer func(started time.Time) { m.observe("delete_calendar", started, err) }(time.Now())

	cal, err := m.calendarByID(ctx, calendarID)
	if err != nil {
		return err
	}
	if err := m.store.RemoveCalendar(ctx, cal, true); err != nil {
		return storeErr("remove calendar", err)
	}

	still, err := m.calendarByID(ctx, calendarID)
	var nf *domain.CalendarNotFoundError
	switch {
	case errors.As(err, &nf):
	case err != nil:
		return err
	case still != nil:
		return &domain.StoreError{Op: "remove calendar", Cause: fmt.Errorf("calendar %s still present after removal", calendarID)}
	}
	m.log.Info("calendar deleted", "id", calendarID, "calendar", cal.Title)
	return nil
}

func (m *CalendarManager) calendarByID(ctx context.Context, id string) (*store.Calendar, error) {
	cals, err := m.store.Calendars(ctx, store.EntityEvent)
	if err != nil {
		return nil, storeErr("list calendars", err)
	}
	for _, c := range cals {
		if c.Identifier == id {
			return c, nil
		}
	}
	return nil, &domain.CalendarNotFoundError{Name: id}
}

// calendarByTitle resolves a calendar or reminder list by exact title. With
// duplicate titles the first in store order wins.
func (m *CalendarManager) calendarByTitle(ctx context.Context, entity store.EntityType, title string) (*store.Calendar, error) {
	cals, err := m.store.Calendars(ctx, entity)
	if err != nil {
		return nil, storeErr("list calendars", err)
	}
	for _, c := range cals {
		if c.Title == title {
			return c, nil
		}
	}
	return nil, &domain.CalendarNotFoundError{Name: title}
}

// calendarOrDefault resolves title, or the store default when title is empty
func (m *CalendarManager) calendarOrDefault(ctx context.Context, entity store.EntityType, title string) (*store.Calendar, error) {
	if title != "" {
		return m.calendarByTitle(ctx, entity, title)
	}
	cal, err := m.store.DefaultCalendar(ctx, entity)
	if err != nil {
		return nil, storeErr("default calendar", err)
	}
	if cal == nil {
		return nil, &domain.StoreError{Op: "default calendar", Cause: fmt.Errorf("store has no default calendar for %s", entity)}
	}
	return cal, nil
}

func decodeCalendar(c *store.Calendar) *domain.Calendar {
	out := &domain.Calendar{
		Identifier:  c.Identifier,
		Title:       c.Title,
		SourceTitle: c.SourceTitle(),
	}
	if c.Source != nil {
		out.SupportsCreation = c.Source.SupportsCalendarCreation
	}
	return out
}
