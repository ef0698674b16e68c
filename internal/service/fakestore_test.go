package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tazhate/icalbridge/internal/store"
)

type spanCall struct {
	id         string
	span       store.Span
	occurrence time.Time
}

// fakeStore is an in-memory store.Store. Asynchronous callbacks fire from a
// fresh goroutine unless silent is set, in which case they never fire.
type fakeStore struct {
	mu sync.Mutex

	grantEvents    bool
	grantReminders bool
	accessErr      error
	silent         bool
	fetchErr       error
	keepCalendars  bool // RemoveCalendar reports success but keeps the calendar

	sources   []*store.Source
	calendars []*store.Calendar
	events    map[string]*store.NativeEvent
	eventIDs  []string
	reminders map[string]*store.NativeReminder
	remIDs    []string
	nextID    int

	eventSaves      []spanCall
	eventRemoves    []spanCall
	reminderCommits []bool
	fetches         int
}

func newFakeStore() *fakeStore {
	local := &store.Source{Identifier: "src-local", Title: "Local", SupportsCalendarCreation: true}
	remote := &store.Source{Identifier: "src-sub", Title: "Subscribed"}
	return &fakeStore{
		grantEvents:    true,
		grantReminders: true,
		sources:        []*store.Source{local, remote},
		calendars: []*store.Calendar{
			{Identifier: "cal-work", Title: "Work", Entity: store.EntityEvent, Source: local},
			{Identifier: "cal-home", Title: "Home", Entity: store.EntityEvent, Source: local},
			{Identifier: "list-inbox", Title: "Inbox", Entity: store.EntityReminder, Source: local},
			{Identifier: "list-groceries", Title: "Groceries", Entity: store.EntityReminder, Source: local},
		},
		events:    make(map[string]*store.NativeEvent),
		reminders: make(map[string]*store.NativeReminder),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) async(fn func()) {
	if f.silent {
		return
	}
	go fn()
}

func (f *fakeStore) RequestAccess(_ context.Context, entity store.EntityType, done store.AccessCallback) {
	f.mu.Lock()
	granted := f.grantEvents
	if entity == store.EntityReminder {
		granted = f.grantReminders
	}
	err := f.accessErr
	f.mu.Unlock()
	f.async(func() { done(granted, err) })
}

func (f *fakeStore) Calendars(_ context.Context, entity store.EntityType) ([]*store.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Calendar
	for _, c := range f.calendars {
		if c.Entity == entity {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) DefaultCalendar(ctx context.Context, entity store.EntityType) (*store.Calendar, error) {
	cals, _ := f.Calendars(ctx, entity)
	if len(cals) == 0 {
		return nil, nil
	}
	return cals[0], nil
}

func (f *fakeStore) Sources(context.Context) ([]*store.Source, error) {
	return f.sources, nil
}

func (f *fakeStore) SaveCalendar(_ context.Context, cal *store.Calendar, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cal.Identifier == "" {
		cal.Identifier = f.id("cal")
	}
	f.calendars = append(f.calendars, cal)
	return nil
}

func (f *fakeStore) RemoveCalendar(_ context.Context, cal *store.Calendar, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keepCalendars {
		return nil
	}
	f.calendars = slices.DeleteFunc(f.calendars, func(c *store.Calendar) bool { return c.Identifier == cal.Identifier })
	return nil
}

func (f *fakeStore) EventsMatching(_ context.Context, pred store.EventPredicate) ([]*store.NativeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := store.CalendarIDs(pred.Calendars)
	var out []*store.NativeEvent
	for _, id := range f.eventIDs {
		ev := f.events[id]
		if len(ids) > 0 && !slices.Contains(ids, ev.Calendar.Identifier) {
			continue
		}
		occs, err := store.Expand(ev, pred.Start, pred.End)
		if err != nil {
			return nil, err
		}
		out = append(out, occs...)
	}
	return out, nil
}

func (f *fakeStore) Event(_ context.Context, identifier string) (*store.NativeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[identifier]
	if !ok {
		return nil, nil
	}
	c := ev.Clone()
	c.OccurrenceDate = c.Start
	return c, nil
}

func (f *fakeStore) put(ev *store.NativeEvent) {
	if _, ok := f.events[ev.Identifier]; !ok {
		f.eventIDs = append(f.eventIDs, ev.Identifier)
	}
	f.events[ev.Identifier] = ev
}

func (f *fakeStore) drop(id string) {
	delete(f.events, id)
	f.eventIDs = slices.DeleteFunc(f.eventIDs, func(x string) bool { return x == id })
}

func (f *fakeStore) SaveEvent(_ context.Context, ev *store.NativeEvent, span store.Span) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.Identifier == "" {
		ev.Identifier = f.id("ev")
	}
	f.eventSaves = append(f.eventSaves, spanCall{id: ev.Identifier, span: span, occurrence: ev.OccurrenceDate})

	master, ok := f.events[ev.Identifier]
	if !ok || !master.HasRecurrenceRules() || !ev.IsDetachedOccurrence(master.Start) || span != store.SpanFutureEvents {
		c := ev.Clone()
		c.OccurrenceDate = time.Time{}
		f.put(c)
		return nil
	}

	head, err := store.Truncate(master, ev.OccurrenceDate)
	if err != nil {
		return err
	}
	tail, err := store.Tail(master, ev, ev.OccurrenceDate)
	if err != nil {
		return err
	}
	if head == nil {
		f.put(tail)
		return nil
	}
	f.put(head)
	tail.Identifier = f.id("ev")
	f.put(tail)
	ev.Identifier = tail.Identifier
	return nil
}

func (f *fakeStore) RemoveEvent(_ context.Context, ev *store.NativeEvent, span store.Span) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventRemoves = append(f.eventRemoves, spanCall{id: ev.Identifier, span: span, occurrence: ev.OccurrenceDate})

	master, ok := f.events[ev.Identifier]
	if !ok {
		return errors.New("no such event")
	}
	if !master.HasRecurrenceRules() || !ev.IsDetachedOccurrence(master.Start) {
		f.drop(ev.Identifier)
		return nil
	}
	head, err := store.Truncate(master, ev.OccurrenceDate)
	if err != nil {
		return err
	}
	if head == nil {
		f.drop(ev.Identifier)
		return nil
	}
	f.events[ev.Identifier] = head
	return nil
}

func (f *fakeStore) FetchReminders(_ context.Context, pred store.ReminderPredicate, done store.RemindersCallback) {
	f.mu.Lock()
	f.fetches++
	ids := store.CalendarIDs(pred.Calendars)
	var out []*store.NativeReminder
	for _, id := range f.remIDs {
		r := f.reminders[id]
		if len(ids) == 0 || slices.Contains(ids, r.Calendar.Identifier) {
			out = append(out, r.Clone())
		}
	}
	err := f.fetchErr
	f.mu.Unlock()

	f.async(func() {
		if err != nil {
			done(nil, err)
			return
		}
		done(out, nil)
	})
}

func (f *fakeStore) SaveReminder(_ context.Context, r *store.NativeReminder, commit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminderCommits = append(f.reminderCommits, commit)
	if r.Identifier == "" {
		r.Identifier = f.id("rem")
		f.remIDs = append(f.remIDs, r.Identifier)
	}
	f.reminders[r.Identifier] = r.Clone()
	return nil
}

func (f *fakeStore) RemoveReminder(_ context.Context, r *store.NativeReminder, commit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminderCommits = append(f.reminderCommits, commit)
	delete(f.reminders, r.Identifier)
	f.remIDs = slices.DeleteFunc(f.remIDs, func(x string) bool { return x == r.Identifier })
	return nil
}

func (f *fakeStore) storedEvent(id string) *store.NativeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id]
}

func (f *fakeStore) storedReminder(id string) *store.NativeReminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reminders[id]
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.eventIDs)
}

var _ store.Store = (*fakeStore)(nil)
