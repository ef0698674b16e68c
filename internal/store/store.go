// Package store defines the native calendar store the manager talks to:
// its object model, its query predicates and the access contract every
// backend implements.
package store

import (
	"context"
	"slices"
	"time"
)

// EntityType selects events or reminders
type EntityType int

const (
	EntityEvent EntityType = iota
	EntityReminder
)

func (e EntityType) String() string {
	if e == EntityReminder {
		return "reminders"
	}
	return "events"
}

// Span tells SaveEvent and RemoveEvent how far a change to one occurrence of a
// recurring series reaches.
type Span int

const (
	// SpanThisEvent affects only the given occurrence
	SpanThisEvent Span = iota
	// SpanFutureEvents affects the given occurrence and every later one
	SpanFutureEvents
)

// Source is an account that owns calendars (iCloud, Local, a CalDAV server)
type Source struct {
	Identifier               string
	Title                    string
	SupportsCalendarCreation bool
}

// Calendar is an event calendar or a reminder list
type Calendar struct {
	Identifier string
	Title      string
	Entity     EntityType
	Source     *Source
}

// SourceTitle returns the owning source's title or ""
func (c *Calendar) SourceTitle() string {
	if c == nil || c.Source == nil {
		return ""
	}
	return c.Source.Title
}

// Alarm fires RelativeOffset from the start (events) or due date (reminders).
// Negative offsets fire before.
type Alarm struct {
	RelativeOffset time.Duration
}

// DayOfWeek is one BYDAY entry. WeekNumber 0 means every week.
type DayOfWeek struct {
	DayOfTheWeek int // 1 = Sunday ... 7 = Saturday
	WeekNumber   int
}

// RecurrenceEnd ends a series either at EndDate or after OccurrenceCount
// occurrences. A non-zero count wins.
type RecurrenceEnd struct {
	EndDate         time.Time
	OccurrenceCount int
}

// RecurrenceRule is the store's recurrence representation
type RecurrenceRule struct {
	Frequency     int // 0 daily, 1 weekly, 2 monthly, 3 yearly
	Interval      int
	DaysOfTheWeek []DayOfWeek
	End           *RecurrenceEnd
}

func (r *RecurrenceRule) Clone() *RecurrenceRule {
	if r == nil {
		return nil
	}
	c := *r
	c.DaysOfTheWeek = slices.Clone(r.DaysOfTheWeek)
	if r.End != nil {
		end := *r.End
		c.End = &end
	}
	return &c
}

// Equal compares rules structurally
func (r *RecurrenceRule) Equal(o *RecurrenceRule) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Frequency != o.Frequency || r.Interval != o.Interval || !slices.Equal(r.DaysOfTheWeek, o.DaysOfTheWeek) {
		return false
	}
	if r.End == nil || o.End == nil {
		return r.End == o.End
	}
	return r.End.OccurrenceCount == o.End.OccurrenceCount && r.End.EndDate.Equal(o.End.EndDate)
}

// DateComponents is a calendar date with optional wall-clock time. It carries
// no zone: it is read in whatever location the reader applies.
type DateComponents struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
}

// NativeEvent is an event as the store holds it. Events returned by
// EventsMatching are single occurrences: OccurrenceDate is the occurrence's
// original start, which for the first occurrence equals the series start.
type NativeEvent struct {
	Identifier      string
	Calendar        *Calendar
	Title           string
	Start           time.Time
	End             time.Time
	AllDay          bool
	Location        string
	Notes           string
	URL             string
	Alarms          []*Alarm
	RecurrenceRules []*RecurrenceRule
	ExceptionDates  []time.Time
	OccurrenceDate  time.Time
	Availability    int
	Status          int
	Organizer       string
	Attendees       []string
	LastModified    *time.Time
}

// HasRecurrenceRules reports whether the event is part of a series
func (e *NativeEvent) HasRecurrenceRules() bool {
	return len(e.RecurrenceRules) > 0
}

// IsDetachedOccurrence reports whether e is an occurrence other than the
// first one of its series
func (e *NativeEvent) IsDetachedOccurrence(seriesStart time.Time) bool {
	return !e.OccurrenceDate.IsZero() && !e.OccurrenceDate.Equal(seriesStart)
}

// Clone returns a deep copy. The calendar pointer is shared.
func (e *NativeEvent) Clone() *NativeEvent {
	c := *e
	c.Alarms = cloneAlarms(e.Alarms)
	c.RecurrenceRules = cloneRules(e.RecurrenceRules)
	c.ExceptionDates = slices.Clone(e.ExceptionDates)
	c.Attendees = slices.Clone(e.Attendees)
	if e.LastModified != nil {
		t := *e.LastModified
		c.LastModified = &t
	}
	return &c
}

// NativeReminder is a reminder as the store holds it
type NativeReminder struct {
	Identifier        string
	Calendar          *Calendar
	Title             string
	DueDateComponents *DateComponents
	Notes             string
	URL               string
	Priority          int
	Completed         bool
	CompletionDate    *time.Time
	Alarms            []*Alarm
	RecurrenceRules   []*RecurrenceRule
	CreationDate      *time.Time
	LastModified      *time.Time
}

// SetCompleted marks the reminder done at now, or pending
func (r *NativeReminder) SetCompleted(done bool, now time.Time) {
	r.Completed = done
	if done {
		r.CompletionDate = &now
		return
	}
	r.CompletionDate = nil
}

func (r *NativeReminder) AddRecurrenceRule(rule *RecurrenceRule) {
	r.RecurrenceRules = append(r.RecurrenceRules, rule)
}

func (r *NativeReminder) RemoveRecurrenceRule(rule *RecurrenceRule) {
	r.RecurrenceRules = slices.DeleteFunc(r.RecurrenceRules, func(x *RecurrenceRule) bool { return x == rule })
}

func (r *NativeReminder) Clone() *NativeReminder {
	c := *r
	if r.DueDateComponents != nil {
		d := *r.DueDateComponents
		c.DueDateComponents = &d
	}
	if r.CompletionDate != nil {
		t := *r.CompletionDate
		c.CompletionDate = &t
	}
	c.Alarms = cloneAlarms(r.Alarms)
	c.RecurrenceRules = cloneRules(r.RecurrenceRules)
	return &c
}

// EventPredicate selects event occurrences overlapping [Start, End] in the
// given calendars. An empty calendar list means all event calendars.
type EventPredicate struct {
	Start     time.Time
	End       time.Time
	Calendars []*Calendar
}

// ReminderPredicate selects reminders in the given lists. An empty list means
// all reminder lists.
type ReminderPredicate struct {
	Calendars []*Calendar
}

// AccessCallback receives the outcome of an access request
type AccessCallback func(granted bool, err error)

// RemindersCallback receives the outcome of a reminder fetch
type RemindersCallback func(reminders []*NativeReminder, err error)

// Store is a native calendar store. RequestAccess and FetchReminders are
// asynchronous: they return immediately and invoke the callback exactly
// once, possibly on another goroutine. Everything else is synchronous.
type Store interface {
	RequestAccess(ctx context.Context, entity EntityType, done AccessCallback)

	Calendars(ctx context.Context, entity EntityType) ([]*Calendar, error)
	DefaultCalendar(ctx context.Context, entity EntityType) (*Calendar, error)
	Sources(ctx context.Context) ([]*Source, error)
	SaveCalendar(ctx context.Context, cal *Calendar, commit bool) error
	RemoveCalendar(ctx context.Context, cal *Calendar, commit bool) error

	EventsMatching(ctx context.Context, pred EventPredicate) ([]*NativeEvent, error)
	// Event returns nil, nil when the identifier is unknown
	Event(ctx context.Context, identifier string) (*NativeEvent, error)
	SaveEvent(ctx context.Context, ev *NativeEvent, span Span) error
	RemoveEvent(ctx context.Context, ev *NativeEvent, span Span) error

	FetchReminders(ctx context.Context, pred ReminderPredicate, done RemindersCallback)
	SaveReminder(ctx context.Context, r *NativeReminder, commit bool) error
	RemoveReminder(ctx context.Context, r *NativeReminder, commit bool) error
}

// CalendarIDs returns the identifiers of cals, for backends that filter by id
func CalendarIDs(cals []*Calendar) []string {
	ids := make([]string, 0, len(cals))
	for _, c := range cals {
		ids = append(ids, c.Identifier)
	}
	return ids
}

func cloneAlarms(in []*Alarm) []*Alarm {
	if in == nil {
		return nil
	}
	out := make([]*Alarm, len(in))
	for i, a := range in {
		c := *a
		out[i] = &c
	}
	return out
}

func cloneRules(in []*RecurrenceRule) []*RecurrenceRule {
	if in == nil {
		return nil
	}
	out := make([]*RecurrenceRule, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
