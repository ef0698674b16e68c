package domain

import (
	"fmt"
	"time"
)

// Handle is an opaque reference to the native store object a value was
// decoded from. It is only meaningful to the manager that issued it.
type Handle uint64

// Calendar is a calendar or reminder list as the store enumerates it
type Calendar struct {
	Identifier       string `json:"identifier"`
	Title            string `json:"title"`
	SourceTitle      string `json:"source_title,omitempty"`
	SupportsCreation bool   `json:"supports_creation"`
}

// Event is a decoded calendar event
type Event struct {
	Identifier           string          `json:"identifier"`
	Title                string          `json:"title"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              time.Time       `json:"end_time"`
	OccurrenceDate       time.Time       `json:"occurrence_date"`
	CalendarName         string          `json:"calendar_name,omitempty"`
	Location             string          `json:"location,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	URL                  string          `json:"url,omitempty"`
	AllDay               bool            `json:"all_day"`
	AlarmsMinutesOffsets []int           `json:"alarms_minutes_offsets,omitempty"`
	HasAlarms            bool            `json:"has_alarms"`
	RecurrenceRule       *RecurrenceRule `json:"recurrence_rule,omitempty"`
	Availability         int             `json:"availability"`
	Status               int             `json:"status"`
	Organizer            string          `json:"organizer,omitempty"`
	Attendees            []string        `json:"attendees,omitempty"`
	LastModified         *time.Time      `json:"last_modified,omitempty"`

	Handle Handle `json:"-"`
}

// FormatTime returns the time span for display
func (e *Event) FormatTime() string {
	if e.AllDay {
		return "all day"
	}
	if e.EndTime.IsZero() {
		return e.StartTime.Format("15:04")
	}
	return e.StartTime.Format("15:04") + "-" + e.EndTime.Format("15:04")
}

// FormatDateTime returns formatted date and time
func (e *Event) FormatDateTime() string {
	if e.AllDay {
		return e.StartTime.Format("02.01.2006") + " (all day)"
	}
	return e.StartTime.Format("02.01.2006 15:04")
}

// IsRecurring reports whether the event belongs to a series
func (e *Event) IsRecurring() bool {
	return e.RecurrenceRule != nil
}

type CreateEventRequest struct {
	Title                string          `json:"title"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              time.Time       `json:"end_time"`
	CalendarName         string          `json:"calendar_name,omitempty"`
	Location             string          `json:"location,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	AlarmsMinutesOffsets []int           `json:"alarms_minutes_offsets,omitempty"`
	URL                  string          `json:"url,omitempty"`
	AllDay               bool            `json:"all_day"`
	RecurrenceRule       *RecurrenceRule `json:"recurrence_rule,omitempty"`
}

func (r *CreateEventRequest) Validate() error {
	if r.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if r.StartTime.IsZero() {
		return &ValidationError{Field: "start_time", Message: "is required"}
	}
	if r.EndTime.IsZero() {
		return &ValidationError{Field: "end_time", Message: "is required"}
	}
	if r.EndTime.Before(r.StartTime) {
		return &ValidationError{Field: "end_time", Message: "must not be before start_time"}
	}
	if r.RecurrenceRule != nil {
		return r.RecurrenceRule.Validate()
	}
	return nil
}

// UpdateEventRequest holds the fields to change. Absent fields are left as
// they are; see Optional for the clear semantics.
type UpdateEventRequest struct {
	Title                Optional[string]         `json:"title"`
	StartTime            Optional[time.Time]      `json:"start_time"`
	EndTime              Optional[time.Time]      `json:"end_time"`
	CalendarName         Optional[string]         `json:"calendar_name"`
	Location             Optional[string]         `json:"location"`
	Notes                Optional[string]         `json:"notes"`
	AlarmsMinutesOffsets Optional[[]int]          `json:"alarms_minutes_offsets"`
	URL                  Optional[string]         `json:"url"`
	AllDay               Optional[bool]           `json:"all_day"`
	RecurrenceRule       Optional[RecurrenceRule] `json:"recurrence_rule"`
}

func (r *UpdateEventRequest) Validate() error {
	if err := requireNotCleared("title", r.Title.IsCleared()); err != nil {
		return err
	}
	if title, ok := r.Title.Get(); ok && title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if err := requireNotCleared("start_time", r.StartTime.IsCleared()); err != nil {
		return err
	}
	if err := requireNotCleared("end_time", r.EndTime.IsCleared()); err != nil {
		return err
	}
	if err := requireNotCleared("calendar_name", r.CalendarName.IsCleared()); err != nil {
		return err
	}
	start, hasStart := r.StartTime.Get()
	end, hasEnd := r.EndTime.Get()
	if hasStart && hasEnd && end.Before(start) {
		return &ValidationError{Field: "end_time", Message: "must not be before start_time"}
	}
	if rule, ok := r.RecurrenceRule.Get(); ok {
		return rule.Validate()
	}
	return nil
}

func requireNotCleared(field string, cleared bool) error {
	if cleared {
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s cannot be cleared", field)}
	}
	return nil
}
