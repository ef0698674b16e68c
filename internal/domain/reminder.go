package domain

import "time"

// Reminder is a decoded reminder
type Reminder struct {
	Identifier           string          `json:"identifier"`
	Title                string          `json:"title"`
	ListName             string          `json:"list_name,omitempty"`
	DueDate              *time.Time      `json:"due_date,omitempty"`
	CompletionDate       *time.Time      `json:"completion_date,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	Priority             Priority        `json:"priority"`
	URL                  string          `json:"url,omitempty"`
	IsCompleted          bool            `json:"is_completed"`
	AlarmsMinutesOffsets []int           `json:"alarms_minutes_offsets,omitempty"`
	RecurrenceRule       *RecurrenceRule `json:"recurrence_rule,omitempty"`
	CreationDate         *time.Time      `json:"creation_date,omitempty"`
	LastModified         *time.Time      `json:"last_modified,omitempty"`

	Handle Handle `json:"-"`
}

// IsOverdue reports whether a pending reminder's due date has passed
func (r *Reminder) IsOverdue(now time.Time) bool {
	return !r.IsCompleted && r.DueDate != nil && r.DueDate.Before(now)
}

type CreateReminderRequest struct {
	Title                string          `json:"title"`
	ListName             string          `json:"list_name,omitempty"`
	DueDate              *time.Time      `json:"due_date,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	Priority             Priority        `json:"priority"`
	URL                  string          `json:"url,omitempty"`
	AlarmsMinutesOffsets []int           `json:"alarms_minutes_offsets,omitempty"`
	RecurrenceRule       *RecurrenceRule `json:"recurrence_rule,omitempty"`
}

func (r *CreateReminderRequest) Validate() error {
	if r.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if !r.Priority.Valid() {
		return &ValidationError{Field: "priority", Message: "must be NONE, HIGH, MEDIUM or LOW"}
	}
	if r.RecurrenceRule != nil {
		return r.RecurrenceRule.Validate()
	}
	return nil
}

type UpdateReminderRequest struct {
	Title                Optional[string]         `json:"title"`
	ListName             Optional[string]         `json:"list_name"`
	DueDate              Optional[time.Time]      `json:"due_date"`
	Notes                Optional[string]         `json:"notes"`
	Priority             Optional[Priority]       `json:"priority"`
	URL                  Optional[string]         `json:"url"`
	IsCompleted          Optional[bool]           `json:"is_completed"`
	AlarmsMinutesOffsets Optional[[]int]          `json:"alarms_minutes_offsets"`
	RecurrenceRule       Optional[RecurrenceRule] `json:"recurrence_rule"`
}

func (r *UpdateReminderRequest) Validate() error {
	if err := requireNotCleared("title", r.Title.IsCleared()); err != nil {
		return err
	}
	if title, ok := r.Title.Get(); ok && title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if err := requireNotCleared("list_name", r.ListName.IsCleared()); err != nil {
		return err
	}
	if p, ok := r.Priority.Get(); ok && !p.Valid() {
		return &ValidationError{Field: "priority", Message: "must be NONE, HIGH, MEDIUM or LOW"}
	}
	if rule, ok := r.RecurrenceRule.Get(); ok {
		return rule.Validate()
	}
	return nil
}
