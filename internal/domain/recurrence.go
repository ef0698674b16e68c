package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecurrenceRule describes how an event or reminder repeats. At most one of
// EndDate and OccurrenceCount is set; neither means the rule never ends.
type RecurrenceRule struct {
	Frequency       Frequency  `json:"frequency"`
	Interval        int        `json:"interval"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	OccurrenceCount *int       `json:"occurrence_count,omitempty"`
	DaysOfWeek      []Weekday  `json:"days_of_week,omitempty"`
}

// RecurrenceOption configures NewRecurrenceRule
type RecurrenceOption func(*RecurrenceRule)

func WithInterval(n int) RecurrenceOption {
	return func(r *RecurrenceRule) { r.Interval = n }
}

func WithEndDate(t time.Time) RecurrenceOption {
	return func(r *RecurrenceRule) { r.EndDate = &t }
}

func WithOccurrenceCount(n int) RecurrenceOption {
	return func(r *RecurrenceRule) { r.OccurrenceCount = &n }
}

func WithDaysOfWeek(days ...Weekday) RecurrenceOption {
	return func(r *RecurrenceRule) { r.DaysOfWeek = days }
}

// NewRecurrenceRule builds a validated rule. Interval defaults to 1.
func NewRecurrenceRule(freq Frequency, opts ...RecurrenceOption) (*RecurrenceRule, error) {
	r := &RecurrenceRule{Frequency: freq, Interval: 1}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rule's invariants
func (r *RecurrenceRule) Validate() error {
	if !r.Frequency.Valid() {
		return &ValidationError{Field: "recurrence_rule.frequency", Message: fmt.Sprintf("unknown frequency %d", int(r.Frequency))}
	}
	if r.Interval < 1 {
		return &ValidationError{Field: "recurrence_rule.interval", Message: "must be at least 1"}
	}
	if r.EndDate != nil && r.OccurrenceCount != nil {
		return &ValidationError{Field: "recurrence_rule", Message: "Only one of end_date or occurrence_count can be set"}
	}
	if r.OccurrenceCount != nil && *r.OccurrenceCount < 1 {
		return &ValidationError{Field: "recurrence_rule.occurrence_count", Message: "must be at least 1"}
	}
	for _, d := range r.DaysOfWeek {
		if !d.Valid() {
			return &ValidationError{Field: "recurrence_rule.days_of_week", Message: fmt.Sprintf("unknown weekday %d", int(d))}
		}
	}
	return nil
}

// Equal compares two rules field by field. End dates compare as instants.
func (r *RecurrenceRule) Equal(o *RecurrenceRule) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Frequency != o.Frequency || r.Interval != o.Interval {
		return false
	}
	if (r.EndDate == nil) != (o.EndDate == nil) || (r.EndDate != nil && !r.EndDate.Equal(*o.EndDate)) {
		return false
	}
	if (r.OccurrenceCount == nil) != (o.OccurrenceCount == nil) || (r.OccurrenceCount != nil && *r.OccurrenceCount != *o.OccurrenceCount) {
		return false
	}
	if len(r.DaysOfWeek) != len(o.DaysOfWeek) {
		return false
	}
	for i := range r.DaysOfWeek {
		if r.DaysOfWeek[i] != o.DaysOfWeek[i] {
			return false
		}
	}
	return true
}

// Summary renders the rule the way list output shows it
func (r *RecurrenceRule) Summary() string {
	if r == nil {
		return "No recurrence"
	}
	end := "N/A"
	if r.EndDate != nil {
		end = r.EndDate.Format(time.DateTime)
	}
	count := "N/A"
	if r.OccurrenceCount != nil {
		count = fmt.Sprint(*r.OccurrenceCount)
	}
	s := fmt.Sprintf("Recurrence: %s, Interval: %d, End Date: %s, Occurrences: %s", r.Frequency, r.Interval, end, count)
	if len(r.DaysOfWeek) > 0 {
		days := make([]string, len(r.DaysOfWeek))
		for i, d := range r.DaysOfWeek {
			days[i] = d.String()
		}
		s += ", Days: " + strings.Join(days, ", ")
	}
	return s
}

func (r *RecurrenceRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Frequency       *Frequency `json:"frequency"`
		Interval        *int       `json:"interval"`
		EndDate         *time.Time `json:"end_date"`
		OccurrenceCount *int       `json:"occurrence_count"`
		DaysOfWeek      []Weekday  `json:"days_of_week"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Frequency == nil {
		return &ValidationError{Field: "recurrence_rule.frequency", Message: "is required"}
	}

	rule := RecurrenceRule{
		Frequency:       *raw.Frequency,
		Interval:        1,
		EndDate:         raw.EndDate,
		OccurrenceCount: raw.OccurrenceCount,
		DaysOfWeek:      raw.DaysOfWeek,
	}
	if raw.Interval != nil {
		rule.Interval = *raw.Interval
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	*r = rule
	return nil
}
