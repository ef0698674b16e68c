package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Frequency is the recurrence frequency. Values match the store's native codes.
type Frequency int

const (
	FrequencyDaily   Frequency = 0
	FrequencyWeekly  Frequency = 1
	FrequencyMonthly Frequency = 2
	FrequencyYearly  Frequency = 3
)

var frequencyNames = map[Frequency]string{
	FrequencyDaily:   "DAILY",
	FrequencyWeekly:  "WEEKLY",
	FrequencyMonthly: "MONTHLY",
	FrequencyYearly:  "YEARLY",
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// Valid reports whether f is one of the four known frequencies
func (f Frequency) Valid() bool {
	_, ok := frequencyNames[f]
	return ok
}

func (f Frequency) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Frequency) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, "frequency", frequencyNames)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Weekday is a day of the week in store numbering (Sunday = 1 ... Saturday = 7)
type Weekday int

const (
	Sunday    Weekday = 1
	Monday    Weekday = 2
	Tuesday   Weekday = 3
	Wednesday Weekday = 4
	Thursday  Weekday = 5
	Friday    Weekday = 6
	Saturday  Weekday = 7
)

var weekdayNames = map[Weekday]string{
	Sunday:    "SUNDAY",
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
}

func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

// MarshalJSON keeps weekdays numeric, the form callers send
func (d Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(d))
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, "weekday", weekdayNames)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Priority is a reminder priority. The numbers are the store's weights: lower
// non-zero values are more urgent, 0 means no priority.
type Priority int

const (
	PriorityNone   Priority = 0
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 5
	PriorityLow    Priority = 9
)

var priorityNames = map[Priority]string{
	PriorityNone:   "NONE",
	PriorityHigh:   "HIGH",
	PriorityMedium: "MEDIUM",
	PriorityLow:    "LOW",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	v, err := parseEnum(data, "priority", priorityNames)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PriorityFromStore maps a raw store weight onto a Priority. Unknown weights
// collapse to NONE.
func PriorityFromStore(weight int) Priority {
	p := Priority(weight)
	if !p.Valid() {
		return PriorityNone
	}
	return p
}

// ParsePriority accepts a name (case-insensitive) or a numeric weight
func ParsePriority(s string) (Priority, error) {
	return parseEnum([]byte(quoteIfName(s)), "priority", priorityNames)
}

// ParseFrequency accepts a name (case-insensitive) or a numeric code
func ParseFrequency(s string) (Frequency, error) {
	return parseEnum([]byte(quoteIfName(s)), "frequency", frequencyNames)
}

func quoteIfName(s string) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.Atoi(s); err == nil {
		return s
	}
	return strconv.Quote(s)
}

func parseEnum[T ~int](data []byte, field string, names map[T]string) (T, error) {
	var num int
	if err := json.Unmarshal(data, &num); err == nil {
		v := T(num)
		if _, ok := names[v]; !ok {
			return 0, &ValidationError{Field: field, Message: fmt.Sprintf("unknown value %d", num)}
		}
		return v, nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return 0, &ValidationError{Field: field, Message: "must be a name or a number"}
	}
	for v, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return v, nil
		}
	}
	return 0, &ValidationError{Field: field, Message: fmt.Sprintf("unknown value %q", name)}
}
