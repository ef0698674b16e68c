package domain

import "fmt"

// CalendarNotFoundError is returned when a calendar or reminder list name
// (or calendar identifier) does not resolve against the store
type CalendarNotFoundError struct {
	Name string
}

func (e *CalendarNotFoundError) Error() string {
	return fmt.Sprintf("Calendar: %s does not exist", e.Name)
}

type EventNotFoundError struct {
	ID string
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("Event with id: %s does not exist", e.ID)
}

type ReminderNotFoundError struct {
	ID string
}

func (e *ReminderNotFoundError) Error() string {
	return fmt.Sprintf("Reminder with id: %s does not exist", e.ID)
}

// ValidationError reports input that was rejected before touching the store
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// StoreError wraps a failure reported by the native store
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// AccessDeniedError is returned when the store refuses access to an entity type
type AccessDeniedError struct {
	Entity string
	Cause  error
}

func (e *AccessDeniedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s access not granted: %v", e.Entity, e.Cause)
	}
	return fmt.Sprintf("%s access not granted", e.Entity)
}

func (e *AccessDeniedError) Unwrap() error {
	return e.Cause
}
