// Package codec converts between domain values and the store's native
// representations of recurrence rules, alarms and due dates.
package codec

import (
	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/store"
)

// EncodeRecurrence maps a domain rule onto the store's rule. Weekdays become
// day-of-week entries for any week of the period.
func EncodeRecurrence(r *domain.RecurrenceRule) *store.RecurrenceRule {
	if r == nil {
		return nil
	}
	native := &store.RecurrenceRule{
		Frequency: int(r.Frequency),
		Interval:  r.Interval,
	}
	for _, d := range r.DaysOfWeek {
		native.DaysOfTheWeek = append(native.DaysOfTheWeek, store.DayOfWeek{DayOfTheWeek: int(d)})
	}
	switch {
	case r.EndDate != nil:
		native.End = &store.RecurrenceEnd{EndDate: *r.EndDate}
	case r.OccurrenceCount != nil:
		native.End = &store.RecurrenceEnd{OccurrenceCount: *r.OccurrenceCount}
	}
	return native
}

// DecodeRecurrence is the inverse of EncodeRecurrence. An end carrying an
// occurrence count decodes to the count, any other end to its date.
func DecodeRecurrence(native *store.RecurrenceRule) *domain.RecurrenceRule {
	if native == nil {
		return nil
	}
	r := &domain.RecurrenceRule{
		Frequency: domain.Frequency(native.Frequency),
		Interval:  native.Interval,
	}
	for _, d := range native.DaysOfTheWeek {
		r.DaysOfWeek = append(r.DaysOfWeek, domain.Weekday(d.DayOfTheWeek))
	}
	if native.End != nil {
		if native.End.OccurrenceCount > 0 {
			n := native.End.OccurrenceCount
			r.OccurrenceCount = &n
		} else {
			end := native.End.EndDate
			r.EndDate = &end
		}
	}
	return r
}

// DecodeFirstRecurrence decodes the first of a store object's rules
func DecodeFirstRecurrence(rules []*store.RecurrenceRule) *domain.RecurrenceRule {
	if len(rules) == 0 {
		return nil
	}
	return DecodeRecurrence(rules[0])
}
