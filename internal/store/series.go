package store

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps how many occurrences one series expands to per query
const MaxOccurrences = 5000

var frequencies = []rrule.Frequency{rrule.DAILY, rrule.WEEKLY, rrule.MONTHLY, rrule.YEARLY}

// Sunday first, matching DayOfWeek numbering
var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ROption converts a rule into rrule-go options anchored at dtstart
func ROption(rule *RecurrenceRule, dtstart time.Time) (rrule.ROption, error) {
	if rule.Frequency < 0 || rule.Frequency >= len(frequencies) {
		return rrule.ROption{}, fmt.Errorf("unsupported frequency %d", rule.Frequency)
	}
	opt := rrule.ROption{
		Freq:     frequencies[rule.Frequency],
		Interval: max(rule.Interval, 1),
		Dtstart:  dtstart,
	}
	for _, d := range rule.DaysOfTheWeek {
		if d.DayOfTheWeek < 1 || d.DayOfTheWeek > 7 {
			return rrule.ROption{}, fmt.Errorf("unsupported weekday %d", d.DayOfTheWeek)
		}
		wd := weekdays[d.DayOfTheWeek-1]
		if d.WeekNumber != 0 {
			wd = wd.Nth(d.WeekNumber)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	if rule.End != nil {
		if rule.End.OccurrenceCount > 0 {
			opt.Count = rule.End.OccurrenceCount
		} else {
			opt.Until = rule.End.EndDate
		}
	}
	return opt, nil
}

// RuleFromROption is the inverse of ROption
func RuleFromROption(opt *rrule.ROption) (*RecurrenceRule, error) {
	freq := slices.Index(frequencies, opt.Freq)
	if freq < 0 {
		return nil, fmt.Errorf("unsupported frequency %v", opt.Freq)
	}
	rule := &RecurrenceRule{Frequency: freq, Interval: max(opt.Interval, 1)}
	for _, wd := range opt.Byweekday {
		// rrule-go numbers Monday 0 ... Sunday 6
		rule.DaysOfTheWeek = append(rule.DaysOfTheWeek, DayOfWeek{
			DayOfTheWeek: (wd.Day()+1)%7 + 1,
			WeekNumber:   wd.N(),
		})
	}
	switch {
	case opt.Count > 0:
		rule.End = &RecurrenceEnd{OccurrenceCount: opt.Count}
	case !opt.Until.IsZero():
		rule.End = &RecurrenceEnd{EndDate: opt.Until}
	}
	return rule, nil
}

// FormatRRule renders a rule as an RFC 5545 RRULE value
func FormatRRule(rule *RecurrenceRule) (string, error) {
	opt, err := ROption(rule, time.Time{})
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// ParseRRule parses an RRULE value
func ParseRRule(s string) (*RecurrenceRule, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", s, err)
	}
	return RuleFromROption(opt)
}

func recurrenceSet(ev *NativeEvent) (*rrule.Set, error) {
	if !ev.HasRecurrenceRules() {
		return nil, errors.New("event does not recur")
	}
	var set rrule.Set
	set.DTStart(ev.Start)
	for _, rule := range ev.RecurrenceRules {
		opt, err := ROption(rule, ev.Start)
		if err != nil {
			return nil, err
		}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, fmt.Errorf("build rrule: %w", err)
		}
		set.RRule(r)
	}
	for _, ex := range ev.ExceptionDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}
	return &set, nil
}

// Overlaps reports whether [start, end) intersects the window. A zero-length
// item counts when it sits inside the window.
func Overlaps(start, end, windowStart, windowEnd time.Time) bool {
	if !end.After(start) {
		return !start.Before(windowStart) && !start.After(windowEnd)
	}
	return start.Before(windowEnd) && end.After(windowStart)
}

// Expand returns the occurrences of ev overlapping the window. Non-recurring
// events yield themselves when they overlap. Every returned value is a copy
// carrying its OccurrenceDate.
func Expand(ev *NativeEvent, windowStart, windowEnd time.Time) ([]*NativeEvent, error) {
	if !ev.HasRecurrenceRules() {
		if !Overlaps(ev.Start, ev.End, windowStart, windowEnd) {
			return nil, nil
		}
		occ := ev.Clone()
		occ.OccurrenceDate = ev.Start
		return []*NativeEvent{occ}, nil
	}

	set, err := recurrenceSet(ev)
	if err != nil {
		return nil, err
	}
	loc := ev.Start.Location()
	dur := ev.End.Sub(ev.Start)
	times := set.Between(windowStart.Add(-dur).In(loc), windowEnd.In(loc), true)
	if len(times) > MaxOccurrences {
		times = times[:MaxOccurrences]
	}

	out := make([]*NativeEvent, 0, len(times))
	for _, t := range times {
		if !Overlaps(t, t.Add(dur), windowStart, windowEnd) {
			continue
		}
		occ := ev.Clone()
		occ.Start = t
		occ.End = t.Add(dur)
		occ.OccurrenceDate = t
		out = append(out, occ)
	}
	return out, nil
}

// IsOccurrence reports whether t is an occurrence start of the series,
// exception dates included.
func IsOccurrence(ev *NativeEvent, t time.Time) (bool, error) {
	if !ev.HasRecurrenceRules() {
		return t.Equal(ev.Start), nil
	}
	set, err := recurrenceSet(ev)
	if err != nil {
		return false, err
	}
	for _, occ := range set.Between(t, t, true) {
		if occ.Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

// occurrencesBefore counts the series occurrences strictly before t,
// ignoring exception dates, as COUNT does.
func occurrencesBefore(ev *NativeEvent, t time.Time) (int, error) {
	n := 0
	for _, rule := range ev.RecurrenceRules {
		opt, err := ROption(rule, ev.Start)
		if err != nil {
			return 0, err
		}
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return 0, fmt.Errorf("build rrule: %w", err)
		}
		n += len(r.Between(ev.Start, t.Add(-time.Nanosecond), true))
	}
	return n, nil
}

// Truncate returns a copy of the series ending before cut, or nil when no
// occurrence precedes cut. Count-based rules keep a count, date-based rules
// get an end date just before cut.
func Truncate(ev *NativeEvent, cut time.Time) (*NativeEvent, error) {
	if !ev.Start.Before(cut) {
		return nil, nil
	}
	if !ev.HasRecurrenceRules() {
		return ev.Clone(), nil
	}
	before, err := occurrencesBefore(ev, cut)
	if err != nil {
		return nil, err
	}
	if before == 0 {
		return nil, nil
	}

	head := ev.Clone()
	for _, rule := range head.RecurrenceRules {
		switch {
		case rule.End != nil && rule.End.OccurrenceCount > 0:
			rule.End.OccurrenceCount = min(rule.End.OccurrenceCount, before)
		case rule.End != nil && !rule.End.EndDate.IsZero() && rule.End.EndDate.Before(cut):
		default:
			rule.End = &RecurrenceEnd{EndDate: cut.Add(-time.Second)}
		}
	}
	head.ExceptionDates = slices.DeleteFunc(head.ExceptionDates, func(t time.Time) bool { return !t.Before(cut) })
	head.OccurrenceDate = time.Time{}
	return head, nil
}

// Tail rebases an edited occurrence into the remainder of its series starting
// at the occurrence. master is the series as stored. A rule left unchanged by
// the edit has its count reduced by the occurrences that stay behind.
func Tail(master, edited *NativeEvent, occurrence time.Time) (*NativeEvent, error) {
	tail := edited.Clone()
	tail.OccurrenceDate = time.Time{}
	tail.ExceptionDates = slices.DeleteFunc(slices.Clone(master.ExceptionDates), func(t time.Time) bool { return t.Before(occurrence) })
	if !tail.HasRecurrenceRules() {
		return tail, nil
	}
	before, err := occurrencesBefore(master, occurrence)
	if err != nil {
		return nil, err
	}
	for i, rule := range tail.RecurrenceRules {
		if i >= len(master.RecurrenceRules) || !rule.Equal(master.RecurrenceRules[i]) {
			continue
		}
		if rule.End != nil && rule.End.OccurrenceCount > 0 {
			rule.End.OccurrenceCount = max(rule.End.OccurrenceCount-before, 1)
		}
	}
	return tail, nil
}
