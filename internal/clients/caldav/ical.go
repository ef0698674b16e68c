package caldav

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/icalbridge/internal/store"
)

const productID = "-//icalbridge//CalDAV//EN"

// floating date-time, read in the store's location
const floatingFormat = "20060102T150405"

// Availability and status codes carried on store.NativeEvent
const (
	availabilityFree = 1

	statusConfirmed = 1
	statusTentative = 2
	statusCancelled = 3
)

var statusValues = map[int]string{
	statusConfirmed: "CONFIRMED",
	statusTentative: "TENTATIVE",
	statusCancelled: "CANCELLED",
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// setTime writes t with its TZID when the zone is a loadable IANA name,
// otherwise in UTC
func setTime(prop *ical.Prop, t time.Time) {
	name := t.Location().String()
	if name == "UTC" || name == "Local" || name == "" {
		prop.SetDateTime(t.UTC())
		return
	}
	if _, err := time.LoadLocation(name); err != nil {
		prop.SetDateTime(t.UTC())
		return
	}
	prop.SetDateTime(t)
}

func timeProp(name string, t time.Time, allDay bool) *ical.Prop {
	prop := ical.NewProp(name)
	if allDay {
		prop.SetDate(t)
	} else {
		setTime(prop, t)
	}
	return prop
}

func rawProp(name, value string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Value = value
	return prop
}

func addProp(props ical.Props, prop *ical.Prop) {
	props[prop.Name] = append(props[prop.Name], *prop)
}

func setRules(props ical.Props, rules []*store.RecurrenceRule) error {
	for _, r := range rules {
		s, err := store.FormatRRule(r)
		if err != nil {
			return err
		}
		addProp(props, rawProp(ical.PropRecurrenceRule, s))
	}
	return nil
}

func rules(props ical.Props) ([]*store.RecurrenceRule, error) {
	var out []*store.RecurrenceRule
	for _, p := range props[ical.PropRecurrenceRule] {
		r, err := store.ParseRRule(p.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func alarmComponents(alarms []*store.Alarm, summary string) []*ical.Component {
	out := make([]*ical.Component, 0, len(alarms))
	for _, a := range alarms {
		c := ical.NewComponent(ical.CompAlarm)
		c.Props.SetText(ical.PropAction, "DISPLAY")
		c.Props.SetText(ical.PropDescription, summary)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.SetDuration(a.RelativeOffset)
		c.Props.Set(trigger)
		out = append(out, c)
	}
	return out
}

func alarms(comp *ical.Component) ([]*store.Alarm, error) {
	var out []*store.Alarm
	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		trigger := child.Props.Get(ical.PropTrigger)
		// absolute triggers carry no relative offset
		if trigger == nil || trigger.Params.Get(ical.ParamValue) == string(ical.ValueDateTime) {
			continue
		}
		d, err := trigger.Duration()
		if err != nil {
			return nil, fmt.Errorf("alarm trigger: %w", err)
		}
		out = append(out, &store.Alarm{RelativeOffset: d})
	}
	return out, nil
}

// EncodeEvent renders ev as a VCALENDAR holding one VEVENT
func EncodeEvent(ev *store.NativeEvent, now time.Time) (*ical.Calendar, error) {
	vevent := ical.NewComponent(ical.CompEvent)
	props := vevent.Props
	props.SetText(ical.PropUID, ev.Identifier)
	props.SetText(ical.PropSummary, ev.Title)
	props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	props.SetDateTime(ical.PropLastModified, now.UTC())
	props.Set(timeProp(ical.PropDateTimeStart, ev.Start, ev.AllDay))
	props.Set(timeProp(ical.PropDateTimeEnd, ev.End, ev.AllDay))

	if ev.Notes != "" {
		props.SetText(ical.PropDescription, ev.Notes)
	}
	if ev.Location != "" {
		props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.URL != "" {
		props.Set(rawProp(ical.PropURL, ev.URL))
	}
	if ev.Availability == availabilityFree {
		props.SetText(ical.PropTransparency, "TRANSPARENT")
	} else {
		props.SetText(ical.PropTransparency, "OPAQUE")
	}
	if s, ok := statusValues[ev.Status]; ok {
		props.SetText(ical.PropStatus, s)
	}
	if ev.Organizer != "" {
		props.Set(rawProp(ical.PropOrganizer, "mailto:"+ev.Organizer))
	}
	for _, a := range ev.Attendees {
		addProp(props, rawProp(ical.PropAttendee, "mailto:"+a))
	}
	if err := setRules(props, ev.RecurrenceRules); err != nil {
		return nil, err
	}
	for _, ex := range ev.ExceptionDates {
		addProp(props, timeProp(ical.PropExceptionDates, ex.In(ev.Start.Location()), ev.AllDay))
	}
	vevent.Children = alarmComponents(ev.Alarms, ev.Title)

	cal := newCalendar()
	cal.Children = append(cal.Children, vevent)
	return cal, nil
}

// masterComponent returns the first component of the given kind that is not
// a recurrence override
func masterComponent(cal *ical.Calendar, name string) *ical.Component {
	for _, c := range cal.Children {
		if c.Name == name && c.Props.Get(ical.PropRecurrenceID) == nil {
			return c
		}
	}
	return nil
}

func text(props ical.Props, name string) string {
	p := props.Get(name)
	if p == nil {
		return ""
	}
	if s, err := p.Text(); err == nil {
		return s
	}
	return p.Value
}

func isDate(p *ical.Prop) bool {
	return p.Params.Get(ical.ParamValue) == string(ical.ValueDate)
}

func mailto(s string) string {
	if len(s) >= 7 && strings.EqualFold(s[:7], "mailto:") {
		return s[7:]
	}
	return s
}

// DecodeEvent reads the master VEVENT of cal
func DecodeEvent(cal *ical.Calendar, calendar *store.Calendar, loc *time.Location) (*store.NativeEvent, error) {
	comp := masterComponent(cal, ical.CompEvent)
	if comp == nil {
		return nil, errors.New("no VEVENT in calendar object")
	}
	props := comp.Props

	ev := &store.NativeEvent{
		Identifier: text(props, ical.PropUID),
		Calendar:   calendar,
		Title:      text(props, ical.PropSummary),
		Location:   text(props, ical.PropLocation),
		Notes:      text(props, ical.PropDescription),
	}
	if ev.Identifier == "" {
		return nil, errors.New("VEVENT has no UID")
	}

	start := props.Get(ical.PropDateTimeStart)
	if start == nil {
		return nil, fmt.Errorf("event %s has no DTSTART", ev.Identifier)
	}
	t, err := start.DateTime(loc)
	if err != nil {
		return nil, fmt.Errorf("event %s DTSTART: %w", ev.Identifier, err)
	}
	ev.Start = t
	ev.AllDay = isDate(start)

	switch end, dur := props.Get(ical.PropDateTimeEnd), props.Get(ical.PropDuration); {
	case end != nil:
		if ev.End, err = end.DateTime(loc); err != nil {
			return nil, fmt.Errorf("event %s DTEND: %w", ev.Identifier, err)
		}
	case dur != nil:
		d, err := dur.Duration()
		if err != nil {
			return nil, fmt.Errorf("event %s DURATION: %w", ev.Identifier, err)
		}
		ev.End = ev.Start.Add(d)
	case ev.AllDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start
	}

	if p := props.Get(ical.PropURL); p != nil {
		ev.URL = p.Value
	}
	if strings.EqualFold(text(props, ical.PropTransparency), "TRANSPARENT") {
		ev.Availability = availabilityFree
	}
	status := strings.ToUpper(text(props, ical.PropStatus))
	for code, s := range statusValues {
		if s == status {
			ev.Status = code
		}
	}
	if p := props.Get(ical.PropOrganizer); p != nil {
		ev.Organizer = mailto(p.Value)
	}
	for _, p := range props[ical.PropAttendee] {
		ev.Attendees = append(ev.Attendees, mailto(p.Value))
	}
	if ev.RecurrenceRules, err = rules(props); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.Identifier, err)
	}
	if ev.ExceptionDates, err = exceptionDates(props, ev.Start.Location()); err != nil {
		return nil, fmt.Errorf("event %s EXDATE: %w", ev.Identifier, err)
	}
	if ev.Alarms, err = alarms(comp); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.Identifier, err)
	}
	if p := props.Get(ical.PropLastModified); p != nil {
		if t, err := p.DateTime(time.UTC); err == nil {
			ev.LastModified = &t
		}
	}
	return ev, nil
}

// exceptionDates reads every EXDATE, including comma-separated lists
func exceptionDates(props ical.Props, loc *time.Location) ([]time.Time, error) {
	var out []time.Time
	for _, p := range props[ical.PropExceptionDates] {
		for _, v := range strings.Split(p.Value, ",") {
			single := p
			single.Value = strings.TrimSpace(v)
			t, err := single.DateTime(loc)
			if err != nil {
				return nil, err
			}
			out = append(out, t.In(loc))
		}
	}
	return out, nil
}

// EncodeReminder renders r as a VCALENDAR holding one VTODO. The due date is
// written as a floating date-time.
func EncodeReminder(r *store.NativeReminder, now time.Time) (*ical.Calendar, error) {
	todo := ical.NewComponent(ical.CompToDo)
	props := todo.Props
	props.SetText(ical.PropUID, r.Identifier)
	props.SetText(ical.PropSummary, r.Title)
	props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	props.SetDateTime(ical.PropLastModified, now.UTC())
	created := now
	if r.CreationDate != nil {
		created = *r.CreationDate
	}
	props.SetDateTime(ical.PropCreated, created.UTC())

	if r.Notes != "" {
		props.SetText(ical.PropDescription, r.Notes)
	}
	if r.URL != "" {
		props.Set(rawProp(ical.PropURL, r.URL))
	}
	if r.Priority != 0 {
		props.Set(rawProp(ical.PropPriority, strconv.Itoa(r.Priority)))
	}
	if c := r.DueDateComponents; c != nil {
		due := time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, 0, 0, time.UTC)
		props.Set(rawProp(ical.PropDue, due.Format(floatingFormat)))
	}
	if r.Completed {
		props.SetText(ical.PropStatus, "COMPLETED")
		done := now
		if r.CompletionDate != nil {
			done = *r.CompletionDate
		}
		props.SetDateTime(ical.PropCompleted, done.UTC())
	} else {
		props.SetText(ical.PropStatus, "NEEDS-ACTION")
	}
	if err := setRules(props, r.RecurrenceRules); err != nil {
		return nil, err
	}
	todo.Children = alarmComponents(r.Alarms, r.Title)

	cal := newCalendar()
	cal.Children = append(cal.Children, todo)
	return cal, nil
}

// DecodeReminder reads the master VTODO of cal. A DUE carrying a zone is
// converted to loc before it is split into components.
func DecodeReminder(cal *ical.Calendar, list *store.Calendar, loc *time.Location) (*store.NativeReminder, error) {
	comp := masterComponent(cal, ical.CompToDo)
	if comp == nil {
		return nil, errors.New("no VTODO in calendar object")
	}
	props := comp.Props

	r := &store.NativeReminder{
		Identifier: text(props, ical.PropUID),
		Calendar:   list,
		Title:      text(props, ical.PropSummary),
		Notes:      text(props, ical.PropDescription),
	}
	if r.Identifier == "" {
		return nil, errors.New("VTODO has no UID")
	}
	if p := props.Get(ical.PropURL); p != nil {
		r.URL = p.Value
	}
	if p := props.Get(ical.PropPriority); p != nil {
		n, err := strconv.Atoi(strings.TrimSpace(p.Value))
		if err != nil {
			return nil, fmt.Errorf("reminder %s PRIORITY: %w", r.Identifier, err)
		}
		r.Priority = n
	}
	if p := props.Get(ical.PropDue); p != nil {
		t, err := p.DateTime(loc)
		if err != nil {
			return nil, fmt.Errorf("reminder %s DUE: %w", r.Identifier, err)
		}
		t = t.In(loc)
		r.DueDateComponents = &store.DateComponents{
			Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Hour: t.Hour(), Minute: t.Minute(),
		}
	}

	status := strings.ToUpper(text(props, ical.PropStatus))
	completed := props.Get(ical.PropCompleted)
	if status == "COMPLETED" || completed != nil {
		r.Completed = true
		if completed != nil {
			if t, err := completed.DateTime(time.UTC); err == nil {
				r.CompletionDate = &t
			}
		}
	}

	var err error
	if r.RecurrenceRules, err = rules(props); err != nil {
		return nil, fmt.Errorf("reminder %s: %w", r.Identifier, err)
	}
	if r.Alarms, err = alarms(comp); err != nil {
		return nil, fmt.Errorf("reminder %s: %w", r.Identifier, err)
	}
	if p := props.Get(ical.PropCreated); p != nil {
		if t, err := p.DateTime(time.UTC); err == nil {
			r.CreationDate = &t
		}
	}
	if p := props.Get(ical.PropLastModified); p != nil {
		if t, err := p.DateTime(time.UTC); err == nil {
			r.LastModified = &t
		}
	}
	return r, nil
}

// Serialize renders cal as iCalendar text
func Serialize(cal *ical.Calendar) (string, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Parse reads iCalendar text
func Parse(s string) (*ical.Calendar, error) {
	return ical.NewDecoder(strings.NewReader(s)).Decode()
}
