package store

import (
	"fmt"
	"time"
)

// EventWriter is the set of primitive writes a backend offers. SaveSpan and
// RemoveSpan resolve a span-scoped change of a series into these calls.
type EventWriter interface {
	InsertEvent(ev *NativeEvent) error
	UpdateEvent(ev *NativeEvent) error
	DeleteEvent(ev *NativeEvent) error
}

// SaveSpan writes ev, an edited copy of the stored master. Saving an
// occurrence other than the first with SpanFutureEvents splits the series:
// the identifier keeps the earlier occurrences unchanged and the edited
// remainder becomes a new event, whose identifier is written back to ev.
// SpanThisEvent detaches the occurrence into an event of its own and excludes
// its date from the series.
func SaveSpan(w EventWriter, master, ev *NativeEvent, span Span, newID func() string) error {
	if master == nil {
		return fmt.Errorf("event %s not found", ev.Identifier)
	}
	if !master.HasRecurrenceRules() || ev.OccurrenceDate.IsZero() {
		return w.UpdateEvent(ev)
	}

	occ := ev.OccurrenceDate
	if span == SpanThisEvent {
		series := master.Clone()
		series.ExceptionDates = append(series.ExceptionDates, occ)
		if err := w.UpdateEvent(series); err != nil {
			return err
		}
		detached := ev.Clone()
		detached.Identifier = newID()
		detached.RecurrenceRules = nil
		detached.ExceptionDates = nil
		detached.OccurrenceDate = time.Time{}
		if err := w.InsertEvent(detached); err != nil {
			return err
		}
		ev.Identifier = detached.Identifier
		return nil
	}

	if !ev.IsDetachedOccurrence(master.Start) {
		return w.UpdateEvent(ev)
	}
	head, err := Truncate(master, occ)
	if err != nil {
		return err
	}
	tail, err := Tail(master, ev, occ)
	if err != nil {
		return err
	}
	if head == nil {
		return w.UpdateEvent(tail)
	}
	if err := w.UpdateEvent(head); err != nil {
		return err
	}
	tail.Identifier = newID()
	if err := w.InsertEvent(tail); err != nil {
		return err
	}
	ev.Identifier = tail.Identifier
	return nil
}

// RemoveSpan deletes ev. For an occurrence of a series SpanFutureEvents ends
// the series before it and SpanThisEvent excludes just that date.
func RemoveSpan(w EventWriter, master, ev *NativeEvent, span Span) error {
	if master == nil {
		return fmt.Errorf("event %s not found", ev.Identifier)
	}
	if !master.HasRecurrenceRules() {
		return w.DeleteEvent(master)
	}

	occ := ev.OccurrenceDate
	if occ.IsZero() {
		occ = master.Start
	}
	if span == SpanThisEvent {
		series := master.Clone()
		series.ExceptionDates = append(series.ExceptionDates, occ)
		return w.UpdateEvent(series)
	}
	head, err := Truncate(master, occ)
	if err != nil {
		return err
	}
	if head == nil {
		return w.DeleteEvent(master)
	}
	return w.UpdateEvent(head)
}
