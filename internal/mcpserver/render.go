package mcpserver

import (
	"fmt"
	"strings"

	"github.com/tazhate/icalbridge/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05-07:00"

var eventStatusNames = map[int]string{1: "confirmed", 2: "tentative", 3: "canceled"}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "None"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

// RenderEvent is the multi-line text form list_events returns
func RenderEvent(ev *domain.Event) string {
	attendees := "None"
	if len(ev.Attendees) > 0 {
		attendees = strings.Join(ev.Attendees, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s,\n", ev.Title)
	fmt.Fprintf(&b, " - Identifier: %s,\n", ev.Identifier)
	fmt.Fprintf(&b, " - Start Time: %s,\n", ev.StartTime.Format(timeLayout))
	fmt.Fprintf(&b, " - End Time: %s,\n", ev.EndTime.Format(timeLayout))
	if ev.IsRecurring() {
		fmt.Fprintf(&b, " - Occurrence: %s,\n", ev.OccurrenceDate.Format(timeLayout))
	}
	fmt.Fprintf(&b, " - Calendar: %s,\n", orNA(ev.CalendarName))
	fmt.Fprintf(&b, " - Location: %s,\n", orNA(ev.Location))
	fmt.Fprintf(&b, " - Notes: %s,\n", orNA(ev.Notes))
	fmt.Fprintf(&b, " - Alarms (minutes before): %s,\n", joinInts(ev.AlarmsMinutesOffsets))
	fmt.Fprintf(&b, " - URL: %s,\n", orNA(ev.URL))
	fmt.Fprintf(&b, " - All Day Event?: %t,\n", ev.AllDay)
	fmt.Fprintf(&b, " - Status: %s,\n", orNA(eventStatusNames[ev.Status]))
	fmt.Fprintf(&b, " - Organizer: %s,\n", orNA(ev.Organizer))
	fmt.Fprintf(&b, " - Attendees: %s,\n", attendees)
	fmt.Fprintf(&b, " - %s\n", ev.RecurrenceRule.Summary())
	return b.String()
}

// RenderReminder is the multi-line text form list_reminders returns
func RenderReminder(r *domain.Reminder) string {
	status := "⏸️ Pending"
	if r.IsCompleted {
		status = "✅ Completed"
		if r.CompletionDate != nil {
			status += " on " + r.CompletionDate.Format(timeLayout)
		}
	}
	due := "N/A"
	if r.DueDate != nil {
		due = r.DueDate.Format(timeLayout)
	}
	created := "N/A"
	if r.CreationDate != nil {
		created = r.CreationDate.Format(timeLayout)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reminder: %s,\n", r.Title)
	fmt.Fprintf(&b, " - Identifier: %s,\n", r.Identifier)
	fmt.Fprintf(&b, " - List: %s,\n", orNA(r.ListName))
	fmt.Fprintf(&b, " - Status: %s,\n", status)
	fmt.Fprintf(&b, " - Due Date: %s,\n", due)
	fmt.Fprintf(&b, " - Priority: %s,\n", r.Priority)
	fmt.Fprintf(&b, " - Notes: %s,\n", orNA(r.Notes))
	fmt.Fprintf(&b, " - Alarms (minutes before): %s,\n", joinInts(r.AlarmsMinutesOffsets))
	fmt.Fprintf(&b, " - URL: %s,\n", orNA(r.URL))
	fmt.Fprintf(&b, " - Created: %s,\n", created)
	fmt.Fprintf(&b, " - %s\n", r.RecurrenceRule.Summary())
	return b.String()
}

func renderNames(header, empty string, names []string) string {
	if len(names) == 0 {
		return empty
	}
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = "- " + n
	}
	return header + "\n" + strings.Join(lines, "\n")
}

// emptyRemindersText mirrors the filter the caller asked for
func emptyRemindersText(listName string, completed *bool) string {
	status := ""
	if completed != nil {
		if *completed {
			status = " completed"
		} else {
			status = " pending"
		}
	}
	where := ""
	if listName != "" {
		where = fmt.Sprintf(" in '%s'", listName)
	}
	return "No" + status + " reminders found" + where
}
