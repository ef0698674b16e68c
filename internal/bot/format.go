package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/tazhate/icalbridge/internal/domain"
)

var priorityEmoji = map[domain.Priority]string{
	domain.PriorityHigh:   "🔴",
	domain.PriorityMedium: "🟡",
	domain.PriorityLow:    "🟢",
}

func formatNames(header, empty string, names []string) string {
	if len(names) == 0 {
		return empty
	}
	var b strings.Builder
	b.WriteString(header + "\n\n")
	for _, n := range names {
		b.WriteString("• " + html.EscapeString(n) + "\n")
	}
	return b.String()
}

// formatEvents groups occurrences by day in loc
func formatEvents(events []*domain.Event, loc *time.Location) string {
	if len(events) == 0 {
		return "No events 🎉"
	}
	var (
		b   strings.Builder
		day string
	)
	for _, ev := range events {
		local := *ev
		local.StartTime = ev.StartTime.In(loc)
		local.EndTime = ev.EndTime.In(loc)

		if d := local.StartTime.Format("Mon 02.01"); d != day {
			if day != "" {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "<b>%s</b>\n", d)
			day = d
		}
		fmt.Fprintf(&b, "• %s %s", local.FormatTime(), html.EscapeString(ev.Title))
		if ev.CalendarName != "" {
			fmt.Fprintf(&b, " <i>(%s)</i>", html.EscapeString(ev.CalendarName))
		}
		if ev.IsRecurring() {
			b.WriteString(" 🔁")
		}
		b.WriteString("\n")
		if ev.Location != "" {
			fmt.Fprintf(&b, "  📍 %s\n", html.EscapeString(ev.Location))
		}
	}
	return b.String()
}

func formatReminder(r *domain.Reminder, loc *time.Location, now time.Time) string {
	var b strings.Builder
	if r.IsCompleted {
		b.WriteString("✅ ")
	} else {
		b.WriteString("⏸ ")
	}
	b.WriteString("<b>" + html.EscapeString(r.Title) + "</b>")
	if e, ok := priorityEmoji[r.Priority]; ok {
		b.WriteString(" " + e)
	}
	if r.DueDate != nil {
		fmt.Fprintf(&b, " — 📅 %s", r.DueDate.In(loc).Format("02.01 15:04"))
		if r.IsOverdue(now) {
			b.WriteString(" ⚠️")
		}
	}
	if r.ListName != "" {
		fmt.Fprintf(&b, " <i>(%s)</i>", html.EscapeString(r.ListName))
	}
	return b.String()
}

func formatReminders(reminders []*domain.Reminder, loc *time.Location, now time.Time) string {
	if len(reminders) == 0 {
		return "No pending reminders 🎉"
	}
	lines := make([]string, len(reminders))
	for i, r := range reminders {
		lines[i] = formatReminder(r, loc, now)
	}
	return strings.Join(lines, "\n")
}

// errorText is the chat reply for a failed operation
func errorText(err error) string {
	var denied *domain.AccessDeniedError
	if errors.As(err, &denied) {
		return "⛔ Calendar access is not granted. Grant access to the calendar store and restart the bot."
	}
	return "❌ Error: " + html.EscapeString(err.Error())
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
