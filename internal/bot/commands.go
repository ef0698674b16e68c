package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/icalbridge/internal/domain"
	"github.com/tazhate/icalbridge/internal/service"
)

const (
	defaultEventDays = 7
	maxEventDays     = 31
)

func (b *Bot) handleCommand(ctx context.Context, m *service.CalendarManager, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "menu":
		b.SendMessageWithKeyboard(chatID, "👋 Calendar bridge is ready.\n\n/help for the command list", mainMenuKeyboard())
	case "help":
		b.cmdHelp(chatID)
	case "calendars":
		b.cmdCalendars(ctx, m, chatID)
	case "lists":
		b.cmdLists(ctx, m, chatID)
	case "today":
		b.reply(chatID)(b.todayView(ctx, m))
	case "events":
		b.cmdEvents(ctx, m, chatID, args)
	case "reminders":
		b.reply(chatID)(b.remindersView(ctx, m, args))
	case "remind":
		b.cmdRemind(ctx, m, chatID, args)
	case "done":
		b.cmdDone(ctx, m, chatID, args)
	default:
		b.SendMessage(chatID, "Unknown command. /help for the command list")
	}
}

// reply sends a view, or the error when building it failed
func (b *Bot) reply(chatID int64) func(string, *tgbotapi.InlineKeyboardMarkup, error) {
	return func(text string, kb *tgbotapi.InlineKeyboardMarkup, err error) {
		switch {
		case err != nil:
			b.SendMessage(chatID, errorText(err))
		case kb != nil:
			b.SendMessageWithKeyboard(chatID, text, *kb)
		default:
			b.SendMessage(chatID, text)
		}
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

<b>Calendar</b>
/today — today's events
/events [days] [calendar] — upcoming events, 7 days by default
/calendars — calendar names

<b>Reminders</b>
/reminders [list] — pending reminders
/remind text | 2026-05-01 09:00 — add a reminder, the due date is optional
/done ID — complete a reminder
/lists — reminder list names

💡 Send plain text to add it as a reminder`

	b.SendMessage(chatID, text)
}

func (b *Bot) cmdCalendars(ctx context.Context, m *service.CalendarManager, chatID int64) {
	names, err := m.ListCalendarNames(ctx)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessage(chatID, formatNames("<b>🗓 Calendars:</b>", "No calendars found", names))
}

func (b *Bot) cmdLists(ctx context.Context, m *service.CalendarManager, chatID int64) {
	names, err := m.ListReminderLists(ctx)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessage(chatID, formatNames("<b>📝 Reminder lists:</b>", "No reminder lists found", names))
}

// cmdEvents takes an optional day count followed by an optional calendar name
func (b *Bot) cmdEvents(ctx context.Context, m *service.CalendarManager, chatID int64, args string) {
	days := defaultEventDays
	calendar := args
	if first, rest, _ := strings.Cut(args, " "); first != "" {
		if n, err := strconv.Atoi(first); err == nil {
			if n < 1 || n > maxEventDays {
				b.SendMessage(chatID, fmt.Sprintf("Days must be between 1 and %d", maxEventDays))
				return
			}
			days, calendar = n, strings.TrimSpace(rest)
		}
	}
	b.reply(chatID)(b.eventsView(ctx, m, days, calendar))
}

func (b *Bot) cmdRemind(ctx context.Context, m *service.CalendarManager, chatID int64, args string) {
	title, when, _ := strings.Cut(args, "|")
	title = strings.TrimSpace(title)
	if title == "" {
		b.SendMessage(chatID, "Give the reminder text: /remind Buy milk | 2026-05-01 18:00")
		return
	}

	req := &domain.CreateReminderRequest{Title: title}
	if when = strings.TrimSpace(when); when != "" {
		due, err := domain.ParseTime(when, m.Location())
		if err != nil {
			b.SendMessage(chatID, errorText(err))
			return
		}
		req.DueDate = &due
	}
	b.createReminder(ctx, m, chatID, req)
}

func (b *Bot) createReminder(ctx context.Context, m *service.CalendarManager, chatID int64, req *domain.CreateReminderRequest) {
	b.writeMu.Lock()
	r, err := m.CreateReminder(ctx, req)
	b.writeMu.Unlock()
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}

	text := "✅ Reminder added\n\n" + formatReminder(r, m.Location(), b.now())
	if len("done:"+r.Identifier) > maxCallbackData {
		b.SendMessage(chatID, text)
		return
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", "done:"+r.Identifier),
		),
	)
	b.SendMessageWithKeyboard(chatID, text, keyboard)
}

func (b *Bot) cmdDone(ctx context.Context, m *service.CalendarManager, chatID int64, id string) {
	if id == "" {
		b.SendMessage(chatID, "Give the reminder ID: /done ID")
		return
	}
	r, err := b.completeReminder(ctx, m, id)
	if err != nil {
		b.SendMessage(chatID, errorText(err))
		return
	}
	b.SendMessage(chatID, "✅ Completed: <b>"+html.EscapeString(r.Title)+"</b>")
}

func (b *Bot) completeReminder(ctx context.Context, m *service.CalendarManager, id string) (*domain.Reminder, error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return m.UpdateReminder(ctx, id, &domain.UpdateReminderRequest{IsCompleted: domain.Some(true)})
}

func (b *Bot) deleteReminder(ctx context.Context, m *service.CalendarManager, id string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return m.DeleteReminder(ctx, id)
}

func (b *Bot) todayView(ctx context.Context, m *service.CalendarManager) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	start := startOfDay(b.now().In(m.Location()))
	events, err := m.ListEvents(ctx, start, start.AddDate(0, 0, 1), "")
	if err != nil {
		return "", nil, err
	}
	return "<b>📅 Today:</b>\n\n" + formatEvents(events, m.Location()), eventsKeyboard(), nil
}

func (b *Bot) eventsView(ctx context.Context, m *service.CalendarManager, days int, calendar string) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	start := startOfDay(b.now().In(m.Location()))
	events, err := m.ListEvents(ctx, start, start.AddDate(0, 0, days), calendar)
	if err != nil {
		return "", nil, err
	}
	header := fmt.Sprintf("<b>🗓 Next %d days", days)
	if calendar != "" {
		header += " in " + html.EscapeString(calendar)
	}
	return header + ":</b>\n\n" + formatEvents(events, m.Location()), eventsKeyboard(), nil
}

func (b *Bot) remindersView(ctx context.Context, m *service.CalendarManager, list string) (string, *tgbotapi.InlineKeyboardMarkup, error) {
	pending := false
	reminders, err := m.ListReminders(ctx, list, &pending)
	if err != nil {
		return "", nil, err
	}
	header := "<b>🔔 Reminders"
	if list != "" {
		header += " in " + html.EscapeString(list)
	}
	return header + ":</b>\n\n" + formatReminders(reminders, m.Location(), b.now()), reminderListKeyboard(reminders), nil
}
