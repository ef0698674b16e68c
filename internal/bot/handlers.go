package bot

import (
	"context"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/icalbridge/internal/domain"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedUser(msg.From.ID) {
		b.SendMessage(chatID, "⛔ Access denied")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	m, err := b.manager(ctx)
	if err != nil {
		b.logger.Error("calendar manager unavailable", "error", err)
		b.SendMessage(chatID, errorText(err))
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, m, msg)
		return
	}

	// plain text becomes a reminder once a priority is picked
	if len("remind:MEDIUM:"+text) > maxCallbackData {
		b.SendMessage(chatID, "Too long for a button, use /remind "+html.EscapeString(truncate(text, 20)))
		return
	}
	b.SendMessageWithKeyboard(chatID, "Pick a priority for the reminder:\n\n<b>"+html.EscapeString(text)+"</b>", priorityKeyboard(text))
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.cfg.IsAllowedUser(callback.From.ID) {
		b.answer(callback.ID, "⛔ Access denied")
		return
	}

	m, err := b.manager(ctx)
	if err != nil {
		b.answer(callback.ID, "⛔ Calendar unavailable")
		return
	}

	action, arg, _ := strings.Cut(callback.Data, ":")
	switch action {
	case "remind":
		// remind:PRIORITY:title
		name, title, ok := strings.Cut(arg, ":")
		priority, err := domain.ParsePriority(name)
		if !ok || err != nil || title == "" {
			b.answer(callback.ID, "❌ Bad button")
			return
		}
		b.answer(callback.ID, "✅ Reminder created!")
		b.editMessage(chatID, msgID, "Priority: "+priority.String(), nil)
		b.createReminder(ctx, m, chatID, &domain.CreateReminderRequest{Title: title, Priority: priority})

	case "done":
		r, err := b.completeReminder(ctx, m, arg)
		if err != nil {
			b.answer(callback.ID, "❌ "+err.Error())
			return
		}
		b.answer(callback.ID, "✅ "+truncate(r.Title, 40))
		b.showReminders(ctx, chatID, msgID)

	case "del":
		r, err := m.FindReminderByID(ctx, arg)
		if err != nil || r == nil {
			b.answer(callback.ID, "❌ Reminder not found")
			return
		}
		b.answer(callback.ID, "")
		kb := confirmDeleteKeyboard(arg)
		b.editMessage(chatID, msgID, "Delete <b>"+html.EscapeString(r.Title)+"</b>?", &kb)

	case "confirm_del":
		if err := b.deleteReminder(ctx, m, arg); err != nil {
			b.answer(callback.ID, "❌ "+err.Error())
			return
		}
		b.answer(callback.ID, "🗑 Deleted")
		b.showReminders(ctx, chatID, msgID)

	case "refresh", "menu":
		b.answer(callback.ID, "")
		switch arg {
		case "today":
			b.show(chatID, msgID)(b.todayView(ctx, m))
		case "events":
			b.show(chatID, msgID)(b.eventsView(ctx, m, defaultEventDays, ""))
		case "reminders":
			b.showReminders(ctx, chatID, msgID)
		default:
			kb := mainMenuKeyboard()
			b.editMessage(chatID, msgID, "📱 Main menu", &kb)
		}

	default:
		b.answer(callback.ID, "Unknown action")
	}
}

// show edits a message in place with a view
func (b *Bot) show(chatID int64, msgID int) func(string, *tgbotapi.InlineKeyboardMarkup, error) {
	return func(text string, kb *tgbotapi.InlineKeyboardMarkup, err error) {
		if err != nil {
			b.editMessage(chatID, msgID, errorText(err), nil)
			return
		}
		b.editMessage(chatID, msgID, text, kb)
	}
}

func (b *Bot) showReminders(ctx context.Context, chatID int64, msgID int) {
	m, err := b.manager(ctx)
	if err != nil {
		b.editMessage(chatID, msgID, errorText(err), nil)
		return
	}
	b.show(chatID, msgID)(b.remindersView(ctx, m, ""))
}
