package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/icalbridge/internal/domain"
)

// Telegram rejects callback data longer than this
const maxCallbackData = 64

// Priority selection for a reminder typed as plain text
func priorityKeyboard(title string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔴 High", "remind:HIGH:"+title),
			tgbotapi.NewInlineKeyboardButtonData("🟡 Medium", "remind:MEDIUM:"+title),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🟢 Low", "remind:LOW:"+title),
			tgbotapi.NewInlineKeyboardButtonData("⚪ None", "remind:NONE:"+title),
		),
	)
}

// Pending reminders with done and delete buttons
func reminderListKeyboard(reminders []*domain.Reminder) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, r := range reminders {
		if r.IsCompleted || len("confirm_del:"+r.Identifier) > maxCallbackData {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+truncate(r.Title, 25), "done:"+r.Identifier),
			tgbotapi.NewInlineKeyboardButtonData("🗑", "del:"+r.Identifier),
		))
		if len(rows) >= 10 {
			break
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh:reminders"),
		tgbotapi.NewInlineKeyboardButtonData("◀️ Menu", "menu:main"),
	))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &keyboard
}

func confirmDeleteKeyboard(reminderID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Yes, delete", "confirm_del:"+reminderID),
			tgbotapi.NewInlineKeyboardButtonData("◀️ Cancel", "refresh:reminders"),
		),
	)
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Today", "menu:today"),
			tgbotapi.NewInlineKeyboardButtonData("🗓 Week", "menu:events"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Reminders", "menu:reminders"),
		),
	)
}

func eventsKeyboard() *tgbotapi.InlineKeyboardMarkup {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Today", "menu:today"),
			tgbotapi.NewInlineKeyboardButtonData("🗓 Week", "menu:events"),
			tgbotapi.NewInlineKeyboardButtonData("◀️ Menu", "menu:main"),
		),
	)
	return &keyboard
}
