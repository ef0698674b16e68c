package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/icalbridge/config"
	"github.com/tazhate/icalbridge/internal/domain"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/service"
	"github.com/tazhate/icalbridge/internal/storage"
)

const (
	ownerID = 42
	chatID  = 7
)

var (
	testLoc = time.FixedZone("UTC+2", 2*60*60)
	testNow = time.Date(2026, 5, 4, 8, 0, 0, 0, testLoc)
)

// fakeSender records what the bot sends to Telegram
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// last returns the text and keyboard of the latest message or edit
func (f *fakeSender) last(t *testing.T) (string, *tgbotapi.InlineKeyboardMarkup) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	switch c := f.sent[len(f.sent)-1].(type) {
	case tgbotapi.MessageConfig:
		if kb, ok := c.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			return c.Text, &kb
		}
		return c.Text, nil
	case tgbotapi.EditMessageTextConfig:
		return c.Text, c.ReplyMarkup
	default:
		t.Fatalf("unexpected chattable %T", c)
		return "", nil
	}
}

func (f *fakeSender) lastAnswer(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if cb, ok := f.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb.Text
		}
	}
	t.Fatal("no callback answered")
	return ""
}

func newTestBot(t *testing.T, cfg *config.Config) (*Bot, *fakeSender, *service.CalendarManager) {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	lazy := service.NewLazy(func(ctx context.Context) (*service.CalendarManager, error) {
		return service.NewCalendarManager(ctx, st, service.Config{Location: testLoc, Logger: applog.Discard()})
	})
	m, err := lazy.Get(context.Background())
	require.NoError(t, err)

	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.OwnerTelegramID = ownerID
	fs := &fakeSender{}
	b := newBot(cfg, fs, lazy.Get, applog.Discard())
	b.now = func() time.Time { return testNow }
	return b, fs, m
}

func message(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func press(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: ownerID},
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func send(t *testing.T, b *Bot, fs *fakeSender, text string) (string, *tgbotapi.InlineKeyboardMarkup) {
	t.Helper()
	b.handleUpdate(context.Background(), message(ownerID, text))
	return fs.last(t)
}

func buttonData(kb *tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	if kb == nil {
		return out
	}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func TestRejectsStrangers(t *testing.T) {
	b, fs, _ := newTestBot(t, nil)

	b.handleUpdate(context.Background(), message(1, "/calendars"))
	text, _ := fs.last(t)
	assert.Equal(t, "⛔ Access denied", text)

	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    "done:x",
	}})
	assert.Equal(t, "⛔ Access denied", fs.lastAnswer(t))
}

func TestListCommands(t *testing.T) {
	b, fs, _ := newTestBot(t, nil)

	text, _ := send(t, b, fs, "/calendars")
	assert.Contains(t, text, "• Calendar\n")

	text, _ = send(t, b, fs, "/lists")
	assert.Contains(t, text, "• Reminders\n")

	text, _ = send(t, b, fs, "/nope")
	assert.Contains(t, text, "Unknown command")

	text, kb := send(t, b, fs, "/start")
	assert.Contains(t, text, "ready")
	assert.Contains(t, buttonData(kb), "menu:reminders")
}

func TestReminderCommands(t *testing.T) {
	b, fs, _ := newTestBot(t, nil)

	text, kb := send(t, b, fs, "/remind Pay <rent> | 2026-05-01 09:00")
	assert.Contains(t, text, "✅ Reminder added")
	assert.Contains(t, text, "Pay &lt;rent&gt;")
	assert.Contains(t, text, "01.05 09:00 ⚠️", "due before now is overdue")
	data := buttonData(kb)
	require.Len(t, data, 1)
	id := strings.TrimPrefix(data[0], "done:")

	text, kb = send(t, b, fs, "/reminders")
	assert.Contains(t, text, "Pay &lt;rent&gt;")
	assert.Contains(t, buttonData(kb), "done:"+id)
	assert.Contains(t, buttonData(kb), "del:"+id)

	text, _ = send(t, b, fs, "/done "+id)
	assert.Equal(t, "✅ Completed: <b>Pay &lt;rent&gt;</b>", text)

	text, _ = send(t, b, fs, "/reminders")
	assert.Contains(t, text, "No pending reminders")

	text, _ = send(t, b, fs, "/remind")
	assert.Contains(t, text, "Give the reminder text")

	text, _ = send(t, b, fs, "/remind Milk | someday")
	assert.True(t, strings.HasPrefix(text, "❌ Error: "), text)

	text, _ = send(t, b, fs, "/done missing")
	assert.Contains(t, text, "does not exist")
}

func TestPlainTextBecomesReminder(t *testing.T) {
	b, fs, m := newTestBot(t, nil)

	text, kb := send(t, b, fs, "Buy milk")
	assert.Contains(t, text, "<b>Buy milk</b>")
	assert.Contains(t, buttonData(kb), "remind:HIGH:Buy milk")

	b.handleUpdate(context.Background(), press("remind:HIGH:Buy milk"))
	assert.Equal(t, "✅ Reminder created!", fs.lastAnswer(t))
	text, _ = fs.last(t)
	assert.Contains(t, text, "<b>Buy milk</b> 🔴")

	reminders, err := m.ListReminders(context.Background(), "", nil)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, domain.PriorityHigh, reminders[0].Priority)

	text, _ = send(t, b, fs, strings.Repeat("long ", 20))
	assert.Contains(t, text, "Too long for a button")
}

func TestReminderButtons(t *testing.T) {
	b, fs, m := newTestBot(t, nil)
	ctx := context.Background()

	r, err := m.CreateReminder(ctx, &domain.CreateReminderRequest{Title: "Call mom"})
	require.NoError(t, err)

	b.handleUpdate(ctx, press("del:"+r.Identifier))
	text, kb := fs.last(t)
	assert.Equal(t, "Delete <b>Call mom</b>?", text)
	assert.Contains(t, buttonData(kb), "confirm_del:"+r.Identifier)

	b.handleUpdate(ctx, press("confirm_del:"+r.Identifier))
	assert.Equal(t, "🗑 Deleted", fs.lastAnswer(t))
	text, _ = fs.last(t)
	assert.Contains(t, text, "No pending reminders")

	b.handleUpdate(ctx, press("done:"+r.Identifier))
	assert.True(t, strings.HasPrefix(fs.lastAnswer(t), "❌ "))

	b.handleUpdate(ctx, press("bogus"))
	assert.Equal(t, "Unknown action", fs.lastAnswer(t))

	b.handleUpdate(ctx, press("menu:main"))
	text, _ = fs.last(t)
	assert.Equal(t, "📱 Main menu", text)
}

func TestEventCommands(t *testing.T) {
	b, fs, m := newTestBot(t, nil)
	ctx := context.Background()

	_, err := m.CreateEvent(ctx, &domain.CreateEventRequest{
		Title:     "Dentist",
		StartTime: time.Date(2026, 5, 4, 10, 0, 0, 0, testLoc),
		EndTime:   time.Date(2026, 5, 4, 11, 0, 0, 0, testLoc),
		Location:  "Main St",
	})
	require.NoError(t, err)
	_, err = m.CreateEvent(ctx, &domain.CreateEventRequest{
		Title:     "Review",
		StartTime: time.Date(2026, 5, 6, 14, 0, 0, 0, testLoc),
		EndTime:   time.Date(2026, 5, 6, 15, 0, 0, 0, testLoc),
	})
	require.NoError(t, err)

	text, _ := send(t, b, fs, "/today")
	assert.Contains(t, text, "<b>Mon 04.05</b>\n• 10:00-11:00 Dentist <i>(Calendar)</i>\n  📍 Main St\n")
	assert.NotContains(t, text, "Review")

	text, _ = send(t, b, fs, "/events")
	assert.Contains(t, text, "Next 7 days")
	assert.Contains(t, text, "Dentist")
	assert.Contains(t, text, "<b>Wed 06.05</b>\n• 14:00-15:00 Review")

	text, _ = send(t, b, fs, "/events 1")
	assert.NotContains(t, text, "Review")

	text, _ = send(t, b, fs, "/events 40")
	assert.Equal(t, "Days must be between 1 and 31", text)

	text, _ = send(t, b, fs, "/events 3 Nope")
	assert.Equal(t, "❌ Error: Calendar: Nope does not exist", text)

	b.handleUpdate(ctx, press("menu:today"))
	text, _ = fs.last(t)
	assert.Contains(t, text, "Dentist")
}

func TestManagerFailureIsReported(t *testing.T) {
	cfg := &config.Config{OwnerTelegramID: ownerID}
	fs := &fakeSender{}
	denied := func(context.Context) (*service.CalendarManager, error) {
		return nil, &domain.AccessDeniedError{Entity: "events"}
	}
	b := newBot(cfg, fs, denied, nil)

	b.handleUpdate(context.Background(), message(ownerID, "/today"))
	text, _ := fs.last(t)
	assert.Contains(t, text, "Calendar access is not granted")
}

func TestSetCommandsAndWebhook(t *testing.T) {
	b, fs, _ := newTestBot(t, &config.Config{WebhookURL: "https://bot.example.com"})

	b.setCommands()
	require.NoError(t, b.SetupWebhook())

	require.Len(t, fs.requests, 2)
	_, ok := fs.requests[0].(tgbotapi.SetMyCommandsConfig)
	assert.True(t, ok)
	wh, ok := fs.requests[1].(tgbotapi.WebhookConfig)
	require.True(t, ok)
	assert.Equal(t, "https://bot.example.com/bot", wh.URL.String())
}

func TestSetupWebhookWithoutURLPolls(t *testing.T) {
	b, fs, _ := newTestBot(t, nil)
	require.NoError(t, b.SetupWebhook())
	assert.Empty(t, fs.requests)
}
