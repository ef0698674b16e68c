// Package bot is a Telegram front end to the calendar manager, plus the
// webhook server that carries the health check, metrics and REST API.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/icalbridge/config"
	applog "github.com/tazhate/icalbridge/internal/log"
	"github.com/tazhate/icalbridge/internal/metrics"
	"github.com/tazhate/icalbridge/internal/service"
)

const webhookPath = "/bot"

// ManagerFunc returns the calendar manager, building it on first use
type ManagerFunc func(ctx context.Context) (*service.CalendarManager, error)

// sender is the part of *tgbotapi.BotAPI the handlers use
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	cfg     *config.Config
	manager ManagerFunc
	logger  *slog.Logger
	now     func() time.Time
	updates chan tgbotapi.Update
	server  *http.Server

	// writeMu serializes manager mutations across updates and API requests
	writeMu sync.Mutex
}

func New(cfg *config.Config, manager ManagerFunc, logger *slog.Logger) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(cfg, api, manager, logger)
	b.api = api
	b.logger.Info("authorized", "username", api.Self.UserName)

	b.setCommands()
	return b, nil
}

func newBot(cfg *config.Config, s sender, manager ManagerFunc, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Bot{
		sender:  s,
		cfg:     cfg,
		manager: manager,
		logger:  applog.WithComponent(logger, "bot"),
		now:     time.Now,
		updates: make(chan tgbotapi.Update, 100),
	}
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "menu", Description: "📱 Main menu"},
		{Command: "today", Description: "📅 Today's events"},
		{Command: "events", Description: "🗓 Upcoming events"},
		{Command: "reminders", Description: "🔔 Pending reminders"},
		{Command: "remind", Description: "➕ Add a reminder"},
		{Command: "help", Description: "❓ Command reference"},
	}

	if _, err := b.sender.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.logger.Warn("failed to set commands", "error", err)
	}
}

// SetupWebhook points Telegram at WEBHOOK_URL. Without one the bot polls.
func (b *Bot) SetupWebhook() error {
	if b.cfg.WebhookURL == "" {
		return nil
	}
	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := b.sender.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	if b.api != nil {
		info, err := b.api.GetWebhookInfo()
		if err != nil {
			return fmt.Errorf("get webhook info: %w", err)
		}
		if info.LastErrorDate != 0 {
			b.logger.Warn("webhook last error", "message", info.LastErrorMessage)
		}
	}

	b.logger.Info("webhook set", "url", webhookURL)
	return nil
}

// Handler routes the webhook, health check, metrics and REST API
func (b *Bot) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+webhookPath, b.handleWebhook)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	b.setupAPI(mux)
	return mux
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	select {
	case b.updates <- update:
	case <-r.Context().Done():
	}
}

// Start serves HTTP on SERVER_PORT and handles updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		b.logger.Info("starting webhook server", "port", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("HTTP server error", "error", err)
		}
	}()

	updates := (<-chan tgbotapi.Update)(b.updates)
	if b.cfg.WebhookURL == "" && b.api != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		b.logger.Info("polling for updates")
	}

	for {
		select {
		case <-ctx.Done():
			if b.api != nil && b.cfg.WebhookURL == "" {
				b.api.StopReceivingUpdates()
			}
			return nil
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.sender.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	_, err := b.sender.Send(msg)
	return err
}

// editMessage replaces a message's text and keyboard after a button press
func (b *Bot) editMessage(chatID int64, msgID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = keyboard
	if _, err := b.sender.Send(edit); err != nil {
		b.logger.Warn("edit message failed", "error", err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("answer callback failed", "error", err)
	}
}
