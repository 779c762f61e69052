// Package telegram connects the conversation machine to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/conversation"
)

// DefaultPollTimeout is the long-polling timeout in seconds.
const DefaultPollTimeout = 60

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler turns one chat event into replies.
type Handler interface {
	Handle(ctx context.Context, event conversation.Event) ([]conversation.Reply, error)
}

// Bot polls for updates and relays them through a Handler.
type Bot struct {
	api         API
	handler     Handler
	retry       common.RetryOptions
	pollTimeout int
}

// Option configures a Bot.
type Option func(*Bot)

// WithPollTimeout overrides the long-polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) {
		if seconds > 0 {
			b.pollTimeout = seconds
		}
	}
}

// WithRetry overrides how failed sends are retried.
func WithRetry(opts common.RetryOptions) Option {
	return func(b *Bot) {
		b.retry = opts
	}
}

// Connect authenticates with the Bot API and returns a bot for handler.
func Connect(token string, debug bool, handler Handler, opts ...Option) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: telegram.token", common.ErrMissingConfig)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = debug

	slog.Info("Authorized telegram bot", "username", api.Self.UserName)
	return NewBot(api, handler, opts...), nil
}

// NewBot wraps an existing API client.
func NewBot(api API, handler Handler, opts ...Option) *Bot {
	b := &Bot{
		api:         api,
		handler:     handler,
		pollTimeout: DefaultPollTimeout,
		retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run processes updates until ctx is cancelled. Updates are handled one at a
// time so each chat session sees its events in order.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	event, ok := EventFromUpdate(update)
	if !ok {
		return
	}

	if update.CallbackQuery != nil {
		defer b.answerCallback(ctx, update.CallbackQuery.ID)
	}

	replies, err := b.handler.Handle(ctx, event)
	if err != nil {
		common.LogError(err, "Failed to handle telegram update", common.Fields{
			"session_id": event.SessionID,
			"update_id":  update.UpdateID,
		})
		replies = []conversation.Reply{{Text: "⚠️ Something went wrong. Please try again later."}}
	}

	for _, reply := range replies {
		if err := b.deliver(ctx, event.SessionID, reply); err != nil {
			common.LogError(err, "Failed to deliver telegram reply", common.Fields{
				"session_id": event.SessionID,
			})
			return
		}
	}
}

// EventFromUpdate extracts the chat event carried by update. It reports false
// for updates the conversation does not handle.
func EventFromUpdate(update tgbotapi.Update) (conversation.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil || cq.Data == "" {
			return conversation.Event{}, false
		}
		return conversation.Event{
			Callback:  cq.Data,
			SessionID: cq.Message.Chat.ID,
			ActorID:   cq.From.ID,
			MessageID: cq.Message.MessageID,
		}, true
	}

	if msg := update.Message; msg != nil {
		if msg.Chat == nil || msg.From == nil || msg.Text == "" {
			return conversation.Event{}, false
		}
		return conversation.Event{
			Text:      msg.Text,
			SessionID: msg.Chat.ID,
			ActorID:   msg.From.ID,
			MessageID: msg.MessageID,
		}, true
	}

	return conversation.Event{}, false
}

// RenderReply converts a reply into the Bot API request that delivers it.
func RenderReply(chatID int64, reply conversation.Reply) tgbotapi.Chattable {
	if reply.EditMessageID != 0 {
		return tgbotapi.NewEditMessageReplyMarkup(chatID, reply.EditMessageID, InlineKeyboard(reply.Keyboard))
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Keyboard) > 0 {
		msg.ReplyMarkup = InlineKeyboard(reply.Keyboard)
	}
	return msg
}

// InlineKeyboard converts button rows into Bot API markup.
func InlineKeyboard(rows [][]conversation.Button) tgbotapi.InlineKeyboardMarkup {
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		markup = append(markup, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(markup...)
}

func (b *Bot) deliver(ctx context.Context, chatID int64, reply conversation.Reply) error {
	c := RenderReply(chatID, reply)
	err := common.WithRetry(ctx, func() error {
		var sendErr error
		if reply.EditMessageID != 0 {
			_, sendErr = b.api.Request(c)
		} else {
			_, sendErr = b.api.Send(c)
		}
		return classify(sendErr)
	}, b.retry)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrTelegramSend, err)
	}
	return nil
}

func (b *Bot) answerCallback(ctx context.Context, callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		slog.DebugContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// classify marks Bot API rejections so only transient failures are retried.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %s", common.ErrRateLimit, apiErr.Message),
			After:     time.Duration(apiErr.RetryAfter) * time.Second,
			Retryable: true,
		}
	case apiErr.Code >= 400 && apiErr.Code < 500:
		return &common.RetryableError{Err: err, Retryable: false}
	default:
		return err
	}
}
