package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/conversation"
)

type fakeAPI struct {
	updates   chan tgbotapi.Update
	sendErrs  []error
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	mu        sync.Mutex
	stopped   bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingHandler struct {
	err     error
	replies []conversation.Reply
	events  []conversation.Event
	mu      sync.Mutex
}

func (h *recordingHandler) Handle(_ context.Context, event conversation.Event) ([]conversation.Reply, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.replies, h.err
}

func fastRetry() Option {
	return WithRetry(common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
}

func textUpdate(chatID, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: userID},
			Text:      text,
		},
	}
}

func callbackUpdate(chatID, userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: userID},
			Message: &tgbotapi.Message{
				MessageID: 77,
				Chat:      &tgbotapi.Chat{ID: chatID},
			},
			Data: data,
		},
	}
}

func TestEventFromUpdate(t *testing.T) {
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   conversation.Event
		wantOK bool
	}{
		{
			name:   "text message",
			update: textUpdate(500, 100, "/start"),
			want:   conversation.Event{Text: "/start", SessionID: 500, ActorID: 100, MessageID: 10},
			wantOK: true,
		},
		{
			name:   "button press",
			update: callbackUpdate(500, 100, "tx_income"),
			want:   conversation.Event{Callback: "tx_income", SessionID: 500, ActorID: 100, MessageID: 77},
			wantOK: true,
		},
		{
			name:   "message without text",
			update: textUpdate(500, 100, ""),
		},
		{
			name: "inline callback without message",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID: "x", From: &tgbotapi.User{ID: 1}, Data: "tx_list",
			}},
		},
		{
			name:   "unrelated update",
			update: tgbotapi.Update{UpdateID: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EventFromUpdate(tt.update)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderReply(t *testing.T) {
	keyboard := [][]conversation.Button{
		{{Text: "💰 New income", Data: "tx_income"}, {Text: "💸 New expense", Data: "tx_expense"}},
		{{Text: "📊 Summary", Data: "summary"}},
	}

	t.Run("message with keyboard", func(t *testing.T) {
		c := RenderReply(500, conversation.Reply{Text: "Main menu", Keyboard: keyboard})

		msg, ok := c.(tgbotapi.MessageConfig)
		require.True(t, ok)
		assert.Equal(t, int64(500), msg.ChatID)
		assert.Equal(t, "Main menu", msg.Text)

		markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok)
		require.Len(t, markup.InlineKeyboard, 2)
		assert.Equal(t, "💸 New expense", markup.InlineKeyboard[0][1].Text)
		require.NotNil(t, markup.InlineKeyboard[1][0].CallbackData)
		assert.Equal(t, "summary", *markup.InlineKeyboard[1][0].CallbackData)
	})

	t.Run("plain message", func(t *testing.T) {
		msg, ok := RenderReply(500, conversation.Reply{Text: "Done"}).(tgbotapi.MessageConfig)
		require.True(t, ok)
		assert.Nil(t, msg.ReplyMarkup)
	})

	t.Run("keyboard edit", func(t *testing.T) {
		c := RenderReply(500, conversation.Reply{Keyboard: keyboard, EditMessageID: 77})

		edit, ok := c.(tgbotapi.EditMessageReplyMarkupConfig)
		require.True(t, ok)
		assert.Equal(t, int64(500), edit.ChatID)
		assert.Equal(t, 77, edit.MessageID)
		require.NotNil(t, edit.ReplyMarkup)
		assert.Len(t, edit.ReplyMarkup.InlineKeyboard, 2)
	})
}

func TestBot_HandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("sends replies and answers callbacks", func(t *testing.T) {
		api := newFakeAPI()
		handler := &recordingHandler{replies: []conversation.Reply{{Text: "first"}, {Text: "second"}}}
		bot := NewBot(api, handler, fastRetry())

		bot.handleUpdate(ctx, callbackUpdate(500, 100, "summary"))

		require.Len(t, handler.events, 1)
		assert.Equal(t, "summary", handler.events[0].Callback)
		assert.Len(t, api.sent, 2)
		require.Len(t, api.requested, 1)
		callback, ok := api.requested[0].(tgbotapi.CallbackConfig)
		require.True(t, ok)
		assert.Equal(t, "cb-1", callback.CallbackQueryID)
	})

	t.Run("edits go through request", func(t *testing.T) {
		api := newFakeAPI()
		handler := &recordingHandler{replies: []conversation.Reply{{Keyboard: [][]conversation.Button{{{Text: "1", Data: "cal_day_2026-10-01"}}}, EditMessageID: 77}}}
		bot := NewBot(api, handler, fastRetry())

		bot.handleUpdate(ctx, callbackUpdate(500, 100, "cal_next_2026_10"))

		assert.Empty(t, api.sent)
		require.Len(t, api.requested, 2)
		_, ok := api.requested[0].(tgbotapi.EditMessageReplyMarkupConfig)
		assert.True(t, ok)
	})

	t.Run("handler failure apologizes", func(t *testing.T) {
		api := newFakeAPI()
		handler := &recordingHandler{err: errors.New("session store down")}
		bot := NewBot(api, handler, fastRetry())

		bot.handleUpdate(ctx, textUpdate(500, 100, "hello"))

		require.Len(t, api.sent, 1)
		msg, ok := api.sent[0].(tgbotapi.MessageConfig)
		require.True(t, ok)
		assert.Contains(t, msg.Text, "Something went wrong")
	})

	t.Run("ignored updates reach nobody", func(t *testing.T) {
		api := newFakeAPI()
		handler := &recordingHandler{}
		bot := NewBot(api, handler, fastRetry())

		bot.handleUpdate(ctx, tgbotapi.Update{UpdateID: 3})

		assert.Empty(t, handler.events)
		assert.Empty(t, api.sent)
	})
}

func TestBot_DeliverRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failures are retried", func(t *testing.T) {
		api := newFakeAPI()
		api.sendErrs = []error{errors.New("connection reset")}
		bot := NewBot(api, &recordingHandler{}, fastRetry())

		require.NoError(t, bot.deliver(ctx, 500, conversation.Reply{Text: "hi"}))
		assert.Equal(t, 2, api.sentCount())
	})

	t.Run("rejections are not retried", func(t *testing.T) {
		api := newFakeAPI()
		api.sendErrs = []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}}
		bot := NewBot(api, &recordingHandler{}, fastRetry())

		err := bot.deliver(ctx, 500, conversation.Reply{Text: "hi"})
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrTelegramSend)
		assert.Equal(t, 1, api.sentCount())
	})

	t.Run("rate limits are retried", func(t *testing.T) {
		api := newFakeAPI()
		api.sendErrs = []error{&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}}
		bot := NewBot(api, &recordingHandler{}, fastRetry())

		require.NoError(t, bot.deliver(ctx, 500, conversation.Reply{Text: "hi"}))
		assert.Equal(t, 2, api.sentCount())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		api := newFakeAPI()
		api.sendErrs = []error{errors.New("a"), errors.New("b"), errors.New("c")}
		bot := NewBot(api, &recordingHandler{}, fastRetry())

		err := bot.deliver(ctx, 500, conversation.Reply{Text: "hi"})
		assert.ErrorIs(t, err, common.ErrMaxRetries)
		assert.Equal(t, 3, api.sentCount())
	})
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classify(plain))

	limited := classify(&tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 3",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3},
	})
	assert.ErrorIs(t, limited, common.ErrRateLimit)
	var retryable *common.RetryableError
	require.ErrorAs(t, limited, &retryable)
	assert.True(t, retryable.Retryable)
	assert.Equal(t, 3*time.Second, retryable.After)

	rejected := classify(&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"})
	require.ErrorAs(t, rejected, &retryable)
	assert.False(t, retryable.Retryable)
}

func TestBot_Run(t *testing.T) {
	api := newFakeAPI()
	handler := &recordingHandler{replies: []conversation.Reply{{Text: "pong"}}}
	bot := NewBot(api, handler, fastRetry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	api.updates <- textUpdate(500, 100, "/start")
	assert.Eventually(t, func() bool { return api.sentCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}

func TestConnect_RequiresToken(t *testing.T) {
	_, err := Connect("", false, &recordingHandler{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}
