package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/CartBot/internal/apperr"
)

type recordingAPI struct {
	mu   sync.Mutex
	sent []string
}

func (a *recordingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	var result any = true
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "CartBot", "username": "cartbot"}
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		a.mu.Lock()
		a.sent = append(a.sent, r.FormValue("text"))
		a.mu.Unlock()
		result = map[string]any{"message_id": 1, "date": 0, "chat": map[string]any{"id": 1, "type": "private"}}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func (a *recordingAPI) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

type handlerFunc func(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error

func (f handlerFunc) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	return f(ctx, bot, message, args)
}

func newTestBot(t *testing.T) (*Bot, *recordingAPI) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	rec := &recordingAPI{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("test-token", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)

	return newBot(api, logger), rec
}

func commandUpdate(text string) tgbotapi.Update {
	cmd := text
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmd = text[:i]
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 42, FirstName: "Ann"},
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func TestRouterPassesArguments(t *testing.T) {
	bot, rec := newTestBot(t)

	var got []string
	bot.RegisterCommand("buy", "Add an item", handlerFunc(func(_ context.Context, _ *tgbotapi.BotAPI, _ *tgbotapi.Message, args []string) error {
		got = args
		return nil
	}))

	bot.handleUpdate(context.Background(), commandUpdate("/buy Whole  milk x2"))

	assert.Equal(t, []string{"Whole", "milk", "x2"}, got)
	assert.Empty(t, rec.messages())
	assert.Equal(t, []tgbotapi.BotCommand{{Command: "buy", Description: "Add an item"}}, bot.commands)
}

func TestRouterReplies(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want string
	}{
		{name: "unknown command", text: "/nope", want: "❓ Unknown command. Use /help to see available commands."},
		{name: "domain error", text: "/fail", err: apperr.ErrLastAdmin, want: "⚠️ a group must keep at least one admin"},
		{name: "upstream error", text: "/fail", err: apperr.ErrAssistant, want: "❌ the assistant request failed. Please try again."},
		{name: "internal error", text: "/fail", err: errors.New("db down"), want: "❌ An error occurred while processing your command. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, rec := newTestBot(t)
			bot.RegisterCommand("fail", "Fails", handlerFunc(func(context.Context, *tgbotapi.BotAPI, *tgbotapi.Message, []string) error {
				return tt.err
			}))

			bot.handleUpdate(context.Background(), commandUpdate(tt.text))

			assert.Equal(t, []string{tt.want}, rec.messages())
		})
	}
}

func TestRouterIgnoresPlainText(t *testing.T) {
	bot, rec := newTestBot(t)

	bot.handleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
		Text:      "hello",
	}})

	assert.Empty(t, rec.messages())
}

func TestHandleUpdateRecoversFromPanic(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.RegisterCommand("boom", "Panics", handlerFunc(func(context.Context, *tgbotapi.BotAPI, *tgbotapi.Message, []string) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() { bot.handleUpdate(context.Background(), commandUpdate("/boom")) })
}

func TestHandleUpdatePassesBotContext(t *testing.T) {
	bot, _ := newTestBot(t)

	var got context.Context
	bot.RegisterCommand("list", "Show the list", handlerFunc(func(ctx context.Context, _ *tgbotapi.BotAPI, _ *tgbotapi.Message, _ []string) error {
		got = ctx
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bot.handleUpdate(ctx, commandUpdate("/list"))
	require.NotNil(t, got)
	assert.NoError(t, got.Err())

	cancel()
	assert.ErrorIs(t, got.Err(), context.Canceled)
}
