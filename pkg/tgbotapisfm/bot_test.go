package tgbotapisfm

import (
	"errors"
	"strings"
	"testing"
	"time"

	"student_registry/pkg/tgbotapisfm/tgtest"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"
)

func newTestBot(t *testing.T, api *tgtest.Server, states map[string]State) *Bot {
	t.Helper()
	bot, err := NewBot(Config{
		Token:    tgtest.Token,
		States:   states,
		Endpoint: api.Endpoint(),
		Limiter:  NewLimiterWithIntervals(0, 0),
	}, []int64{666}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return bot
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func reply(text string) Handler {
	return Handler{Handle: func(bot *Bot, update tgbotapi.Update) error {
		_, err := bot.SendMessage(tgbotapi.NewMessage(update.Message.Chat.ID, text))
		return err
	}}
}

func TestNewBot_Validation(t *testing.T) {
	_, err := NewBot(Config{}, nil)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	_, err = NewBot(Config{Token: "x", Expiration: -time.Second}, nil)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || !errors.Is(err, ErrNegativeExpiration) {
		t.Errorf("expected ValidationError for negative expiration, got %v", err)
	}
}

func TestHandleUpdate_Routing(t *testing.T) {
	api := tgtest.NewServer(t)
	states := map[string]State{
		"start": {
			Global:          true,
			MessageHandlers: map[string]Handler{"/start": reply("menu")},
		},
		"echo": {
			AtEntranceFunc: &Handler{Handle: func(bot *Bot, update tgbotapi.Update) error {
				_, err := bot.SendMessage(tgbotapi.NewMessage(update.Message.Chat.ID, "say something"))
				return err
			}},
			CatchAllFunc: &Handler{Handle: func(bot *Bot, update tgbotapi.Update) error {
				_, err := bot.SendMessage(tgbotapi.NewMessage(update.Message.Chat.ID, "echo: "+update.Message.Text))
				return err
			}},
		},
	}
	bot := newTestBot(t, api, states)

	// без состояния работает только глобальное меню
	if err := bot.HandleUpdate(textUpdate(1, "hello")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(api.Texts()) != 0 {
		t.Fatalf("user without state must be ignored, got %v", api.Texts())
	}
	if err := bot.HandleUpdate(textUpdate(1, " /START ")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if api.LastText() != "menu" {
		t.Errorf("global command: %v", api.Texts())
	}

	if err := bot.EnterState(1, "echo", textUpdate(1, "")); err != nil {
		t.Fatalf("EnterState: %v", err)
	}
	if api.LastText() != "say something" {
		t.Errorf("entrance: %v", api.Texts())
	}
	if err := bot.HandleUpdate(textUpdate(1, "hi")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if api.LastText() != "echo: hi" {
		t.Errorf("catch all: %v", api.Texts())
	}

	// глобальная команда доступна и из другого состояния
	if err := bot.HandleUpdate(textUpdate(1, "/start")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if api.LastText() != "menu" {
		t.Errorf("global from state: %v", api.Texts())
	}
}

func TestHandleUpdate_IgnoreList(t *testing.T) {
	api := tgtest.NewServer(t)
	bot := newTestBot(t, api, map[string]State{
		"start": {Global: true, MessageHandlers: map[string]Handler{"/start": reply("menu")}},
	})
	if err := bot.HandleUpdate(textUpdate(666, "/start")); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if len(api.Calls("")) != 0 {
		t.Errorf("ignored user got a reply")
	}
}

func TestHandleUpdate_Callback(t *testing.T) {
	api := tgtest.NewServer(t)
	var answered string
	bot := newTestBot(t, api, map[string]State{
		"confirm": {CallbackHandlers: map[string]Handler{
			"yes": {Handle: func(bot *Bot, update tgbotapi.Update) error {
				answered = update.CallbackQuery.Data
				return bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "ok"))
			}},
		}},
	})
	if err := bot.SetUserState(7, "confirm"); err != nil {
		t.Fatalf("SetUserState: %v", err)
	}
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:              "cb1",
		From:            &tgbotapi.User{ID: 7},
		InlineMessageID: "im1",
		Data:            "yes",
	}}
	if err := bot.HandleUpdate(update); err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if answered != "yes" || len(api.Calls("answerCallbackQuery")) != 1 {
		t.Errorf("callback not handled: %q %v", answered, api.Calls(""))
	}
}

func TestUserState(t *testing.T) {
	api := tgtest.NewServer(t)
	bot := newTestBot(t, api, map[string]State{"a": {}})

	if _, err := bot.GetUserState(1); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
	if err := bot.SetUserState(1, "missing"); !errors.Is(err, ErrStateHandlerNotFound) {
		t.Errorf("expected ErrStateHandlerNotFound, got %v", err)
	}
	if err := bot.SetUserState(1, "a"); err != nil {
		t.Fatalf("SetUserState: %v", err)
	}
	if got, _ := bot.GetUserState(1); got != "a" {
		t.Errorf("state = %q", got)
	}
	bot.ClearUserState(1)
	if _, err := bot.GetUserState(1); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("state must be cleared")
	}
}

func TestSendMessage_Document(t *testing.T) {
	api := tgtest.NewServer(t)
	bot := newTestBot(t, api, nil)

	doc := tgbotapi.NewDocument(5, tgbotapi.FileBytes{Name: "a.xlsx", Bytes: []byte("PK")})
	if _, err := bot.SendMessage(doc); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	calls := api.Calls("sendDocument")
	if len(calls) != 1 || string(calls[0].Files["document"]) != "PK" {
		t.Fatalf("document not uploaded: %+v", calls)
	}
	if !strings.Contains(calls[0].Params.Get("chat_id"), "5") {
		t.Errorf("chat_id: %v", calls[0].Params)
	}
}

func TestChatOf(t *testing.T) {
	chat := &tgbotapi.Chat{ID: 42}
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   *tgbotapi.Chat
	}{
		{"message", tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat}}, chat},
		{"callback with message", tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{Message: &tgbotapi.Message{Chat: chat}}}, chat},
		{"inline callback", tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{InlineMessageID: "im1"}}, nil},
		{"empty", tgbotapi.Update{}, nil},
	}
	for _, tt := range tests {
		if got := ChatOf(tt.update); got != tt.want {
			t.Errorf("%s: ChatOf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandleUpdate_IgnoredChatOnInlineCallback(t *testing.T) {
	api := tgtest.NewServer(t)
	bot := newTestBot(t, api, map[string]State{"a": {}})
	bot.IgnoreList = []int64{99}
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:              "cb2",
		From:            &tgbotapi.User{ID: 7},
		InlineMessageID: "im2",
	}}
	if err := bot.HandleUpdate(update); err != nil {
		t.Errorf("HandleUpdate: %v", err)
	}
}

func TestHandleUpdate_CallbackErrorKeepsBotRunning(t *testing.T) {
	api := tgtest.NewServer(t)
	bot := newTestBot(t, api, map[string]State{
		"confirm": {CallbackHandlers: map[string]Handler{
			"yes": {Handle: func(*Bot, tgbotapi.Update) error { return errors.New("send failed") }},
		}},
	})
	if err := bot.SetUserState(7, "confirm"); err != nil {
		t.Fatalf("SetUserState: %v", err)
	}
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb3", From: &tgbotapi.User{ID: 7}, Data: "yes"}}
	if err := bot.HandleUpdate(update); err != nil {
		t.Errorf("handler errors must be logged, not stop the update loop: %v", err)
	}
}
