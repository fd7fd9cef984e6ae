package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/relay/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const fakeToken = "123456:test-token"

type fakeCall struct {
	Method    string
	Text      string
	ChatID    int64
	MessageID int
	ReplyTo   int
}

// fakeTelegram is a minimal Bot API server
type fakeTelegram struct {
	server *httptest.Server

	mu            sync.Mutex
	nextMessageID int
	calls         []fakeCall
	updates       []tgbotapi.Update
	editError     string
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()

	f := &fakeTelegram{nextMessageID: 100}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		method := strings.TrimPrefix(r.URL.Path, "/bot"+fakeToken+"/")
		chatID, _ := strconv.ParseInt(r.Form.Get("chat_id"), 10, 64)
		text := r.Form.Get("text")

		switch method {
		case "getMe":
			writeResult(w, map[string]interface{}{
				"id":         999001,
				"is_bot":     true,
				"first_name": "RelayTest",
				"username":   "relay_test_bot",
			})
		case "getUpdates":
			f.mu.Lock()
			pending := f.updates
			f.updates = nil
			f.mu.Unlock()
			if len(pending) == 0 {
				time.Sleep(20 * time.Millisecond)
				pending = []tgbotapi.Update{}
			}
			writeResult(w, pending)
		case "sendMessage":
			replyTo, _ := strconv.Atoi(r.Form.Get("reply_to_message_id"))
			f.mu.Lock()
			f.nextMessageID++
			id := f.nextMessageID
			f.calls = append(f.calls, fakeCall{Method: method, Text: text, ChatID: chatID, MessageID: id, ReplyTo: replyTo})
			f.mu.Unlock()
			writeResult(w, map[string]interface{}{
				"message_id": id,
				"date":       time.Now().Unix(),
				"text":       text,
				"chat":       map[string]interface{}{"id": chatID, "type": "private"},
			})
		case "editMessageText":
			id, _ := strconv.Atoi(r.Form.Get("message_id"))
			f.mu.Lock()
			editError := f.editError
			f.calls = append(f.calls, fakeCall{Method: method, Text: text, ChatID: chatID, MessageID: id})
			f.mu.Unlock()
			if editError != "" {
				writeJSON(w, map[string]interface{}{"ok": false, "error_code": 400, "description": editError})
				return
			}
			writeResult(w, map[string]interface{}{
				"message_id": id,
				"date":       time.Now().Unix(),
				"text":       text,
				"chat":       map[string]interface{}{"id": chatID, "type": "private"},
			})
		default:
			f.mu.Lock()
			f.calls = append(f.calls, fakeCall{Method: method, ChatID: chatID})
			f.mu.Unlock()
			writeResult(w, true)
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeTelegram) endpoint() string {
	return f.server.URL + "/bot%s/%s"
}

func (f *fakeTelegram) push(update tgbotapi.Update) {
	f.mu.Lock()
	f.updates = append(f.updates, update)
	f.mu.Unlock()
}

func (f *fakeTelegram) setEditError(description string) {
	f.mu.Lock()
	f.editError = description
	f.mu.Unlock()
}

func (f *fakeTelegram) snapshot() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTelegram) callsTo(method string) []fakeCall {
	var out []fakeCall
	for _, c := range f.snapshot() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTelegram) newBot(t *testing.T, cfg config.TelegramConfig, opts Options) *Bot {
	t.Helper()
	cfg.BotToken = fakeToken
	cfg.APIEndpoint = f.endpoint()

	bot, err := New(cfg, zerolog.Nop(), opts)
	require.NoError(t, err)
	return bot
}

func writeResult(w http.ResponseWriter, result interface{}) {
	writeJSON(w, map[string]interface{}{"ok": true, "result": result})
}

func writeJSON(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// createTestBot builds a bot around a dummy API that never connects
func createTestBot(t *testing.T) *Bot {
	t.Helper()
	api := &tgbotapi.BotAPI{
		Self: tgbotapi.User{
			UserName: "testbot",
			ID:       123456789,
		},
	}
	return NewWithAPI(api, config.TelegramConfig{}, zerolog.Nop(), Options{})
}

func textUpdate(updateID int, chatID, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: updateID,
		Message: &tgbotapi.Message{
			MessageID: updateID,
			From:      &tgbotapi.User{ID: userID, UserName: "user" + strconv.FormatInt(userID, 10)},
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			Text:      text,
			Date:      int(time.Now().Unix()),
		},
	}
}
