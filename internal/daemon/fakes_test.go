package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/logger"
	"github.com/stretchr/testify/require"
)

const fakeToken = "123456:daemon-token"

// fakeBackend serves the session API used by the relay core
type fakeBackend struct {
	server *httptest.Server

	mu        sync.Mutex
	sessions  []map[string]string
	next      int
	reply     func(w http.ResponseWriter)
	createErr bool
	messages  atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{sessions: []map[string]string{}}
	fb.reply = func(w http.ResponseWriter) {
		writeJSON(w, map[string]interface{}{"parts": []map[string]interface{}{
			{"type": "text", "text": "hello"},
			{"type": "text", "text": "there"},
		}})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		writeJSON(w, fb.sessions)
	})
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		if fb.createErr {
			dropConnection(w)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.next++
		s := map[string]string{"id": "ses_" + strconv.Itoa(fb.next) + "abcdefgh", "title": body["title"]}
		fb.sessions = append(fb.sessions, s)
		writeJSON(w, s)
	})
	mux.HandleFunc("POST /session/{id}/message", func(w http.ResponseWriter, r *http.Request) {
		fb.messages.Add(1)
		fb.mu.Lock()
		reply := fb.reply
		fb.mu.Unlock()
		reply(w)
	})
	mux.HandleFunc("GET /global/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"healthy": true})
	})

	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) setReply(fn func(w http.ResponseWriter)) {
	fb.mu.Lock()
	fb.reply = fn
	fb.mu.Unlock()
}

func (fb *fakeBackend) failCreates() {
	fb.mu.Lock()
	fb.createErr = true
	fb.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// dropConnection closes the connection without answering
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "no hijack", http.StatusInternalServerError)
		return
	}
	if conn, _, err := hj.Hijack(); err == nil {
		_ = conn.Close()
	}
}

type botCall struct {
	Method    string
	Text      string
	ChatID    int64
	MessageID int
	ReplyTo   int
}

// fakeTelegram is a minimal Bot API server
type fakeTelegram struct {
	server *httptest.Server

	mu      sync.Mutex
	nextID  int
	calls   []botCall
	updates []tgbotapi.Update
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()

	f := &fakeTelegram{nextID: 500}
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
				"id":         777,
				"is_bot":     true,
				"first_name": "Relay",
				"username":   "relay_daemon_bot",
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
		case "sendMessage", "editMessageText":
			replyTo, _ := strconv.Atoi(r.Form.Get("reply_to_message_id"))
			id, _ := strconv.Atoi(r.Form.Get("message_id"))

			f.mu.Lock()
			if method == "sendMessage" {
				f.nextID++
				id = f.nextID
			}
			f.calls = append(f.calls, botCall{Method: method, Text: text, ChatID: chatID, MessageID: id, ReplyTo: replyTo})
			f.mu.Unlock()

			writeResult(w, map[string]interface{}{
				"message_id": id,
				"date":       time.Now().Unix(),
				"text":       text,
				"chat":       map[string]interface{}{"id": chatID, "type": "private"},
			})
		default:
			f.mu.Lock()
			f.calls = append(f.calls, botCall{Method: method})
			f.mu.Unlock()
			writeResult(w, true)
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeTelegram) push(update tgbotapi.Update) {
	f.mu.Lock()
	f.updates = append(f.updates, update)
	f.mu.Unlock()
}

func (f *fakeTelegram) callsTo(method string) []botCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []botCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func writeResult(w http.ResponseWriter, result interface{}) {
	writeJSON(w, map[string]interface{}{"ok": true, "result": result})
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

// testConfig points a default config at the fake servers
func testConfig(t *testing.T, fb *fakeBackend, tg *fakeTelegram) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Backend.URL = fb.server.URL
	cfg.Telegram.BotToken = fakeToken
	cfg.Telegram.APIEndpoint = tg.server.URL + "/bot%s/%s"
	cfg.Health.Schedule = ""
	return cfg
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error", Console: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}
