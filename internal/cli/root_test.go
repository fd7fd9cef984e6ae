package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves just enough of the session API for the CLI
type fakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	sessions []map[string]string
	deleted  []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{sessions: []map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		writeJSON(w, fb.sessions)
	})
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		defer fb.mu.Unlock()
		s := map[string]string{"id": "ses_cli0001", "title": body["title"]}
		fb.sessions = append(fb.sessions, s)
		writeJSON(w, s)
	})
	mux.HandleFunc("GET /session/{id}", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		for _, s := range fb.sessions {
			if s["id"] == r.PathValue("id") {
				writeJSON(w, s)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	mux.HandleFunc("DELETE /session/{id}", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.deleted = append(fb.deleted, r.PathValue("id"))
		writeJSON(w, true)
	})
	mux.HandleFunc("POST /session/{id}/message", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"parts": []map[string]interface{}{
			{"type": "text", "text": "hello from the backend"},
		}})
	})
	mux.HandleFunc("GET /global/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"healthy": true})
	})

	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) addSession(id, title string) {
	fb.mu.Lock()
	fb.sessions = append(fb.sessions, map[string]string{"id": id, "title": title})
	fb.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeTestConfig writes a config file pointing at backendURL and returns its path
func writeTestConfig(t *testing.T, backendURL string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "relay.json")
	data, err := json.Marshal(map[string]interface{}{
		"telegram": map[string]interface{}{"bot_token": "123456789:ABCdefGHIjklMNOpqrs"},
		"backend":  map[string]interface{}{"url": backendURL},
		"data_dir": dir,
		"logging":  map[string]interface{}{"file": filepath.Join(dir, "relay.log"), "level": "error"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// run executes the root command with args and returns its output
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	deleteSessionID = ""
	askAs = "cli"

	cmd := rootCmd
	// parsed flag values outlive Execute; clear the ones that short-circuit it
	for _, c := range append(cmd.Commands(), cmd) {
		for _, name := range []string{"help", "version"} {
			if f := c.Flags().Lookup(name); f != nil {
				_ = f.Value.Set("false")
			}
		}
	}

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return output.String(), err
}

func hasCommand(name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := run(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "relay version")
		assert.Contains(t, output, version)
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := run(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "Relay")
		assert.Contains(t, output, "Telegram")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := rootCmd

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "info", logLevelFlag.DefValue)
	})

	t.Run("subcommands", func(t *testing.T) {
		for _, name := range []string{"start", "stop", "status", "health", "sessions", "ask", "configure"} {
			assert.True(t, hasCommand(name), "%s command should exist", name)
		}
	})
}

func TestVersion(t *testing.T) {
	assert.True(t, strings.HasPrefix(version, "0."))
}
