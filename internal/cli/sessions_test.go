package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsCommand(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		fb := newFakeBackend(t)

		output, err := run(t, "", "sessions", "--config", writeTestConfig(t, fb.server.URL))
		require.NoError(t, err)
		assert.Contains(t, output, "No sessions")
	})

	t.Run("list", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.addSession("ses_a", "Telegram User 42")
		fb.addSession("ses_longer_id", "")

		output, err := run(t, "", "sessions", "--config", writeTestConfig(t, fb.server.URL))
		require.NoError(t, err)
		assert.Contains(t, output, "ID             TITLE")
		assert.Contains(t, output, "ses_a          Telegram User 42")
		assert.Contains(t, output, "ses_longer_id")
	})

	t.Run("show", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.addSession("ses_a", "Telegram User 42")
		cfgPath := writeTestConfig(t, fb.server.URL)

		output, err := run(t, "", "sessions", "--config", cfgPath, "ses_a")
		require.NoError(t, err)
		assert.Contains(t, output, "ID: ses_a\nTitle: Telegram User 42")

		_, err = run(t, "", "sessions", "--config", cfgPath, "ses_missing")
		assert.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		fb := newFakeBackend(t)

		output, err := run(t, "", "sessions", "--delete", "ses_gone", "--config", writeTestConfig(t, fb.server.URL))
		require.NoError(t, err)
		assert.Contains(t, output, "Deleted session ses_gone")
		assert.Equal(t, []string{"ses_gone"}, fb.deleted)
	})
}
