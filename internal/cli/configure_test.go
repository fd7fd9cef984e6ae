package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/harun/relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		output, err := run(t, "", "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "interactive configuration wizard")
	})

	t.Run("saves answers", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "relay.json")
		answers := strings.Join([]string{
			"987654321:NewTokenValue",   // token
			"http://backend.local:4096", // url
			"",                          // username
			"s3cret",                    // password
			"first",                     // adopt policy
			"",                          // log level
		}, "\n") + "\n"

		output, err := run(t, answers, "configure", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, output, "Configuration saved to: "+cfgPath)

		cfg, err := config.Load(cfgPath)
		require.NoError(t, err)
		assert.Equal(t, "987654321:NewTokenValue", cfg.Telegram.BotToken)
		assert.Equal(t, "http://backend.local:4096", cfg.Backend.URL)
		assert.Equal(t, "opencode", cfg.Backend.Username)
		assert.Equal(t, "s3cret", cfg.Backend.Password)
		assert.Equal(t, "first", cfg.Session.AdoptPolicy)
	})
}
