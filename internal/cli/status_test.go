package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/harun/relay/internal/daemon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		fb := newFakeBackend(t)
		cfgPath := writeTestConfig(t, fb.server.URL)

		output, err := run(t, "", "status", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, output, "Status: stopped")
		assert.Contains(t, output, "Backend: "+fb.server.URL+" ok (")
	})

	t.Run("running", func(t *testing.T) {
		fb := newFakeBackend(t)
		cfgPath := writeTestConfig(t, fb.server.URL)
		pidFile := daemon.PIDFilePath(filepath.Dir(cfgPath))
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644))

		output, err := run(t, "", "status", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, output, "Status: running")
		assert.Contains(t, output, fmt.Sprintf("PID: %d", os.Getpid()))
		assert.Contains(t, output, "Uptime:")
	})

	t.Run("backend down", func(t *testing.T) {
		fb := newFakeBackend(t)
		cfgPath := writeTestConfig(t, fb.server.URL)
		fb.server.Close()

		output, err := run(t, "", "status", "--config", cfgPath)
		require.NoError(t, err)
		assert.Contains(t, output, "unreachable")
	})
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m3s", formatDuration(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h0m9s", formatDuration(time.Hour+9*time.Second))
}
