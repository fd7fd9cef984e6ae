package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "subdir", "relay.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestRotatingWriter_RotatesAtLimit(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "relay.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, false)
	require.NoError(t, err)

	chunk := []byte(strings.Repeat("a", 600*1024))
	_, err = rw.Write(chunk)
	require.NoError(t, err)
	_, err = rw.Write(chunk)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	rotated, err := filepath.Glob(logFile + ".*")
	require.NoError(t, err)
	assert.Len(t, rotated, 1)

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
}

func TestRotatingWriter_CompressesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "relay.log")

	rw, err := NewRotatingWriter(logFile, 1, 0, true)
	require.NoError(t, err)

	chunk := []byte(strings.Repeat("b", 700*1024))
	for i := 0; i < 2; i++ {
		_, err = rw.Write(chunk)
		require.NoError(t, err)
	}
	require.NoError(t, rw.Close())

	gz, err := filepath.Glob(logFile + ".*.gz")
	require.NoError(t, err)
	assert.Len(t, gz, 1)
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "relay.log")

	rw, err := NewRotatingWriter(logFile, 10, 0, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = rw.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, rw.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 800, strings.Count(string(content), "line\n"))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "relay.log"), 10, 0, false)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, rw.Close())
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "relay.log.1")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0644))

	require.NoError(t, compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "relay.log")

	oldFile := logFile + ".20200101-120000.000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	freshFile := logFile + ".20990101-120000.000"
	require.NoError(t, os.WriteFile(freshFile, []byte("fresh log"), 0644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshFile)
	assert.NoError(t, err)
}
