package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mill.log")
	l, err := NewLogger(path, "warn", 1, 2)
	require.NoError(t, err)
	defer l.Close()

	l.now = func() time.Time { return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC) }
	l.Debug("quiet")
	l.Info("quiet too")
	l.Warn("disk %d%% full", 91)
	l.Error("it broke")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2026-01-02 15:04:05 [WARN] disk 91% full\n"+
			"2026-01-02 15:04:05 [ERROR] it broke\n",
		string(data))
}

func TestLoggerRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mill.log")
	l, err := NewLogger(path, "info", 1, 3)
	require.NoError(t, err)
	defer l.Close()

	// Shrink the threshold so two lines force a rotation.
	l.maxBytes = 60
	l.Info("%s", strings.Repeat("a", 40))
	l.Info("%s", strings.Repeat("b", 40))
	require.NoError(t, l.Close())

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Contains(t, string(rotated), strings.Repeat("a", 40))

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(live), strings.Repeat("b", 40))
	assert.NotContains(t, string(live), "aaaa")
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	l.Info("no panic")
	assert.NoError(t, l.Close())
}

func TestLoggerAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mill.log")
	l, err := NewLogger(path, "info", 1, 2)
	require.NoError(t, err)
	l.Info("first")
	require.NoError(t, l.Close())

	l2, err := NewLogger(path, "info", 1, 2)
	require.NoError(t, err)
	l2.Info("second")
	require.NoError(t, l2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}
