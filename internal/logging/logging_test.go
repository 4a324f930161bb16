package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		level, format string
		want          Config
	}{
		{"", "", Config{Level: zerolog.InfoLevel, Format: FormatConsole}},
		{"DEBUG", "json", Config{Level: zerolog.DebugLevel, Format: FormatJSON}},
		{"warning", "Console", Config{Level: zerolog.WarnLevel, Format: FormatConsole}},
		{"off", "json", Config{Level: zerolog.Disabled, Format: FormatJSON}},
		{"trace", "", Config{Level: zerolog.TraceLevel, Format: FormatConsole}},
	}

	for _, tt := range tests {
		got, err := ParseConfig(tt.level, tt.format)
		require.NoError(t, err, "level %q format %q", tt.level, tt.format)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseConfig("loud", "json")
	assert.Error(t, err)
	_, err = ParseConfig("info", "xml")
	assert.Error(t, err)
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	buf.Reset()
	return entry
}

func TestAdapter_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAdapter(New(Config{Level: zerolog.DebugLevel, Format: FormatJSON}, &buf, "test"))

	logger.Info("connection closed",
		"conn_id", "abc",
		"bytes", 42,
		"error", errors.New("boom"),
		"timeout", 2*time.Second,
	)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "connection closed", entry["message"])
	assert.Equal(t, "test", entry["app"])
	assert.Equal(t, "abc", entry["conn_id"])
	assert.Equal(t, float64(42), entry["bytes"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "2s", entry["timeout"])
}

func TestAdapter_OddArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAdapter(New(Config{Level: zerolog.DebugLevel, Format: FormatJSON}, &buf, "test"))

	logger.Warn("odd", "dangling")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "dangling", entry["!BADKEY"])
}

func TestAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAdapter(New(Config{Level: zerolog.WarnLevel, Format: FormatJSON}, &buf, "test"))

	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Error("shown", "k", "v")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "error", entry["level"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: zerolog.InfoLevel, Format: FormatConsole}, &buf, "test")

	logger.Info().Str("addr", "127.0.0.1:1234").Msg("listening")
	assert.Contains(t, buf.String(), "listening")
	assert.Contains(t, buf.String(), "127.0.0.1:1234")
}
