package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/linesock/internal/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linesrv.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:1234", cfg.Listen)
	assert.Equal(t, 1024*1024, cfg.MaxLineLength)
	assert.Equal(t, 4096, cfg.ReadSize)
	assert.Zero(t, cfg.IdleTimeout)
	assert.Zero(t, cfg.DispatchQueue)
	assert.Equal(t, 16, cfg.SendBuffer)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, zerolog.InfoLevel, cfg.Log.Level)
	assert.Equal(t, logging.FormatConsole, cfg.Log.Format)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen = "0.0.0.0:9000"
max_line_length = 512
idle_timeout = "90s"
dispatch_queue = 8
log_level = "debug"
log_format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 512, cfg.MaxLineLength)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 8, cfg.DispatchQueue)
	assert.Equal(t, zerolog.DebugLevel, cfg.Log.Level)
	assert.Equal(t, logging.FormatJSON, cfg.Log.Format)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 4096, cfg.ReadSize)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
listen = "0.0.0.0:9000"
shutdown_timeout = "1s"
`)
	t.Setenv("LINESOCK_LISTEN", "127.0.0.1:7000")
	t.Setenv("LINESOCK_MAX_LINE_LENGTH", "-1")
	t.Setenv("LINESOCK_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Listen)
	assert.Equal(t, -1, cfg.MaxLineLength)
	assert.Equal(t, time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, zerolog.WarnLevel, cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: `listen_addr = "127.0.0.1:1"`},
		{name: "bad duration", body: `idle_timeout = "soon"`},
		{name: "negative duration", body: `shutdown_timeout = "-1s"`},
		{name: "empty listen", body: `listen = " "`},
		{name: "listen without port", body: `listen = "localhost"`},
		{name: "zero read size", body: `read_size = 0`},
		{name: "negative queue", body: `dispatch_queue = -1`},
		{name: "zero send buffer", body: `send_buffer = 0`},
		{name: "bad log level", body: `log_level = "loud"`},
		{name: "bad log format", body: `log_format = "xml"`},
		{name: "malformed toml", body: `listen = `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
