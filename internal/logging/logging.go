// Package logging builds the zerolog logger used by linesrv and adapts it to
// the key-value Logger interface the server library expects.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the log level and output format.
type Config struct {
	Level  zerolog.Level
	Format string
}

// ParseConfig validates a textual level and format.
func ParseConfig(level, format string) (Config, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return Config{}, err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatConsole
	case FormatConsole, FormatJSON:
	default:
		return Config{}, fmt.Errorf("unknown log format %q", format)
	}

	return Config{Level: lvl, Format: format}, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "off", "none":
		return zerolog.Disabled, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", raw)
	}
	return lvl, nil
}

// New returns a logger writing to out in the configured format.
func New(cfg Config, out io.Writer, app string) zerolog.Logger {
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(cfg.Level).With().Timestamp().Str("app", app).Logger()
}

// Adapter exposes a zerolog.Logger through Debug/Info/Warn/Error calls that
// take alternating key-value pairs, the shape used by log/slog.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter wraps logger.
func NewAdapter(logger zerolog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Debug logs msg at debug level with args as key-value fields.
func (a *Adapter) Debug(msg string, args ...any) { emit(a.logger.Debug(), msg, args) }

// Info logs msg at info level with args as key-value fields.
func (a *Adapter) Info(msg string, args ...any) { emit(a.logger.Info(), msg, args) }

// Warn logs msg at warn level with args as key-value fields.
func (a *Adapter) Warn(msg string, args ...any) { emit(a.logger.Warn(), msg, args) }

// Error logs msg at error level with args as key-value fields.
func (a *Adapter) Error(msg string, args ...any) { emit(a.logger.Error(), msg, args) }

func emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			e = e.Str("!BADKEY", key)
			break
		}
		switch v := args[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
