// Package config loads linesrv settings from defaults, an optional TOML file
// and LINESOCK_* environment variables, in that order of precedence.
package config

import (
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"

	"github.com/Zereker/linesock/internal/logging"
)

// Config is the resolved server configuration.
type Config struct {
	Listen          string
	MaxLineLength   int
	ReadSize        int
	IdleTimeout     time.Duration
	DispatchQueue   int
	SendBuffer      int
	ShutdownTimeout time.Duration
	Log             logging.Config
}

// fileConfig is the on-disk and environment shape; durations stay strings
// until resolve parses them.
type fileConfig struct {
	Listen          string `toml:"listen" env:"LINESOCK_LISTEN"`
	MaxLineLength   int    `toml:"max_line_length" env:"LINESOCK_MAX_LINE_LENGTH"`
	ReadSize        int    `toml:"read_size" env:"LINESOCK_READ_SIZE"`
	IdleTimeout     string `toml:"idle_timeout" env:"LINESOCK_IDLE_TIMEOUT"`
	DispatchQueue   int    `toml:"dispatch_queue" env:"LINESOCK_DISPATCH_QUEUE"`
	SendBuffer      int    `toml:"send_buffer" env:"LINESOCK_SEND_BUFFER"`
	ShutdownTimeout string `toml:"shutdown_timeout" env:"LINESOCK_SHUTDOWN_TIMEOUT"`
	LogLevel        string `toml:"log_level" env:"LINESOCK_LOG_LEVEL"`
	LogFormat       string `toml:"log_format" env:"LINESOCK_LOG_FORMAT"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Listen:          "127.0.0.1:1234",
		MaxLineLength:   1024 * 1024,
		ReadSize:        4096,
		IdleTimeout:     "0s",
		SendBuffer:      16,
		ShutdownTimeout: "5s",
		LogLevel:        "info",
		LogFormat:       logging.FormatConsole,
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	cfg, err := defaultFileConfig().resolve()
	if err != nil {
		panic(err) // defaults are constant
	}
	return cfg
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. Unknown keys in the file are rejected.
func Load(path string) (Config, error) {
	raw := defaultFileConfig()

	if path != "" {
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "load config %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, errors.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := envdecode.Decode(&raw); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, errors.Wrap(err, "decode environment")
	}

	return raw.resolve()
}

func (raw fileConfig) resolve() (Config, error) {
	cfg := Config{
		Listen:        strings.TrimSpace(raw.Listen),
		MaxLineLength: raw.MaxLineLength,
		ReadSize:      raw.ReadSize,
		DispatchQueue: raw.DispatchQueue,
		SendBuffer:    raw.SendBuffer,
	}

	if cfg.Listen == "" {
		return Config{}, errors.New("listen address is empty")
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return Config{}, errors.Wrap(err, "parse listen")
	}
	if cfg.ReadSize <= 0 {
		return Config{}, errors.Errorf("read_size must be positive, got %d", cfg.ReadSize)
	}
	if cfg.DispatchQueue < 0 {
		return Config{}, errors.Errorf("dispatch_queue must not be negative, got %d", cfg.DispatchQueue)
	}
	if cfg.SendBuffer <= 0 {
		return Config{}, errors.Errorf("send_buffer must be positive, got %d", cfg.SendBuffer)
	}

	var err error
	if cfg.IdleTimeout, err = parseDuration("idle_timeout", raw.IdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("shutdown_timeout", raw.ShutdownTimeout); err != nil {
		return Config{}, err
	}

	if cfg.Log, err = logging.ParseConfig(raw.LogLevel, raw.LogFormat); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	if d < 0 {
		return 0, errors.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}
