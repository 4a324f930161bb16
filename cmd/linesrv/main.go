// Command linesrv accepts TCP connections and logs every newline-delimited
// line each client sends.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Zereker/linesock"
	"github.com/Zereker/linesock/internal/config"
	"github.com/Zereker/linesock/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("LINESOCK_CONFIG"), "path to a TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "linesrv: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zl := logging.New(cfg.Log, os.Stderr, "linesrv")
	logger := logging.NewAdapter(zl)

	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", cfg.Listen)
	}

	server, err := linesock.New(addr,
		linesock.ServerLoggerOption(logger),
		linesock.ServerShutdownTimeoutOption(cfg.ShutdownTimeout),
	)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	handler, err := linesock.NewHandler(
		linesock.CustomCodecOption(linesock.NewLineCodec()),
		linesock.OnLineOption(logLine(zl)),
		linesock.LoggerOption(logger),
		linesock.MessageMaxSize(cfg.MaxLineLength),
		linesock.ReadSizeOption(cfg.ReadSize),
		linesock.DispatchQueueOption(cfg.DispatchQueue),
		linesock.BufferSizeOption(cfg.SendBuffer),
		linesock.HeartbeatOption(cfg.IdleTimeout/2),
	)
	if err != nil {
		return errors.Wrap(err, "build connection handler")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info().Str("addr", server.Addr().String()).Msg("listening")
	if err = server.Serve(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// logLine is the frame sink: one log entry per received line.
func logLine(zl zerolog.Logger) func(*linesock.Conn, linesock.Line) error {
	return func(c *linesock.Conn, line linesock.Line) error {
		zl.Info().Str("conn_id", c.ID()).Str("line", string(line)).Msg("received line")
		return nil
	}
}
