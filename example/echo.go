package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Zereker/linesock"
)

// echo writes every received line back to its sender in upper case.
func echo(c *linesock.Conn, line linesock.Line) error {
	slog.Info("recv line", "conn_id", c.ID(), "line", string(line))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.WriteBlocking(ctx, linesock.Line(strings.ToUpper(string(line))))
}

func main() {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:12345")
	if err != nil {
		panic(err)
	}

	server, err := linesock.New(addr, linesock.ServerShutdownTimeoutOption(3*time.Second))
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	handler, err := linesock.NewHandler(
		linesock.CustomCodecOption(linesock.NewLineCodec()),
		linesock.OnLineOption(echo),
		linesock.BufferSizeOption(64),
		linesock.OnErrorOption(func(err error) linesock.ErrorAction {
			slog.Error("connection error", "error", err)
			return linesock.Disconnect
		}),
	)
	if err != nil {
		panic(err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("server start", "addr", addr.String())
	if err := server.Serve(ctx, handler); err != nil && err != context.Canceled {
		slog.Error("server error", "error", err)
	}
}
