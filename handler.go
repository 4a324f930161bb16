package linesock

import (
	"context"
	"net"
)

// connHandler runs every accepted socket as a Conn.
type connHandler struct {
	opts   []Option
	logger Logger
}

// NewHandler returns a Handler that wraps each accepted socket in a Conn
// built from opts and runs it until the connection ends.
// The options are validated once, up front, with the same rules as NewConn.
func NewHandler(opt ...Option) (Handler, error) {
	opts, err := buildOptions(opt)
	if err != nil {
		return nil, err
	}
	return &connHandler{opts: opt, logger: opts.logger}, nil
}

// Handle implements Handler.
func (h *connHandler) Handle(ctx context.Context, raw *net.TCPConn) {
	conn, err := NewConn(raw, h.opts...)
	if err != nil {
		h.logger.Error("failed to create connection", "remote_addr", raw.RemoteAddr(), "error", err)
		_ = raw.Close()
		return
	}

	// Run logs how the connection ended.
	_ = conn.Run(ctx)
}
