// Package linesock provides a small TCP server framework for line-oriented
// protocols. Inbound bytes are framed by a pluggable Codec; the bundled
// LineCodec turns a stream into newline-delimited UTF-8 lines, handling
// lines split across any number of reads.
package linesock

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Errors returned by connection operations.
var (
	// ErrInvalidCodec is returned when no codec is provided.
	ErrInvalidCodec = errors.New("invalid codec callback")
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrMessageTooLarge is returned when a message exceeds the maximum allowed size.
	ErrMessageTooLarge = errors.New("message too large")
)

// ErrConnectionClosed is returned when operating on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// ConnState is the lifecycle stage of a connection.
type ConnState int32

const (
	// StateAccepted is the state of a connection that has not started running.
	StateAccepted ConnState = iota
	// StateReading means the connection is waiting for bytes from the peer.
	StateReading
	// StateDecoding means buffered bytes are being split into messages.
	StateDecoding
	// StateDispatching means the message handler is running inline.
	StateDispatching
	// StateClosed is terminal: the peer closed the stream or the connection was canceled.
	StateClosed
	// StateFaulted is terminal: a decode, I/O or handler error ended the connection.
	StateFaulted
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateReading:
		return "reading"
	case StateDecoding:
		return "decoding"
	case StateDispatching:
		return "dispatching"
	case StateClosed:
		return "closed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Conn represents a client connection to a TCP server.
// It manages the underlying TCP connection, message encoding/decoding,
// and provides read/write loops for asynchronous communication.
type Conn struct {
	rawConn *net.TCPConn
	decoder Decoder
	logger  Logger
	id      string

	opts options

	sendMsg chan []byte
	inbox   chan Message // nil when messages are dispatched inline
	state   atomic.Int32
	closed  atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Default configuration values.
const (
	// defaultBufferSize is the default size of the message channel buffer.
	defaultBufferSize = 1
	// defaultMaxPackageLength is the default maximum size of a single message (1MB).
	defaultMaxPackageLength = 1024 * 1024
	// defaultReadSize is the default number of bytes requested per read.
	defaultReadSize = 4096
)

// NewConn creates a new connection wrapper around the given TCP connection.
// It applies the provided options and validates them before returning.
// Returns an error if required options (codec, onMessage) are missing.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	opts, err := buildOptions(opt)
	if err != nil {
		return nil, err
	}

	return newClientConnWithOptions(conn, opts), nil
}

func buildOptions(opt []Option) (options, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	return opts, checkOptions(&opts)
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxReadLength == 0 {
		opts.maxReadLength = defaultMaxPackageLength
	}

	if opts.readSize <= 0 {
		opts.readSize = defaultReadSize
	}

	if opts.dispatchQueue < 0 {
		opts.dispatchQueue = 0
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.codec == nil {
		return ErrInvalidCodec
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// newClientConnWithOptions creates a new Conn with the given options.
func newClientConnWithOptions(c *net.TCPConn, opts options) *Conn {
	id := uuid.NewString()
	addr := "unknown"
	if ra := c.RemoteAddr(); ra != nil {
		addr = ra.String()
	}

	cc := &Conn{
		rawConn: c,
		decoder: opts.codec.NewDecoder(),
		logger:  newConnLogger(opts.logger, "conn_id", id, "addr", addr),
		id:      id,
		opts:    opts,
		sendMsg: make(chan []byte, opts.bufferSize),
	}
	if opts.dispatchQueue > 0 {
		cc.inbox = make(chan Message, opts.dispatchQueue)
	}

	return cc
}

// Run starts the connection's read and write loops, plus the dispatch loop
// when a dispatch queue is configured, and blocks until they finish.
//
// Run returns nil when the peer closes the stream, context.Canceled when ctx
// is canceled or Close is called, and otherwise the error that ended the
// connection (a *DecodeError for undecodable input). Bytes of an
// unterminated trailing message are discarded.
// The connection is automatically closed when Run returns.
func (c *Conn) Run(ctx context.Context) error {
	if c.rawConn.RemoteAddr() == nil {
		c.logger.Warn("peer address unavailable")
	}
	c.logger.Info("connection established")
	c.logger.Debug("connection options",
		"buffer_size", c.opts.bufferSize,
		"max_read_length", c.opts.maxReadLength,
		"read_size", c.opts.readSize,
		"dispatch_queue", c.opts.dispatchQueue,
		"heartbeat", c.opts.heartbeat)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	group, child := errgroup.WithContext(ctx)

	// inputDone is closed once no handler can run again, which on a clean
	// end of stream lets writeLoop flush pending replies and return.
	inputDone := make(chan struct{})

	group.Go(func() error {
		if err := c.readLoop(child); err != nil {
			return err
		}
		if c.inbox == nil {
			close(inputDone)
		}
		return nil
	})

	if c.inbox != nil {
		group.Go(func() error {
			if err := c.dispatchLoop(child); err != nil {
				return err
			}
			close(inputDone)
			return nil
		})
	}

	group.Go(func() error {
		return c.writeLoop(child, inputDone)
	})

	// A blocked Read only returns once the socket is closed.
	finished := make(chan struct{})
	go func() {
		select {
		case <-child.Done():
			c.closeConn()
		case <-finished:
		}
	}()

	err := group.Wait()
	close(finished)
	c.closeConn()

	switch {
	case err == nil:
		c.setState(StateClosed)
		c.logger.Info("connection closed")
	case errors.Is(err, context.Canceled):
		c.setState(StateClosed)
		c.logger.Info("connection closed", "reason", err)
	default:
		c.setState(StateFaulted)
		c.logger.Info("connection closed with error", "error", err)
	}

	return err
}

// Close gracefully closes the connection.
// It cancels the context and closes the underlying TCP connection.
// Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return c.rawConn.Close()
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// State returns the connection's current lifecycle stage.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// ID returns the identifier attached to every log entry of this connection.
func (c *Conn) ID() string {
	return c.id
}

// ErrBufferFull is returned when the send buffer is full and cannot accept more messages.
// This error indicates backpressure - the receiver is not consuming messages fast enough.
// Recommended handling strategies:
//   - Drop the message (for non-critical data like metrics)
//   - Use WriteBlocking or WriteTimeout to wait for buffer space
//   - Implement application-level flow control
var ErrBufferFull = errors.New("send buffer full")

// Write sends a message through the connection without blocking (fire-and-forget).
// The message is encoded using the configured codec and queued for sending.
//
// Returns:
//   - nil: message was successfully queued (not yet sent)
//   - ErrBufferFull: send buffer is full, message was NOT queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if codec.Encode fails
func (c *Conn) Write(message Message) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	bytes, err := c.opts.codec.Encode(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- bytes:
		return nil
	default:
		return ErrBufferFull
	}
}

// WriteBlocking sends a message through the connection, blocking until the message
// is queued or the context is canceled.
//
// Returns:
//   - nil: message was successfully queued
//   - context.Canceled or context.DeadlineExceeded: context was canceled
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if codec.Encode fails
func (c *Conn) WriteBlocking(ctx context.Context, message Message) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	bytes, err := c.opts.codec.Encode(message)
	if err != nil {
		return err
	}

	select {
	case c.sendMsg <- bytes:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteTimeout sends a message through the connection with a timeout.
//
// Returns:
//   - nil: message was successfully queued
//   - ErrBufferFull: timeout expired before message could be queued
//   - ErrConnectionClosed: connection is closed
//   - encoding error: if codec.Encode fails
func (c *Conn) WriteTimeout(message Message, timeout time.Duration) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	bytes, err := c.opts.codec.Encode(message)
	if err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c.sendMsg <- bytes:
		return nil
	case <-timer.C:
		return ErrBufferFull
	}
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// readLoop reads chunks from the socket into a single growing buffer and
// hands every complete message to the handler, in order.
// It returns nil when the peer closes the stream, after closing the
// dispatch queue.
func (c *Conn) readLoop(ctx context.Context) error {
	buf := make([]byte, 0, c.opts.readSize)
	chunk := make([]byte, c.opts.readSize)

	for {
		c.setState(StateReading)
		if c.opts.heartbeat > 0 {
			if err := c.rawConn.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2)); err != nil {
				c.logger.Debug("set read deadline", "error", err)
			}
		}

		n, err := c.rawConn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var decodeErr error
			if buf, decodeErr = c.decode(ctx, buf); decodeErr != nil {
				return decodeErr
			}
		}
		if err == nil {
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if errors.Is(err, io.EOF) {
			if len(buf) > 0 {
				c.logger.Debug("discarding unterminated message", "bytes", len(buf))
			}
			if c.inbox != nil {
				close(c.inbox)
			}
			return nil
		}

		if c.closed.Load() {
			return ErrConnectionClosed
		}

		c.logger.Debug("read error", "error", err)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && c.opts.onError(err) == Continue {
			continue
		}
		return err
	}
}

// decode drains every complete message from buf and returns the
// unconsumed remainder moved to the front of buf.
func (c *Conn) decode(ctx context.Context, buf []byte) ([]byte, error) {
	c.setState(StateDecoding)

	off := 0
	for {
		msg, n, err := c.decoder.Decode(buf[off:])
		if err != nil {
			c.logger.Warn("decode fault", "error", err)
			return buf, err
		}
		if msg == nil {
			break
		}

		off += n
		if c.tooLarge(msg.Length()) {
			err = &DecodeError{Start: 0, End: n, Err: ErrMessageTooLarge}
			c.logger.Warn("decode fault", "error", err)
			return buf, err
		}

		if err = c.dispatch(ctx, msg); err != nil {
			return buf, err
		}
		c.setState(StateDecoding)
	}

	if off > 0 {
		buf = buf[:copy(buf, buf[off:])]
	}

	if c.tooLarge(len(buf)) {
		err := &DecodeError{Start: 0, End: len(buf), Err: ErrMessageTooLarge}
		c.logger.Warn("decode fault", "error", err)
		return buf, err
	}

	return buf, nil
}

func (c *Conn) tooLarge(n int) bool {
	return c.opts.maxReadLength > 0 && n > c.opts.maxReadLength
}

// dispatch runs the handler inline, or queues the message for dispatchLoop.
func (c *Conn) dispatch(ctx context.Context, msg Message) error {
	if c.inbox == nil {
		c.setState(StateDispatching)
		return c.opts.onMessage(c, msg)
	}

	select {
	case c.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchLoop delivers queued messages until readLoop closes the queue,
// so messages read before a clean end of stream are still handled.
// It stops early when ctx is canceled.
func (c *Conn) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.inbox:
			if !ok {
				return nil
			}
			if err := c.opts.onMessage(c, msg); err != nil {
				return err
			}
		}
	}
}

// writeLoop continuously sends messages from the send channel to the connection.
// Returns when the context is canceled, when an unrecoverable error occurs,
// or after flushing the send channel once inputDone is closed.
func (c *Conn) writeLoop(ctx context.Context, inputDone <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		case <-inputDone:
			return c.flush()
		}
	}
}

// flush writes whatever is still queued without waiting for more.
func (c *Conn) flush() error {
	for {
		select {
		case data := <-c.sendMsg:
			if err := c.write(data); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// write sends data to the connection with a deadline.
// If an error occurs and onError returns Disconnect, the error is propagated.
// Otherwise, the error is suppressed and writing continues.
func (c *Conn) write(data []byte) error {
	if c.opts.heartbeat > 0 {
		if err := c.rawConn.SetWriteDeadline(time.Now().Add(c.opts.heartbeat * 2)); err != nil {
			c.logger.Debug("set write deadline", "error", err)
		}
	}

	_, err := c.rawConn.Write(data)

	if err != nil {
		c.logger.Debug("write error", "error", err)
		if c.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}

func (c *Conn) setState(s ConnState) {
	c.state.Store(int32(s))
}

// closeConn marks the connection as closed and closes the underlying TCP connection.
func (c *Conn) closeConn() {
	c.closed.Store(true)
	_ = c.rawConn.Close()
}
