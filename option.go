package linesock

import (
	"fmt"
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration for a connection.
type options struct {
	codec  Codec
	logger Logger

	onMessage func(c *Conn, message Message) error
	// onError is called for write errors and idle read timeouts.
	// Returns Disconnect to close the connection, Continue to suppress the error.
	onError func(error) ErrorAction

	bufferSize    int           // size of buffered send channel
	maxReadLength int           // maximum size of a single message, negative for unlimited
	readSize      int           // bytes requested per socket read
	dispatchQueue int           // frames queued between decode and handler, 0 for inline
	heartbeat     time.Duration // read/write deadline is heartbeat * 2, 0 disables it
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the message codec.
// The codec is required and must be provided before creating a connection.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// BufferSizeOption returns an Option that sets the size of the send channel buffer.
// A larger buffer allows more messages to be queued before blocking.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// HeartbeatOption returns an Option that sets the heartbeat interval.
// This determines the read/write deadline timeout (heartbeat * 2).
// Without it a connection may stay idle forever.
func HeartbeatOption(heartbeat time.Duration) Option {
	return func(o *options) {
		o.heartbeat = heartbeat
	}
}

// MessageMaxSize returns an Option that sets the maximum message size.
// A connection holding more undelimited bytes than this, or decoding a
// longer message, fails with ErrMessageTooLarge. A negative size removes
// the limit.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxReadLength = size
	}
}

// ReadSizeOption returns an Option that sets how many bytes are requested
// from the socket per read.
func ReadSizeOption(size int) Option {
	return func(o *options) {
		o.readSize = size
	}
}

// DispatchQueueOption returns an Option that decouples decoding from the
// message handler with a queue of the given size. The handler then runs on
// its own goroutine, still one message at a time and in arrival order.
// When the queue is full the connection stops reading until there is room.
func DispatchQueueOption(size int) Option {
	return func(o *options) {
		o.dispatchQueue = size
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked when a write fails or an idle read times out.
// Return Disconnect to close the connection, or Continue to suppress the error.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption returns an Option that sets the message handler callback.
// This callback (or OnLineOption) is required and is invoked for each
// received message with the connection it arrived on.
func OnMessageOption(cb func(*Conn, Message) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// OnLineOption is OnMessageOption for codecs that decode Line messages.
// Any other message type ends the connection with an error.
func OnLineOption(cb func(*Conn, Line) error) Option {
	return func(o *options) {
		o.onMessage = func(c *Conn, m Message) error {
			line, ok := m.(Line)
			if !ok {
				return fmt.Errorf("unexpected message type %T", m)
			}
			return cb(c, line)
		}
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
