package linesock

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Handler is the interface for handling incoming TCP connections.
// Implementations should handle the connection lifecycle and message processing.
type Handler interface {
	// Handle is called on its own goroutine for each new connection.
	// The implementation owns conn and must close it before returning.
	// ctx is canceled when the server stops draining connections.
	Handle(ctx context.Context, conn *net.TCPConn)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *net.TCPConn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn *net.TCPConn) {
	f(ctx, conn)
}

// Accept retry backoff bounds.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server represents a TCP server that listens for incoming connections.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	closeOnce   sync.Once
	shutdownNow chan struct{} // closed by Close to skip the drain timeout

	conns  sync.WaitGroup
	active atomic.Int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context passed to Serve is canceled, the server stops accepting
// and gives running handlers up to this duration to finish on their own
// before canceling their context. Default is 0 (cancel immediately).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// New creates a new TCP server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve starts accepting connections and dispatching each one to the handler
// on a new goroutine. A failed accept is logged and retried; it never stops
// the loop.
//
// Serve blocks until the context is canceled or Close is called. It then stops
// accepting, waits for running handlers (up to the shutdown timeout, or not
// at all after Close), cancels the handlers' context and waits for them to
// return. It returns ctx.Err(), which is nil after a plain Close.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}
		s.setShutdown()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	var delay time.Duration
	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			if s.isShutdown() {
				break
			}

			// Check if it's a temporary error
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			s.logger.Error("accept error", "error", err)
			if errors.Is(err, net.ErrClosed) {
				s.drain(cancelConns)
				return err
			}

			delay = nextAcceptDelay(delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)

		s.conns.Add(1)
		s.active.Add(1)
		go func() {
			defer s.conns.Done()
			defer s.active.Add(-1)
			handler.Handle(connCtx, conn)
		}()
	}

	s.logger.Info("server stopped accepting", "addr", s.listener.Addr(), "active_conns", s.ActiveConns())
	s.drain(cancelConns)
	s.logger.Info("server stopped", "addr", s.listener.Addr())
	return ctx.Err()
}

// drain waits for running handlers, giving them the shutdown timeout to end
// on their own before their context is canceled.
func (s *Server) drain(cancelConns context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	if s.shutdownTimeout > 0 {
		s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
		select {
		case <-done:
			return
		case <-time.After(s.shutdownTimeout):
			// Timeout expired, proceed with shutdown
		case <-s.shutdownNow:
			s.logger.Debug("shutdown timeout bypassed via Close()")
		}
	}

	cancelConns()
	<-done
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

func (s *Server) setShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
// Any blocked Accept calls will return with an error.
func (s *Server) Close() error {
	s.setShutdown()
	s.closeOnce.Do(func() {
		close(s.shutdownNow)
	})
	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// ActiveConns returns the number of handlers currently running.
func (s *Server) ActiveConns() int64 {
	return s.active.Load()
}
