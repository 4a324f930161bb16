package linesock

import (
	"log/slog"
	"sync"
	"testing"
)

func TestLogger_Interface(t *testing.T) {
	// Verify that *slog.Logger implements our Logger interface
	var _ Logger = slog.Default()
}

func TestDefaultLogger(t *testing.T) {
	logger := defaultLogger()

	if logger == nil {
		t.Fatal("defaultLogger returned nil")
	}

	// Verify it's the slog default
	if logger != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
}

// mockLogger records the last entry of each level.
type mockLogger struct {
	mu          sync.Mutex
	debugCalled bool
	infoCalled  bool
	warnCalled  bool
	errorCalled bool
	lastMsg     string
	lastArgs    []any
}

func (l *mockLogger) record(called *bool, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*called = true
	l.lastMsg = msg
	l.lastArgs = args
}

func (l *mockLogger) Debug(msg string, args ...any) { l.record(&l.debugCalled, msg, args) }
func (l *mockLogger) Info(msg string, args ...any)  { l.record(&l.infoCalled, msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record(&l.warnCalled, msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(&l.errorCalled, msg, args) }

func TestConnLogger_PrefixesFields(t *testing.T) {
	mock := &mockLogger{}
	logger := newConnLogger(mock, "conn_id", "abc", "addr", "127.0.0.1:1")

	logger.Warn("decode fault", "error", "bad")
	if !mock.warnCalled {
		t.Fatal("Warn not forwarded")
	}
	if mock.lastMsg != "decode fault" {
		t.Errorf("lastMsg = %q, want %q", mock.lastMsg, "decode fault")
	}

	want := []any{"conn_id", "abc", "addr", "127.0.0.1:1", "error", "bad"}
	if len(mock.lastArgs) != len(want) {
		t.Fatalf("args = %v, want %v", mock.lastArgs, want)
	}
	for i := range want {
		if mock.lastArgs[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, mock.lastArgs[i], want[i])
		}
	}

	logger.Debug("d")
	logger.Info("i")
	logger.Error("e")
	if !mock.debugCalled || !mock.infoCalled || !mock.errorCalled {
		t.Error("not every level was forwarded")
	}
}

func TestConnLogger_DoesNotShareArgs(t *testing.T) {
	mock := &mockLogger{}
	logger := newConnLogger(mock, "conn_id", "abc")

	logger.Info("first", "k", 1)
	first := mock.lastArgs
	logger.Info("second", "k", 2)

	if first[3] != 1 {
		t.Errorf("earlier entry mutated: %v", first)
	}
}
