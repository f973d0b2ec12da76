package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected development logger to enable debug")
	}
}

func TestNewWithOptionsLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewWithOptions(Options{Level: "warn"})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestNewWithOptionsRejectsBadLevel(t *testing.T) {
	t.Parallel()

	if _, err := NewWithOptions(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
