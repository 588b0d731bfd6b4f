package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger(Config{Level: "DEBUG"})
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}

	logger = NewLogger(Config{Level: "nonsense"})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("unknown level should fall back to info, got %s", logger.GetLevel())
	}

	logger = NewLogger(Config{})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("empty level should default to info, got %s", logger.GetLevel())
	}
}

func TestLogWriterSelectsConsole(t *testing.T) {
	if _, ok := logWriter(Config{Format: "console"}).(zerolog.ConsoleWriter); !ok {
		t.Fatal("console format should use ConsoleWriter")
	}
	if _, ok := logWriter(Config{Format: "json"}).(zerolog.ConsoleWriter); ok {
		t.Fatal("json format should not use ConsoleWriter")
	}
}
