package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("builds with defaults", func(t *testing.T) {
		log, err := New(Config{Level: "info"})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		log.Info("hello")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		log, err := New(Config{Level: "shouting"})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if log.Core().Enabled(-1) { // zapcore.DebugLevel
			t.Error("Expected debug to be disabled at the fallback level")
		}
	})

	t.Run("writes to the rotated file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "mailroom.log")

		log, err := New(Config{Level: "info", LogFile: logFile})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		log.Info("file sink check")
		_ = log.Sync()

		content, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if !strings.Contains(string(content), "file sink check") {
			t.Errorf("Expected log line in file, got: %s", content)
		}
	})
}
