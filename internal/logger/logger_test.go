package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"faceann/internal/config"
)

func TestNewWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.Info("wrote %d files", 3)
	l.Warning("skipped %s", "a.jpg")
	l.Error("bad record %q", "b")

	out := buf.String()
	for _, want := range []string{"INFO", "wrote 3 files", "WARNING", "skipped a.jpg", "ERROR", `bad record "b"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "logger_test.go") {
		t.Errorf("Expected caller file in output, got:\n%s", out)
	}
}

func TestNewLogger_Files(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l := NewLogger(&config.Config{LogDirectory: dir})

	l.Warning("missing image %s", "x.jpg")

	data, err := os.ReadFile(filepath.Join(dir, "warning.log"))
	if err != nil {
		t.Fatalf("Failed to read warning.log: %v", err)
	}
	if !strings.Contains(string(data), "missing image x.jpg") {
		t.Errorf("warning.log does not contain entry: %s", data)
	}

	if err := l.CleanLogs("warning.log"); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "warning.log"))
	if len(data) != 0 {
		t.Errorf("Expected empty warning.log, got %q", data)
	}
}

func TestCleanLogs_NoDirectory(t *testing.T) {
	l := NewWriterLogger(&bytes.Buffer{})
	if err := l.CleanLogs("info.log"); err == nil {
		t.Error("Expected error without a log directory")
	}
}
