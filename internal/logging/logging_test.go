package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestU_ParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"[Unit] ParseLevel: debug", "debug", slog.LevelDebug, false},
		{"[Unit] ParseLevel: info", "info", slog.LevelInfo, false},
		{"[Unit] ParseLevel: empty", "", slog.LevelInfo, false},
		{"[Unit] ParseLevel: warning", "warning", slog.LevelWarn, false},
		{"[Unit] ParseLevel: warn alias", "WARN", slog.LevelWarn, false},
		{"[Unit] ParseLevel: error", "error", slog.LevelError, false},
		{"[Unit] ParseLevel: unknown", "verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestU_NewWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, LevelWarning, FormatText)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	logger.Info("hidden message")
	logger.Warn("visible message")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Error("info message should be filtered at warning level")
	}
	if !strings.Contains(out, "visible message") {
		t.Error("warn message should be logged")
	}
}

func TestU_NewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, LevelInfo, FormatJSON)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	logger.Info("key parsed", "type", "rsa")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "key parsed" || record["type"] != "rsa" {
		t.Errorf("unexpected record %v", record)
	}
}

func TestU_New_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cryptokit.log")
	logger, closer, err := New(Settings{
		Level:      LevelInfo,
		File:       path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("info message")
	logger.Error("error message")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(content)
	for _, want := range []string{"info message", "error message", `"level":"INFO"`, `"level":"ERROR"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q", want)
		}
	}
}

func TestU_New_InvalidLevel(t *testing.T) {
	if _, _, err := New(Settings{Level: "loud"}); err == nil {
		t.Error("New() should reject an unknown level")
	}
}
