package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v want %v", in, got, want)
		}
	}
}

func TestNewJSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Console: true, Format: "json", Stdout: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("board_sent", zap.String("fen", "8/8/8/8/8/8/8/8 w - - 0 1"))
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "board_sent" || entry["level"] != "debug" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "boardsync.log")
	logger, err := New(Options{Level: "info", ToFile: true, FilePath: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, "visible") || strings.Contains(out, "hidden") {
		t.Fatalf("log file = %q", out)
	}
	if !strings.Contains(out, " | ") {
		t.Fatalf("legacy separator missing: %q", out)
	}
}
