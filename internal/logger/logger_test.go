package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelInfo)

	logger.Info("テストメッセージ", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力がJSONでない: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "テストメッセージ" {
		t.Errorf("msg = %v, want テストメッセージ", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, slog.LevelWarn)

	logger.Info("出力されないはず")
	if buf.Len() != 0 {
		t.Errorf("Warnレベル設定でInfoが出力された: %s", buf.String())
	}

	logger.Warn("出力されるはず")
	if buf.Len() == 0 {
		t.Error("Warnが出力されなかった")
	}
}
