package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stone-age-io/sysinfo/internal/config"
)

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("New() with invalid level should fail")
	}
}

func TestConsoleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newWithConsole(config.LoggingConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("newWithConsole() error: %v", err)
	}

	logger.Info("hidden message")
	logger.Warn("visible message")
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(out, "visible message") {
		t.Error("warn message missing from console output")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysinfo.log")
	var console bytes.Buffer

	logger, err := newWithConsole(config.LoggingConfig{
		Level:      "info",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &console)
	if err != nil {
		t.Fatalf("newWithConsole() error: %v", err)
	}

	logger.Info("written to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"written to file"`) {
		t.Errorf("log file missing JSON entry: %s", data)
	}
	if !strings.Contains(string(data), `"timestamp"`) {
		t.Errorf("log file missing timestamp key: %s", data)
	}
}
