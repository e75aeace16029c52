package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_CreatesDirAndLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	log, err := NewLogger(dir, "", false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	// Directory should exist
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Info("test_message_from_logging_test")
	log.Debug("hidden_debug_message")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, "netprobe.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"test_message_from_logging_test"`) || !strings.Contains(string(b), `"ts":`) {
		t.Fatalf("unexpected log contents: %s", b)
	}
	if strings.Contains(string(b), "hidden_debug_message") {
		t.Fatal("debug entry written at info level")
	}
}

func TestNewLogger_Level(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(dir, "debug", false)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("visible_debug_message")
	_ = log.Sync()
	b, _ := os.ReadFile(filepath.Join(dir, "netprobe.log"))
	if !strings.Contains(string(b), "visible_debug_message") {
		t.Fatal("debug entry missing at debug level")
	}

	if _, err := NewLogger(dir, "loud", false); err == nil {
		t.Fatal("want error for unknown level")
	}
}
