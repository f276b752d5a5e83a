// Package audit tests for the decision audit logger.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewLoggerCreatesFile tests that NewLogger creates the audit file.
func TestNewLoggerCreatesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test-audit.jsonl")

	logger, err := NewLogger(&Config{FilePath: logPath})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	defer func() { _ = logger.Close() }()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("NewLogger() did not create audit file")
	}
	if logger.RunID() == "" {
		t.Error("NewLogger() should assign a run id")
	}
}

// TestLoggerRejectsStdout tests that the logger refuses to write to stdout.
func TestLoggerRejectsStdout(t *testing.T) {
	stdoutPaths := []string{
		"/dev/stdout",
		"/dev/fd/1",
		"/proc/self/fd/1",
	}

	for _, path := range stdoutPaths {
		_, err := NewLogger(&Config{FilePath: path})
		if err == nil {
			t.Errorf("NewLogger(%q) should have failed but succeeded", path)
			continue
		}
		if !strings.Contains(err.Error(), "stdout") {
			t.Errorf("Error should mention stdout, got: %v", err)
		}
	}
}

// TestLogWritesParseableEntries tests that logged entries round-trip as
// JSON lines carrying the decision fields.
func TestLogWritesParseableEntries(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test-audit.jsonl")

	logger, err := NewLogger(&Config{FilePath: logPath})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Log(&Entry{
		Tool:          "Read",
		Operation:     "read",
		Path:          "~/.ssh/id_rsa",
		CanonicalPath: "/home/u/.ssh/id_rsa",
		Decision:      DecisionDeny,
		Level:         "file_name",
		Reason:        "Blocked by pattern (SSH private key)",
		RequestID:     "42",
	})
	logger.Log(&Entry{
		Path:     "/tmp/safe.txt",
		Decision: DecisionPass,
		Reason:   "No matching patterns",
	})

	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit file has %d lines, want 2", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first["decision"] != "DENY" {
		t.Errorf("first decision = %v, want DENY", first["decision"])
	}
	if first["tool"] != "Read" || first["canonical_path"] != "/home/u/.ssh/id_rsa" {
		t.Errorf("first entry fields = %v", first)
	}
	if first["run_id"] != logger.RunID() {
		t.Errorf("run_id = %v, want %v", first["run_id"], logger.RunID())
	}
	if _, ok := first["timestamp"]; !ok {
		t.Error("entry should carry a timestamp field")
	}
	if _, ok := first["time"]; ok {
		t.Error("entry should not duplicate the timestamp under slog's time key")
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("second line is not valid JSON: %v", err)
	}
	if second["decision"] != "PASS" {
		t.Errorf("second decision = %v, want PASS", second["decision"])
	}
}

// TestLogAppendsAcrossLoggers tests that reopening the same file preserves
// the existing audit trail.
func TestLogAppendsAcrossLoggers(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test-audit.jsonl")

	for i := 0; i < 2; i++ {
		logger, err := NewLogger(&Config{FilePath: logPath})
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		logger.Log(&Entry{Path: "/x", Decision: DecisionPass})
		_ = logger.Close()
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("audit file has %d lines after two sessions, want 2", len(lines))
	}
}

// TestNopLoggerDiscards tests that the no-op logger is safe to use.
func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNopLogger()
	logger.Log(&Entry{Path: "/x", Decision: DecisionAllow})
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
