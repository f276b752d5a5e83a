// Package audit provides structured audit logging for filter decisions.
//
// CRITICAL: This logger writes ONLY to a file (secfilter-audit.jsonl),
// NEVER to stdout. stdout is reserved exclusively for JSON-RPC transport
// between agent and host; writing logs there would corrupt the stream.
//
// Log entries are written in JSON Lines format (one JSON object per line)
// to support streaming consumption by log aggregators and SIEM systems.
package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Decision is the filter outcome recorded for a checked path.
type Decision string

const (
	// DecisionAllow - the catalog allowed the path; no human consulted.
	DecisionAllow Decision = "ALLOW"
	// DecisionDeny - the catalog denied the path; the tool call was blocked.
	DecisionDeny Decision = "DENY"
	// DecisionPass - no pattern matched; the request was forwarded to the
	// host's normal approval flow.
	DecisionPass Decision = "PASS"
)

// Entry is one audit record: a single path checked during one tool call.
//
// Example JSON output:
//
//	{
//	  "timestamp": "2026-08-27T10:30:45.123Z",
//	  "tool": "Read",
//	  "operation": "read",
//	  "path": "~/.ssh/id_rsa",
//	  "canonical_path": "/home/user/.ssh/id_rsa",
//	  "decision": "DENY",
//	  "level": "file_name",
//	  "reason": "Blocked by ... (SSH private key)",
//	  "request_id": "42"
//	}
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	Tool          string    `json:"tool,omitempty"`
	Operation     string    `json:"operation,omitempty"`
	Path          string    `json:"path"`
	CanonicalPath string    `json:"canonical_path,omitempty"`
	Decision      Decision  `json:"decision"`
	Level         string    `json:"level,omitempty"`
	Pattern       string    `json:"pattern,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Logger writes filter decisions to a JSONL file.
//
// Thread-safety: Logger is safe for concurrent use; file writes are
// serialized by a mutex. Every entry carries the run id assigned at
// construction so one proxy session's records can be correlated later.
type Logger struct {
	slogger *slog.Logger
	file    *os.File
	mu      sync.Mutex
	runID   string
}

// Config holds configuration for the audit logger.
type Config struct {
	// FilePath is the path to the audit log file.
	// Default: "secfilter-audit.jsonl" in the current directory.
	FilePath string
}

// DefaultConfig returns the default audit logger configuration.
func DefaultConfig() *Config {
	return &Config{FilePath: "secfilter-audit.jsonl"}
}

// NewLogger creates an audit logger appending to the configured file.
//
// Returns an error if the file cannot be opened or the path points at
// stdout; stdout is the transport and must stay clean.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.FilePath == "" {
		cfg.FilePath = "secfilter-audit.jsonl"
	}

	if isStdoutPath(cfg.FilePath) {
		return nil, fmt.Errorf("audit logger MUST NOT write to stdout (path: %s); stdout is reserved for JSON-RPC transport", cfg.FilePath)
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file %q: %w", cfg.FilePath, err)
	}

	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		// Each entry carries its own timestamp attr, which preserves the
		// caller-supplied Entry.Timestamp; drop slog's record time so the
		// line has a single authoritative timestamp.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})

	return &Logger{
		slogger: slog.New(handler),
		file:    file,
		runID:   uuid.NewString(),
	}, nil
}

// isStdoutPath checks if the given path would write to stdout.
func isStdoutPath(path string) bool {
	stdoutPaths := []string{
		"/dev/stdout",
		"/dev/fd/1",
		"/proc/self/fd/1",
	}
	for _, p := range stdoutPaths {
		if path == p {
			return true
		}
	}
	return false
}

// NewNopLogger creates a no-op logger that discards all entries.
// Useful for testing or when audit logging is disabled.
func NewNopLogger() *Logger {
	handler := slog.NewJSONHandler(io.Discard, nil)
	return &Logger{
		slogger: slog.New(handler),
		runID:   uuid.NewString(),
	}
}

// RunID returns the identifier assigned to this logger's session.
func (l *Logger) RunID() string {
	return l.runID
}

// Log writes an audit entry. Safe for concurrent use.
func (l *Logger) Log(entry *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	attrs := []slog.Attr{
		slog.Time("timestamp", entry.Timestamp),
		slog.String("run_id", l.runID),
		slog.String("decision", string(entry.Decision)),
		slog.String("path", entry.Path),
	}
	if entry.CanonicalPath != "" {
		attrs = append(attrs, slog.String("canonical_path", entry.CanonicalPath))
	}
	if entry.Tool != "" {
		attrs = append(attrs, slog.String("tool", entry.Tool))
	}
	if entry.Operation != "" {
		attrs = append(attrs, slog.String("operation", entry.Operation))
	}
	if entry.Level != "" {
		attrs = append(attrs, slog.String("level", entry.Level))
	}
	if entry.Pattern != "" {
		attrs = append(attrs, slog.String("pattern", entry.Pattern))
	}
	if entry.Reason != "" {
		attrs = append(attrs, slog.String("reason", entry.Reason))
	}
	if entry.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", entry.RequestID))
	}

	l.slogger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Sync flushes any buffered data to the underlying file.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Sync()
	}
	return nil
}
