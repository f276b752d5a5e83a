// secfilter-proxy - permission-protocol interception proxy
//
// The proxy wraps a coding agent as a subprocess and sits on the JSON-RPC
// stream between the agent and its host:
//
//	┌──────────┐     ┌──────────────────┐     ┌─────────────┐
//	│   Host   │────▶│  secfilter-proxy │────▶│    Agent    │
//	│  (IDE)   │◀────│  pattern catalog │◀────│ (subprocess)│
//	└──────────┘     └──────────────────┘     └─────────────┘
//
// Host-to-agent traffic passes through untouched. Agent-to-host traffic is
// watched for session/request_permission messages: the proxy checks every
// file path the tool call would touch against the security pattern
// catalog, answers the request itself when the catalog is decisive (deny
// with a JSON-RPC error, allow with outcome allow_once), and forwards it
// to the host's own approval flow when the catalog has no opinion.
//
// Usage:
//
//	# Wrap an agent with the built-in catalog
//	secfilter-proxy --agent "opencode serve"
//
//	# Use a custom catalog and a dedicated audit file
//	secfilter-proxy --agent "opencode serve" --catalog patterns.yaml --audit /var/log/secfilter.jsonl
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/opencode-security/secfilter/pkg/audit"
	"github.com/opencode-security/secfilter/pkg/filter"
	"github.com/opencode-security/secfilter/pkg/patterns"
	"github.com/opencode-security/secfilter/pkg/proxy"
)

// Config holds the proxy's runtime configuration parsed from flags.
type Config struct {
	// Agent is the command to run as the agent subprocess.
	Agent string

	// CatalogPath is an optional YAML pattern catalog; empty selects the
	// built-in defaults.
	CatalogPath string

	// AuditPath is the path to the audit log file.
	// CRITICAL: must NOT be stdout or any path that writes to stdout.
	AuditPath string

	// Verbose enables detailed logging of intercepted messages.
	Verbose bool
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `secfilter-proxy - permission-protocol interception proxy

Wraps a coding agent and adjudicates its permission requests against a
security pattern catalog before they reach the host.

USAGE:
  secfilter-proxy --agent "command" [options]

DECISIONS:
  deny   - the request is answered with a JSON-RPC error (-32001) and
           never forwarded; the tool call cannot proceed.
  allow  - the request is answered with outcome allow_once; no human
           is consulted.
  pass   - the catalog has no opinion; the request is forwarded so the
           host's normal approval prompt still happens.

AUDIT LOGS:
  Every checked path is logged to the audit file (JSONL).
  View logs: cat secfilter-audit.jsonl | jq '.'
  Find denials: cat secfilter-audit.jsonl | jq 'select(.decision == "DENY")'

OPTIONS:
`)
		flag.PrintDefaults()
	}

	flag.StringVar(&cfg.Agent, "agent", "", "Command to run as the agent subprocess (required)")
	flag.StringVar(&cfg.CatalogPath, "catalog", "", "Path to pattern catalog YAML (default: built-in catalog)")
	flag.StringVar(&cfg.AuditPath, "audit", "secfilter-audit.jsonl", "Path to audit log file")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable verbose logging to stderr")

	flag.Parse()

	if cfg.Agent == "" {
		fmt.Fprintln(os.Stderr, "Error: --agent flag is required")
		fmt.Fprintln(os.Stderr, "Run 'secfilter-proxy -h' for usage information")
		os.Exit(1)
	}

	return cfg
}

func main() {
	cfg := parseFlags()

	// CRITICAL STREAM SAFETY:
	// - stdout carries JSON-RPC toward the host
	// - stderr carries operational logs
	// - audit records go to a FILE
	// Writing logs to stdout would corrupt the protocol stream.
	logger := log.New(os.Stderr, "[secfilter-proxy] ", log.LstdFlags|log.Lmsgprefix)

	cat := patterns.DefaultCatalog()
	if cfg.CatalogPath != "" {
		loaded, err := patterns.LoadCatalogFile(cfg.CatalogPath)
		if err != nil {
			logger.Fatalf("Failed to load catalog: %v", err)
		}
		cat = loaded
		logger.Printf("Loaded catalog from %s (%d patterns)", cfg.CatalogPath, cat.Len())
	} else {
		logger.Printf("Using built-in catalog (%d patterns)", cat.Len())
	}

	auditLogger, err := audit.NewLogger(&audit.Config{FilePath: cfg.AuditPath})
	if err != nil {
		logger.Fatalf("Failed to initialize audit logger: %v", err)
	}
	defer func() { _ = auditLogger.Close() }()
	logger.Printf("Audit logging to: %s (run %s)", cfg.AuditPath, auditLogger.RunID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	p, err := NewProxy(ctx, cfg, filter.New(cat), logger, auditLogger)
	if err != nil {
		logger.Fatalf("Failed to start proxy: %v", err)
	}

	// SIGTERM the subprocess first; force kill only if it lingers.
	go func() {
		sig := <-sigChan
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		p.Shutdown()

		select {
		case <-time.After(10 * time.Second):
			logger.Printf("Graceful shutdown timeout, forcing termination...")
			cancel()
		case <-ctx.Done():
		}
	}()

	exitCode := p.Run()

	if err := auditLogger.Sync(); err != nil {
		logger.Printf("Warning: failed to sync audit log: %v", err)
	}

	os.Exit(exitCode)
}

// Proxy manages the agent subprocess and the IO goroutines.
type Proxy struct {
	ctx         context.Context
	cfg         *Config
	interceptor *proxy.Interceptor
	logger      *log.Logger

	// cmd is the agent subprocess.
	cmd *exec.Cmd

	// agentStdin receives host traffic and synthesized responses, so
	// writes are serialized by mu.
	agentStdin  io.WriteCloser
	agentStdout io.ReadCloser

	wg sync.WaitGroup
	mu sync.Mutex
}

// NewProxy spawns the agent subprocess with piped stdin/stdout. The
// subprocess inherits our stderr so its own logs stay visible.
func NewProxy(ctx context.Context, cfg *Config, f *filter.Filter, logger *log.Logger, auditLogger *audit.Logger) (*Proxy, error) {
	// Simple space-split; quoted args need a shell wrapper.
	parts := strings.Fields(cfg.Agent)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty agent command")
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stderr = os.Stderr

	agentStdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	agentStdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent subprocess: %w", err)
	}
	logger.Printf("Started agent subprocess PID %d: %s", cmd.Process.Pid, cfg.Agent)

	return &Proxy{
		ctx:         ctx,
		cfg:         cfg,
		interceptor: proxy.NewInterceptor(f, auditLogger, logger),
		logger:      logger,
		cmd:         cmd,
		agentStdin:  agentStdin,
		agentStdout: agentStdout,
	}, nil
}

// Run starts the IO goroutines and blocks until the agent exits,
// returning its exit code.
func (p *Proxy) Run() int {
	p.wg.Add(1)
	go p.handleAgentToHost()

	go p.handleHostToAgent()

	err := p.cmd.Wait()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		p.logger.Printf("Agent subprocess error: %v", err)
		return 1
	}

	p.wg.Wait()
	return 0
}

// Shutdown requests graceful termination of the agent subprocess.
func (p *Proxy) Shutdown() {
	if p.cmd.Process != nil {
		p.logger.Printf("Terminating agent subprocess PID %d", p.cmd.Process.Pid)
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// handleAgentToHost reads the agent's stdout and intercepts permission
// requests. A synthesized response goes back down to the agent; everything
// else is forwarded to the host on our stdout. This is the enforcement
// point: once a deny response is emitted for a message, that message is
// never also forwarded.
func (p *Proxy) handleAgentToHost() {
	defer p.wg.Done()

	reader := bufio.NewReader(p.agentStdout)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				p.logger.Printf("Agent read error: %v", err)
			}
			return
		}

		trimmed := strings.TrimSpace(string(line))
		if trimmed == "" {
			continue
		}

		// Non-JSON output (agent log lines) is diverted to stderr so the
		// host's JSON-RPC stream stays clean.
		if !strings.HasPrefix(trimmed, "{") {
			p.logger.Printf("[agent stdout] %s", trimmed)
			continue
		}

		if p.cfg.Verbose {
			p.logger.Printf("→ [agent] %s", trimmed)
		}

		resp, forward := p.interceptor.ProcessAgentMessage(line)
		if forward {
			if _, err := os.Stdout.Write(line); err != nil {
				p.logger.Printf("Host write error: %v", err)
				return
			}
			continue
		}
		if resp != nil {
			p.sendResponseToAgent(resp)
		}
	}
}

// handleHostToAgent passes host traffic through to the agent unmodified.
// Responses the host sends for forwarded permission requests flow through
// here; their ids were untouched on the way up, so correlation holds.
func (p *Proxy) handleHostToAgent() {
	defer func() { _ = p.agentStdin.Close() }()

	reader := bufio.NewReader(os.Stdin)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF {
				p.logger.Printf("Host read error: %v", err)
			}
			return
		}

		if p.cfg.Verbose {
			p.logger.Printf("← [host] %s", strings.TrimSpace(string(line)))
		}

		p.mu.Lock()
		_, writeErr := p.agentStdin.Write(line)
		p.mu.Unlock()
		if writeErr != nil {
			p.logger.Printf("Agent write error: %v", writeErr)
			return
		}
	}
}

// sendResponseToAgent marshals a synthesized response and writes it to the
// agent's stdin, serialized against host passthrough writes.
func (p *Proxy) sendResponseToAgent(resp any) {
	data, err := json.Marshal(resp)
	if err != nil {
		p.logger.Printf("Failed to marshal response: %v", err)
		return
	}
	data = append(data, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.agentStdin.Write(data); err != nil {
		p.logger.Printf("Failed to write response to agent: %v", err)
	}
}
