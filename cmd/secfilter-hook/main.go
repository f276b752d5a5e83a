// secfilter-hook - pre-tool-use hook adapter
//
// Reads a tool invocation as JSON from stdin, extracts the file paths the
// tool would touch, and checks each against the security filter. A denied
// path blocks the tool call: the block message goes to stderr and the
// process exits 2. Exit 0 means proceed.
//
// Input shape:
//
//	{"tool_name": "Read", "tool_input": {"file_path": "~/.ssh/id_rsa"}}
//
// Environment:
//
//	SECFILTER_CATALOG      path to a YAML pattern catalog (default: built-in)
//	SECFILTER_AUDIT        path to the audit log file (default: no audit)
//	SECFILTER_INTERACTIVE  "1" to prompt the user on pass decisions instead
//	                       of letting the tool call proceed silently
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/opencode-security/secfilter/pkg/audit"
	"github.com/opencode-security/secfilter/pkg/filter"
	"github.com/opencode-security/secfilter/pkg/patterns"
	"github.com/opencode-security/secfilter/pkg/proxy"
	"github.com/opencode-security/secfilter/pkg/ui"
)

const (
	exitProceed = 0
	exitBlocked = 2
)

type hookInput struct {
	ToolName  string          `json:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input"`
}

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.New(os.Stderr, "", 0)

	var in hookInput
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		// Malformed input is not ours to block; the caller decides what a
		// silent hook means.
		return exitProceed
	}

	paths := proxy.ExtractPaths(in.ToolName, in.ToolInput)
	if len(paths) == 0 {
		return exitProceed
	}

	cat := patterns.DefaultCatalog()
	if catalogPath := os.Getenv("SECFILTER_CATALOG"); catalogPath != "" {
		loaded, err := patterns.LoadCatalogFile(catalogPath)
		if err != nil {
			logger.Printf("secfilter-hook: failed to load catalog: %v", err)
			return exitBlocked
		}
		cat = loaded
	}

	auditLogger := audit.NewNopLogger()
	if auditPath := os.Getenv("SECFILTER_AUDIT"); auditPath != "" {
		fileLogger, err := audit.NewLogger(&audit.Config{FilePath: auditPath})
		if err != nil {
			logger.Printf("secfilter-hook: failed to open audit log: %v", err)
		} else {
			auditLogger = fileLogger
			defer func() { _ = auditLogger.Close() }()
		}
	}

	f := filter.New(cat)
	op := patterns.ClassifyOperation(in.ToolName)
	interactive := os.Getenv("SECFILTER_INTERACTIVE") == "1" && !ui.IsHeadless()

	var prompter *ui.Prompter
	if interactive {
		prompter = ui.NewPrompter(nil)
		prompter.SetWarnLogger(logger.Printf)
	}

	for _, path := range paths {
		result := f.Check(path, op)
		logDecision(auditLogger, in.ToolName, op, result)

		switch result.Decision {
		case patterns.DecisionDeny:
			fmt.Fprintf(os.Stderr, "SECURITY BLOCK: Access to %s denied. %s\n", path, result.Reason)
			return exitBlocked
		case patterns.DecisionPass:
			if prompter != nil {
				reason := fmt.Sprintf("No security pattern matched %s.", path)
				if !prompter.AskUser(in.ToolName, path, reason) {
					fmt.Fprintf(os.Stderr, "SECURITY BLOCK: Access to %s denied. User declined the request\n", path)
					return exitBlocked
				}
			}
		}
	}

	return exitProceed
}

func logDecision(auditLogger *audit.Logger, tool string, op patterns.Operation, result filter.CheckResult) {
	entry := &audit.Entry{
		Tool:          tool,
		Operation:     string(op),
		Path:          result.Path,
		CanonicalPath: result.CanonicalPath,
		Reason:        result.Reason,
	}
	switch result.Decision {
	case patterns.DecisionAllow:
		entry.Decision = audit.DecisionAllow
	case patterns.DecisionDeny:
		entry.Decision = audit.DecisionDeny
	default:
		entry.Decision = audit.DecisionPass
	}
	if result.MatchedLevel.Valid() {
		entry.Level = result.MatchedLevel.String()
	}
	if result.MatchedPattern != nil {
		entry.Pattern = result.MatchedPattern.Pattern
	}
	auditLogger.Log(entry)
}
