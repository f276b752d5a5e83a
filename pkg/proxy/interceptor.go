// Package proxy implements interception of the agent/host permission
// protocol.
//
// The proxy watches agent-to-host JSON-RPC traffic for permission
// requests. For each one it extracts the file paths the tool call would
// touch and consults the security filter: a deny answers the request with
// an error and drops it, an across-the-board allow grants it without
// bothering a human, and anything the catalog has no opinion on is
// forwarded so the host's normal approval prompt still happens.
package proxy

import (
	"encoding/json"
	"log"

	"github.com/opencode-security/secfilter/pkg/audit"
	"github.com/opencode-security/secfilter/pkg/filter"
	"github.com/opencode-security/secfilter/pkg/patterns"
	"github.com/opencode-security/secfilter/pkg/protocol"
)

// Interceptor adjudicates permission-request messages on the agent→host
// stream. All other traffic, in either direction, passes through.
type Interceptor struct {
	filter *filter.Filter
	audit  *audit.Logger
	logger *log.Logger
}

// NewInterceptor builds an interceptor. A nil audit logger disables audit
// output; logger is the operational (stderr) logger and must not be nil.
func NewInterceptor(f *filter.Filter, auditLog *audit.Logger, logger *log.Logger) *Interceptor {
	if auditLog == nil {
		auditLog = audit.NewNopLogger()
	}
	return &Interceptor{
		filter: f,
		audit:  auditLog,
		logger: logger,
	}
}

// ProcessAgentMessage decides the fate of one agent→host message.
//
// Returns (response, false) when the proxy answers the request itself:
// the original message must not be forwarded, and the response goes back
// to the agent. Returns (nil, true) when the message should be forwarded
// verbatim. A non-permission message, an unparseable one, or a tool call
// naming no paths all forward; at most one response is ever produced per
// inbound message, and its id always equals the inbound id.
func (ic *Interceptor) ProcessAgentMessage(raw []byte) (*protocol.Response, bool) {
	var req protocol.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, true
	}
	if !req.IsPermissionRequest() {
		return nil, true
	}

	params, err := req.PermissionParams()
	if err != nil {
		ic.logger.Printf("malformed permission request params (id=%s): %v", string(req.ID), err)
		return nil, true
	}

	tool := params.ToolCall.Name
	paths := ExtractPaths(tool, params.ToolCall.Input)
	if len(paths) == 0 {
		return nil, true
	}

	op := patterns.ClassifyOperation(tool)
	requestID := string(req.ID)
	sawPass := false

	for _, path := range paths {
		result := ic.filter.Check(path, op)
		ic.logDecision(tool, op, requestID, result)

		switch result.Decision {
		case patterns.DecisionDeny:
			// First deny short-circuits; the request is never forwarded.
			ic.logger.Printf("DENY %s %s: %s", tool, path, result.Reason)
			return protocol.NewAccessDeniedError(req.ID, path, result.Reason, levelName(result.MatchedLevel)), false
		case patterns.DecisionPass:
			sawPass = true
		}
	}

	if sawPass {
		// The catalog had no opinion on at least one path; hand the
		// request to the host so a human decides.
		return nil, true
	}

	resp, err := protocol.NewAllowOnceResponse(req.ID)
	if err != nil {
		ic.logger.Printf("failed to build allow response (id=%s): %v", requestID, err)
		return nil, true
	}
	ic.logger.Printf("ALLOW %s %v", tool, paths)
	return resp, false
}

func (ic *Interceptor) logDecision(tool string, op patterns.Operation, requestID string, result filter.CheckResult) {
	entry := &audit.Entry{
		Tool:          tool,
		Operation:     string(op),
		Path:          result.Path,
		CanonicalPath: result.CanonicalPath,
		Decision:      auditDecision(result.Decision),
		Level:         levelName(result.MatchedLevel),
		Reason:        result.Reason,
		RequestID:     requestID,
	}
	if result.MatchedPattern != nil {
		entry.Pattern = result.MatchedPattern.Pattern
	}
	ic.audit.Log(entry)
}

func auditDecision(d patterns.Decision) audit.Decision {
	switch d {
	case patterns.DecisionAllow:
		return audit.DecisionAllow
	case patterns.DecisionDeny:
		return audit.DecisionDeny
	default:
		return audit.DecisionPass
	}
}

func levelName(level patterns.SpecificityLevel) string {
	if !level.Valid() {
		return ""
	}
	return level.String()
}
