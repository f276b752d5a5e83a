// Package protocol defines JSON-RPC 2.0 message structures for the
// agent/host permission protocol.
//
// The proxy sits on a duplex JSON-RPC stream between a coding agent and
// its host. When the agent asks the host for permission to run a tool, the
// request carries the tool call being adjudicated; the proxy decodes these
// messages, checks the paths the tool would touch, and either answers the
// request itself or lets it through to the host's normal approval flow.
//
// JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification
package protocol

import (
	"encoding/json"
	"strings"
)

// MethodRequestPermission is the session-scoped permission-request method
// the proxy intercepts. Everything else on the stream passes through.
const MethodRequestPermission = "session/request_permission"

// Request represents a JSON-RPC 2.0 request message.
type Request struct {
	// JSONRPC must be exactly "2.0" per specification.
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier. Can be string, number, or null.
	// Kept raw so a synthesized response echoes it byte-for-byte;
	// correlation on both sides of the stream is id-based.
	// Notifications (requests without ID) do not expect a response.
	ID json.RawMessage `json:"id,omitempty"`

	// Method is the name of the RPC method to invoke.
	Method string `json:"method"`

	// Params contains method-specific parameters, parsed lazily per method.
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response message.
type Response struct {
	JSONRPC string `json:"jsonrpc"`

	// ID must match the request ID this response corresponds to.
	ID json.RawMessage `json:"id,omitempty"`

	// Result and Error are mutually exclusive.
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Outcome tokens a host may return for a permission request.
const (
	OutcomeAllowOnce    = "allow_once"
	OutcomeAllowAlways  = "allow_always"
	OutcomeRejectOnce   = "reject_once"
	OutcomeRejectAlways = "reject_always"
	OutcomeCancelled    = "cancelled"
)

// ToolCall describes the tool invocation a permission request adjudicates.
type ToolCall struct {
	ToolCallID string `json:"toolCallId"`

	// Name is the tool identifier, e.g. "Read", "Edit", "Bash".
	Name string `json:"name"`

	// Input is the tool's argument object, kept raw; path extraction is
	// tool-specific and handled by the proxy.
	Input json.RawMessage `json:"input,omitempty"`
}

// PermissionRequestParams is the params object of a
// session/request_permission request.
type PermissionRequestParams struct {
	SessionID string   `json:"sessionId"`
	ToolCall  ToolCall `json:"toolCall"`

	// Options lists the outcome tokens the agent will accept, e.g.
	// allow_once, reject_always. The proxy only ever answers allow_once
	// or an error, both universally understood.
	Options []PermissionOption `json:"options,omitempty"`
}

// PermissionOption is one outcome the host UI may offer.
type PermissionOption struct {
	OptionID string `json:"optionId"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// PermissionOutcome is the result object of a granted permission request.
type PermissionOutcome struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// ErrCodeAccessDenied is the error code for a permission request denied by
// the pattern catalog (custom range -32000 to -32099).
const ErrCodeAccessDenied = -32001

// AccessDeniedData is the error.data payload of a synthesized deny. It
// carries enough structure for the caller to render a block message of the
// form "Access to <path> denied. <reason>".
type AccessDeniedData struct {
	Path     string `json:"path"`
	Reason   string `json:"reason"`
	Decision string `json:"decision"`
	Level    string `json:"level,omitempty"`
}

// IsPermissionRequest reports whether the request is a permission request
// the proxy should adjudicate. Case-insensitive on the method name to
// prevent bypass via "Session/Request_Permission"; notifications carry no
// id and get no response, so they always pass through.
func (r *Request) IsPermissionRequest() bool {
	return strings.EqualFold(r.Method, MethodRequestPermission) && len(r.ID) > 0
}

// PermissionParams parses the request's params as a permission request.
func (r *Request) PermissionParams() (*PermissionRequestParams, error) {
	var params PermissionRequestParams
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// NewAccessDeniedError builds the deny response for a blocked permission
// request, echoing the inbound request id.
func NewAccessDeniedError(requestID json.RawMessage, path, reason, level string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      requestID,
		Error: &Error{
			Code:    ErrCodeAccessDenied,
			Message: "Access denied",
			Data: AccessDeniedData{
				Path:     path,
				Reason:   reason,
				Decision: "deny",
				Level:    level,
			},
		},
	}
}

// NewAllowOnceResponse builds the success response granting a permission
// request for this one tool call, echoing the inbound request id.
func NewAllowOnceResponse(requestID json.RawMessage) (*Response, error) {
	result, err := json.Marshal(PermissionOutcome{Outcome: OutcomeAllowOnce})
	if err != nil {
		return nil, err
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      requestID,
		Result:  result,
	}, nil
}
