package session

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/copilotstream/copilot-sdk-go/internal/mcp"
)

// Caller issues RPC calls to the CLI on behalf of a session.
// It is implemented by the client.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// ToolHandler executes one invocation of a custom tool. The returned
// value is serialized into the tool result sent back to the CLI; a
// non-nil error becomes a failed tool result.
type ToolHandler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a custom tool exposed to the model for one session.
type Tool struct {
	// Name is the tool identifier the model invokes.
	Name string `json:"name"`

	// Description tells the model what the tool does.
	Description string `json:"description"`

	// Parameters is the JSON schema for the tool arguments.
	Parameters *jsonschema.Schema `json:"parameters,omitempty"`

	// Handler runs the tool. Not serialized.
	Handler ToolHandler `json:"-"`
}

// PermissionRequest is the CLI asking whether it may perform an action,
// such as running a shell command or writing a file.
type PermissionRequest struct {
	SessionID  string          `json:"sessionId"`
	Kind       string          `json:"kind"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// PermissionDecision answers a PermissionRequest.
type PermissionDecision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// PermissionHandler decides permission requests for a session.
type PermissionHandler func(ctx context.Context, req *PermissionRequest) PermissionDecision

// Config describes how a session should be created.
type Config struct {
	// Model is the model id for this session. Empty selects the
	// catalog default.
	Model string

	// Instructions is the system message for the session.
	Instructions string

	// Streaming requests incremental assistant.message_delta events.
	Streaming bool

	// Tools are custom tools serviced by this process.
	Tools []Tool

	// AvailableTools restricts the built-in tool set when non-empty.
	AvailableTools []string

	// ExcludedTools removes built-in tools by name.
	ExcludedTools []string

	// MCPServers configures MCP servers for this session.
	// Map key is the server name.
	MCPServers map[string]mcp.ServerConfig

	// OnPermissionRequest decides permission prompts from the CLI.
	// If nil, every request is denied.
	OnPermissionRequest PermissionHandler
}

// MessageOptions describes one message sent into a session.
type MessageOptions struct {
	// Prompt is the user message text.
	Prompt string

	// Attachments are file paths made available to the model for this
	// message.
	Attachments []string
}
