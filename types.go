package copilotsdk

import (
	"github.com/copilotstream/copilot-sdk-go/internal/config"
	"github.com/copilotstream/copilot-sdk-go/internal/event"
	"github.com/copilotstream/copilot-sdk-go/internal/mcp"
	"github.com/copilotstream/copilot-sdk-go/internal/session"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the behavior of the Copilot client.
type Options = config.Options

// DefaultRequestTimeout bounds each RPC call to the CLI when the caller
// does not override it.
const DefaultRequestTimeout = config.DefaultRequestTimeout

// ===== Sessions =====

// Session is a single conversation with the CLI. Create one with
// Client.CreateSession or Client.ResumeSession.
type Session = session.Session

// SessionConfig describes how a session should be created.
type SessionConfig = session.Config

// MessageOptions describes one message sent into a session.
type MessageOptions = session.MessageOptions

// ===== Custom Tools =====

// Tool is a custom tool exposed to the model for one session.
// The Handler runs in this process when the model invokes the tool.
type Tool = session.Tool

// ToolHandler runs a custom tool. The returned value becomes the tool
// result; a non-nil error becomes a failed tool result.
type ToolHandler = session.ToolHandler

// ===== Permissions =====

// PermissionRequest is the CLI asking whether it may perform an action,
// such as running a shell command or writing a file.
type PermissionRequest = session.PermissionRequest

// PermissionDecision is the answer to a PermissionRequest.
type PermissionDecision = session.PermissionDecision

// PermissionHandler decides permission prompts from the CLI.
type PermissionHandler = session.PermissionHandler

// ===== Events =====

// Event is a single session event streamed from the CLI.
type Event = event.Event

// Event type constants.
const (
	// EventMessageDelta carries an incremental chunk of assistant output.
	EventMessageDelta = event.TypeMessageDelta
	// EventMessage carries a complete assistant message.
	EventMessage = event.TypeMessage
	// EventIdle marks the end of a turn.
	EventIdle = event.TypeIdle
	// EventError marks a turn that failed.
	EventError = event.TypeError
	// EventUsage reports token accounting for a turn.
	EventUsage = event.TypeUsage
	// EventToolStarted reports that a built-in tool began running.
	EventToolStarted = event.TypeToolStarted
	// EventToolFinished reports that a built-in tool finished.
	EventToolFinished = event.TypeToolFinished
)

// MessageDelta is the payload of an EventMessageDelta event.
type MessageDelta = event.MessageDelta

// AssistantMessage is the payload of an EventMessage event.
type AssistantMessage = event.Message

// SessionError is the payload of an EventError event.
type SessionError = event.SessionError

// Usage is the payload of an EventUsage event.
type Usage = event.Usage

// ToolActivity is the payload of tool started and finished events.
type ToolActivity = event.ToolActivity

// ===== MCP Server Configuration =====

// MCPServerConfig is the interface for MCP server configurations.
type MCPServerConfig = mcp.ServerConfig

// MCPServerType identifies how the CLI reaches an MCP server.
type MCPServerType = mcp.ServerType

// MCP server type constants.
const (
	// MCPServerTypeStdio uses stdio for communication.
	MCPServerTypeStdio = mcp.ServerTypeStdio
	// MCPServerTypeSSE uses Server-Sent Events.
	MCPServerTypeSSE = mcp.ServerTypeSSE
	// MCPServerTypeHTTP uses HTTP for communication.
	MCPServerTypeHTTP = mcp.ServerTypeHTTP
	// MCPServerTypeSDK uses an in-process SDK server.
	MCPServerTypeSDK = mcp.ServerTypeSDK
)

// MCPStdioServerConfig configures a stdio-based MCP server that the CLI
// spawns itself.
type MCPStdioServerConfig = mcp.StdioServerConfig

// MCPSSEServerConfig configures a Server-Sent Events MCP server.
type MCPSSEServerConfig = mcp.SSEServerConfig

// MCPHTTPServerConfig configures an HTTP-based MCP server.
type MCPHTTPServerConfig = mcp.HTTPServerConfig

// MCPSdkServerConfig configures an SDK-provided MCP server running in
// this process. Build one with CreateSdkMcpServer.
type MCPSdkServerConfig = mcp.SdkServerConfig
