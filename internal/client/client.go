package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/copilotstream/copilot-sdk-go/internal/config"
	"github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/event"
	"github.com/copilotstream/copilot-sdk-go/internal/mcp"
	"github.com/copilotstream/copilot-sdk-go/internal/models"
	"github.com/copilotstream/copilot-sdk-go/internal/router"
	"github.com/copilotstream/copilot-sdk-go/internal/rpc"
	"github.com/copilotstream/copilot-sdk-go/internal/session"
	"github.com/copilotstream/copilot-sdk-go/internal/transport"
)

// pingTimeout bounds the connectivity check performed during Start.
const pingTimeout = 5 * time.Second

// Client drives one Copilot CLI instance.
type Client struct {
	log       *slog.Logger
	options   *config.Options
	transport config.Transport
	conn      *rpc.Conn
	router    *router.Router

	// Lifecycle management
	mu        sync.Mutex
	sessions  map[string]*session.Session
	connected bool
	closed    bool      // Tracks if Close() has been called
	closeOnce sync.Once // Ensures Close() only runs once
	done      chan struct{}
}

// Compile-time verification that Client can issue calls for sessions.
var _ session.Caller = (*Client)(nil)

// New creates a new client.
//
// The client is not connected after creation. Call Start() with options
// to connect.
func New() *Client {
	return &Client{
		sessions: make(map[string]*session.Session, 2),
		done:     make(chan struct{}),
	}
}

// Start establishes a connection to the Copilot CLI.
//
// Depending on options this spawns the CLI subprocess or dials an
// external CLI server, starts the RPC connection over it, and verifies
// liveness with a ping call.
//
// Returns CLINotFoundError if the CLI binary cannot be located, or
// ConnectionError if the process fails to start or does not answer the
// ping.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrClientAlreadyConnected
	}

	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c.log = log.With("component", "client")
	c.options = options
	c.router = router.New(log)

	c.transport = c.buildTransport(log, options)

	if err := c.transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	c.conn = rpc.NewConn(log, c.transport)

	// Handlers must be in place before the read loop starts so no
	// early CLI-initiated request hits an empty table.
	c.conn.SetNotificationSink(c.routeNotification)
	c.conn.RegisterHandler("tool.call", c.handleToolCall)
	c.conn.RegisterHandler("permission.request", c.handlePermissionRequest)

	// The connection runs on a background context: the caller's ctx may
	// carry an initialization timeout, and the client must stay
	// connected until Close().
	if err := c.conn.Start(context.Background()); err != nil {
		_ = c.transport.Close()

		return fmt.Errorf("start connection: %w", err)
	}

	if _, err := c.conn.Call(ctx, "ping", map[string]any{}, pingTimeout); err != nil {
		c.conn.Stop()
		_ = c.transport.Close()

		return &errors.ConnectionError{Err: fmt.Errorf("ping CLI: %w", err)}
	}

	c.connected = true
	c.log.Info("Client started successfully")

	return nil
}

// buildTransport picks the transport for the configured connection mode.
func (c *Client) buildTransport(log *slog.Logger, options *config.Options) config.Transport {
	switch {
	case options.Transport != nil:
		c.log.Debug("Using injected custom transport")

		return options.Transport
	case options.CLIURL != "":
		return transport.NewTCPTransport(log, options.CLIURL)
	default:
		return transport.NewCLITransport(log, options)
	}
}

// Call issues one RPC call to the CLI using the configured request
// timeout. It implements session.Caller.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !c.isConnected() {
		return nil, errors.ErrClientNotConnected
	}

	return c.conn.Call(ctx, method, params, c.options.EffectiveRequestTimeout())
}

// Ping verifies that the CLI is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", map[string]any{})

	return err
}

// CreateSession asks the CLI for a new conversation and returns its handle.
func (c *Client) CreateSession(ctx context.Context, cfg *session.Config) (*session.Session, error) {
	return c.establishSession(ctx, "session.create", "", cfg)
}

// ResumeSession reattaches to an existing session id. The CLI restores
// the conversation state; events for the session flow to new
// subscribers as they would for a created session.
func (c *Client) ResumeSession(ctx context.Context, id string, cfg *session.Config) (*session.Session, error) {
	if id == "" {
		return nil, &errors.RPCError{Code: errors.CodeInvalidParams, Message: "session id is required"}
	}

	return c.establishSession(ctx, "session.resume", id, cfg)
}

func (c *Client) establishSession(
	ctx context.Context,
	method string,
	resumeID string,
	cfg *session.Config,
) (*session.Session, error) {
	if cfg == nil {
		cfg = &session.Config{}
	}

	params := buildSessionParams(cfg, resumeID)

	result, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var created struct {
		SessionID string `json:"sessionId"`
	}

	if err := json.Unmarshal(result, &created); err != nil || created.SessionID == "" {
		return nil, &errors.ProtocolError{Reason: fmt.Sprintf("malformed %s result", method), Err: err}
	}

	sess := session.New(c.log, created.SessionID, c, c.router, cfg)
	sess.SetCleanup(func() { c.forgetSession(created.SessionID) })

	c.mu.Lock()
	c.sessions[created.SessionID] = sess
	c.mu.Unlock()

	c.log.Info("Session established", "session_id", created.SessionID, "method", method)

	return sess, nil
}

// buildSessionParams serializes a session.Config into session.create
// (or session.resume) parameters.
func buildSessionParams(cfg *session.Config, resumeID string) map[string]any {
	model := cfg.Model
	if model == "" {
		model = models.DefaultModelID
	}

	params := map[string]any{
		"model":     model,
		"streaming": cfg.Streaming,
	}

	if resumeID != "" {
		params["sessionId"] = resumeID
	}

	if cfg.Instructions != "" {
		params["instructions"] = cfg.Instructions
	}

	if len(cfg.Tools) > 0 {
		params["tools"] = cfg.Tools
	}

	if len(cfg.AvailableTools) > 0 {
		params["availableTools"] = cfg.AvailableTools
	}

	if len(cfg.ExcludedTools) > 0 {
		params["excludedTools"] = cfg.ExcludedTools
	}

	if len(cfg.MCPServers) > 0 {
		params["mcpServers"] = serializeMCPServers(cfg.MCPServers)
	}

	if cfg.OnPermissionRequest != nil {
		params["requestPermissions"] = true
	}

	return params
}

// serializeMCPServers converts server configs to their wire shape.
// In-process SDK servers are expanded to their tool list since the CLI
// cannot connect to them directly.
func serializeMCPServers(servers map[string]mcp.ServerConfig) map[string]any {
	out := make(map[string]any, len(servers))

	for name, cfg := range servers {
		sdkCfg, ok := cfg.(*mcp.SdkServerConfig)
		if !ok {
			out[name] = cfg

			continue
		}

		entry := map[string]any{
			"type": string(mcp.ServerTypeSDK),
			"name": sdkCfg.Name,
		}

		if instance, ok := sdkCfg.Instance.(mcp.ServerInstance); ok {
			entry["tools"] = instance.ListTools()
		}

		out[name] = entry
	}

	return out
}

// Session returns the live session handle for an id, if any.
func (c *Client) Session(id string) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[id]

	return sess, ok
}

func (c *Client) forgetSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, id)
}

// isConnected returns true if the client is connected.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Done returns a channel closed when the connection stops for any reason.
func (c *Client) Done() <-chan struct{} {
	if c.conn == nil {
		return c.done
	}

	return c.conn.Done()
}

// FatalError returns the error that stopped the connection, if any.
func (c *Client) FatalError() error {
	if c.conn == nil {
		return nil
	}

	return c.conn.FatalError()
}

// routeNotification is the RPC notification sink. It unwraps
// session.event notifications and hands them to the router; anything
// else is dropped with a diagnostic.
func (c *Client) routeNotification(method string, params json.RawMessage) {
	if method != "session.event" {
		c.log.Debug("Dropping unknown notification", "method", method)

		return
	}

	var note struct {
		SessionID string      `json:"sessionId"`
		Event     event.Event `json:"event"`
	}

	if err := json.Unmarshal(params, &note); err != nil {
		c.log.Warn("Dropping malformed session.event", "error", err)

		return
	}

	c.router.Dispatch(note.SessionID, &note.Event)
}

// handleToolCall services a tool.call request from the CLI by running
// the named tool registered on the owning session.
//
// An unregistered tool produces a structured failed tool result rather
// than an RPC error, so the model sees the failure and the turn
// continues.
func (c *Client) handleToolCall(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		SessionID string `json:"sessionId"`
		ToolCall  struct {
			ID        string          `json:"id"`
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"toolCall"`
	}

	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &errors.RPCError{Code: errors.CodeInvalidParams, Message: "malformed tool.call params"}
	}

	sess, ok := c.Session(req.SessionID)
	if !ok {
		return nil, &errors.RPCError{
			Code:    errors.CodeInvalidParams,
			Message: fmt.Sprintf("unknown session %q", req.SessionID),
		}
	}

	c.log.Debug("Handling tool call",
		"session_id", req.SessionID,
		"tool", req.ToolCall.Name,
		"tool_call_id", req.ToolCall.ID,
	)

	tool, ok := sess.Tool(req.ToolCall.Name)
	if !ok {
		if instance, found := sess.MCPTool(req.ToolCall.Name); found {
			return c.callMCPTool(ctx, instance, req.ToolCall.ID, req.ToolCall.Name, req.ToolCall.Arguments)
		}

		return toolCallResponse(req.ToolCall.ID,
			failedToolResult(fmt.Sprintf("tool not registered: %s", req.ToolCall.Name))), nil
	}

	value, err := tool.Handler(ctx, req.ToolCall.Arguments)
	if err != nil {
		c.log.Debug("Tool handler failed", "tool", req.ToolCall.Name, "error", err)

		return toolCallResponse(req.ToolCall.ID, failedToolResult(err.Error())), nil
	}

	return toolCallResponse(req.ToolCall.ID, successToolResult(value)), nil
}

// handlePermissionRequest services a permission.request from the CLI by
// asking the owning session's permission handler. Requests for unknown
// sessions are denied rather than failed.
func (c *Client) handlePermissionRequest(ctx context.Context, params json.RawMessage) (any, error) {
	var req session.PermissionRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &errors.RPCError{Code: errors.CodeInvalidParams, Message: "malformed permission.request params"}
	}

	sess, ok := c.Session(req.SessionID)
	if !ok {
		c.log.Debug("Permission request for unknown session, denying", "session_id", req.SessionID)

		return session.PermissionDecision{Allow: false, Reason: "unknown session"}, nil
	}

	decision := sess.DecidePermission(ctx, &req)

	c.log.Debug("Permission decided",
		"session_id", req.SessionID,
		"kind", req.Kind,
		"allow", decision.Allow,
	)

	return decision, nil
}

// callMCPTool services a tool.call for a tool hosted by an in-process
// SDK MCP server. Failures become failed tool results so the turn
// continues, matching the handling of session tools.
func (c *Client) callMCPTool(
	ctx context.Context,
	instance mcp.ServerInstance,
	toolCallID string,
	name string,
	args json.RawMessage,
) (any, error) {
	input := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return toolCallResponse(toolCallID,
				failedToolResult(fmt.Sprintf("malformed arguments for %s: %v", name, err))), nil
		}
	}

	result, err := instance.CallTool(ctx, name, input)
	if err != nil {
		c.log.Debug("MCP tool failed", "tool", name, "error", err)

		return toolCallResponse(toolCallID, failedToolResult(err.Error())), nil
	}

	return toolCallResponse(toolCallID, mcpToolResult(result)), nil
}

// mcpToolResult translates an MCP call result into the tool.call wire
// shape. The content list carries over; the MCP is_error flag becomes
// the wire's isError.
func mcpToolResult(result map[string]any) map[string]any {
	out := map[string]any{
		"content": result["content"],
	}

	if isErr, ok := result["is_error"].(bool); ok && isErr {
		out["isError"] = true
	}

	return out
}

// toolCallResponse is the tool.call response wire shape.
func toolCallResponse(toolCallID string, result map[string]any) map[string]any {
	return map[string]any{
		"toolCallId": toolCallID,
		"result":     result,
	}
}

// successToolResult serializes a tool handler's return value. Strings
// pass through; everything else is marshalled to JSON text.
func successToolResult(value any) map[string]any {
	text, ok := value.(string)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil {
			return failedToolResult(fmt.Sprintf("serialize tool result: %v", err))
		}

		text = string(data)
	}

	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
}

func failedToolResult(message string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": message}},
		"isError": true,
	}
}

// Close terminates the connection and cleans up resources.
//
// After Close(), the client cannot be reused - create a new client with
// New(). This method is safe to call multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()

		close(c.done)

		if !wasConnected {
			return
		}

		c.log.Info("Closing client")

		if c.conn != nil {
			c.conn.Stop()
		}

		if c.transport != nil {
			closeErr = c.transport.Close()
		}

		c.log.Info("Client closed")
	})

	return closeErr
}
