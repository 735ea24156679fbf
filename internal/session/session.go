// Package session provides the handle for one Copilot conversation.
//
// A Session is created by the client after a session.create (or
// session.resume) call succeeds. It layers the conversation API over
// two primitives: On subscribes to the session's event stream, Send
// issues session.send. SendAndWait is composed from those two.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/event"
	"github.com/copilotstream/copilot-sdk-go/internal/mcp"
	"github.com/copilotstream/copilot-sdk-go/internal/router"
)

// Session is a handle to one conversation inside the CLI.
type Session struct {
	id       string
	log      *slog.Logger
	caller   Caller
	router   *router.Router
	cfg      *Config
	tools    map[string]*Tool
	mcpTools map[string]mcp.ServerInstance

	mu        sync.Mutex
	destroyed bool
	cleanup   func()
}

// New creates a session handle and registers its routing key.
func New(log *slog.Logger, id string, caller Caller, r *router.Router, cfg *Config) *Session {
	if cfg == nil {
		cfg = &Config{}
	}

	tools := make(map[string]*Tool, len(cfg.Tools))
	for i := range cfg.Tools {
		tools[cfg.Tools[i].Name] = &cfg.Tools[i]
	}

	r.Register(id)

	return &Session{
		id:       id,
		log:      log.With("component", "session", "session_id", id),
		caller:   caller,
		router:   r,
		cfg:      cfg,
		tools:    tools,
		mcpTools: indexMCPTools(cfg.MCPServers),
	}
}

// indexMCPTools maps tool names to the in-process SDK server that
// registered them, so tool.call requests can reach the server.
func indexMCPTools(servers map[string]mcp.ServerConfig) map[string]mcp.ServerInstance {
	index := make(map[string]mcp.ServerInstance)

	for _, srv := range servers {
		sdkCfg, ok := srv.(*mcp.SdkServerConfig)
		if !ok {
			continue
		}

		instance, ok := sdkCfg.Instance.(mcp.ServerInstance)
		if !ok {
			continue
		}

		for _, meta := range instance.ListTools() {
			if name, ok := meta["name"].(string); ok {
				index[name] = instance
			}
		}
	}

	return index
}

// ID returns the CLI-assigned session id.
func (s *Session) ID() string {
	return s.id
}

// On subscribes fn to this session's event stream and returns the
// function that removes the subscription. Events are delivered in
// arrival order; fn runs on the client's dispatch goroutine and should
// not block.
func (s *Session) On(fn func(ev *event.Event)) func() {
	tok := s.router.Subscribe(s.id, fn)

	return func() { s.router.Unsubscribe(tok) }
}

// Send submits a user message and returns the CLI-assigned message id.
// The call returns as soon as the CLI acknowledges the message; the
// response arrives as events.
func (s *Session) Send(ctx context.Context, opts MessageOptions) (string, error) {
	if err := s.checkAlive(); err != nil {
		return "", err
	}

	s.log.Debug("Sending message", "prompt_len", len(opts.Prompt))

	params := map[string]any{
		"sessionId": s.id,
		"prompt":    opts.Prompt,
	}

	if len(opts.Attachments) > 0 {
		params["attachments"] = opts.Attachments
	}

	result, err := s.caller.Call(ctx, "session.send", params)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	var ack struct {
		MessageID string `json:"messageId"`
	}

	if err := json.Unmarshal(result, &ack); err != nil {
		return "", &errors.ProtocolError{Reason: "malformed session.send result", Err: err}
	}

	return ack.MessageID, nil
}

// SendAndWait submits a user message and blocks until the turn reaches
// a terminal event (session.idle or session.error), which it returns.
// Intermediate events still flow to all On subscribers while waiting.
//
// The timeout covers the wait for the terminal event, not the send
// itself. Zero means wait until ctx is done.
func (s *Session) SendAndWait(ctx context.Context, opts MessageOptions, timeout time.Duration) (*event.Event, error) {
	terminal := make(chan *event.Event, 1)

	unsubscribe := s.On(func(ev *event.Event) {
		if !ev.IsTerminal() {
			return
		}

		select {
		case terminal <- ev:
		default:
		}
	})
	defer unsubscribe()

	if _, err := s.Send(ctx, opts); err != nil {
		return nil, err
	}

	var timer <-chan time.Time

	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()

		timer = t.C
	}

	select {
	case ev := <-terminal:
		return ev, nil
	case <-timer:
		return nil, fmt.Errorf("wait for turn completion: %w", errors.ErrRequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Destroy tears the session down on the CLI side and removes its
// routing key. Events already in flight for this session are dropped.
// Safe to call multiple times.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()

	if s.destroyed {
		s.mu.Unlock()

		return nil
	}

	s.destroyed = true
	cleanup := s.cleanup
	s.mu.Unlock()

	s.log.Debug("Destroying session")

	defer func() {
		s.router.Remove(s.id)

		if cleanup != nil {
			cleanup()
		}
	}()

	if _, err := s.caller.Call(ctx, "session.destroy", map[string]any{"sessionId": s.id}); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	return nil
}

// Tool looks up a custom tool registered on this session.
func (s *Session) Tool(name string) (*Tool, bool) {
	t, ok := s.tools[name]

	return t, ok
}

// MCPTool looks up the in-process SDK MCP server that registered the
// named tool on this session, if any.
func (s *Session) MCPTool(name string) (mcp.ServerInstance, bool) {
	instance, ok := s.mcpTools[name]

	return instance, ok
}

// DecidePermission runs the session's permission handler. Requests are
// denied when no handler is configured.
func (s *Session) DecidePermission(ctx context.Context, req *PermissionRequest) PermissionDecision {
	if s.cfg.OnPermissionRequest == nil {
		s.log.Debug("No permission handler configured, denying", "kind", req.Kind)

		return PermissionDecision{Allow: false, Reason: "no permission handler configured"}
	}

	return s.cfg.OnPermissionRequest(ctx, req)
}

// SetCleanup registers a hook run after a successful Destroy. The
// client uses it to drop the session from its registry.
func (s *Session) SetCleanup(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanup = fn
}

// Config returns the configuration the session was created with.
func (s *Session) Config() *Config {
	return s.cfg
}

func (s *Session) checkAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return errors.ErrSessionDestroyed
	}

	return nil
}
