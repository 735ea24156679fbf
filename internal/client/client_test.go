package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/copilotstream/copilot-sdk-go/internal/config"
	sdkerrors "github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/event"
	"github.com/copilotstream/copilot-sdk-go/internal/mcp"
	"github.com/copilotstream/copilot-sdk-go/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sentEnvelope is one frame the client wrote to the transport.
type sentEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *string         `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// mockTransport fakes the CLI: it answers client requests from a
// scripted method table and lets tests inject frames.
type mockTransport struct {
	mu        sync.Mutex
	frameChan chan json.RawMessage
	errChan   chan error
	sent      []sentEnvelope
	started   bool
	closed    bool

	// autoResults maps request method to the result injected in reply.
	autoResults map[string]json.RawMessage
	// autoErrors maps request method to an error object injected in reply.
	autoErrors map[string]json.RawMessage
	// onRequest observes each outgoing request after the auto-reply.
	onRequest func(method string, params json.RawMessage)
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		frameChan: make(chan json.RawMessage, 32),
		errChan:   make(chan error, 1),
		autoResults: map[string]json.RawMessage{
			"ping":            json.RawMessage(`{}`),
			"session.create":  json.RawMessage(`{"sessionId":"s1"}`),
			"session.resume":  json.RawMessage(`{"sessionId":"s-old"}`),
			"session.send":    json.RawMessage(`{"messageId":"m1"}`),
			"session.destroy": json.RawMessage(`{}`),
		},
		autoErrors: map[string]json.RawMessage{},
	}
}

func (m *mockTransport) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started = true

	return nil
}

func (m *mockTransport) ReadMessages(context.Context) (<-chan json.RawMessage, <-chan error) {
	return m.frameChan, m.errChan
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	var env sentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	m.mu.Lock()
	m.sent = append(m.sent, env)
	onRequest := m.onRequest
	m.mu.Unlock()

	// Auto-reply to client requests.
	if env.Method != "" && env.ID != nil {
		if errObj, ok := m.autoErrors[env.Method]; ok {
			m.inject(fmt.Sprintf(`{"jsonrpc":"2.0","id":%q,"error":%s}`, *env.ID, errObj))
		} else if result, ok := m.autoResults[env.Method]; ok {
			m.inject(fmt.Sprintf(`{"jsonrpc":"2.0","id":%q,"result":%s}`, *env.ID, result))
		}

		if onRequest != nil {
			onRequest(env.Method, env.Params)
		}
	}

	return nil
}

func (m *mockTransport) inject(raw string) {
	m.frameChan <- json.RawMessage(raw)
}

// injectEvent injects a session.event notification.
func (m *mockTransport) injectEvent(sessionID, eventType, data string) {
	m.inject(fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"session.event","params":{"sessionId":%q,"event":{"type":%q,"data":%s}}}`,
		sessionID, eventType, data,
	))
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *mockTransport) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.started && !m.closed
}

// lastRequest returns the most recent request sent for a method.
func (m *mockTransport) lastRequest(t *testing.T, method string) sentEnvelope {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Method == method {
			return m.sent[i]
		}
	}

	t.Fatalf("no request sent for method %s", method)

	return sentEnvelope{}
}

// waitForResponse waits until the client has written a response for id.
func (m *mockTransport) waitForResponse(t *testing.T, id string) sentEnvelope {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		m.mu.Lock()

		for _, env := range m.sent {
			if env.Method == "" && env.ID != nil && *env.ID == id {
				m.mu.Unlock()

				return env
			}
		}

		m.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("no response sent for id %s", id)

	return sentEnvelope{}
}

func startClient(t *testing.T, mock *mockTransport) *Client {
	t.Helper()

	c := New()
	require.NoError(t, c.Start(context.Background(), &config.Options{
		Logger:    testLogger(),
		Transport: mock,
	}))
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestStart_PingsCLI(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	ping := mock.lastRequest(t, "ping")
	assert.NotNil(t, ping.ID)

	require.NoError(t, c.Ping(context.Background()))
}

func TestStart_PingFailure(t *testing.T) {
	mock := newMockTransport()
	mock.autoErrors["ping"] = json.RawMessage(`{"code":-32603,"message":"not ready"}`)

	c := New()

	err := c.Start(context.Background(), &config.Options{Logger: testLogger(), Transport: mock})
	require.Error(t, err)

	var connErr *sdkerrors.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, mock.closed)
}

func TestStart_AlreadyConnected(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	err := c.Start(context.Background(), &config.Options{Transport: mock})
	require.ErrorIs(t, err, sdkerrors.ErrClientAlreadyConnected)
}

func TestStart_AfterClose(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)
	require.NoError(t, c.Close())

	err := c.Start(context.Background(), &config.Options{Transport: newMockTransport()})
	require.ErrorIs(t, err, sdkerrors.ErrClientClosed)
}

func TestCall_NotConnected(t *testing.T) {
	c := New()

	_, err := c.Call(context.Background(), "ping", nil)
	require.ErrorIs(t, err, sdkerrors.ErrClientNotConnected)
}

func TestCreateSession_DefaultModel(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	sess, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID())

	var params map[string]any
	require.NoError(t, json.Unmarshal(mock.lastRequest(t, "session.create").Params, &params))
	assert.Equal(t, "gpt-4.1", params["model"])
	assert.Equal(t, false, params["streaming"])
}

func TestCreateSession_FullConfig(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	cfg := &session.Config{
		Model:          "claude-sonnet-4",
		Streaming:      true,
		Instructions:   "answer tersely",
		AvailableTools: []string{"read_file"},
		ExcludedTools:  []string{"shell"},
		Tools: []session.Tool{{
			Name:        "lookup_order",
			Description: "Looks up an order",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return "ok", nil
			},
		}},
		OnPermissionRequest: func(context.Context, *session.PermissionRequest) session.PermissionDecision {
			return session.PermissionDecision{Allow: true}
		},
	}

	_, err := c.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	var params map[string]any
	require.NoError(t, json.Unmarshal(mock.lastRequest(t, "session.create").Params, &params))

	assert.Equal(t, "claude-sonnet-4", params["model"])
	assert.Equal(t, true, params["streaming"])
	assert.Equal(t, "answer tersely", params["instructions"])
	assert.Equal(t, []any{"read_file"}, params["availableTools"])
	assert.Equal(t, []any{"shell"}, params["excludedTools"])
	assert.Equal(t, true, params["requestPermissions"])

	tools, ok := params["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Equal(t, "lookup_order", tools[0].(map[string]any)["name"])
}

func TestResumeSession(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	sess, err := c.ResumeSession(context.Background(), "s-old", nil)
	require.NoError(t, err)
	assert.Equal(t, "s-old", sess.ID())

	var params map[string]any
	require.NoError(t, json.Unmarshal(mock.lastRequest(t, "session.resume").Params, &params))
	assert.Equal(t, "s-old", params["sessionId"])
}

func TestResumeSession_EmptyID(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	_, err := c.ResumeSession(context.Background(), "", nil)
	require.Error(t, err)

	var rpcErr *sdkerrors.RPCError
	require.ErrorAs(t, err, &rpcErr)
}

func TestEventRouting(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	sess, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	events := make(chan string, 8)

	unsubscribe := sess.On(func(ev *event.Event) {
		events <- ev.Type
	})
	defer unsubscribe()

	mock.injectEvent("s1", event.TypeMessageDelta, `{"deltaContent":"hi"}`)
	mock.injectEvent("s1", event.TypeIdle, `{}`)

	assert.Equal(t, event.TypeMessageDelta, recvString(t, events))
	assert.Equal(t, event.TypeIdle, recvString(t, events))
}

func TestEventRouting_UnknownSessionDropped(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	sess, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	events := make(chan string, 8)

	unsubscribe := sess.On(func(ev *event.Event) {
		events <- ev.Type
	})
	defer unsubscribe()

	// Event for a session this client never created.
	mock.injectEvent("ghost", event.TypeIdle, `{}`)
	mock.injectEvent("s1", event.TypeIdle, `{}`)

	assert.Equal(t, event.TypeIdle, recvString(t, events))
	assert.Empty(t, events)
}

func TestSendAndWait_Scenario(t *testing.T) {
	mock := newMockTransport()

	// On session.send, the fake CLI streams three deltas then idles.
	mock.onRequest = func(method string, _ json.RawMessage) {
		if method != "session.send" {
			return
		}

		for _, chunk := range []string{"Hel", "lo ", "there"} {
			mock.injectEvent("s1", event.TypeMessageDelta,
				fmt.Sprintf(`{"deltaContent":%q}`, chunk))
		}

		mock.injectEvent("s1", event.TypeIdle, `{}`)
	}

	c := startClient(t, mock)

	sess, err := c.CreateSession(context.Background(), &session.Config{Streaming: true})
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		streamed []string
	)

	unsubscribe := sess.On(func(ev *event.Event) {
		if delta, err := ev.MessageDelta(); err == nil {
			mu.Lock()
			streamed = append(streamed, delta.DeltaContent)
			mu.Unlock()
		}
	})
	defer unsubscribe()

	terminal, err := sess.SendAndWait(context.Background(), session.MessageOptions{Prompt: "greet"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.TypeIdle, terminal.Type)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Hel", "lo ", "there"}, streamed)
}

func TestToolCall_RegisteredTool(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	cfg := &session.Config{
		Tools: []session.Tool{{
			Name:        "echo",
			Description: "Echoes its input",
			Handler: func(_ context.Context, args json.RawMessage) (any, error) {
				var in struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}

				return in.Text, nil
			},
		}},
	}

	_, err := c.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	mock.inject(`{"jsonrpc":"2.0","id":"t1","method":"tool.call","params":` +
		`{"sessionId":"s1","toolCall":{"id":"tc-1","name":"echo","arguments":{"text":"hi"}}}}`)

	resp := mock.waitForResponse(t, "t1")
	require.Nil(t, resp.Error)

	var result struct {
		ToolCallID string `json:"toolCallId"`
		Result     struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}

	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "tc-1", result.ToolCallID)
	require.Len(t, result.Result.Content, 1)
	assert.Equal(t, "hi", result.Result.Content[0].Text)
	assert.False(t, result.Result.IsError)
}

func TestToolCall_UnregisteredTool(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	_, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	mock.inject(`{"jsonrpc":"2.0","id":"t2","method":"tool.call","params":` +
		`{"sessionId":"s1","toolCall":{"id":"tc-2","name":"missing","arguments":{}}}}`)

	resp := mock.waitForResponse(t, "t2")
	require.Nil(t, resp.Error, "unregistered tool must produce a failed result, not an RPC error")

	var result struct {
		Result struct {
			IsError bool `json:"isError"`
		} `json:"result"`
	}

	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.Result.IsError)
}

func TestToolCall_UnknownSession(t *testing.T) {
	mock := newMockTransport()
	startClient(t, mock)

	mock.inject(`{"jsonrpc":"2.0","id":"t3","method":"tool.call","params":` +
		`{"sessionId":"ghost","toolCall":{"id":"tc-3","name":"echo","arguments":{}}}}`)

	resp := mock.waitForResponse(t, "t3")
	require.NotNil(t, resp.Error)

	var errObj struct {
		Code int `json:"code"`
	}

	require.NoError(t, json.Unmarshal(resp.Error, &errObj))
	assert.Equal(t, sdkerrors.CodeInvalidParams, errObj.Code)
}

func TestToolCall_SDKServerTool(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	server := mcp.NewSDKServer("calc", "1.0.0")
	server.AddTool(
		mcp.NewTool("add", "Add two numbers", mcp.SimpleSchema(map[string]string{"a": "float64", "b": "float64"})),
		func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args, err := mcp.ParseArguments(req)
			if err != nil {
				return mcp.ErrorResult(err.Error()), nil
			}

			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)

			return mcp.TextResult(fmt.Sprintf("%v", a+b)), nil
		},
	)

	cfg := &session.Config{
		MCPServers: map[string]mcp.ServerConfig{
			"calc": &mcp.SdkServerConfig{Type: mcp.ServerTypeSDK, Name: "calc", Instance: server},
		},
	}

	_, err := c.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	mock.inject(`{"jsonrpc":"2.0","id":"t4","method":"tool.call","params":` +
		`{"sessionId":"s1","toolCall":{"id":"tc-4","name":"add","arguments":{"a":2,"b":3}}}}`)

	resp := mock.waitForResponse(t, "t4")
	require.Nil(t, resp.Error)

	var result struct {
		ToolCallID string `json:"toolCallId"`
		Result     struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}

	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "tc-4", result.ToolCallID)
	require.Len(t, result.Result.Content, 1)
	assert.Equal(t, "5", result.Result.Content[0].Text)
	assert.False(t, result.Result.IsError)
}

func TestToolCall_SDKServerToolError(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	server := mcp.NewSDKServer("calc", "1.0.0")
	server.AddTool(
		mcp.NewTool("divide", "Divide two numbers", mcp.SimpleSchema(map[string]string{"a": "float64", "b": "float64"})),
		func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return mcp.ErrorResult("division by zero"), nil
		},
	)

	cfg := &session.Config{
		MCPServers: map[string]mcp.ServerConfig{
			"calc": &mcp.SdkServerConfig{Type: mcp.ServerTypeSDK, Name: "calc", Instance: server},
		},
	}

	_, err := c.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	mock.inject(`{"jsonrpc":"2.0","id":"t5","method":"tool.call","params":` +
		`{"sessionId":"s1","toolCall":{"id":"tc-5","name":"divide","arguments":{"a":1,"b":0}}}}`)

	resp := mock.waitForResponse(t, "t5")
	require.Nil(t, resp.Error, "tool failures must be structured results, not RPC errors")

	var result struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}

	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.True(t, result.Result.IsError)
	require.Len(t, result.Result.Content, 1)
	assert.Equal(t, "division by zero", result.Result.Content[0].Text)
}

func TestPermissionRequest_DefaultDeny(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	_, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	mock.inject(`{"jsonrpc":"2.0","id":"p1","method":"permission.request","params":` +
		`{"sessionId":"s1","kind":"shell","arguments":{"command":"rm -rf /"}}}`)

	resp := mock.waitForResponse(t, "p1")
	require.Nil(t, resp.Error)

	var decision session.PermissionDecision
	require.NoError(t, json.Unmarshal(resp.Result, &decision))
	assert.False(t, decision.Allow)
}

func TestPermissionRequest_Handler(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	cfg := &session.Config{
		OnPermissionRequest: func(_ context.Context, req *session.PermissionRequest) session.PermissionDecision {
			return session.PermissionDecision{Allow: req.Kind == "read"}
		},
	}

	_, err := c.CreateSession(context.Background(), cfg)
	require.NoError(t, err)

	mock.inject(`{"jsonrpc":"2.0","id":"p2","method":"permission.request","params":` +
		`{"sessionId":"s1","kind":"read"}}`)

	resp := mock.waitForResponse(t, "p2")

	var decision session.PermissionDecision
	require.NoError(t, json.Unmarshal(resp.Result, &decision))
	assert.True(t, decision.Allow)
}

func TestDestroySession_RemovesFromRegistry(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	sess, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	_, ok := c.Session("s1")
	require.True(t, ok)

	require.NoError(t, sess.Destroy(context.Background()))

	_, ok = c.Session("s1")
	assert.False(t, ok)
}

func TestClose_Idempotent(t *testing.T) {
	mock := newMockTransport()
	c := startClient(t, mock)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, mock.closed)
}

func recvString(t *testing.T, ch <-chan string) string {
	t.Helper()

	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")

		return ""
	}
}
