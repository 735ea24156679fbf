package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	sdkerrors "github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/event"
	"github.com/copilotstream/copilot-sdk-go/internal/mcp"
	"github.com/copilotstream/copilot-sdk-go/internal/router"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordedCall is one RPC issued through the fake caller.
type recordedCall struct {
	method string
	params any
}

// fakeCaller scripts RPC results and optionally emits events on send,
// standing in for the client and the CLI behind it.
type fakeCaller struct {
	calls   []recordedCall
	results map[string]json.RawMessage
	errs    map[string]error
	onSend  func()
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		results: map[string]json.RawMessage{
			"session.send":    json.RawMessage(`{"messageId":"m1"}`),
			"session.destroy": json.RawMessage(`{}`),
		},
		errs: map[string]error{},
	}
}

func (f *fakeCaller) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, recordedCall{method: method, params: params})

	if err := f.errs[method]; err != nil {
		return nil, err
	}

	if method == "session.send" && f.onSend != nil {
		f.onSend()
	}

	return f.results[method], nil
}

func (f *fakeCaller) lastCall(t *testing.T) recordedCall {
	t.Helper()
	require.NotEmpty(t, f.calls)

	return f.calls[len(f.calls)-1]
}

func newTestSession(t *testing.T, caller *fakeCaller, cfg *Config) (*Session, *router.Router) {
	t.Helper()

	r := router.New(testLogger())

	return New(testLogger(), "s1", caller, r, cfg), r
}

func deltaEvent(text string) *event.Event {
	data, _ := json.Marshal(map[string]string{"deltaContent": text})

	return &event.Event{Type: event.TypeMessageDelta, Data: data}
}

func idleEvent() *event.Event {
	return &event.Event{Type: event.TypeIdle, Data: json.RawMessage(`{}`)}
}

func TestSend(t *testing.T) {
	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, nil)

	messageID, err := sess.Send(context.Background(), MessageOptions{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "m1", messageID)

	call := caller.lastCall(t)
	assert.Equal(t, "session.send", call.method)

	params, ok := call.params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "s1", params["sessionId"])
	assert.Equal(t, "hello", params["prompt"])
}

func TestSend_WithAttachments(t *testing.T) {
	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, nil)

	_, err := sess.Send(context.Background(), MessageOptions{
		Prompt:      "summarize this",
		Attachments: []string{"notes.md"},
	})
	require.NoError(t, err)

	params := caller.lastCall(t).params.(map[string]any)
	assert.Equal(t, []string{"notes.md"}, params["attachments"])
}

func TestSend_MalformedAck(t *testing.T) {
	caller := newFakeCaller()
	caller.results["session.send"] = json.RawMessage(`[`)
	sess, _ := newTestSession(t, caller, nil)

	_, err := sess.Send(context.Background(), MessageOptions{Prompt: "hi"})
	require.Error(t, err)

	var protoErr *sdkerrors.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestOn_ReceivesDispatchedEvents(t *testing.T) {
	caller := newFakeCaller()
	sess, r := newTestSession(t, caller, nil)

	var got []string

	unsubscribe := sess.On(func(ev *event.Event) {
		got = append(got, ev.Type)
	})

	r.Dispatch("s1", deltaEvent("a"))
	r.Dispatch("s1", idleEvent())

	unsubscribe()
	r.Dispatch("s1", deltaEvent("dropped"))

	assert.Equal(t, []string{event.TypeMessageDelta, event.TypeIdle}, got)
}

func TestSendAndWait_StreamsThenIdle(t *testing.T) {
	caller := newFakeCaller()
	sess, r := newTestSession(t, caller, nil)

	// The CLI streams three deltas and goes idle once the send lands.
	caller.onSend = func() {
		for _, chunk := range []string{"Hel", "lo ", "there"} {
			r.Dispatch("s1", deltaEvent(chunk))
		}

		r.Dispatch("s1", idleEvent())
	}

	var streamed []string

	unsubscribe := sess.On(func(ev *event.Event) {
		if delta, err := ev.MessageDelta(); err == nil {
			streamed = append(streamed, delta.DeltaContent)
		}
	})
	defer unsubscribe()

	terminal, err := sess.SendAndWait(context.Background(), MessageOptions{Prompt: "greet"}, time.Second)
	require.NoError(t, err)

	assert.Equal(t, event.TypeIdle, terminal.Type)
	assert.Equal(t, []string{"Hel", "lo ", "there"}, streamed)
}

func TestSendAndWait_ErrorEvent(t *testing.T) {
	caller := newFakeCaller()
	sess, r := newTestSession(t, caller, nil)

	caller.onSend = func() {
		r.Dispatch("s1", &event.Event{
			Type: event.TypeError,
			Data: json.RawMessage(`{"message":"model overloaded"}`),
		})
	}

	terminal, err := sess.SendAndWait(context.Background(), MessageOptions{Prompt: "hi"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.TypeError, terminal.Type)

	sessErr, err := terminal.SessionError()
	require.NoError(t, err)
	assert.Equal(t, "model overloaded", sessErr.Message)
}

func TestSendAndWait_Timeout(t *testing.T) {
	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, nil)

	_, err := sess.SendAndWait(context.Background(), MessageOptions{Prompt: "hi"}, 20*time.Millisecond)
	require.ErrorIs(t, err, sdkerrors.ErrRequestTimeout)
}

func TestSendAndWait_ContextCancelled(t *testing.T) {
	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sess.SendAndWait(ctx, MessageOptions{Prompt: "hi"}, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDestroy(t *testing.T) {
	caller := newFakeCaller()
	sess, r := newTestSession(t, caller, nil)

	require.NoError(t, sess.Destroy(context.Background()))
	assert.Equal(t, "session.destroy", caller.lastCall(t).method)

	// Routing key removed: later events are dropped.
	assert.Equal(t, 0, r.SubscriberCount("s1"))

	// Idempotent: no second RPC.
	callCount := len(caller.calls)
	require.NoError(t, sess.Destroy(context.Background()))
	assert.Len(t, caller.calls, callCount)
}

func TestSend_AfterDestroy(t *testing.T) {
	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, nil)

	require.NoError(t, sess.Destroy(context.Background()))

	_, err := sess.Send(context.Background(), MessageOptions{Prompt: "hi"})
	require.ErrorIs(t, err, sdkerrors.ErrSessionDestroyed)
}

func TestTool_Lookup(t *testing.T) {
	cfg := &Config{
		Tools: []Tool{{
			Name:        "lookup_order",
			Description: "Looks up an order by id",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return "ok", nil
			},
		}},
	}

	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, cfg)

	tool, ok := sess.Tool("lookup_order")
	require.True(t, ok)
	assert.Equal(t, "lookup_order", tool.Name)

	_, ok = sess.Tool("missing")
	assert.False(t, ok)
}

func TestDecidePermission_DefaultDeny(t *testing.T) {
	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, nil)

	decision := sess.DecidePermission(context.Background(), &PermissionRequest{Kind: "shell"})
	assert.False(t, decision.Allow)
	assert.NotEmpty(t, decision.Reason)
}

func TestDecidePermission_Handler(t *testing.T) {
	cfg := &Config{
		OnPermissionRequest: func(_ context.Context, req *PermissionRequest) PermissionDecision {
			return PermissionDecision{Allow: req.Kind == "read"}
		},
	}

	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, cfg)

	assert.True(t, sess.DecidePermission(context.Background(), &PermissionRequest{Kind: "read"}).Allow)
	assert.False(t, sess.DecidePermission(context.Background(), &PermissionRequest{Kind: "shell"}).Allow)
}

func TestMCPTool_IndexedFromSDKServers(t *testing.T) {
	server := mcp.NewSDKServer("calc", "1.0.0")
	server.AddTool(
		mcp.NewTool("add", "Add two numbers", mcp.SimpleSchema(map[string]string{"a": "float64", "b": "float64"})),
		func(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return mcp.TextResult("ok"), nil
		},
	)

	cfg := &Config{
		MCPServers: map[string]mcp.ServerConfig{
			"calc": &mcp.SdkServerConfig{Type: mcp.ServerTypeSDK, Name: "calc", Instance: server},
		},
	}

	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, cfg)

	instance, ok := sess.MCPTool("add")
	require.True(t, ok)
	assert.Equal(t, "calc", instance.Name())

	_, ok = sess.MCPTool("subtract")
	assert.False(t, ok)

	// SDK server tools are not session tools; they live in their own table.
	_, ok = sess.Tool("add")
	assert.False(t, ok)
}

func TestMCPTool_ExternalServersNotIndexed(t *testing.T) {
	cfg := &Config{
		MCPServers: map[string]mcp.ServerConfig{
			"files": &mcp.StdioServerConfig{Command: "mcp-files"},
		},
	}

	caller := newFakeCaller()
	sess, _ := newTestSession(t, caller, cfg)

	_, ok := sess.MCPTool("read_file")
	assert.False(t, ok)
}
