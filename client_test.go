package copilotsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentEnvelope is one frame the client wrote to the transport.
type sentEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *string         `json:"id"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// mockTransport fakes the CLI behind the public API: it answers client
// requests from a scripted method table and lets tests inject frames.
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

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
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

// requestParams returns the params of the first request with the given
// method, or nil.
func (m *mockTransport) requestParams(method string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, env := range m.sent {
		if env.Method == method {
			return env.Params
		}
	}

	return nil
}

func startedClient(t *testing.T, mt *mockTransport) Client {
	t.Helper()

	c := NewClient()
	require.NoError(t, c.Start(context.Background(), WithTransport(mt), WithLogger(NopLogger())))
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestApplyOptions_SetsFields(t *testing.T) {
	mt := newMockTransport()
	log := NopLogger()
	stderrCalls := 0

	options := applyOptions([]Option{
		WithLogger(log),
		WithCLIPath("/opt/copilot/bin/copilot"),
		WithCLIURL("127.0.0.1:9000"),
		WithCwd("/tmp/project"),
		WithEnv(map[string]string{"COPILOT_REGION": "eu"}),
		WithStderr(func(string) { stderrCalls++ }),
		WithRequestTimeout(45 * time.Second),
		WithTransport(mt),
	})

	assert.Same(t, log, options.Logger)
	assert.Equal(t, "/opt/copilot/bin/copilot", options.CLIPath)
	assert.Equal(t, "127.0.0.1:9000", options.CLIURL)
	assert.Equal(t, "/tmp/project", options.Cwd)
	assert.Equal(t, map[string]string{"COPILOT_REGION": "eu"}, options.Env)
	assert.Equal(t, 45*time.Second, options.RequestTimeout)
	assert.Equal(t, mt, options.Transport)

	require.NotNil(t, options.Stderr)
	options.Stderr("line")
	assert.Equal(t, 1, stderrCalls)
}

func TestWithOptions_CopiesBaseThenOverrides(t *testing.T) {
	base := &Options{
		CLIPath:        "/usr/local/bin/copilot",
		Cwd:            "/srv/base",
		RequestTimeout: time.Minute,
	}

	options := applyOptions([]Option{
		WithOptions(base),
		WithCwd("/srv/override"),
	})

	assert.Equal(t, "/usr/local/bin/copilot", options.CLIPath)
	assert.Equal(t, "/srv/override", options.Cwd)
	assert.Equal(t, time.Minute, options.RequestTimeout)
}

func TestClient_StartPingsCLI(t *testing.T) {
	mt := newMockTransport()
	c := startedClient(t, mt)

	require.NoError(t, c.Ping(context.Background()))
	assert.NotNil(t, mt.requestParams("ping"))
}

func TestClient_SingleUse(t *testing.T) {
	mt := newMockTransport()
	c := startedClient(t, mt)

	require.NoError(t, c.Close())
	assert.True(t, mt.isClosed())

	err := c.Start(context.Background(), WithTransport(newMockTransport()))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_CreateSessionCarriesConfig(t *testing.T) {
	mt := newMockTransport()
	c := startedClient(t, mt)

	sess, err := c.CreateSession(context.Background(), &SessionConfig{
		Model:        "gpt-4o",
		Instructions: "be terse",
		Streaming:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID())

	var params struct {
		Model        string `json:"model"`
		Instructions string `json:"instructions"`
		Streaming    bool   `json:"streaming"`
	}
	require.NoError(t, json.Unmarshal(mt.requestParams("session.create"), &params))
	assert.Equal(t, "gpt-4o", params.Model)
	assert.Equal(t, "be terse", params.Instructions)
	assert.True(t, params.Streaming)

	got, ok := c.Session("s1")
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestClient_SendAndWaitStreamsDeltas(t *testing.T) {
	mt := newMockTransport()
	c := startedClient(t, mt)

	sess, err := c.CreateSession(context.Background(), &SessionConfig{Streaming: true})
	require.NoError(t, err)

	var mu sync.Mutex
	var deltas []string
	off := sess.On(func(ev *Event) {
		if ev.Type != EventMessageDelta {
			return
		}
		delta, derr := ev.MessageDelta()
		if derr != nil {
			return
		}
		mu.Lock()
		deltas = append(deltas, delta.DeltaContent)
		mu.Unlock()
	})
	defer off()

	mt.mu.Lock()
	mt.onRequest = func(method string, _ json.RawMessage) {
		if method != "session.send" {
			return
		}
		mt.injectEvent("s1", EventMessageDelta, `{"deltaContent":"2+2 "}`)
		mt.injectEvent("s1", EventMessageDelta, `{"deltaContent":"is 4"}`)
		mt.injectEvent("s1", EventIdle, `{}`)
	}
	mt.mu.Unlock()

	terminal, err := sess.SendAndWait(context.Background(), MessageOptions{Prompt: "What is 2+2?"}, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, EventIdle, terminal.Type)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"2+2 ", "is 4"}, deltas)
}

func TestClient_DestroyRemovesSession(t *testing.T) {
	mt := newMockTransport()
	c := startedClient(t, mt)

	sess, err := c.CreateSession(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, sess.Destroy(context.Background()))
	assert.NotNil(t, mt.requestParams("session.destroy"))

	_, ok := c.Session(sess.ID())
	assert.False(t, ok)
}
