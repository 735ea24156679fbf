package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/copilotstream/copilot-sdk-go/internal/errors"
)

const (
	// DefaultCallTimeout bounds a call when the caller passes no timeout.
	DefaultCallTimeout = 30 * time.Second

	// notificationQueueSize is the buffer between the read loop and the
	// dispatcher goroutine. The read loop never invokes application
	// callbacks directly; it enqueues here and moves on.
	notificationQueueSize = 128
)

// Transport is the minimal frame-level interface the connection needs.
//
// It is satisfied by the subprocess and socket transports and by mock
// transports in tests.
type Transport interface {
	// ReadMessages returns channels yielding frame payloads and read errors.
	// Both channels close when reading stops.
	ReadMessages(ctx context.Context) (<-chan json.RawMessage, <-chan error)

	// SendMessage writes one frame payload. Safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error
}

// Handler services a peer-initiated request. The returned value is
// marshaled into the response's result member; a returned error becomes
// a JSON-RPC error response carrying the original correlation id.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationSink receives every classified notification envelope, in
// the order the peer emitted them. Exactly one sink is installed.
type NotificationSink func(method string, params json.RawMessage)

// pendingCall tracks an outbound request awaiting its response.
type pendingCall struct {
	method string
	done   chan callResult
}

// callResult is the terminal state of a pending call.
type callResult struct {
	result json.RawMessage
	err    error
}

// Conn is a bidirectional JSON-RPC 2.0 connection over a framed transport.
//
// One background goroutine (the dispatch loop) reads frames and
// classifies each into response, notification, or peer-initiated
// request. Responses resolve pending calls; notifications cross into the
// application's concurrency domain through a buffered queue drained by a
// dedicated dispatcher goroutine; requests run their handler on a fresh
// goroutine so a slow handler never stalls the read path.
//
// A Conn must be started with Start before use and stopped with Stop.
type Conn struct {
	log       *slog.Logger
	transport Transport

	// Outbound call tracking
	pendingMu sync.Mutex
	pending   map[string]*pendingCall
	stopped   bool

	// Handler registry for peer-initiated requests. Last registration
	// for a method wins.
	handlersMu sync.RWMutex
	handlers   map[string]Handler

	// Single downstream consumer for notifications
	sinkMu sync.RWMutex
	sink   NotificationSink

	// Queue crossing from the read loop into the dispatcher goroutine
	notifs chan *Envelope

	// Fatal error storage, broadcast by closing done
	errMu    sync.RWMutex
	fatalErr error

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewConn creates a connection over the given transport.
//
// The transport must be connected before calling Start.
func NewConn(log *slog.Logger, transport Transport) *Conn {
	return &Conn{
		log:       log.With("component", "rpc"),
		transport: transport,
		pending:   make(map[string]*pendingCall, 8),
		handlers:  make(map[string]Handler, 8),
		notifs:    make(chan *Envelope, notificationQueueSize),
		done:      make(chan struct{}),
	}
}

// Start begins reading and classifying frames from the transport.
func (c *Conn) Start(ctx context.Context) error {
	c.log.Debug("Starting RPC connection")

	frames, errs := c.transport.ReadMessages(ctx)

	c.wg.Add(2)

	go c.readLoop(ctx, frames, errs)
	go c.dispatchLoop()

	return nil
}

// Stop shuts the connection down.
//
// The read loop exits, every outstanding call resolves with
// ErrDisconnected, and the dispatcher drains. Safe to call multiple times.
func (c *Conn) Stop() {
	c.log.Debug("Stopping RPC connection")

	c.closeDone()
	c.wg.Wait()

	c.log.Debug("RPC connection stopped")
}

// Done returns a channel closed when the connection stops for any reason.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// FatalError returns the error that killed the connection, if any.
func (c *Conn) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// setFatalError stores the first fatal error and broadcasts via done.
func (c *Conn) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// closeDone closes the done channel exactly once.
func (c *Conn) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetNotificationSink installs the single downstream notification
// consumer. Notifications arriving before a sink is installed are dropped
// with a diagnostic.
func (c *Conn) SetNotificationSink(sink NotificationSink) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	c.sink = sink
}

// RegisterHandler installs a handler for peer-initiated requests with the
// given method. Registering the same method twice replaces the previous
// handler: last registration wins.
func (c *Conn) RegisterHandler(method string, handler Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering request handler", "method", method)
	c.handlers[method] = handler
}

// Call sends a request and blocks until the matching response arrives,
// the timeout elapses, the context is cancelled, or the connection dies.
//
// A non-positive timeout uses DefaultCallTimeout. On timeout the pending
// entry is removed and the call fails with ErrRequestTimeout; a late
// response for that id is dropped silently by the dispatch loop. If the
// peer responds with an error object, the call fails with *RPCError.
func (c *Conn) Call(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	id := ulid.Make().String()
	call := &pendingCall{
		method: method,
		done:   make(chan callResult, 1),
	}

	c.pendingMu.Lock()

	if c.stopped {
		c.pendingMu.Unlock()

		return nil, errors.ErrDisconnected
	}

	c.pending[id] = call

	c.pendingMu.Unlock()

	c.log.Debug("Sending request", "method", method, "id", id)

	env, err := newRequest(id, method, params)
	if err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("marshal request params: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		c.removePending(id)

		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case res := <-call.done:
		if res.err != nil {
			c.log.Debug("Request failed", "method", method, "id", id, "error", res.err)

			return nil, res.err
		}

		c.log.Debug("Request resolved", "method", method, "id", id)

		return res.result, nil

	case <-time.After(timeout):
		c.removePending(id)

		c.log.Warn("Request timed out", "method", method, "id", id, "timeout", timeout)

		return nil, fmt.Errorf("%s: %w after %s", method, errors.ErrRequestTimeout, timeout)

	case <-ctx.Done():
		c.removePending(id)

		c.log.Debug("Request cancelled", "method", method, "id", id)

		return nil, ctx.Err()
	}
}

// Notify sends a notification: fire-and-forget, no correlation id. A
// write failure surfaces to this caller only.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	env, err := newNotification(method, params)
	if err != nil {
		return fmt.Errorf("marshal notification params: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	c.log.Debug("Sending notification", "method", method)

	return c.transport.SendMessage(ctx, data)
}

// removePending deletes a pending call without resolving it.
func (c *Conn) removePending(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop is the dispatch loop: a single execution context performing
// blocking reads and classifying each envelope. It never runs
// application callbacks inline.
func (c *Conn) readLoop(
	ctx context.Context,
	frames <-chan json.RawMessage,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer close(c.notifs)
	defer c.failAllPending()
	defer c.closeDone()
	defer c.log.Debug("Dispatch loop stopped")

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				c.log.Debug("Frame channel closed")

				return
			}

			c.handleFrame(ctx, frame)

		case err, ok := <-errs:
			if !ok {
				c.log.Debug("Error channel closed")

				return
			}

			if err != nil {
				c.log.Debug("Transport error in dispatch loop", "error", err)
				c.setFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Dispatch loop stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in dispatch loop")

			return
		}
	}
}

// handleFrame decodes and classifies one inbound frame.
func (c *Conn) handleFrame(ctx context.Context, frame json.RawMessage) {
	var env Envelope

	if err := json.Unmarshal(frame, &env); err != nil {
		// Malformed JSON is fatal to the connection.
		c.setFatalError(&errors.ProtocolError{Reason: "invalid envelope", Err: err})

		return
	}

	switch env.Kind() {
	case KindResponse:
		c.resolvePending(&env)

	case KindNotification:
		select {
		case c.notifs <- &env:
		case <-c.done:
		case <-ctx.Done():
		}

	case KindRequest:
		c.handleRequest(ctx, &env)

	case KindInvalid:
		c.log.Warn("Dropping envelope with neither id nor method")
	}
}

// resolvePending routes a response to the waiting call. A response for
// an unknown id is dropped without error: the caller may have already
// timed out and given up.
func (c *Conn) resolvePending(env *Envelope) {
	id := *env.ID

	c.pendingMu.Lock()

	call, exists := c.pending[id]
	if exists {
		delete(c.pending, id)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Debug("Dropping late response for unknown id", "id", id)

		return
	}

	res := callResult{result: env.Result}
	if env.Error != nil {
		res.err = &errors.RPCError{
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    env.Error.Data,
		}
	}

	// Buffered channel owned by exactly one resolver, send cannot block.
	call.done <- res
}

// failAllPending resolves every outstanding call with ErrDisconnected so
// no caller blocks past connection teardown.
func (c *Conn) failAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	c.stopped = true

	for id, call := range c.pending {
		call.done <- callResult{err: errors.ErrDisconnected}

		delete(c.pending, id)
	}
}

// handleRequest runs the registered handler for a peer-initiated request
// on its own goroutine and writes the response back. With no handler
// registered, the peer gets a MethodNotFound error response; silently
// dropping the request would hang the peer.
func (c *Conn) handleRequest(ctx context.Context, env *Envelope) {
	id := *env.ID
	method := env.Method

	c.handlersMu.RLock()
	handler, exists := c.handlers[method]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Warn("No handler for peer request", "method", method, "id", id)

		// Written off the dispatch loop so a stalled write pipe cannot
		// block reads.
		c.wg.Go(func() {
			c.sendErrorResponse(ctx, id, errors.CodeMethodNotFound,
				fmt.Sprintf("method not found: %s", method), nil)
		})

		return
	}

	c.log.Debug("Handling peer request", "method", method, "id", id)

	params := env.Params

	c.wg.Go(func() {
		result, err := handler(ctx, params)
		if err != nil {
			c.log.Warn("Handler returned error", "method", method, "id", id, "error", err)

			var rpcErr *errors.RPCError
			if stderrors.As(err, &rpcErr) {
				c.sendErrorResponse(ctx, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
			} else {
				c.sendErrorResponse(ctx, id, errors.CodeInternalError, err.Error(), nil)
			}

			return
		}

		c.sendSuccessResponse(ctx, id, result)
	})
}

// sendSuccessResponse writes a success response for a peer request.
func (c *Conn) sendSuccessResponse(ctx context.Context, id string, result any) {
	env, err := newResult(id, result)
	if err != nil {
		c.log.Error("Failed to marshal response result", "id", id, "error", err)
		c.sendErrorResponse(ctx, id, errors.CodeInternalError, "unserializable result", nil)

		return
	}

	c.writeEnvelope(ctx, env)
}

// sendErrorResponse writes an error response for a peer request.
func (c *Conn) sendErrorResponse(ctx context.Context, id string, code int, message string, data any) {
	c.writeEnvelope(ctx, newError(id, code, message, data))
}

// writeEnvelope marshals and sends an envelope, logging write failures.
func (c *Conn) writeEnvelope(ctx context.Context, env *Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Error("Failed to marshal envelope", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		if ctx.Err() != nil {
			c.log.Debug("Could not send response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send response", "error", err)
	}
}

// dispatchLoop drains the notification queue and feeds the sink. A
// single goroutine preserves the peer's emission order end to end.
func (c *Conn) dispatchLoop() {
	defer c.wg.Done()
	defer c.log.Debug("Notification dispatcher stopped")

	for env := range c.notifs {
		c.sinkMu.RLock()
		sink := c.sink
		c.sinkMu.RUnlock()

		if sink == nil {
			c.log.Debug("Dropping notification with no sink installed", "method", env.Method)

			continue
		}

		c.invokeSink(sink, env)
	}
}

// invokeSink calls the sink with panic isolation so a misbehaving
// consumer cannot kill the dispatcher.
func (c *Conn) invokeSink(sink NotificationSink, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Notification sink panicked", "method", env.Method, "panic", r)
		}
	}()

	sink(env.Method, env.Params)
}
