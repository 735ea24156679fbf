package errors

import (
	"errors"
	"fmt"
)

// CopilotSDKError is the base interface for all SDK errors.
type CopilotSDKError interface {
	error
	IsCopilotSDKError() bool
}

// Compile-time verification that all error types implement CopilotSDKError.
var (
	_ CopilotSDKError = (*CLINotFoundError)(nil)
	_ CopilotSDKError = (*ConnectionError)(nil)
	_ CopilotSDKError = (*ProcessError)(nil)
	_ CopilotSDKError = (*ProtocolError)(nil)
	_ CopilotSDKError = (*TransportError)(nil)
	_ CopilotSDKError = (*RPCError)(nil)
)

// JSON-RPC 2.0 error codes used on the wire.
const (
	// CodeMethodNotFound is sent back to the peer when it issues a request
	// for a method with no registered handler.
	CodeMethodNotFound = -32601

	// CodeInvalidParams indicates a request carried malformed parameters.
	CodeInvalidParams = -32602

	// CodeInternalError indicates a handler failed while producing a result.
	CodeInternalError = -32603
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with NewClient()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrRequestTimeout indicates an outbound call exceeded its deadline.
	// The call is abandoned locally; a late response from the peer is dropped.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrDisconnected indicates the connection was torn down while calls
	// were outstanding. Every such call resolves with this error.
	ErrDisconnected = errors.New("connection closed with call outstanding")

	// ErrSessionDestroyed indicates an operation was attempted on a
	// destroyed session.
	ErrSessionDestroyed = errors.New("session destroyed")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")
)

// CLINotFoundError indicates the Copilot CLI binary was not found.
type CLINotFoundError struct {
	SearchedPaths []string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("copilot CLI not found in: %v", e.SearchedPaths)
}

// IsCopilotSDKError implements CopilotSDKError.
func (e *CLINotFoundError) IsCopilotSDKError() bool { return true }

// ConnectionError indicates failure to connect to the CLI server.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to CLI: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsCopilotSDKError implements CopilotSDKError.
func (e *ConnectionError) IsCopilotSDKError() bool { return true }

// ProcessError indicates the CLI process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("CLI process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("CLI process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsCopilotSDKError implements CopilotSDKError.
func (e *ProcessError) IsCopilotSDKError() bool { return true }

// ProtocolError indicates a malformed frame, header, or JSON envelope.
// Protocol errors are fatal to the connection: the read loop shuts down
// and all outstanding calls resolve with ErrDisconnected.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsCopilotSDKError implements CopilotSDKError.
func (e *ProtocolError) IsCopilotSDKError() bool { return true }

// TransportError indicates a write to the peer failed (e.g., broken pipe).
// It is surfaced to the caller of the failing write only; other callers
// and the read loop are unaffected.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsCopilotSDKError implements CopilotSDKError.
func (e *TransportError) IsCopilotSDKError() bool { return true }

// RPCError is an error object returned by the peer for one of our calls.
// It carries the JSON-RPC error code, message, and optional data payload.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsCopilotSDKError implements CopilotSDKError.
func (e *RPCError) IsCopilotSDKError() bool { return true }
