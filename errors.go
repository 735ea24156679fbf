package copilotsdk

import (
	"github.com/copilotstream/copilot-sdk-go/internal/errors"
)

// Re-export error types from internal/errors.

// CopilotSDKError is the base interface for all SDK errors.
type CopilotSDKError = errors.CopilotSDKError

// CLINotFoundError indicates the copilot CLI binary was not found.
type CLINotFoundError = errors.CLINotFoundError

// ConnectionError indicates the connection to the CLI could not be
// established.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the CLI process failed, carrying its exit code
// and captured stderr.
type ProcessError = errors.ProcessError

// ProtocolError indicates the CLI sent a message that violates the
// protocol, such as a malformed frame or an unexpected result shape.
type ProtocolError = errors.ProtocolError

// TransportError indicates a failure reading from or writing to the
// transport.
type TransportError = errors.TransportError

// RPCError is a JSON-RPC error response from the CLI, carrying the
// peer's error code and message.
type RPCError = errors.RPCError

// JSON-RPC 2.0 error codes used on the wire.
const (
	// CodeMethodNotFound is sent back to the peer when it issues a request
	// for a method with no registered handler.
	CodeMethodNotFound = errors.CodeMethodNotFound

	// CodeInvalidParams indicates a request carried malformed parameters.
	CodeInvalidParams = errors.CodeInvalidParams

	// CodeInternalError indicates a handler failed while producing a result.
	CodeInternalError = errors.CodeInternalError
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be
	// reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrRequestTimeout indicates an outbound call exceeded its deadline.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrDisconnected indicates the connection was torn down while calls
	// were outstanding.
	ErrDisconnected = errors.ErrDisconnected

	// ErrSessionDestroyed indicates an operation was attempted on a
	// destroyed session.
	ErrSessionDestroyed = errors.ErrSessionDestroyed

	// ErrStdinClosed indicates stdin was closed due to context
	// cancellation.
	ErrStdinClosed = errors.ErrStdinClosed
)
