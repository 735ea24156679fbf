// Package config provides configuration types for the Copilot SDK.
package config

import (
	"context"
	"encoding/json"
)

// Transport defines the interface for Copilot CLI communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation spawns the CLI as a subprocess and frames
// messages over its stdio. A TCP transport is used when Options.CLIURL
// is set. Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields one raw JSON payload per protocol frame.
	// The error channel yields any errors that occur during reading.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan json.RawMessage, <-chan error)

	// SendMessage frames and sends one JSON payload to the peer.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}
