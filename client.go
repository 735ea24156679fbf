package copilotsdk

import (
	"context"
)

// Client provides a stateful connection to the copilot CLI hosting any
// number of concurrent sessions.
//
// Unlike the one-shot Query() function, Client keeps the CLI process
// alive across turns and sessions. It supports streaming events, custom
// tools serviced in-process, and permission prompts.
//
// Lifecycle: clients are single-use. After Close(), create a new client
// with NewClient().
//
// Example usage:
//
//	client := NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, WithLogger(slog.Default())); err != nil {
//	    log.Fatal(err)
//	}
//
//	sess, err := client.CreateSession(ctx, &SessionConfig{Streaming: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Destroy(ctx)
//
//	off := sess.On(func(ev *Event) {
//	    // process event...
//	})
//	defer off()
//
//	if _, err := sess.Send(ctx, MessageOptions{Prompt: "Hello"}); err != nil {
//	    log.Fatal(err)
//	}
type Client interface {
	// Start establishes a connection to the copilot CLI.
	// Must be called before any other methods.
	// Returns a CLINotFoundError if the CLI is not found and a
	// ConnectionError if the handshake fails.
	Start(ctx context.Context, opts ...Option) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// CreateSession creates a new conversation. A nil config uses the
	// catalog default model with streaming disabled.
	CreateSession(ctx context.Context, cfg *SessionConfig) (*Session, error)

	// ResumeSession reattaches to a persisted conversation by id.
	// Tools and handlers are process-local, so the config must restate
	// them.
	ResumeSession(ctx context.Context, sessionID string, cfg *SessionConfig) (*Session, error)

	// Session returns the live session with the given id, if any.
	Session(id string) (*Session, bool)

	// Done is closed when the connection terminates for any reason.
	Done() <-chan struct{}

	// FatalError returns the error that tore down the connection, or nil
	// after a clean Close.
	FatalError() error

	// Close terminates the connection and the CLI process.
	// After Close(), the client cannot be reused. Safe to call multiple
	// times.
	Close() error
}

// NewClient creates a new interactive client.
//
// Call Start() with options to connect:
//
//	client := NewClient()
//	defer client.Close()
//
//	if err := client.Start(ctx, WithLogger(slog.Default())); err != nil {
//	    log.Fatal(err)
//	}
func NewClient() Client {
	return newClientWrapper()
}
