package copilotsdk

import (
	"context"

	"github.com/copilotstream/copilot-sdk-go/internal/client"
)

// Compile-time verification that clientWrapper implements Client.
var _ Client = (*clientWrapper)(nil)

// clientWrapper adapts the internal client to the public Client
// interface, translating functional options into the internal options
// struct.
type clientWrapper struct {
	impl *client.Client
}

func newClientWrapper() *clientWrapper {
	return &clientWrapper{impl: client.New()}
}

// Start implements Client.
func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

// Ping implements Client.
func (c *clientWrapper) Ping(ctx context.Context) error {
	return c.impl.Ping(ctx)
}

// CreateSession implements Client.
func (c *clientWrapper) CreateSession(ctx context.Context, cfg *SessionConfig) (*Session, error) {
	return c.impl.CreateSession(ctx, cfg)
}

// ResumeSession implements Client.
func (c *clientWrapper) ResumeSession(ctx context.Context, sessionID string, cfg *SessionConfig) (*Session, error) {
	return c.impl.ResumeSession(ctx, sessionID, cfg)
}

// Session implements Client.
func (c *clientWrapper) Session(id string) (*Session, bool) {
	return c.impl.Session(id)
}

// Done implements Client.
func (c *clientWrapper) Done() <-chan struct{} {
	return c.impl.Done()
}

// FatalError implements Client.
func (c *clientWrapper) FatalError() error {
	return c.impl.FatalError()
}

// Close implements Client.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
