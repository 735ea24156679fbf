package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/copilotstream/copilot-sdk-go/internal/config"
	"github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/framing"
)

// dialTimeout bounds the TCP connect to an external CLI server.
const dialTimeout = 10 * time.Second

// TCPTransport implements Transport by dialing an externally started
// CLI server and speaking the framed protocol over the connection.
type TCPTransport struct {
	log    *slog.Logger
	addr   string
	mu     sync.Mutex
	conn   net.Conn
	writer *framing.Writer
	closed bool
}

var _ config.Transport = (*TCPTransport)(nil)

// NewTCPTransport creates a transport that will dial addr (host:port).
func NewTCPTransport(log *slog.Logger, addr string) *TCPTransport {
	return &TCPTransport{
		log:  log.With("component", "tcp_transport"),
		addr: addr,
	}
}

// Start dials the CLI server.
func (t *TCPTransport) Start(ctx context.Context) error {
	t.log.Info("Dialing Copilot CLI server", "addr", t.addr)

	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		t.log.Error("Failed to dial CLI server", "addr", t.addr, "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("dial %s: %w", t.addr, err)}
	}

	t.mu.Lock()
	t.conn = conn
	t.writer = framing.NewWriter(conn)
	t.mu.Unlock()

	t.log.Info("Connected to Copilot CLI server", "addr", t.addr)

	return nil
}

// ReadMessages reads framed JSON payloads from the connection.
//
// The goroutine closes both channels when the server closes the
// connection between frames, the context is cancelled, or a framing
// violation occurs.
func (t *TCPTransport) ReadMessages(ctx context.Context) (<-chan json.RawMessage, <-chan error) {
	messages := make(chan json.RawMessage)
	errs := make(chan error, 1)

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	go func() {
		defer close(messages)
		defer close(errs)

		reader := framing.NewReader(conn)

		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			default:
			}

			payload, err := reader.ReadFrame()
			if err != nil {
				if stderrors.Is(err, io.EOF) {
					t.log.Debug("CLI server closed the connection")

					return
				}

				t.mu.Lock()
				closed := t.closed
				t.mu.Unlock()

				// Close() tears down the socket under the reader.
				if closed {
					return
				}

				t.log.Error("Failed to read frame from CLI server", "error", err)

				errs <- err

				return
			}

			select {
			case messages <- json.RawMessage(payload):
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}
	}()

	return messages, errs
}

// SendMessage frames and sends one JSON payload to the server.
// Safe for concurrent use.
func (t *TCPTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	writer := t.writer
	closed := t.closed
	t.mu.Unlock()

	if writer == nil || closed {
		return errors.ErrTransportNotConnected
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return writer.WriteFrame(data)
}

// IsReady reports whether the connection is established and open.
func (t *TCPTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil && !t.closed
}

// Close shuts down the connection. Safe to call multiple times.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	if t.conn != nil {
		t.log.Debug("Closing connection", "addr", t.addr)

		return t.conn.Close()
	}

	return nil
}
