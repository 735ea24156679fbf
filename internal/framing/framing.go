// Package framing implements Content-Length framing over a byte stream.
//
// Each frame is an ASCII header line "Content-Length: <N>\r\n", a blank
// line "\r\n", then exactly N bytes of payload. Lengths are byte counts
// of the serialized payload, never rune counts, so payloads may contain
// arbitrary bytes including newlines and multi-byte characters.
package framing

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/copilotstream/copilot-sdk-go/internal/errors"
)

// headerContentLength is the only header the protocol requires. Unknown
// header lines before the blank separator are ignored for compatibility.
const headerContentLength = "Content-Length"

// maxFrameSize caps a single frame payload. Frames above this limit are
// treated as protocol errors rather than attempted allocations.
const maxFrameSize = 64 * 1024 * 1024 // 64MB

// Reader decodes frames from a byte stream.
//
// A Reader is not safe for concurrent use; the dispatch loop is its only
// caller.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a frame reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadFrame reads one complete frame and returns its payload bytes.
//
// A clean close between frames returns io.EOF. A missing or unparseable
// header, a non-numeric length, or a stream that ends mid-frame returns
// *errors.ProtocolError.
func (r *Reader) ReadFrame() ([]byte, error) {
	length, err := r.readHeader()
	if err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		// EOF mid-payload is a truncated frame, not a clean close.
		return nil, &errors.ProtocolError{
			Reason: fmt.Sprintf("stream closed inside %d-byte payload", length),
			Err:    err,
		}
	}

	return payload, nil
}

// readHeader consumes header lines up to and including the blank
// separator and returns the announced payload length.
func (r *Reader) readHeader() (int, error) {
	length := -1
	sawHeader := false

	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" && !sawHeader {
				// Clean close between frames.
				return 0, io.EOF
			}

			return 0, &errors.ProtocolError{
				Reason: "stream closed inside frame header",
				Err:    err,
			}
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			// Blank separator terminates the header block.
			break
		}

		sawHeader = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, &errors.ProtocolError{
				Reason: fmt.Sprintf("malformed header line %q", line),
			}
		}

		if !strings.EqualFold(strings.TrimSpace(name), headerContentLength) {
			// Unknown headers are skipped.
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, &errors.ProtocolError{
				Reason: fmt.Sprintf("non-numeric Content-Length %q", strings.TrimSpace(value)),
				Err:    err,
			}
		}

		length = n
	}

	if length < 0 {
		return 0, &errors.ProtocolError{Reason: "missing Content-Length header"}
	}

	if length > maxFrameSize {
		return 0, &errors.ProtocolError{
			Reason: fmt.Sprintf("frame of %d bytes exceeds %d-byte limit", length, maxFrameSize),
		}
	}

	return length, nil
}

// Writer encodes frames onto a byte stream.
//
// Writes are serialized through an internal mutex: interleaved partial
// writes from concurrent callers would corrupt framing.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a frame writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one complete frame: header, blank line, payload.
//
// The header and payload are emitted as a single Write call so a frame
// is never split across an underlying pipe boundary mid-header. Write
// failures return *errors.TransportError.
func (w *Writer) WriteFrame(payload []byte) error {
	header := fmt.Sprintf("%s: %d\r\n\r\n", headerContentLength, len(payload))

	buf := make([]byte, 0, len(header)+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(buf); err != nil {
		return &errors.TransportError{Op: "write frame", Err: err}
	}

	return nil
}
