package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/copilotstream/copilot-sdk-go/internal/cli"
	"github.com/copilotstream/copilot-sdk-go/internal/config"
	"github.com/copilotstream/copilot-sdk-go/internal/errors"
	"github.com/copilotstream/copilot-sdk-go/internal/framing"
)

// maxStderrBufferSize is the maximum size for the stderr buffer.
// Stderr reading continues indefinitely (callback receives all lines),
// but the buffer stops growing after this limit to prevent unbounded
// memory usage.
const maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

// CLITransport implements Transport by spawning a Copilot CLI subprocess
// and speaking the framed protocol over its stdin and stdout.
type CLITransport struct {
	log            *slog.Logger
	options        *config.Options
	cliPath        string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	writer         *framing.Writer
	stderrCallback func(string)
	mu             sync.Mutex // Protects process state below
	closing        bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed    bool       // Whether stdin was closed (e.g., due to context cancellation)
}

// Compile-time verification that CLITransport implements the Transport interface.
var _ config.Transport = (*CLITransport)(nil)

// NewCLITransport creates a new CLI transport with the given options.
//
// The logger is used for operation tracking and debugging. CLI discovery
// is deferred to Start(), which searches for the Copilot CLI binary in
// the following order:
//  1. The explicit path in options.CLIPath (if provided)
//  2. The system PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// Start() returns CLINotFoundError if the CLI binary cannot be located.
func NewCLITransport(log *slog.Logger, options *config.Options) *CLITransport {
	return &CLITransport{
		log:            log.With("component", "cli_transport"),
		options:        options,
		stderrCallback: options.Stderr,
	}
}

// Start starts the CLI subprocess.
//
// This method discovers the Copilot CLI binary, builds the headless
// server invocation, and spawns the process with the configured
// environment variables. It sets up stdin, stdout, and stderr pipes for
// communication.
//
// Returns CLINotFoundError if the CLI binary cannot be located,
// or ConnectionError if the process fails to start.
func (t *CLITransport) Start(ctx context.Context) error {
	t.log.Info("Starting Copilot CLI subprocess")

	discoverer := cli.NewDiscoverer(&cli.Config{
		CLIPath: t.options.CLIPath,
		Logger:  t.log,
	})

	cliPath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover CLI: %w", err)
	}

	t.cliPath = cliPath

	command := cli.BuildCommand(cliPath, t.options)
	t.log.Debug("Built command", "args", command.Args)

	cwd := command.Dir
	if cwd == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	t.log.Debug("Set working directory", "cwd", cwd)

	//nolint:gosec // G204: Subprocess launching with a discovered path is expected for CLI invocation
	cmd := exec.CommandContext(ctx, command.Path, command.Args...)
	cmd.Dir = cwd
	cmd.Env = command.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	t.stdin = stdin
	t.writer = framing.NewWriter(stdin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	t.stdout = stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	t.stderr = stderr

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start CLI process", "error", err)

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.cmd = cmd
	t.log.Info("Copilot CLI subprocess started successfully", "pid", cmd.Process.Pid)

	return nil
}

// ReadMessages reads framed JSON payloads from the CLI stdout.
//
// This method starts a goroutine that reads one protocol frame at a
// time from the CLI process stdout and sends each payload to the
// messages channel. The goroutine exits when:
//   - The CLI closes its stdout between frames (clean shutdown)
//   - The context is cancelled
//   - A framing violation or read error occurs
//
// When the process exits with a non-zero status outside an intentional
// Close(), a ProcessError carrying the buffered stderr is sent to the
// error channel. The goroutine closes both channels when it exits.
func (t *CLITransport) ReadMessages(ctx context.Context) (<-chan json.RawMessage, <-chan error) {
	messages := make(chan json.RawMessage)
	errs := make(chan error, 1)

	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Stderr must be drained before cmd.Wait().
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrWg.Go(func() {
		// Relies on process kill to close pipes and unblock Scan().
		scanner := bufio.NewScanner(t.stderr)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		reader := framing.NewReader(t.stdout)

		frameCount := 0

		for {
			select {
			case <-ctx.Done():
				t.log.Debug("Context cancelled during read", "error", ctx.Err())

				errs <- ctx.Err()

				return
			default:
			}

			payload, err := reader.ReadFrame()
			if err != nil {
				if stderrors.Is(err, io.EOF) {
					t.log.Debug("CLI stdout closed", "frame_count", frameCount)

					break
				}

				t.log.Error("Failed to read frame from CLI", "error", err)

				errs <- err

				return
			}

			frameCount++
			t.log.Debug("Received frame from CLI", "frame_count", frameCount, "payload_len", len(payload))

			select {
			case messages <- json.RawMessage(payload):
			case <-ctx.Done():
				t.log.Debug("Context cancelled during message send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		// Wait for stderr goroutine before process wait
		stderrWg.Wait()

		t.log.Debug("Waiting for CLI process to exit")

		if err := t.cmd.Wait(); err != nil {
			t.mu.Lock()
			isClosing := t.closing
			t.mu.Unlock()

			if isClosing {
				t.log.Debug("CLI process terminated during shutdown")

				return
			}

			stderrMu.Lock()

			stderrOutput := stderrBuffer.String()

			stderrMu.Unlock()

			exitCode := 0

			if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
				exitCode = exitErr.ExitCode()
			}

			t.log.Error("CLI process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

			errs <- &errors.ProcessError{
				ExitCode: exitCode,
				Stderr:   stderrOutput,
				Err:      err,
			}
		} else {
			t.log.Info("CLI process exited successfully")
		}
	}()

	return messages, errs
}

// SendMessage frames and sends one JSON payload to the CLI stdin.
//
// This method is safe for concurrent use and respects context
// cancellation even during blocking writes. If the context is cancelled
// during a blocked write, stdin is closed to unblock the goroutine.
// Subsequent calls will return ErrStdinClosed.
func (t *CLITransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writer == nil {
		return errors.ErrTransportNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Sending frame to CLI", "payload_len", len(data))

	// Write in goroutine to respect context cancellation
	done := make(chan error, 1)

	go func() {
		done <- t.writer.WriteFrame(data)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write frame to CLI", "error", err)

			return err
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		if t.stdin != nil {
			_ = t.stdin.Close()
			t.stdinClosed = true
		}

		// Wait for the write goroutine to exit with timeout to prevent a leak
		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady checks if the transport is ready for communication.
//
// Returns true if the CLI process is running and stdin is open.
func (t *CLITransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.cmd.Process != nil && !t.stdinClosed && t.stdin != nil
}

// Close terminates the CLI process.
//
// This forcefully kills the CLI process using SIGKILL. It's safe to call
// Close multiple times or on an already-terminated process.
func (t *CLITransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	t.stdinClosed = true

	if t.cmd != nil && t.cmd.Process != nil {
		t.log.Debug("Killing CLI process", "pid", t.cmd.Process.Pid)

		if err := t.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill CLI process (pid %d): %w", t.cmd.Process.Pid, err)
		}
	}

	return nil
}
