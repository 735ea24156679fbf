package config

import (
	"log/slog"
	"time"
)

// DefaultRequestTimeout bounds each RPC call to the CLI when the caller
// does not override it.
const DefaultRequestTimeout = 30 * time.Second

// Options configures the behavior of the Copilot client.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// CLIPath is the explicit path to the copilot CLI binary.
	// If empty, the CLI will be searched in PATH and common install
	// locations.
	CLIPath string

	// CLIURL is a host:port address of an externally started CLI
	// server. If set, the client dials it over TCP instead of
	// spawning a subprocess, and CLIPath is ignored.
	CLIURL string

	// Cwd sets the working directory for the CLI process.
	Cwd string

	// Env provides additional environment variables for the CLI process.
	Env map[string]string

	// Stderr is a callback invoked with each line of CLI stderr output.
	Stderr func(string)

	// RequestTimeout bounds each RPC call to the CLI.
	// If zero, DefaultRequestTimeout is used.
	RequestTimeout time.Duration

	// Transport allows injecting a custom transport implementation.
	// If nil, a subprocess transport (or TCP transport when CLIURL is
	// set) is created automatically.
	// This field is not serialized to JSON.
	Transport Transport `json:"-"`
}

// EffectiveRequestTimeout returns RequestTimeout or the default when unset.
func (o *Options) EffectiveRequestTimeout() time.Duration {
	if o.RequestTimeout > 0 {
		return o.RequestTimeout
	}

	return DefaultRequestTimeout
}
