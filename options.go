package copilotsdk

import (
	"log/slog"
	"time"

	"github.com/copilotstream/copilot-sdk-go/internal/config"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring clients and queries.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCLIPath sets an explicit path to the copilot CLI binary,
// bypassing PATH discovery.
func WithCLIPath(path string) Option {
	return func(o *Options) {
		o.CLIPath = path
	}
}

// WithCLIURL connects to an externally started CLI server at the given
// host:port address over TCP instead of spawning a subprocess.
func WithCLIURL(url string) Option {
	return func(o *Options) {
		o.CLIURL = url
	}
}

// WithCwd sets the working directory for the CLI process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the CLI process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithStderr sets a callback invoked with each line of CLI stderr output.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// WithRequestTimeout bounds each RPC call to the CLI.
// If not set, DefaultRequestTimeout is used.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = timeout
	}
}

// WithTransport injects a custom transport implementation.
// Useful for testing or alternative process management.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// WithOptions copies all fields from a pre-built Options struct, such as
// one returned by LoadOptions. Later options in the list override
// individual fields.
func WithOptions(base *Options) Option {
	return func(o *Options) {
		if base != nil {
			*o = *base
		}
	}
}

// LoadOptions reads client options from a TOML file.
//
// Recognized keys: cli_path, cli_url, cwd, request_timeout (a duration
// string such as "45s"), and an [env] table of environment variables.
// Combine with WithOptions to use the result with Start or Query.
func LoadOptions(path string) (*Options, error) {
	return config.LoadOptions(path)
}
