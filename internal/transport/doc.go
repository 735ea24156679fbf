// Package transport provides the built-in transports for talking to the
// Copilot CLI: a subprocess transport that spawns the CLI and frames
// messages over its stdio, and a TCP transport that dials an externally
// started CLI server.
package transport
