// Package client implements the Copilot client: it owns the transport,
// the RPC connection, and the session registry, and routes CLI-initiated
// traffic (session events, tool calls, permission prompts) to the
// owning session.
package client
