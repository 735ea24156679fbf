// Package mcp implements an in-process Model Context Protocol server.
//
// The MCP server allows users to register custom tools that Copilot can
// invoke during a session. External servers (stdio, SSE, HTTP) are
// described by configuration and connected by the CLI itself; SDK
// servers run inside this process and are invoked directly when the CLI
// sends a tool.call request.
//
// The server maintains a thread-safe registry of tools and handles tool
// listing and execution requests from the Copilot CLI.
package mcp
