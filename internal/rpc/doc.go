// Package rpc implements the bidirectional JSON-RPC 2.0 engine.
//
// A Conn owns two goroutines: the dispatch loop, which performs blocking
// reads from the transport and classifies every envelope, and the
// notification dispatcher, which hands unsolicited peer messages to the
// application in emission order. Outbound calls are correlated to
// responses through a pending-call table keyed by ULID; peer-initiated
// requests run registered handlers concurrently with outbound traffic.
//
// Every call terminates in bounded time: a result, a peer error, a
// timeout, or ErrDisconnected when the connection is torn down with the
// call outstanding.
package rpc
