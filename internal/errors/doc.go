// Package errors defines the error taxonomy shared across the SDK.
//
// Failures split along the boundaries that matter to callers: protocol
// errors kill the connection, transport errors belong to the failing
// write, timeouts and peer error objects belong to the issuing call, and
// teardown resolves everything still outstanding with ErrDisconnected.
package errors
