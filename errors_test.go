package copilotsdk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypes_ImplementMarker(t *testing.T) {
	cases := []CopilotSDKError{
		&CLINotFoundError{SearchedPaths: []string{"/usr/local/bin"}},
		&ConnectionError{Err: errors.New("dial refused")},
		&ProcessError{ExitCode: 1, Stderr: "fatal: bad flag"},
		&ProtocolError{Reason: "malformed frame"},
		&TransportError{Op: "write", Err: errors.New("broken pipe")},
		&RPCError{Code: CodeInternalError, Message: "boom"},
	}

	for _, err := range cases {
		assert.True(t, err.IsCopilotSDKError())
		assert.NotEmpty(t, err.Error())
	}
}

func TestSentinels_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrClientNotConnected,
		ErrClientAlreadyConnected,
		ErrClientClosed,
		ErrTransportNotConnected,
		ErrRequestTimeout,
		ErrDisconnected,
		ErrSessionDestroyed,
		ErrStdinClosed,
	}

	seen := make(map[string]bool, len(sentinels))
	for _, err := range sentinels {
		require.Error(t, err)
		assert.False(t, seen[err.Error()], "duplicate sentinel message: %s", err.Error())
		seen[err.Error()] = true
	}
}

func TestRPCError_CarriesWireCode(t *testing.T) {
	err := &RPCError{Code: CodeMethodNotFound, Message: "no handler"}

	assert.Equal(t, -32601, err.Code)
	assert.Contains(t, err.Error(), "no handler")
}
