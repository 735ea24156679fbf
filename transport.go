package copilotsdk

import "github.com/copilotstream/copilot-sdk-go/internal/config"

// Transport is the low-level message channel between the SDK and the
// CLI. The SDK ships a subprocess transport (the default) and a TCP
// transport (selected by WithCLIURL); inject an alternative with
// WithTransport.
//
// Implementations carry whole JSON-RPC messages. Framing, request
// correlation and dispatch live above the transport.
type Transport = config.Transport
