package rpc

import (
	"encoding/json"
)

// Version is the JSON-RPC protocol version carried in every envelope.
const Version = "2.0"

// Envelope is one JSON-RPC 2.0 message: a request, response, or
// notification, distinguished by which fields are present.
//
// Wire format:
//
//	{"jsonrpc":"2.0","id"?:string,"method"?:string,"params"?:object,
//	 "result"?:any,"error"?:{"code":int,"message":string,"data"?:any}}
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *string         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC error member of a response envelope.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Kind classifies an inbound envelope.
type Kind int

const (
	// KindInvalid marks an envelope with neither id nor method.
	KindInvalid Kind = iota

	// KindResponse is a reply to one of our outbound calls: an id with no
	// method.
	KindResponse

	// KindNotification is an unsolicited peer message: a method with no id.
	KindNotification

	// KindRequest is a peer-initiated request expecting a response: both
	// method and id present.
	KindRequest
)

// Kind applies the classification rule from the protocol: presence of a
// correlation id with no method means response; method with no id means
// notification; both mean a peer-initiated request.
func (e *Envelope) Kind() Kind {
	switch {
	case e.ID != nil && e.Method == "":
		return KindResponse
	case e.ID == nil && e.Method != "":
		return KindNotification
	case e.ID != nil && e.Method != "":
		return KindRequest
	default:
		return KindInvalid
	}
}

// newRequest builds an outbound request envelope with marshaled params.
func newRequest(id, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	return &Envelope{JSONRPC: Version, ID: &id, Method: method, Params: raw}, nil
}

// newNotification builds an outbound notification envelope.
func newNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	return &Envelope{JSONRPC: Version, Method: method, Params: raw}, nil
}

// newResult builds a success response for a peer-initiated request.
func newResult(id string, result any) (*Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	return &Envelope{JSONRPC: Version, ID: &id, Result: raw}, nil
}

// newError builds an error response for a peer-initiated request.
func newError(id string, code int, message string, data any) *Envelope {
	return &Envelope{
		JSONRPC: Version,
		ID:      &id,
		Error:   &ErrorObject{Code: code, Message: message, Data: data},
	}
}

// marshalParams marshals params, passing raw JSON through untouched and
// mapping nil to an empty object so "params" is always a JSON object.
func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage(`{}`), nil
	}

	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	return raw, nil
}
