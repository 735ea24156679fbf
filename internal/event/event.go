// Package event provides session event types for Copilot conversations.
package event

import (
	"encoding/json"
	"fmt"
)

// Event type constants.
const (
	TypeMessageDelta = "assistant.message_delta"
	TypeMessage      = "assistant.message"
	TypeIdle         = "session.idle"
	TypeError        = "session.error"
	TypeUsage        = "session.usage"
	TypeToolStarted  = "tool.started"
	TypeToolFinished = "tool.finished"
)

// Event is one entry in a session's event stream.
//
// Type selects the payload shape; Data carries the payload verbatim so
// that event types introduced by newer CLI versions survive decoding.
// Use the typed accessors (MessageDelta, SessionError, ...) to decode
// known payloads.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// IsTerminal reports whether the event ends the current turn. A turn
// ends when the session goes idle or fails.
func (e *Event) IsTerminal() bool {
	return e.Type == TypeIdle || e.Type == TypeError
}

// MessageDelta is an incremental chunk of assistant output.
type MessageDelta struct {
	DeltaContent string `json:"deltaContent"`
}

// Message is a complete assistant message.
type Message struct {
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content"`
}

// SessionError describes a turn that failed inside the CLI.
type SessionError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error implements the error interface so a failed turn can be returned
// directly from blocking helpers.
func (e *SessionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("session error (%s): %s", e.Code, e.Message)
	}

	return fmt.Sprintf("session error: %s", e.Message)
}

// Usage reports token accounting for the turn so far.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// ToolActivity describes a tool invocation surfaced as an event.
type ToolActivity struct {
	ToolCallID string `json:"toolCallId"`
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
}

// MessageDelta decodes the payload of an assistant.message_delta event.
func (e *Event) MessageDelta() (*MessageDelta, error) {
	return decodePayload[MessageDelta](e, TypeMessageDelta)
}

// Message decodes the payload of an assistant.message event.
func (e *Event) Message() (*Message, error) {
	return decodePayload[Message](e, TypeMessage)
}

// SessionError decodes the payload of a session.error event.
func (e *Event) SessionError() (*SessionError, error) {
	return decodePayload[SessionError](e, TypeError)
}

// Usage decodes the payload of a session.usage event.
func (e *Event) Usage() (*Usage, error) {
	return decodePayload[Usage](e, TypeUsage)
}

// ToolActivity decodes the payload of a tool.started or tool.finished event.
func (e *Event) ToolActivity() (*ToolActivity, error) {
	if e.Type != TypeToolStarted && e.Type != TypeToolFinished {
		return nil, fmt.Errorf("event type %q carries no tool activity payload", e.Type)
	}

	var payload ToolActivity
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}

	return &payload, nil
}

// decodePayload unmarshals an event payload after checking the type tag.
func decodePayload[T any](e *Event, want string) (*T, error) {
	if e.Type != want {
		return nil, fmt.Errorf("event type is %q, not %q", e.Type, want)
	}

	var payload T
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", want, err)
	}

	return &payload, nil
}
