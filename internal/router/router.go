// Package router fans session events out to per-session subscriber sets.
//
// The router sits between the RPC notification sink and application
// callbacks: one Dispatch call per session.event notification, delivered
// to every subscriber registered for that session in insertion order.
package router

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/copilotstream/copilot-sdk-go/internal/event"
)

// Handler receives one session event.
type Handler func(ev *event.Event)

// Token identifies one subscription for later removal.
type Token struct {
	key string
	id  string
}

// entry is one subscriber in a session's ordered set.
type entry struct {
	id string
	fn Handler
}

// Router maps session ids to ordered subscriber sets.
//
// Dispatch snapshots the subscriber list before invoking callbacks, so
// subscribing or unsubscribing during dispatch affects only subsequent
// events. A panicking subscriber is logged and isolated; the remaining
// subscribers for the same event still run.
type Router struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string][]entry
}

// New creates an empty router.
func New(log *slog.Logger) *Router {
	return &Router{
		log:  log.With("component", "router"),
		subs: make(map[string][]entry, 4),
	}
}

// Register creates an empty subscriber set for a session id. Events for
// unregistered ids are dropped; registering marks the session as live.
func (r *Router) Register(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[key]; !exists {
		r.subs[key] = nil
	}
}

// Remove discards a session's subscriber set entirely. Events arriving
// afterwards for that id fall into the unknown-key drop path.
func (r *Router) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, key)
}

// Subscribe appends a handler to the session's subscriber set and
// returns the token that removes it.
func (r *Router) Subscribe(key string, fn Handler) Token {
	tok := Token{key: key, id: ulid.Make().String()}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[key] = append(r.subs[key], entry{id: tok.id, fn: fn})

	return tok
}

// Unsubscribe removes the subscription identified by tok. Safe to call
// while a dispatch for the same session is in flight: the in-flight
// snapshot still delivers the current event, later events skip the
// removed subscriber. Unsubscribing twice is a no-op.
func (r *Router) Unsubscribe(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, exists := r.subs[tok.key]
	if !exists {
		return
	}

	for i, e := range entries {
		if e.id == tok.id {
			// Copy-on-delete keeps any dispatch snapshot intact.
			next := make([]entry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			r.subs[tok.key] = next

			return
		}
	}
}

// Dispatch delivers one event to every current subscriber for key.
//
// An unknown key drops the event with a diagnostic: the session may have
// been destroyed while the event was in flight, which is a benign race.
func (r *Router) Dispatch(key string, ev *event.Event) {
	r.mu.RLock()
	entries, exists := r.subs[key]
	snapshot := make([]entry, len(entries))
	copy(snapshot, entries)
	r.mu.RUnlock()

	if !exists {
		r.log.Debug("Dropping event for unknown session", "session_id", key, "event_type", ev.Type)

		return
	}

	for _, e := range snapshot {
		r.invoke(key, e, ev)
	}
}

// invoke runs one subscriber with panic isolation.
func (r *Router) invoke(key string, e entry, ev *event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Subscriber panicked",
				"session_id", key,
				"event_type", ev.Type,
				"panic", rec,
			)
		}
	}()

	e.fn(ev)
}

// SubscriberCount reports the number of subscribers for a session id.
func (r *Router) SubscriberCount(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[key])
}
