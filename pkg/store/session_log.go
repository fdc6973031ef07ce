// Package store persists the agent's session lifecycle history: an
// append-only log of wake, failed-wake, and sleep transitions. The log is an
// optional collaborator of the wake-up protocol; recording failures never
// block a wake-up.
package store

import (
	"context"
	"time"
)

// Event names recorded in the session log.
const (
	EventWake       = "wake"
	EventWakeFailed = "wake_failed"
	EventSleep      = "sleep"
)

// SessionEvent is one lifecycle transition.
type SessionEvent struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id,omitempty"` // empty for failed wake-ups
	AgentDID  string    `json:"agent_did"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"` // diagnostic trail, JSON-encoded
	Timestamp time.Time `json:"timestamp"`
}

// SessionLog records lifecycle events.
type SessionLog interface {
	Record(ctx context.Context, ev SessionEvent) error
}
