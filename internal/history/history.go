// ABOUTME: Append-only per-session conversation log types
// ABOUTME: Turns record who spoke, who was addressed, payload, and correlation id

package history

import (
	"errors"
	"time"
)

// ErrSessionNotFound indicates no turns exist for the requested session.
var ErrSessionNotFound = errors.New("session not found")

// Turn is one immutable request/reply exchange with a single agent.
// An empty ToAgent marks the turn that terminated its handoff chain.
type Turn struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Seq         int64     `json:"seq"`
	FromAgent   string    `json:"from_agent"`
	ToAgent     string    `json:"to_agent"`
	Message     string    `json:"message"`
	ExecutionID string    `json:"execution_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
