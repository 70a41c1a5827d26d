// ABOUTME: Single-hop message routing to the agent that owns a session
// ABOUTME: One call, one ownership update, optional real-time push, no retries

package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/2389/carebridge/internal/envelope"
	"github.com/2389/carebridge/internal/history"
	"github.com/2389/carebridge/internal/session"
)

// AgentCaller performs one webhook round trip to a named agent.
type AgentCaller interface {
	Call(ctx context.Context, toAgent, sessionID, fromAgent string, message json.RawMessage) (*envelope.Reply, error)
}

// TurnLog appends completed hops to the conversation log.
type TurnLog interface {
	Append(ctx context.Context, turn *history.Turn) (*history.Turn, error)
}

// Notifier pushes a reply to a registered real-time client. Delivery is
// fire-and-forget; an unregistered session is not an error.
type Notifier interface {
	Deliver(sessionID, message, respondingAgent string)
}

// Router handles interactive mode: each inbound user message goes to the
// session's current owner, and a successful reply hands ownership to the
// responding agent.
type Router struct {
	sessions *session.Store
	caller   AgentCaller
	log      TurnLog
	notifier Notifier
	logger   *slog.Logger
}

// New creates a message router. notifier may be nil when no real-time
// transport is wired.
func New(sessions *session.Store, caller AgentCaller, log TurnLog, notifier Notifier) *Router {
	return &Router{
		sessions: sessions,
		caller:   caller,
		log:      log,
		notifier: notifier,
		logger:   slog.Default().With("component", "router"),
	}
}

// Route sends one user message to the session's owning agent and returns the
// validated reply. On any call failure the session state is left untouched so
// the caller can resubmit. The session lock is held for the whole hop, so two
// concurrent routes for one session run back to back, never interleaved.
func (r *Router) Route(ctx context.Context, sessionID string, message json.RawMessage) (*envelope.Reply, error) {
	sess := r.sessions.Get(sessionID)
	sess.Lock()
	defer sess.Unlock()

	owner := sess.CurrentAgent()
	r.logger.Debug("routing message", "session_id", sessionID, "to_agent", owner)

	reply, err := r.caller.Call(ctx, owner, sessionID, "user", message)
	if err != nil {
		r.logger.Warn("route failed",
			"session_id", sessionID,
			"to_agent", owner,
			"error", err)
		return nil, err
	}

	sess.SetCurrentAgent(reply.FromAgent)

	if _, err := r.log.Append(ctx, &history.Turn{
		SessionID:   sessionID,
		FromAgent:   reply.FromAgent,
		ToAgent:     reply.ToAgent,
		Message:     reply.Output,
		ExecutionID: reply.ExecutionID,
	}); err != nil {
		// The reply was already produced; losing the log entry must not
		// fail delivery to the caller.
		r.logger.Error("appending routed turn", "session_id", sessionID, "error", err)
	}

	if r.notifier != nil {
		r.notifier.Deliver(sessionID, reply.Output, reply.FromAgent)
	}

	r.logger.Info("message routed",
		"session_id", sessionID,
		"responding_agent", reply.FromAgent)

	return reply, nil
}
