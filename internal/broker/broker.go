// ABOUTME: Bounded multi-hop handoff loop between agents
// ABOUTME: Fail-fast on hop errors, soft stop when the step budget runs out

package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/2389/carebridge/internal/envelope"
	"github.com/2389/carebridge/internal/history"
	"github.com/2389/carebridge/internal/metrics"
)

// Conversation outcome reported to the HTTP caller.
const (
	StatusCompleted = "completed"
	StatusStepLimit = "step_limit"
)

// AgentCaller performs one webhook round trip to a named agent.
type AgentCaller interface {
	Call(ctx context.Context, toAgent, sessionID, fromAgent string, message json.RawMessage) (*envelope.Reply, error)
}

// TurnLog appends completed hops to the conversation log.
type TurnLog interface {
	Append(ctx context.Context, turn *history.Turn) (*history.Turn, error)
}

// Result is the outcome of one broker run: the turns produced by this run
// (not the whole session log) and how the loop ended.
type Result struct {
	Status string          `json:"status"`
	Turns  []*history.Turn `json:"messages"`
}

// Broker drives agent-to-agent handoffs for a session until an agent signals
// completion or the step budget is exhausted. Hops run strictly sequentially;
// each reply's output becomes the next hop's input.
type Broker struct {
	caller    AgentCaller
	log       TurnLog
	maxSteps  int
	initiator string
	logger    *slog.Logger
}

// New creates a conversation broker. initiator names the role the first hop
// appears to come from.
func New(caller AgentCaller, log TurnLog, maxSteps int, initiator string) *Broker {
	return &Broker{
		caller:    caller,
		log:       log,
		maxSteps:  maxSteps,
		initiator: initiator,
		logger:    slog.Default().With("component", "broker"),
	}
}

// Run executes the handoff loop starting at startAgent with startMessage.
// Each run appends its turns after whatever the session log already holds;
// prior history is never replayed or rewritten.
//
// A hop that fails (unreachable agent, malformed reply, unknown handoff
// target) aborts the loop immediately and is returned as an error, leaving
// the log truncated at the last successful turn. Exhausting the step budget
// is not an error: the run returns StatusStepLimit with the turns it made.
func (b *Broker) Run(ctx context.Context, sessionID, startAgent string, startMessage json.RawMessage) (*Result, error) {
	agent := startAgent
	message := startMessage
	prevAgent := b.initiator

	b.logger.Info("conversation started",
		"session_id", sessionID,
		"start_agent", startAgent,
		"max_steps", b.maxSteps)

	turns := make([]*history.Turn, 0, b.maxSteps)
	for step := 1; step <= b.maxSteps; step++ {
		reply, err := b.caller.Call(ctx, agent, sessionID, prevAgent, message)
		if err != nil {
			b.logger.Warn("hop failed, aborting conversation",
				"session_id", sessionID,
				"step", step,
				"to_agent", agent,
				"error", err)
			return nil, err
		}
		metrics.RecordHop(reply.FromAgent)

		stored, err := b.log.Append(ctx, &history.Turn{
			SessionID:   sessionID,
			FromAgent:   reply.FromAgent,
			ToAgent:     reply.ToAgent,
			Message:     reply.Output,
			ExecutionID: reply.ExecutionID,
		})
		if err != nil {
			b.logger.Error("appending turn", "session_id", sessionID, "step", step, "error", err)
			return nil, err
		}
		turns = append(turns, stored)

		b.logger.Debug("hop completed",
			"session_id", sessionID,
			"step", step,
			"from_agent", reply.FromAgent,
			"to_agent", reply.ToAgent,
			"finished", reply.Finished())

		if reply.Finished() {
			b.logger.Info("conversation completed",
				"session_id", sessionID,
				"turns", len(turns))
			return &Result{Status: StatusCompleted, Turns: turns}, nil
		}

		prevAgent = reply.FromAgent
		agent = reply.ToAgent
		message = envelope.Text(reply.Output)
	}

	// No agent signaled completion within the budget. The conversation is
	// left incomplete rather than surfaced as a failure.
	metrics.RecordStepLimit()
	b.logger.Warn("step limit exceeded",
		"session_id", sessionID,
		"max_steps", b.maxSteps)

	return &Result{Status: StatusStepLimit, Turns: turns}, nil
}
