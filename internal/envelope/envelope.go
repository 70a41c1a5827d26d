// ABOUTME: JSON envelope contract exchanged with agent webhooks
// ABOUTME: Strict reply decoding with explicit presence checks, never silent defaults

package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedReply indicates an agent responded but the reply envelope is
// missing a required field or is not valid JSON.
var ErrMalformedReply = errors.New("malformed agent reply")

// Request is the envelope posted to an agent webhook.
// Message is caller-opaque and passed through unmodified.
type Request struct {
	SessionID    string          `json:"session_id"`
	Message      json.RawMessage `json:"message"`
	FromAgent    string          `json:"from_agent"`
	SystemPrompt string          `json:"system_prompt"`
	FHIRBaseURL  string          `json:"fhir_base_url"`
}

// Reply is a validated agent reply. Output and FromAgent are always present;
// an empty ToAgent or EndConversation=true signals conversation completion.
type Reply struct {
	Output          string
	FromAgent       string
	ToAgent         string
	EndConversation bool
	ExecutionID     string
}

// Finished reports whether this reply terminates a handoff chain.
func (r *Reply) Finished() bool {
	return r.EndConversation || r.ToAgent == ""
}

// rawReply mirrors the wire shape with pointer fields so that absence is
// distinguishable from a zero value.
type rawReply struct {
	Output          *string `json:"output"`
	FromAgent       *string `json:"from_agent"`
	ToAgent         *string `json:"to_agent"`
	EndConversation *bool   `json:"end_conversation"`
	ExecutionID     *string `json:"execution_id"`
}

// DecodeReply parses an agent reply body. A one-element JSON array is
// unwrapped; the object form is used directly. Replies missing output or
// from_agent fail with ErrMalformedReply.
func DecodeReply(body []byte) (*Reply, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedReply)
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
		}
		if len(items) != 1 {
			return nil, fmt.Errorf("%w: expected single-element array, got %d elements", ErrMalformedReply, len(items))
		}
		trimmed = items[0]
	}

	var raw rawReply
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if raw.Output == nil {
		return nil, fmt.Errorf("%w: missing required field %q", ErrMalformedReply, "output")
	}
	if raw.FromAgent == nil || *raw.FromAgent == "" {
		return nil, fmt.Errorf("%w: missing required field %q", ErrMalformedReply, "from_agent")
	}

	reply := &Reply{
		Output:    *raw.Output,
		FromAgent: *raw.FromAgent,
	}
	if raw.ToAgent != nil {
		reply.ToAgent = *raw.ToAgent
	}
	if raw.EndConversation != nil {
		reply.EndConversation = *raw.EndConversation
	}
	if raw.ExecutionID != nil {
		reply.ExecutionID = *raw.ExecutionID
	}
	return reply, nil
}

// Text wraps a plain string message as an opaque JSON payload for a Request.
func Text(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
