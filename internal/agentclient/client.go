// ABOUTME: HTTP client for agent webhook calls
// ABOUTME: Wraps transport failures, timeouts, and reply decoding behind sentinel errors

package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/carebridge/internal/directory"
	"github.com/2389/carebridge/internal/envelope"
)

// Transport failures that callers need to distinguish.
var (
	// ErrAgentUnreachable indicates the webhook could not be reached or
	// returned a non-2xx status.
	ErrAgentUnreachable = errors.New("agent unreachable")

	// ErrCallTimeout indicates the webhook did not respond within the
	// configured call timeout.
	ErrCallTimeout = errors.New("agent call timed out")
)

// maxReplyBytes bounds how much of an agent reply body is read.
const maxReplyBytes = 4 << 20

// Resolver maps an agent name to its endpoint.
type Resolver interface {
	Resolve(name string) (*directory.Endpoint, error)
}

// Client posts request envelopes to agent webhooks and decodes the replies.
type Client struct {
	resolver    Resolver
	httpClient  *http.Client
	fhirBaseURL string
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates an agent client. The timeout bounds each individual webhook
// call; the FHIR base URL is stamped into every request envelope.
func New(resolver Resolver, fhirBaseURL string, timeout time.Duration) *Client {
	return &Client{
		resolver: resolver,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		fhirBaseURL: fhirBaseURL,
		timeout:     timeout,
		logger:      slog.Default().With("component", "agentclient"),
	}
}

// Call posts a message to the named agent and returns its validated reply.
// The caller supplies who is speaking and the opaque message payload; the
// client fills in the agent's system prompt and the FHIR base URL.
//
// Errors wrap directory.ErrUnknownAgent, ErrCallTimeout, ErrAgentUnreachable,
// or envelope.ErrMalformedReply so callers can map them to responses.
func (c *Client) Call(ctx context.Context, toAgent, sessionID, fromAgent string, message json.RawMessage) (*envelope.Reply, error) {
	ep, err := c.resolver.Resolve(toAgent)
	if err != nil {
		return nil, err
	}

	reqEnv := envelope.Request{
		SessionID:    sessionID,
		Message:      message,
		FromAgent:    fromAgent,
		SystemPrompt: ep.SystemPrompt,
		FHIRBaseURL:  c.fhirBaseURL,
	}

	body, err := json.Marshal(reqEnv)
	if err != nil {
		return nil, fmt.Errorf("encoding request envelope: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, ep.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", ErrCallTimeout, toAgent, time.Since(start).Round(time.Millisecond))
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrAgentUnreachable, toAgent, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s while reading reply", ErrCallTimeout, toAgent)
		}
		return nil, fmt.Errorf("%w: %s: reading reply: %v", ErrAgentUnreachable, toAgent, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrAgentUnreachable, toAgent, resp.StatusCode)
	}

	reply, err := envelope.DecodeReply(respBody)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", toAgent, err)
	}

	if reply.ExecutionID == "" {
		reply.ExecutionID = resp.Header.Get("execution_id")
	}

	c.logger.Debug("agent call completed",
		"to_agent", toAgent,
		"session_id", sessionID,
		"duration", time.Since(start).Round(time.Millisecond),
		"finished", reply.Finished())

	return reply, nil
}

// isTimeout reports whether a transport error was caused by a deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return false
}
