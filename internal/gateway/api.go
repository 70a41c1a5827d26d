// ABOUTME: HTTP handlers for the routing, multi-hop, and history endpoints
// ABOUTME: Maps the internal error taxonomy onto status codes

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/carebridge/internal/agentclient"
	"github.com/2389/carebridge/internal/directory"
	"github.com/2389/carebridge/internal/envelope"
	"github.com/2389/carebridge/internal/history"
)

type routeMessageRequest struct {
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

type routeMessageResponse struct {
	Status          string `json:"status"`
	RespondingAgent string `json:"responding_agent"`
}

type multiStartRequest struct {
	SessionID  string `json:"session_id"`
	StartToken string `json:"start_token,omitempty"`
}

type historyResponse struct {
	History []*history.Turn `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRouteMessage routes one user message to the session's current agent.
func (g *Gateway) handleRouteMessage(w http.ResponseWriter, r *http.Request) {
	var req routeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if len(req.Message) == 0 {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := g.router.Route(r.Context(), req.SessionID, req.Message)
	if err != nil {
		g.sendAgentError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, routeMessageResponse{
		Status:          "delivered",
		RespondingAgent: reply.FromAgent,
	})
}

// handleMultiStart kicks off a handoff loop at the entry agent. Step-limit
// exhaustion is reported as a success with status "step_limit", not an error.
func (g *Gateway) handleMultiStart(w http.ResponseWriter, r *http.Request) {
	var req multiStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	startToken := req.StartToken
	if startToken == "" {
		startToken = g.config.MultiHop.StartToken
	}

	// Hold the session lock so a concurrent interactive route cannot
	// interleave with the handoff loop.
	sess := g.sessions.Get(req.SessionID)
	sess.Lock()
	defer sess.Unlock()

	result, err := g.broker.Run(r.Context(), req.SessionID, g.config.Agents.EntryAgent, envelope.Text(startToken))
	if err != nil {
		g.sendAgentError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, result)
}

// handleMultiHistory returns the full ordered log for one session.
func (g *Gateway) handleMultiHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	turns, err := g.log.List(r.Context(), sessionID)
	if err != nil {
		g.logger.Error("listing history", "session_id", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "reading conversation log")
		return
	}

	g.sendJSON(w, http.StatusOK, historyResponse{History: turns})
}

// sendAgentError translates agent call failures into HTTP statuses: unknown
// agents are 404, timeouts 504, unreachable or malformed agents 502.
func (g *Gateway) sendAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrUnknownAgent):
		g.sendJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, agentclient.ErrCallTimeout):
		g.sendJSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, agentclient.ErrAgentUnreachable),
		errors.Is(err, envelope.ErrMalformedReply):
		g.sendJSONError(w, http.StatusBadGateway, err.Error())
	default:
		g.logger.Error("unexpected routing failure", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, errorResponse{Error: message})
}
