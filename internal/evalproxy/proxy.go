// ABOUTME: Stateless passthrough to one fixed agent for automated test clients
// ABOUTME: Preserves upstream status, body, content-type, and correlation header

package evalproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// maxBodyBytes bounds the request and response bodies the proxy will relay.
const maxBodyBytes = 8 << 20

// Proxy forwards raw request bodies to a single preconfigured agent webhook.
// It keeps no session state and never inspects the payload.
type Proxy struct {
	agentName  string
	webhookURL string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an evaluation proxy targeting one agent webhook.
func New(agentName, webhookURL string, timeout time.Duration) *Proxy {
	return &Proxy{
		agentName:  agentName,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     slog.Default().With("component", "evalproxy"),
	}
}

// ServeHTTP relays the request body verbatim and streams back the upstream
// response. A timeout maps to 504 so callers can tell "too slow" from
// "broken", which maps to 502.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		p.sendError(w, http.StatusBadRequest, "reading request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		p.sendError(w, http.StatusInternalServerError, "building upstream request")
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		upstreamReq.Header.Set("Content-Type", ct)
	} else {
		upstreamReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := p.httpClient.Do(upstreamReq)
	if err != nil {
		if isTimeout(err) {
			p.logger.Warn("eval agent timed out",
				"agent", p.agentName,
				"timeout", p.timeout)
			p.sendError(w, http.StatusGatewayTimeout, "agent timed out")
			return
		}
		p.logger.Warn("eval agent unreachable",
			"agent", p.agentName,
			"error", err)
		p.sendError(w, http.StatusBadGateway, "agent unreachable")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		p.sendError(w, http.StatusBadGateway, "reading agent response")
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if execID := resp.Header.Get("execution_id"); execID != "" {
		w.Header().Set("execution_id", execID)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)

	p.logger.Info("eval request proxied",
		"agent", p.agentName,
		"status", resp.StatusCode,
		"duration", time.Since(start).Round(time.Millisecond))
}

func (p *Proxy) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
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
