// ABOUTME: HTTP-level tests for the gateway endpoints
// ABOUTME: Uses httptest agent webhooks behind a fully assembled gateway

package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/carebridge/internal/config"
)

// scriptedAgent serves a fixed sequence of reply bodies, one per request.
type scriptedAgent struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (a *scriptedAgent) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		i := a.calls
		a.calls++
		if i >= len(a.replies) {
			i = len(a.replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(a.replies[i]))
	}
}

func testConfig(webhookURL string) *config.Config {
	return &config.Config{
		Mode:     config.ModeAll,
		Server:   config.ServerConfig{HTTPAddr: "localhost:0"},
		Database: config.DatabaseConfig{Path: ":memory:"},
		FHIR:     config.FHIRConfig{BaseURL: "http://localhost:8103/fhir/R4"},
		Agents: config.AgentsConfig{
			EntryAgent: "frontdesk_agent",
			Directory: map[string]config.AgentConfig{
				"frontdesk_agent":  {WebhookURL: webhookURL},
				"scheduling_agent": {WebhookURL: webhookURL},
			},
		},
		Interactive: config.InteractiveConfig{CallTimeout: 2 * time.Second},
		MultiHop: config.MultiHopConfig{
			MaxSteps:    10,
			Initiator:   "user",
			StartToken:  "start",
			CallTimeout: 2 * time.Second,
		},
		Eval: config.EvalConfig{Agent: "scheduling_agent", Timeout: 2 * time.Second},
	}
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { g.log.Close() })
	return g
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouteMessage_Delivered(t *testing.T) {
	agent := &scriptedAgent{replies: []string{
		`{"output": "how can I help?", "from_agent": "frontdesk_agent"}`,
	}}
	upstream := httptest.NewServer(agent.handler())
	defer upstream.Close()

	g := newTestGateway(t, testConfig(upstream.URL))

	rec := postJSON(t, g.Handler(), "/route_message", map[string]any{
		"session_id": "sess-1",
		"message":    "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp routeMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "delivered", resp.Status)
	assert.Equal(t, "frontdesk_agent", resp.RespondingAgent)

	assert.Equal(t, "frontdesk_agent", g.sessions.Get("sess-1").CurrentAgent())
}

func TestRouteMessage_ValidationErrors(t *testing.T) {
	g := newTestGateway(t, testConfig("http://unused"))

	rec := postJSON(t, g.Handler(), "/route_message", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, g.Handler(), "/route_message", map[string]any{"session_id": "s"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouteMessage_MalformedReplyIsBadGateway(t *testing.T) {
	agent := &scriptedAgent{replies: []string{`{"from_agent": "frontdesk_agent"}`}}
	upstream := httptest.NewServer(agent.handler())
	defer upstream.Close()

	g := newTestGateway(t, testConfig(upstream.URL))

	rec := postJSON(t, g.Handler(), "/route_message", map[string]any{
		"session_id": "sess-1",
		"message":    "hello",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// Failed hop leaves ownership at the entry agent.
	assert.Equal(t, "frontdesk_agent", g.sessions.Get("sess-1").CurrentAgent())
}

func TestRouteMessage_UnreachableAgentIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	g := newTestGateway(t, testConfig(url))

	rec := postJSON(t, g.Handler(), "/route_message", map[string]any{
		"session_id": "sess-1",
		"message":    "hello",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMultiStart_CompletedChain(t *testing.T) {
	agent := &scriptedAgent{replies: []string{
		`{"output": "need a slot", "from_agent": "frontdesk_agent", "to_agent": "scheduling_agent"}`,
		`{"output": "slot found", "from_agent": "scheduling_agent", "to_agent": "frontdesk_agent"}`,
		`{"output": "confirmed", "from_agent": "frontdesk_agent", "end_conversation": true}`,
	}}
	upstream := httptest.NewServer(agent.handler())
	defer upstream.Close()

	g := newTestGateway(t, testConfig(upstream.URL))

	rec := postJSON(t, g.Handler(), "/multi/start", map[string]any{"session_id": "sess-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string `json:"status"`
		Messages []struct {
			FromAgent string `json:"from_agent"`
			ToAgent   string `json:"to_agent"`
			Message   string `json:"message"`
			Seq       int64  `json:"seq"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, "confirmed", resp.Messages[2].Message)

	// History endpoint returns the same turns.
	req := httptest.NewRequest(http.MethodGet, "/multi/history/sess-1", nil)
	histRec := httptest.NewRecorder()
	g.Handler().ServeHTTP(histRec, req)
	require.Equal(t, http.StatusOK, histRec.Code)

	var hist historyResponse
	require.NoError(t, json.Unmarshal(histRec.Body.Bytes(), &hist))
	require.Len(t, hist.History, 3)
	assert.Equal(t, int64(1), hist.History[0].Seq)
}

func TestMultiStart_StepLimitIsSuccess(t *testing.T) {
	agent := &scriptedAgent{replies: []string{
		`{"output": "ping", "from_agent": "frontdesk_agent", "to_agent": "scheduling_agent"}`,
	}}
	upstream := httptest.NewServer(agent.handler())
	defer upstream.Close()

	cfg := testConfig(upstream.URL)
	cfg.MultiHop.MaxSteps = 2
	g := newTestGateway(t, cfg)

	rec := postJSON(t, g.Handler(), "/multi/start", map[string]any{"session_id": "sess-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status   string            `json:"status"`
		Messages []json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "step_limit", resp.Status)
	assert.Len(t, resp.Messages, 2)
}

func TestMultiHistory_EmptySession(t *testing.T) {
	g := newTestGateway(t, testConfig("http://unused"))

	req := httptest.NewRequest(http.MethodGet, "/multi/history/never-seen", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var hist historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Empty(t, hist.History)
}

func TestEvalScheduler_Proxied(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("execution_id", "exec-5")
		w.Write([]byte(`{"result": "ok"}`))
	}))
	defer upstream.Close()

	g := newTestGateway(t, testConfig(upstream.URL))

	rec := postJSON(t, g.Handler(), "/eval/scheduler", map[string]any{"task": "check"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "exec-5", rec.Header().Get("execution_id"))
	assert.JSONEq(t, `{"result": "ok"}`, rec.Body.String())
}

func TestModeGating(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.Mode = config.ModeInteractive
	cfg.Eval.Agent = ""
	g := newTestGateway(t, cfg)

	rec := postJSON(t, g.Handler(), "/multi/start", map[string]any{"session_id": "s"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, g.Handler(), "/eval/scheduler", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, g.Handler(), "/route_message", map[string]any{"session_id": "s", "message": "m"})
	// Route exists; it fails on the unreachable agent, not on routing.
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	g := newTestGateway(t, testConfig("http://unused"))

	for _, path := range []string{"/health", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		g.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
