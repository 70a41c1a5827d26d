// ABOUTME: Gateway assembly and HTTP server lifecycle
// ABOUTME: Wires directory, sessions, log, router, broker, proxy, and hub per run mode

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/carebridge/internal/agentclient"
	"github.com/2389/carebridge/internal/broker"
	"github.com/2389/carebridge/internal/config"
	"github.com/2389/carebridge/internal/directory"
	"github.com/2389/carebridge/internal/evalproxy"
	"github.com/2389/carebridge/internal/history"
	"github.com/2389/carebridge/internal/metrics"
	"github.com/2389/carebridge/internal/realtime"
	"github.com/2389/carebridge/internal/router"
	"github.com/2389/carebridge/internal/session"
)

// Gateway is the front door: it owns the HTTP server and the component graph
// behind it. Which routes are exposed depends on the configured run mode.
type Gateway struct {
	config   *config.Config
	logger   *slog.Logger
	dir      *directory.Directory
	sessions *session.Store
	log      *history.SQLiteLog
	hub      *realtime.Hub
	router   *router.Router
	broker   *broker.Broker
	eval     *evalproxy.Proxy
	server   *http.Server
}

// New assembles a gateway from validated configuration.
func New(cfg *config.Config) (*Gateway, error) {
	logger := slog.Default().With("component", "gateway")

	agents := make(map[string]directory.AgentConfig, len(cfg.Agents.Directory))
	for name, ac := range cfg.Agents.Directory {
		agents[name] = directory.AgentConfig{
			WebhookURL: ac.WebhookURL,
			PromptPath: ac.PromptPath,
		}
	}
	dir, err := directory.New(agents)
	if err != nil {
		return nil, fmt.Errorf("building agent directory: %w", err)
	}

	log, err := history.NewSQLiteLog(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening conversation log: %w", err)
	}

	sessions := session.NewStore(cfg.Agents.EntryAgent)
	hub := realtime.NewHub()

	interactiveClient := agentclient.New(dir, cfg.FHIR.BaseURL, cfg.Interactive.CallTimeout)
	multihopClient := agentclient.New(dir, cfg.FHIR.BaseURL, cfg.MultiHop.CallTimeout)

	g := &Gateway{
		config:   cfg,
		logger:   logger,
		dir:      dir,
		sessions: sessions,
		log:      log,
		hub:      hub,
		router:   router.New(sessions, interactiveClient, log, hub),
		broker:   broker.New(multihopClient, log, cfg.MultiHop.MaxSteps, cfg.MultiHop.Initiator),
	}

	if cfg.Eval.Agent != "" {
		ep, err := dir.Resolve(cfg.Eval.Agent)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("resolving eval agent: %w", err)
		}
		g.eval = evalproxy.New(ep.Name, ep.WebhookURL, cfg.Eval.Timeout)
	}

	g.server = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: g.routes(),
	}

	return g, nil
}

// routes builds the mode-dependent HTTP mux.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	interactive := g.config.Mode == config.ModeInteractive || g.config.Mode == config.ModeAll
	multihop := g.config.Mode == config.ModeMultiHop || g.config.Mode == config.ModeAll
	eval := g.config.Mode == config.ModeEval || g.config.Mode == config.ModeAll

	if interactive {
		mux.HandleFunc("POST /route_message", g.handleRouteMessage)
		mux.Handle("GET /ws", g.hub)
	}
	if multihop {
		mux.HandleFunc("POST /multi/start", g.handleMultiStart)
		mux.HandleFunc("GET /multi/history/{session_id}", g.handleMultiHistory)
	}
	if eval && g.eval != nil {
		mux.Handle("POST /eval/scheduler", g.eval)
	}

	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	if g.config.Metrics.Enabled {
		mux.Handle("GET "+g.config.Metrics.Path, metrics.Handler())
	}

	return g.withRequestMetrics(mux)
}

// Run serves HTTP until the context is cancelled or the listener fails.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening",
			"addr", g.config.Server.HTTPAddr,
			"mode", g.config.Mode,
			"agents", g.dir.Names())
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		g.log.Close()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return g.Shutdown()
	}
}

// Shutdown drains in-flight requests and releases resources.
func (g *Gateway) Shutdown() error {
	g.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.server.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("http shutdown", "error", err)
	}
	return g.log.Close()
}

// Handler exposes the assembled mux, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestMetrics counts handled requests per route and status. Websocket
// upgrades bypass the wrapper because it would hide http.Hijacker.
func (g *Gateway) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordRequest(r.URL.Path, fmt.Sprintf("%d", rec.status))
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.log.Ping(r.Context()); err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, "conversation log unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
