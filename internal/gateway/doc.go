// Package gateway orchestrates the carebridge server components.
//
// # Overview
//
// The gateway package is the central coordinator. It owns the HTTP server
// and the component graph behind it: agent directory, session store,
// conversation log, message router, conversation broker, evaluation proxy,
// and the real-time hub.
//
// # Run Modes
//
// The configured mode selects which routes are mounted:
//
//   - interactive: POST /route_message, GET /ws
//   - multihop:    POST /multi/start, GET /multi/history/{session_id}
//   - eval:        POST /eval/scheduler
//   - all:         everything above
//
// Health endpoints (/health, /health/ready) and the optional Prometheus
// scrape endpoint are mounted in every mode.
//
// # Error Mapping
//
// Agent call failures map onto HTTP statuses in sendAgentError:
//
//   - unknown agent   -> 404
//   - call timeout    -> 504
//   - unreachable     -> 502
//   - malformed reply -> 502
//
// Step-limit exhaustion in the broker is not an error: /multi/start returns
// 200 with status "step_limit".
//
// # Lifecycle
//
// New assembles the graph from validated configuration; Run serves until the
// context is cancelled, then Shutdown drains in-flight requests and closes
// the conversation log.
package gateway
