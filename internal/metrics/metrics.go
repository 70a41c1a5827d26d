// ABOUTME: Prometheus metrics for gateway traffic and broker activity
// ABOUTME: Registration is lazy and idempotent via sync.Once

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carebridge_http_requests_total",
			Help: "HTTP requests handled, by route and status code",
		},
		[]string{"route", "status"},
	)

	hopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carebridge_broker_hops_total",
			Help: "Broker hops completed, by responding agent",
		},
		[]string{"agent"},
	)

	stepLimitTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carebridge_broker_step_limit_total",
			Help: "Conversations stopped by the step budget",
		},
	)

	activeWebsockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "carebridge_websocket_connections",
			Help: "Currently open real-time client connections",
		},
	)

	initOnce sync.Once
)

// register installs all collectors into the default registry exactly once.
func register() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			hopsTotal,
			stepLimitTotal,
			activeWebsockets,
		)
	})
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	register()
	return promhttp.Handler()
}

// RecordRequest counts one handled HTTP request.
func RecordRequest(route, status string) {
	register()
	requestsTotal.WithLabelValues(route, status).Inc()
}

// RecordHop counts one completed broker hop.
func RecordHop(agent string) {
	register()
	hopsTotal.WithLabelValues(agent).Inc()
}

// RecordStepLimit counts one conversation stopped by the hop budget.
func RecordStepLimit() {
	register()
	stepLimitTotal.Inc()
}

// WebsocketOpened tracks a new real-time connection.
func WebsocketOpened() {
	register()
	activeWebsockets.Inc()
}

// WebsocketClosed tracks a real-time connection going away.
func WebsocketClosed() {
	register()
	activeWebsockets.Dec()
}
