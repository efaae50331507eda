// Package metrics holds the Prometheus collectors exported by cartbot.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics bundles the application collectors.
type Metrics struct {
	ActionsApplied    *prometheus.CounterVec
	ActionBatches     *prometheus.CounterVec
	AssistantRequests *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Tests pass a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActionsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cartbot_actions_applied_total",
			Help: "Shopping list actions applied, by action kind.",
		}, []string{"action"}),
		ActionBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cartbot_action_batches_total",
			Help: "Action batches executed, by outcome.",
		}, []string{"outcome"}),
		AssistantRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cartbot_assistant_requests_total",
			Help: "Assistant requests, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cartbot_http_requests_total",
			Help: "HTTP API requests, by route pattern and status code.",
		}, []string{"route", "status"}),
		gatherer: reg,
	}
}

// NewDefault registers on a new registry that also carries the Go runtime
// and process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveHTTP counts one finished request.
func (m *Metrics) ObserveHTTP(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
