// Package metrics exposes bantay's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request outcomes. A nil *Collector is a no-op.
type Collector struct {
	requests *prometheus.CounterVec
	signins  *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewCollector registers the counters on reg. A nil reg returns nil.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		return nil
	}
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bantay_requests_total",
			Help: "Auth requests by action and method",
		}, []string{"action", "method"}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bantay_signin_total",
			Help: "Completed sign-in flows by provider and outcome",
		}, []string{"provider", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bantay_errors_total",
			Help: "Error redirects by code",
		}, []string{"code"}),
	}

	reg.MustRegister(c.requests, c.signins, c.errors)
	return c
}

func (c *Collector) RecordRequest(action, method string) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(action, method).Inc()
}

// RecordSignIn counts a finished flow. outcome is "success" or an error code.
func (c *Collector) RecordSignIn(provider, outcome string) {
	if c == nil {
		return
	}
	c.signins.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RecordError(code string) {
	if c == nil {
		return
	}
	c.errors.WithLabelValues(code).Inc()
}

// Handler serves the registry in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
