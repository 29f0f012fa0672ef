// Package metrics exposes the prometheus instrumentation for the auth
// core: which credential source resolved each request, authorization
// outcomes, and context-cache effectiveness.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	Resolutions  *prometheus.CounterVec // source, outcome: resolved|miss|error
	Denials      *prometheus.CounterVec // reason: unauthenticated|forbidden|no_company_context
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	Provisioning prometheus.Counter // just-in-time user+company creations
}

// New registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_credential_resolutions_total",
			Help: "Credential source resolution attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_denials_total",
			Help: "Authorization denials by reason.",
		}, []string{"reason"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_context_cache_hits_total",
			Help: "Company auth context cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_context_cache_misses_total",
			Help: "Company auth context cache misses.",
		}),
		Provisioning: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_jit_provisions_total",
			Help: "Just-in-time user and company provisions from federated logins.",
		}),
	}

	registry.MustRegister(m.Resolutions, m.Denials, m.CacheHits, m.CacheMisses, m.Provisioning)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
