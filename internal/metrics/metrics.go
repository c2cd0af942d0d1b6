// Package metrics holds the Prometheus collectors of the auth layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "auth"

// Metrics groups the auth collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// operations by name and outcome (ok, rejected, anomalous, fault)
	Operations *prometheus.CounterVec
	// route guard decisions by policy and decision (allow, redirect)
	GuardDecisions *prometheus.CounterVec
	// provider lookups issued by the resolver (user, session)
	ProviderLookups *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Credential and profile operations by outcome.",
		}, []string{"operation", "outcome"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by policy.",
		}, []string{"policy", "decision"}),
		ProviderLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_lookups_total",
			Help:      "Identity provider lookups issued by the resolver.",
		}, []string{"lookup"}),
	}
	m.registry.MustRegister(m.Operations, m.GuardDecisions, m.ProviderLookups)
	return m
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveDecision(policy, decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(policy, decision).Inc()
}

func (m *Metrics) ObserveLookup(lookup string) {
	if m == nil {
		return
	}
	m.ProviderLookups.WithLabelValues(lookup).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
