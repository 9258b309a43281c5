// Package metrics exposes Prometheus collectors for treasury and registry
// operations.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dao"

type Metrics struct {
	registry *prometheus.Registry

	Operations      *prometheus.CounterVec // by operation and outcome
	SharesPurchased prometheus.Counter
	Withdrawals     prometheus.Counter
	VotesCast       *prometheus.CounterVec // by support
	HeldFunds       prometheus.Gauge       // ether held by the treasury
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Treasury and registry calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		SharesPurchased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "shares_purchased_total",
			Help:      "Shares sold by the treasury.",
		}),
		Withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "withdrawals_total",
			Help:      "Successful owner withdrawals.",
		}),
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "votes_total",
			Help:      "Votes recorded on proposals.",
		}, []string{"support"}),
		HeldFunds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "treasury",
			Name:      "held_ether",
			Help:      "Funds currently held by the treasury, in ether.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Operations,
		m.SharesPurchased,
		m.Withdrawals,
		m.VotesCast,
		m.HeldFunds,
	)
	return m
}

// Observe counts one call of operation; err decides the outcome label.
func (m *Metrics) Observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
