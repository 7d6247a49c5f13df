// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raddi-network/raddi/db"
	"github.com/raddi-network/raddi/validator"
)

// Metrics wraps the node's prometheus registry and the counters/gauges
// every package reports through.
type Metrics struct {
	Registry prometheus.Registerer

	EntriesProcessed *prometheus.CounterVec
	ConnectionsByLvl *prometheus.GaugeVec
	DetachedSize     prometheus.Gauge
	NoticedSize      prometheus.Gauge
	RefusedSize      prometheus.Gauge
	BroadcastFanout  prometheus.Counter
	RequestsDropped  prometheus.Counter
}

// NewMetrics registers and returns the node's metric set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		EntriesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "raddi",
			Name:      "entries_processed_total",
			Help:      "Entries fed through the validator, by outcome.",
		}, []string{"outcome"}),
		ConnectionsByLvl: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "raddi",
			Name:      "connections",
			Help:      "Active connections, by peer level.",
		}, []string{"level"}),
		DetachedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raddi",
			Name:      "detached_cache_size",
			Help:      "Entries buffered awaiting an unseen parent.",
		}),
		NoticedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raddi",
			Name:      "noticed_cache_size",
			Help:      "Entry ids remembered to suppress re-broadcast.",
		}),
		RefusedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "raddi",
			Name:      "refused_cache_size",
			Help:      "Entry ids remembered to skip re-validation of known-bad entries.",
		}),
		BroadcastFanout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raddi",
			Name:      "broadcast_fanout_total",
			Help:      "Peer connections an accepted entry was forwarded to.",
		}),
		RequestsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "raddi",
			Name:      "requests_dropped_total",
			Help:      "Download/upload requests dropped by the per-connection rate limiter.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.EntriesProcessed, m.ConnectionsByLvl, m.DetachedSize,
		m.NoticedSize, m.RefusedSize, m.BroadcastFanout, m.RequestsDropped,
	} {
		m.Register(c)
	}
	return m
}

// Register registers a prometheus collector, ignoring AlreadyRegisteredError
// so callers (tests constructing multiple Metrics against the same default
// registry) don't need to special-case it.
func (m *Metrics) Register(collector prometheus.Collector) error {
	err := m.Registry.Register(collector)
	if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return nil
	}
	return err
}

// ObserveOutcome records one validator.Process result.
func (m *Metrics) ObserveOutcome(o validator.Outcome) {
	m.EntriesProcessed.WithLabelValues(outcomeLabel(o)).Inc()
}

func outcomeLabel(o validator.Outcome) string {
	switch o {
	case validator.OutcomeInserted:
		return "inserted"
	case validator.OutcomeDetached:
		return "detached"
	case validator.OutcomeDuplicate:
		return "duplicate"
	case validator.OutcomeRejected:
		return "rejected"
	case validator.OutcomeRelayed:
		return "relayed"
	default:
		return "unknown"
	}
}

// SetConnections reports the current connection count for one peer level.
func (m *Metrics) SetConnections(level db.PeerLevel, n int) {
	m.ConnectionsByLvl.WithLabelValues(level.String()).Set(float64(n))
}
