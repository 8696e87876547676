// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Full reload reasons.
const (
	reasonRestartPattern = "restart_pattern"
	reasonNotReloadable  = "not_reloadable"
	reasonMisdeclared    = "misdeclared"
	reasonDeclined       = "declined"
)

type metrics struct {
	// events counts router events. Labels: action (add, change, unlink)
	events *prometheus.CounterVec
	// fullReloads counts full reload decisions. Labels: reason
	fullReloads *prometheus.CounterVec
	// invalidated counts module versions bumped by invalidation.
	invalidated prometheus.Counter
	// nodes tracks the size of the graph.
	nodes prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotswap",
			Name:      "events_total",
			Help:      "Filesystem events handled by the change router",
		}, []string{"action"}),
		fullReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotswap",
			Name:      "full_reloads_total",
			Help:      "Full reload decisions by reason",
		}, []string{"reason"}),
		invalidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hotswap",
			Name:      "invalidated_modules_total",
			Help:      "Module versions bumped by invalidation",
		}),
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hotswap",
			Name:      "graph_nodes",
			Help:      "Modules tracked by the dependency graph",
		}),
	}
}
