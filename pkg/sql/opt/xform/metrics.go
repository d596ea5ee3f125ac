// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the outcomes of cost contexts.
type Metrics struct {
	Costed  prometheus.Counter
	Failed  prometheus.Counter
	Invalid prometheus.Counter
	Pruned  prometheus.Counter
}

// MakeMetrics returns unregistered metrics.
func MakeMetrics() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "optcost",
			Subsystem: "cost_context",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		Costed:  counter("costed_total", "Number of cost contexts costed"),
		Failed:  counter("failed_total", "Number of cost contexts that failed to cost"),
		Invalid: counter("invalid_total", "Number of costed contexts rejected as invalid"),
		Pruned:  counter("pruned_total", "Number of costed contexts pruned by a better alternative"),
	}
}

// Register registers the metrics with the given registerer.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Costed, m.Failed, m.Invalid, m.Pruned} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
