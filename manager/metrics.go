// SPDX-License-Identifier: AGPL-3.0-or-later

package manager

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of Prometheus collectors registered for a Manager.
// The Manager sets LocalEntitiesTotal when a local entity is registered or
// unregistered and RemoteEntitiesTotal when an ADP available or departing
// PDU is processed; it does not update the other collectors. A Manager
// created with a nil Metrics records nothing.
type Metrics struct {
	LocalEntitiesTotal  prometheus.Gauge
	RemoteEntitiesTotal prometheus.Gauge
	AecpInflightTotal   prometheus.Gauge
	AecpRetriesTotal    prometheus.Counter
	AecpTimeoutsTotal   prometheus.Counter
	AecpResponseSeconds prometheus.Histogram
	AcmpTimeoutsTotal   prometheus.Counter
	TickDurationSeconds prometheus.Histogram
}

// NewMetrics creates and registers a Metrics against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		LocalEntitiesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avdecc_local_entities_total",
			Help: "The current number of local entities registered with the Manager",
		}),
		RemoteEntitiesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avdecc_remote_entities_total",
			Help: "The current number of remote entities known to the discovery state machine",
		}),
		AecpInflightTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avdecc_aecp_inflight_total",
			Help: "The current number of AECP commands inflight across all local entities",
		}),
		AecpRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avdecc_aecp_retries_total",
			Help: "The total number of AECP command retries",
		}),
		AecpTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avdecc_aecp_timeouts_total",
			Help: "The total number of AECP commands that timed out after retry",
		}),
		AecpResponseSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "avdecc_aecp_response_seconds",
			Help:    "AECP command response time",
			Buckets: prometheus.DefBuckets,
		}),
		AcmpTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avdecc_acmp_timeouts_total",
			Help: "The total number of ACMP commands that timed out",
		}),
		TickDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "avdecc_tick_duration_seconds",
			Help:    "Duration of one Manager tick across all three state machines",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.LocalEntitiesTotal,
		m.RemoteEntitiesTotal,
		m.AecpInflightTotal,
		m.AecpRetriesTotal,
		m.AecpTimeoutsTotal,
		m.AecpResponseSeconds,
		m.AcmpTimeoutsTotal,
		m.TickDurationSeconds,
	)
}
