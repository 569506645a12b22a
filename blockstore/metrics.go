package blockstore

import "github.com/prometheus/client_golang/prometheus"

type managerMetrics struct {
	commitCounter  prometheus.Counter
	rebuildCounter prometheus.Counter
	evictCounter   prometheus.Counter
	residentGauge  prometheus.Gauge
}

func (m *GlobalStoreManager) registerMetrics() {
	m.metrics.commitCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_blockstore_commits",
		Help: "block stores committed and persisted",
	})
	m.metrics.rebuildCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_blockstore_rebuilds",
		Help: "block stores reconstructed from persisted deltas",
	})
	m.metrics.evictCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "strata_blockstore_evictions",
		Help: "block stores evicted from the resident map",
	})
	m.metrics.residentGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "strata_blockstore_resident",
		Help: "block stores currently resident in memory",
	})
	m.MetricsRegistry().MustRegister(
		m.metrics.commitCounter,
		m.metrics.rebuildCounter,
		m.metrics.evictCounter,
		m.metrics.residentGauge,
	)
}
