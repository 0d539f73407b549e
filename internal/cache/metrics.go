package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of a Cache.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	LoadErrors    prometheus.Counter
	Invalidations *prometheus.CounterVec
	LoadDuration  prometheus.Histogram
	Entries       prometheus.Gauge
}

// NewMetrics creates unregistered cache collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlineage_cache_hits_total",
			Help: "Snapshot lookups served from the cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlineage_cache_misses_total",
			Help: "Snapshot lookups that required a load",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetlineage_cache_load_errors_total",
			Help: "Snapshot loads that failed",
		}),
		Invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assetlineage_cache_invalidations_total",
				Help: "Snapshots dropped before expiry",
			},
			[]string{"reason"},
		),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assetlineage_cache_load_duration_seconds",
			Help:    "Time to load and build a snapshot",
			Buckets: prometheus.DefBuckets,
		}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assetlineage_cache_entries",
			Help: "Snapshots currently cached",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Hits,
		m.Misses,
		m.LoadErrors,
		m.Invalidations,
		m.LoadDuration,
		m.Entries,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
