package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the screening core.
type Metrics struct {
	ScreeningsTotal   *prometheus.CounterVec
	ScreeningFailures prometheus.Counter
	SnapshotLoads     prometheus.Counter
	SnapshotEntries   prometheus.Gauge
	MatchCacheHits    prometheus.Counter
	MatchCacheMisses  prometheus.Counter
	ScreenDuration    prometheus.Histogram
	MatchDuration     prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ScreeningsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainscreen_screenings_total",
			Help: "Completed screenings by verdict",
		}, []string{"verdict"}),
		ScreeningFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_screening_failures_total",
			Help: "Screenings that failed before producing a durable decision",
		}),
		SnapshotLoads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_list_snapshot_loads_total",
			Help: "List snapshot versions loaded",
		}),
		SnapshotEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainscreen_list_snapshot_entries",
			Help: "Entry count of the current list snapshot",
		}),
		MatchCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_match_cache_hits_total",
			Help: "Matcher results served from cache",
		}),
		MatchCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainscreen_match_cache_misses_total",
			Help: "Matcher results computed on a cache miss",
		}),
		ScreenDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainscreen_screen_duration_ms",
			Help:    "End-to-end latency of a single screening in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
		MatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainscreen_match_duration_ms",
			Help:    "Latency of list matching in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

// ObserveScreen records one completed screening.
func (m *Metrics) ObserveScreen(verdict string, d time.Duration) {
	m.ScreeningsTotal.WithLabelValues(verdict).Inc()
	m.ScreenDuration.Observe(float64(d.Microseconds()) / 1000.0)
}

// ObserveMatch records one matcher invocation.
func (m *Metrics) ObserveMatch(d time.Duration) {
	m.MatchDuration.Observe(float64(d.Microseconds()) / 1000.0)
}
