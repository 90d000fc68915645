package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Heap metrics
	PagesAllocated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardbridge_heap_pages_allocated_total",
			Help: "Total number of heap pages allocated, by buffer owner",
		},
		[]string{"owner"},
	)

	TuplesAllocated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardbridge_heap_tuples_allocated_total",
			Help: "Total number of tuples allocated, by table",
		},
		[]string{"table"},
	)

	// Shard routing metrics
	ShardLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardbridge_shard_lookups_total",
			Help: "Total number of shard resolution calls, by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	// Planner/executor metrics
	RowsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardbridge_rows_collected_total",
			Help: "Total number of rows a collector accepted, by step kind",
		},
		[]string{"step"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shardbridge_query_duration_seconds",
			Help:    "Backend round-trip duration per executed step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	FormationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shardbridge_formation_duration_seconds",
			Help:    "Tuple formation duration per executed step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	// Transaction manager metrics
	SavepointsFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shardbridge_savepoints_flushed_total",
			Help: "Total number of savepoints flushed",
		},
	)

	TransactionsCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shardbridge_transactions_committed_total",
			Help: "Total number of top-level transaction commit attempts, by outcome",
		},
		[]string{"outcome"},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shardbridge_commit_duration_seconds",
			Help:    "Time taken to commit a transaction across all its connections",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Connection catalog metrics
	ConnectionPoolSlots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shardbridge_connection_pool_slots",
			Help: "Connection slot pool size, by shard",
		},
		[]string{"shard"},
	)

	ConnectionPoolInUse = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shardbridge_connection_pool_in_use",
			Help: "Connection slots currently leased, by shard",
		},
		[]string{"shard"},
	)
)

func init() {
	prometheus.MustRegister(
		PagesAllocated,
		TuplesAllocated,
		ShardLookups,
		RowsCollected,
		QueryDuration,
		FormationDuration,
		SavepointsFlushed,
		TransactionsCommitted,
		CommitDuration,
		ConnectionPoolSlots,
		ConnectionPoolInUse,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
