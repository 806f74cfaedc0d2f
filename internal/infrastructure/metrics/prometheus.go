// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audiostream"

var (
	// CacheOperationsTotal tracks cache operations (get, set, clear).
	// Labels:
	//   - operation: get, set, clear
	//   - status: hit, miss, success, error
	//   - cache_type: memory, redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// CacheEvictionsTotal counts entries evicted from the bounded memory cache.
	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted from the memory cache",
		},
	)

	// UpstreamAttemptsTotal tracks single upstream attempts.
	// Labels:
	//   - stage: primary, fallback
	//   - result: usable, absent, error, malformed
	UpstreamAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Total number of upstream resolution attempts",
		},
		[]string{"stage", "result"},
	)

	// RetryBackoffSeconds observes each backoff sleep between primary attempts.
	RetryBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_backoff_seconds",
			Help:      "Backoff sleeps between primary resolution attempts",
			Buckets:   []float64{0.5, 1, 1.5, 2, 3, 4, 6, 8, 16},
		},
	)

	// ResolutionsTotal tracks pipeline outcomes.
	// Labels:
	//   - outcome: success, failure
	//   - kind: error kind, empty on success
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Total number of resolution pipeline runs",
		},
		[]string{"outcome", "kind"},
	)

	// ResolutionDurationSeconds observes end-to-end pipeline latency.
	ResolutionDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Resolution pipeline latency",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"outcome"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert
	//   - table: resolutions
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// QueueMessagesTotal tracks prewarm queue traffic.
	// Labels:
	//   - operation: publish, consume
	//   - status: success, error, requeued, dropped
	QueueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Total number of prewarm queue messages",
		},
		[]string{"operation", "status"},
	)

	// ArchivedPayloadsTotal counts malformed upstream payloads written to object storage.
	ArchivedPayloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archived_payloads_total",
			Help:      "Total number of malformed payload archive writes",
		},
		[]string{"status"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet   = "get"
	CacheOpSet   = "set"
	CacheOpClear = "clear"
)

// Cache type constants.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Upstream stage constants.
const (
	StagePrimary  = "primary"
	StageFallback = "fallback"
)

// Upstream attempt result constants.
const (
	AttemptUsable    = "usable"
	AttemptAbsent    = "absent"
	AttemptError     = "error"
	AttemptMalformed = "malformed"
)

// Resolution outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
)

// Table name constants.
const (
	TableResolutions = "resolutions"
)

// Queue constants.
const (
	QueueOpPublish = "publish"
	QueueOpConsume = "consume"

	QueueStatusSuccess  = "success"
	QueueStatusError    = "error"
	QueueStatusRequeued = "requeued"
	QueueStatusDropped  = "dropped"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
