// Package metrics owns every prometheus collector exported on /metrics.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nest"

var (
	msBuckets   = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	sizeBuckets = prometheus.ExponentialBuckets(64, 4, 10)
)

var (
	ingestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ingest", Name: "requests_total",
		Help: "Ingest requests by outcome.",
	}, []string{"status"})

	ingestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "ingest", Name: "duration_ms",
		Help: "Time spent capturing one request, in milliseconds.", Buckets: msBuckets,
	}, []string{"status"})

	ingestBodySize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "ingest", Name: "body_size_bytes",
		Help: "Size of captured bodies.", Buckets: sizeBuckets,
	})

	queryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "query", Name: "requests_total",
		Help: "Admin query service calls by operation and outcome.",
	}, []string{"operation", "status"})

	noticesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "notify", Name: "published_total",
		Help: "Captured-event notices by notifier and outcome.",
	}, []string{"notifier", "status"})

	binCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "bin_cache", Name: "lookups_total",
		Help: "Bin cache lookups by result.",
	}, []string{"result"})

	archiveEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "archive", Name: "events_total",
		Help: "Events handled by bin exports.",
	}, []string{"status"})

	rateLimitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "ratelimit", Name: "requests_total",
		Help: "Ingest requests checked against the per-client limiter.",
	}, []string{"status"})

	retryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "retry_attempts_total",
		Help: "Failed attempts that were retried, by operation.",
	}, []string{"operation"})

	breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "circuit_breaker", Name: "state",
		Help: "Breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})

	breakerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "circuit_breaker", Name: "requests_total",
		Help: "Calls that went through a breaker.",
	}, []string{"name", "state", "success"})

	kafkaWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "messages_written_total",
		Help: "Notices written to kafka.",
	}, []string{"topic"})

	kafkaMessageSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "message_size_bytes",
		Help: "Size of notice payloads written to kafka.", Buckets: sizeBuckets,
	}, []string{"topic"})

	kafkaWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "write_duration_ms",
		Help: "Kafka write latency in milliseconds.", Buckets: msBuckets,
	}, []string{"topic"})

	dbQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "db", Name: "queries_total",
		Help: "Store queries by operation and outcome.",
	}, []string{"operation", "status"})

	dbQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "db", Name: "query_duration_ms",
		Help: "Store query latency in milliseconds.", Buckets: msBuckets,
	}, []string{"operation"})

	dbConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "db", Name: "connections",
		Help: "Pool connections by state.",
	}, []string{"state"})
)

var registerOnce sync.Once

// Register adds every collector to the default registerer. Repeated calls
// are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ingestTotal, ingestDuration, ingestBodySize,
			queryTotal, noticesTotal, binCacheTotal, archiveEvents,
			rateLimitTotal, retryAttempts,
			breakerState, breakerRequests,
			kafkaWritten, kafkaMessageSize, kafkaWriteDuration,
			dbQueries, dbQueryDuration, dbConnections,
		)
	})
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func ObserveIngest(status string, d time.Duration) {
	ingestTotal.WithLabelValues(status).Inc()
	ingestDuration.WithLabelValues(status).Observe(ms(d))
}

func ObserveIngestBodySize(n int) { ingestBodySize.Observe(float64(n)) }

func IncQuery(operation, status string) { queryTotal.WithLabelValues(operation, status).Inc() }

func IncNoticePublished(notifier, status string) {
	noticesTotal.WithLabelValues(notifier, status).Inc()
}

func IncBinCache(result string) { binCacheTotal.WithLabelValues(result).Inc() }

func AddArchiveEvents(status string, n int) {
	if n > 0 {
		archiveEvents.WithLabelValues(status).Add(float64(n))
	}
}

func IncRateLimit(status string) { rateLimitTotal.WithLabelValues(status).Inc() }

func IncRetryAttempt(operation string) { retryAttempts.WithLabelValues(operation).Inc() }

func SetCircuitBreakerState(name string, v float64) { breakerState.WithLabelValues(name).Set(v) }

func IncCircuitBreakerRequest(name, state string, success bool) {
	breakerRequests.WithLabelValues(name, state, strconv.FormatBool(success)).Inc()
}

func ObserveKafkaWrite(topic string, size int, d time.Duration) {
	kafkaWritten.WithLabelValues(topic).Inc()
	kafkaMessageSize.WithLabelValues(topic).Observe(float64(size))
	kafkaWriteDuration.WithLabelValues(topic).Observe(ms(d))
}

func ObserveDatabaseQuery(operation, status string, d time.Duration) {
	dbQueries.WithLabelValues(operation, status).Inc()
	dbQueryDuration.WithLabelValues(operation).Observe(ms(d))
}

func SetDatabaseConnections(inUse, idle int) {
	dbConnections.WithLabelValues("in_use").Set(float64(inUse))
	dbConnections.WithLabelValues("idle").Set(float64(idle))
}
