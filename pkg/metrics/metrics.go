package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 领域事件发布计数
	EventPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_published_count",
			Help: "Total number of domain events published",
		},
		[]string{"event"},
	)

	// Webhook 投递计数
	WebhookDeliveryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_delivery_count",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "status"}, // status: success, failed, exhausted
	)

	// Webhook 投递延迟（毫秒）
	WebhookDeliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_latency_ms",
			Help:    "Webhook delivery latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"event"},
	)

	// 限流拒绝计数
	RateLimitRejectedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejected_count",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the threshold",
		},
	)
)

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementEventPublished 增加事件发布计数
func IncrementEventPublished(event string) {
	EventPublishedCount.WithLabelValues(event).Inc()
}

// RecordWebhookDelivery 记录一次 webhook 投递
func RecordWebhookDelivery(event, status string, duration time.Duration) {
	WebhookDeliveryCount.WithLabelValues(event, status).Inc()
	WebhookDeliveryLatency.WithLabelValues(event).Observe(float64(duration.Milliseconds()))
}
