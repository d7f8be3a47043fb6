package monitor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission result labels
const (
	ResultAdmitted  = "admitted"
	ResultSoldOut   = "sold_out"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

var (
	// AdmissionTotal counts admission attempts by outcome
	AdmissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashsale",
		Name:      "admission_total",
		Help:      "Admission attempts by outcome",
	}, []string{"result"})

	// OrdersPersistedTotal counts orders durably written
	OrdersPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flashsale",
		Name:      "orders_persisted_total",
		Help:      "Orders durably written to the database",
	})

	// TicketsDroppedTotal counts tickets dropped by the consumer
	TicketsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashsale",
		Name:      "tickets_dropped_total",
		Help:      "Tickets the consumer dropped without writing an order",
	}, []string{"reason"})

	// PendingRecoveredTotal counts messages replayed from the backlog
	PendingRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flashsale",
		Name:      "pending_recovered_total",
		Help:      "Messages replayed from the pending backlog",
	})

	// CacheRebuildTotal counts asynchronous cache rebuilds
	CacheRebuildTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flashsale",
		Name:      "cache_rebuild_total",
		Help:      "Asynchronous cache rebuilds triggered",
	})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flashsale",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// HTTPMetrics records request latency per route
func HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
