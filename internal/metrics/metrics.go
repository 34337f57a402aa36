// Package metrics exposes Prometheus instrumentation for the booking store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ResultOK labels successful operations; failures use their error kind.
const ResultOK = "ok"

var (
	// storeOperations counts store and catalog calls by outcome
	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskbook_store_operations_total",
		Help: "Store operations by operation and result",
	}, []string{"operation", "result"})

	// storeDuration tracks store call latency, dominated by durable writes
	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskbook_store_operation_duration_seconds",
		Help:    "Store operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"operation"})

	// commands counts chat commands by action and result
	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskbook_commands_total",
		Help: "Commands handled by action and result",
	}, []string{"action", "result"})
)

// ObserveOperation records one store call.
func ObserveOperation(operation, result string, start time.Time) {
	storeOperations.WithLabelValues(operation, result).Inc()
	storeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveCommand records one handled command.
func ObserveCommand(action, result string) {
	commands.WithLabelValues(action, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
