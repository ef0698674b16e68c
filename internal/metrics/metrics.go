// Package metrics holds the Prometheus collectors for manager operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "icalbridge_operations_total",
			Help: "Manager operations by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icalbridge_operation_duration_seconds",
			Help:    "Duration of manager operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	bridgeWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "icalbridge_bridge_wait_seconds",
			Help:    "Time spent waiting for asynchronous store callbacks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	handles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "icalbridge_handles",
		Help: "Live entries in the manager handle table",
	})
)

// ObserveOperation records one finished manager operation
func ObserveOperation(operation string, started time.Time, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	operations.WithLabelValues(operation, status).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveBridgeWait records how long a bridged callback took
func ObserveBridgeWait(operation string, d time.Duration) {
	bridgeWait.WithLabelValues(operation).Observe(d.Seconds())
}

func SetHandles(n int) {
	handles.Set(float64(n))
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
