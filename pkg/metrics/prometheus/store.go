package prometheus

import (
	"time"

	"github.com/marmos91/dittoblk/pkg/metrics"
	"github.com/marmos91/dittoblk/pkg/store/extent"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterStoreMetricsConstructor(NewStoreMetrics)
}

// storeMetrics is the Prometheus implementation of extent.Metrics.
type storeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewStoreMetrics creates a new Prometheus-backed extent.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics() extent.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &storeMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_extent_operations_total",
				Help: "Total number of extent store operations by store type, operation and status",
			},
			[]string{"store_type", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittoblk_extent_operation_duration_milliseconds",
				Help: "Duration of extent store operations in milliseconds",
				Buckets: []float64{
					0.1,   // 100µs - memory
					1,     // 1ms - badger, local fs
					10,    // 10ms
					50,    // 50ms - small objects
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s - listing large volumes
					30000, // 30s
				},
			},
			[]string{"store_type", "operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_extent_bytes_total",
				Help: "Extent payload bytes transferred by store type and operation",
			},
			[]string{"store_type", "operation"},
		),
	}
}

func (m *storeMetrics) ObserveOperation(storeType, operation string, bytes int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(storeType, operation, status).Inc()
	m.operationDuration.WithLabelValues(storeType, operation).Observe(elapsed.Seconds() * 1000)
	if bytes > 0 {
		m.bytesTransferred.WithLabelValues(storeType, operation).Add(float64(bytes))
	}
}
