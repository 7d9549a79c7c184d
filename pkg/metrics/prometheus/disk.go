package prometheus

import (
	"time"

	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterDiskMetricsConstructor(NewDiskMetrics)
}

// diskMetrics is the Prometheus implementation of disk.Metrics.
type diskMetrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	sectors       *prometheus.CounterVec
	writeProtects *prometheus.CounterVec
	motor         *prometheus.CounterVec
}

// NewDiskMetrics creates a new Prometheus-backed disk.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewDiskMetrics() disk.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &diskMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_disk_requests_total",
				Help: "Read/write requests by disk, direction, path and status",
			},
			[]string{"disk", "direction", "path", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittoblk_disk_request_duration_milliseconds",
				Help: "Duration of read/write requests in milliseconds",
				Buckets: []float64{
					0.01, // 10µs - cache hit
					0.1,  // 100µs
					1,    // 1ms - local image
					10,   // 10ms
					50,   // 50ms - object store
					100,  // 100ms
					500,  // 500ms - floppy seek
					1000, // 1s
					5000, // 5s - motor spin-up
				},
			},
			[]string{"disk", "direction"},
		),
		sectors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_disk_sectors_total",
				Help: "Sectors transferred by disk and direction",
			},
			[]string{"disk", "direction"},
		),
		writeProtects: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_disk_write_protect_total",
				Help: "Disks switched to read-only after a write-protect error",
			},
			[]string{"disk"},
		),
		motor: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_disk_motor_transitions_total",
				Help: "Motor state changes by disk and new state",
			},
			[]string{"disk", "state"}, // state: "on", "off"
		),
	}
}

func (m *diskMetrics) ObserveIO(name string, write, direct bool, sectors uint64, elapsed time.Duration, err error) {
	if m == nil {
		return
	}

	direction := "read"
	if write {
		direction = "write"
	}
	path := "cached"
	if direct {
		path = "direct"
	}
	status := "success"
	if err != nil {
		status = "error"
	}

	m.requests.WithLabelValues(name, direction, path, status).Inc()
	m.duration.WithLabelValues(name, direction).Observe(elapsed.Seconds() * 1000)
	if err == nil {
		m.sectors.WithLabelValues(name, direction).Add(float64(sectors))
	}
}

func (m *diskMetrics) RecordWriteProtect(name string) {
	if m == nil {
		return
	}
	m.writeProtects.WithLabelValues(name).Inc()
}

func (m *diskMetrics) RecordMotor(name string, on bool) {
	if m == nil {
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	m.motor.WithLabelValues(name, state).Inc()
}
