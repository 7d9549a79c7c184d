package prometheus

import (
	"github.com/marmos91/dittoblk/pkg/cache"
	"github.com/marmos91/dittoblk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	sectors       *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	splits        *prometheus.CounterVec
	allocFailures *prometheus.CounterVec
	flushed       *prometheus.CounterVec
	flushErrors   *prometheus.CounterVec
	residentBytes *prometheus.GaugeVec
	buffers       *prometheus.GaugeVec
	dirtyBuffers  *prometheus.GaugeVec
}

// NewCacheMetrics creates a new Prometheus-backed cache.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() cache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &cacheMetrics{
		sectors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_cache_sectors_total",
				Help: "Sectors requested through the cache by disk and result",
			},
			[]string{"disk", "result"}, // result: "hit", "miss"
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_cache_evictions_total",
				Help: "Buffers evicted from the cache by disk and state",
			},
			[]string{"disk", "state"}, // state: "clean", "dirty"
		),
		splits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_cache_splits_total",
				Help: "Buffers split by partial writes",
			},
			[]string{"disk"},
		),
		allocFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_cache_alloc_failures_total",
				Help: "Buffer allocations refused, forcing write-through",
			},
			[]string{"disk"},
		),
		flushed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_cache_flushed_sectors_total",
				Help: "Dirty sectors written back to the device",
			},
			[]string{"disk"},
		),
		flushErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoblk_cache_flush_errors_total",
				Help: "Failed buffer write-backs",
			},
			[]string{"disk"},
		),
		residentBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoblk_cache_resident_bytes",
				Help: "Payload bytes held by the cache",
			},
			[]string{"disk"},
		),
		buffers: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoblk_cache_buffers",
				Help: "Resident buffers",
			},
			[]string{"disk"},
		),
		dirtyBuffers: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoblk_cache_dirty_buffers",
				Help: "Resident buffers not yet written back",
			},
			[]string{"disk"},
		),
	}
}

func (m *cacheMetrics) RecordHit(disk string, sectors uint64) {
	if m == nil {
		return
	}
	m.sectors.WithLabelValues(disk, "hit").Add(float64(sectors))
}

func (m *cacheMetrics) RecordMiss(disk string, sectors uint64) {
	if m == nil {
		return
	}
	m.sectors.WithLabelValues(disk, "miss").Add(float64(sectors))
}

func (m *cacheMetrics) RecordEviction(disk string, dirty bool) {
	if m == nil {
		return
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	m.evictions.WithLabelValues(disk, state).Inc()
}

func (m *cacheMetrics) RecordSplit(disk string) {
	if m == nil {
		return
	}
	m.splits.WithLabelValues(disk).Inc()
}

func (m *cacheMetrics) RecordAllocFailure(disk string) {
	if m == nil {
		return
	}
	m.allocFailures.WithLabelValues(disk).Inc()
}

func (m *cacheMetrics) RecordFlush(disk string, sectors uint64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.flushErrors.WithLabelValues(disk).Inc()
		return
	}
	m.flushed.WithLabelValues(disk).Add(float64(sectors))
}

func (m *cacheMetrics) RecordState(disk string, bytes uint64, buffers, dirty int) {
	if m == nil {
		return
	}
	m.residentBytes.WithLabelValues(disk).Set(float64(bytes))
	m.buffers.WithLabelValues(disk).Set(float64(buffers))
	m.dirtyBuffers.WithLabelValues(disk).Set(float64(dirty))
}
