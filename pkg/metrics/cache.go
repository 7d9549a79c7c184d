package metrics

import (
	"github.com/marmos91/dittoblk/pkg/cache"
	"github.com/marmos91/dittoblk/pkg/disk"
	"github.com/marmos91/dittoblk/pkg/store/extent"
)

// NewCacheMetrics returns the Prometheus-backed cache collector.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// prometheus package was not linked in. Pass the result straight to
// disk.RegistryConfig.CacheMetrics.
//
//	metrics.InitRegistry()
//	reg := disk.NewRegistry(disk.RegistryConfig{
//		CacheMetrics: metrics.NewCacheMetrics(),
//		Metrics:      metrics.NewDiskMetrics(),
//	})
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// NewDiskMetrics returns the Prometheus-backed dispatcher collector, or nil
// when metrics are disabled.
func NewDiskMetrics() disk.Metrics {
	if !IsEnabled() || newPrometheusDiskMetrics == nil {
		return nil
	}
	return newPrometheusDiskMetrics()
}

// NewStoreMetrics returns the Prometheus-backed extent store collector, or
// nil when metrics are disabled.
func NewStoreMetrics() extent.Metrics {
	if !IsEnabled() || newPrometheusStoreMetrics == nil {
		return nil
	}
	return newPrometheusStoreMetrics()
}

// The constructors live in pkg/metrics/prometheus, which imports this
// package; registering them from its init avoids the import cycle.
var (
	newPrometheusCacheMetrics func() cache.Metrics
	newPrometheusDiskMetrics  func() disk.Metrics
	newPrometheusStoreMetrics func() extent.Metrics
)

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics constructor.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}

// RegisterDiskMetricsConstructor registers the Prometheus dispatcher metrics constructor.
func RegisterDiskMetricsConstructor(constructor func() disk.Metrics) {
	newPrometheusDiskMetrics = constructor
}

// RegisterStoreMetricsConstructor registers the Prometheus extent store metrics constructor.
func RegisterStoreMetricsConstructor(constructor func() extent.Metrics) {
	newPrometheusStoreMetrics = constructor
}
