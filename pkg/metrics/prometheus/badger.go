package prometheus

import (
	"fmt"

	"github.com/marmos91/dittoblk/pkg/metrics"
	"github.com/marmos91/dittoblk/pkg/store/extent/badger"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerSource exposes Badger cache counters. Satisfied by *badger.Store.
type BadgerSource interface {
	CacheStats() badger.CacheStats
}

// badgerCollector reads the counters at scrape time so the store never
// calls into Prometheus. The store name is a constant label, so one
// collector is registered per store.
type badgerCollector struct {
	src    BadgerSource
	hits   *prometheus.Desc
	misses *prometheus.Desc
	size   *prometheus.Desc
}

func newBadgerCollector(name string, src BadgerSource) *badgerCollector {
	labels := prometheus.Labels{"store": name}
	return &badgerCollector{
		src: src,
		hits: prometheus.NewDesc(
			"dittoblk_badger_cache_hits_total",
			"BadgerDB cache hits by cache type",
			[]string{"cache_type"}, labels, // "block", "index"
		),
		misses: prometheus.NewDesc(
			"dittoblk_badger_cache_misses_total",
			"BadgerDB cache misses by cache type",
			[]string{"cache_type"}, labels,
		),
		size: prometheus.NewDesc(
			"dittoblk_badger_size_bytes",
			"BadgerDB on-disk size by component",
			[]string{"component"}, labels, // "lsm", "vlog"
		),
	}
}

// RegisterBadgerStore exports the cache counters of one Badger extent store
// under the given name. It is a no-op when metrics are disabled.
func RegisterBadgerStore(name string, src BadgerSource) error {
	if !metrics.IsEnabled() {
		return nil
	}
	if err := metrics.GetRegistry().Register(newBadgerCollector(name, src)); err != nil {
		return fmt.Errorf("register badger metrics for %s: %w", name, err)
	}
	return nil
}

func (c *badgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.size
}

func (c *badgerCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.CacheStats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.BlockHits), "block")
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.IndexHits), "index")
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.BlockMisses), "block")
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.IndexMisses), "index")
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.LSMBytes), "lsm")
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.VlogBytes), "vlog")
}
