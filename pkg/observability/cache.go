package observability

import (
	"github.com/aretw0/parley/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// CacheCollector exports read-through cache counters on every scrape.
type CacheCollector struct {
	stats  func() []cache.Stats
	hits   *prometheus.Desc
	misses *prometheus.Desc
	size   *prometheus.Desc
}

// NewCacheCollector reads counters from stats, typically parley.Engine.CacheStats.
func NewCacheCollector(stats func() []cache.Stats) *CacheCollector {
	labels := []string{"cache"}
	return &CacheCollector{
		stats:  stats,
		hits:   prometheus.NewDesc(namespace+"_cache_hits_total", "Read-through cache hits", labels, nil),
		misses: prometheus.NewDesc(namespace+"_cache_misses_total", "Read-through cache misses", labels, nil),
		size:   prometheus.NewDesc(namespace+"_cache_entries", "Entries currently held by the cache", labels, nil),
	}
}

func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.size
}

func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.stats() {
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), s.Name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), s.Name)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.Size), s.Name)
	}
}
