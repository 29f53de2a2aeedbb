package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"deckforge/internal/adapters/ai"
)

// CacheSizer reports the number of entries held by a cache.
type CacheSizer interface {
	Len() int
}

// CustomCollector exposes process state that is cheaper to read on scrape
// than to keep in sync through counters.
type CustomCollector struct {
	costs *ai.CostTracker
	cache CacheSizer

	modelCost  *prometheus.Desc
	modelCalls *prometheus.Desc
	cacheSize  *prometheus.Desc
}

// NewCustomCollector creates a collector. Either source may be nil.
func NewCustomCollector(costs *ai.CostTracker, cache CacheSizer) *CustomCollector {
	return &CustomCollector{
		costs: costs,
		cache: cache,

		modelCost: prometheus.NewDesc(
			"deckforge_model_cost_usd_current",
			"Accumulated model cost in USD since process start",
			[]string{"model"}, nil,
		),
		modelCalls: prometheus.NewDesc(
			"deckforge_model_calls_current",
			"Model calls since process start",
			[]string{"model"}, nil,
		),
		cacheSize: prometheus.NewDesc(
			"deckforge_search_cache_entries",
			"Entries held by the in-process search cache",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.modelCost
	ch <- c.modelCalls
	ch <- c.cacheSize
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	if c.costs != nil {
		for model, mc := range c.costs.Snapshot() {
			cost, _ := mc.CostUSD.Float64()
			ch <- prometheus.MustNewConstMetric(c.modelCost, prometheus.GaugeValue, cost, model)
			ch <- prometheus.MustNewConstMetric(c.modelCalls, prometheus.GaugeValue, float64(mc.Calls), model)
		}
	}
	if c.cache != nil {
		ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(c.cache.Len()))
	}
}

// RegisterCustomCollector registers the collector with the default registry
func RegisterCustomCollector(collector *CustomCollector) error {
	return prometheus.Register(collector)
}
