package chainview

// metrics.go exports Statistics as Prometheus metrics.

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// StatisticsCollector is a prometheus.Collector reading a Statistics.
// Tickers are exported as counters named <namespace>_<ticker>_total and
// histograms as summaries carrying count and sum.
type StatisticsCollector struct {
	stats      Statistics
	tickers    [TickerEnumMax]*prometheus.Desc
	histograms [HistogramEnumMax]*prometheus.Desc
}

// NewStatisticsCollector returns a collector for stats. An empty namespace
// selects "chainview".
func NewStatisticsCollector(stats Statistics, namespace string) *StatisticsCollector {
	if namespace == "" {
		namespace = "chainview"
	}
	c := &StatisticsCollector{stats: stats}
	for t := TickerType(0); t < TickerEnumMax; t++ {
		c.tickers[t] = prometheus.NewDesc(
			metricName(namespace, t.String())+"_total",
			"Count of "+t.String(),
			nil, nil,
		)
	}
	for h := HistogramType(0); h < HistogramEnumMax; h++ {
		c.histograms[h] = prometheus.NewDesc(
			metricName(namespace, h.String()),
			"Distribution of "+h.String(),
			nil, nil,
		)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *StatisticsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.tickers {
		ch <- d
	}
	for _, d := range c.histograms {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *StatisticsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		return
	}
	for t, d := range c.tickers {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue,
			float64(c.stats.GetTickerCount(TickerType(t))))
	}
	for h, d := range c.histograms {
		data := c.stats.GetHistogramData(HistogramType(h))
		ch <- prometheus.MustNewConstSummary(d, data.Count, float64(data.Sum), nil)
	}
}

// RegisterStatistics registers a collector for stats with reg.
func RegisterStatistics(reg prometheus.Registerer, stats Statistics, namespace string) error {
	return reg.Register(NewStatisticsCollector(stats, namespace))
}

// metricName maps "chainview.reader.views.freed" to "<ns>_reader_views_freed".
func metricName(namespace, name string) string {
	name = strings.TrimPrefix(name, "chainview.")
	return namespace + "_" + strings.ReplaceAll(name, ".", "_")
}
