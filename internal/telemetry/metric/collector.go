package metric

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// KeyCounter reports the number of keys per local store namespace.
type KeyCounter interface {
	KeyCounts(ctx context.Context) (map[string]int, error)
}

// StoreCollector exposes local store key counts at scrape time.
type StoreCollector struct {
	source  KeyCounter
	timeout time.Duration

	keys   *prometheus.Desc
	errors *prometheus.Desc
}

// NewStoreCollector creates a collector reading from source.
func NewStoreCollector(source KeyCounter) *StoreCollector {
	return &StoreCollector{
		source:  source,
		timeout: 5 * time.Second,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "store", "keys"),
			"Keys in the local store by namespace.",
			[]string{"namespace"}, nil,
		),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "store", "scrape_error"),
			"1 if reading the local store failed during the last collection.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.errors
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.source.KeyCounts(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.GaugeValue, 1)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.GaugeValue, 0)
	for ns, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(n), ns)
	}
}
