// Package metrics exposes the service's in-process counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/trace"
)

const namespace = "fintrack"

// Sources are read on every scrape. Nil sources are skipped.
type Sources struct {
	Requests  func() trace.Metrics
	RateLimit func() ratelimit.Metrics
}

// Collector implements prometheus.Collector over Sources.
type Collector struct {
	src Sources

	requestsTotal    *prometheus.Desc
	serverErrors     *prometheus.Desc
	lastResponseTime *prometheus.Desc
	rateLimitHits    *prometheus.Desc
	rateLimitClients *prometheus.Desc
}

func NewCollector(src Sources) *Collector {
	return &Collector{
		src: src,
		requestsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "http", "requests_total"),
			"Requests handled since start.", nil, nil),
		serverErrors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "http", "server_errors_total"),
			"Responses with a 5xx status.", nil, nil),
		lastResponseTime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "http", "last_response_seconds"),
			"Duration of the most recent request.", nil, nil),
		rateLimitHits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "rejections_total"),
			"Requests rejected by the rate limiter.", nil, nil),
		rateLimitClients: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "clients"),
			"Clients currently tracked by the rate limiter.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsTotal
	ch <- c.serverErrors
	ch <- c.lastResponseTime
	ch <- c.rateLimitHits
	ch <- c.rateLimitClients
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.src.Requests != nil {
		m := c.src.Requests()
		ch <- prometheus.MustNewConstMetric(c.requestsTotal, prometheus.CounterValue, float64(m.TotalRequests))
		ch <- prometheus.MustNewConstMetric(c.serverErrors, prometheus.CounterValue, float64(m.ServerErrors))
		// recorded in microseconds
		ch <- prometheus.MustNewConstMetric(c.lastResponseTime, prometheus.GaugeValue, float64(m.LastResponseTime)/1e6)
	}
	if c.src.RateLimit != nil {
		m := c.src.RateLimit()
		ch <- prometheus.MustNewConstMetric(c.rateLimitHits, prometheus.CounterValue, float64(m.TotalHits))
		ch <- prometheus.MustNewConstMetric(c.rateLimitClients, prometheus.GaugeValue, float64(m.ClientCount))
	}
}

// Handler returns a scrape handler over a private registry holding the
// collector plus the Go runtime and process collectors.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
