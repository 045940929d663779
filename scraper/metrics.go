package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scrape pipeline.
type Metrics struct {
	Registry         *prometheus.Registry
	PagesTotal       *prometheus.CounterVec
	PageRetriesTotal prometheus.Counter
	RequestDuration  prometheus.Histogram
	ProductsTotal    prometheus.Counter
	SkippedRecords   prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	ProxyRefills     prometheus.Counter
	UpsertsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinskraper_pages_total",
			Help: "Total search pages fetched, by outcome.",
		},
		[]string{"result"},
	)
	pageRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vinskraper_page_retries_total",
			Help: "Total per-page retry attempts after proxy rotation.",
		},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vinskraper_request_duration_seconds",
			Help:    "HTTP request latency for vendor search pages.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vinskraper_products_extracted_total",
			Help: "Total product records extracted from search pages.",
		},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vinskraper_records_skipped_total",
			Help: "Total raw records dropped for missing or invalid product codes.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinskraper_errors_total",
			Help: "Total fetch errors by type.",
		},
		[]string{"error_type"},
	)
	refills := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vinskraper_proxy_refills_total",
			Help: "Total proxy-list refill fetches.",
		},
	)
	upserts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vinskraper_upserts_total",
			Help: "Total reconciled documents, by write kind.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(pages, pageRetries, requestDuration, products, skipped, errorsTotal, refills, upserts)

	return &Metrics{
		Registry:         registry,
		PagesTotal:       pages,
		PageRetriesTotal: pageRetries,
		RequestDuration:  requestDuration,
		ProductsTotal:    products,
		SkippedRecords:   skipped,
		ErrorsTotal:      errorsTotal,
		ProxyRefills:     refills,
		UpsertsTotal:     upserts,
	}
}

// IncPage increments the page counter for an outcome label.
func (m *Metrics) IncPage(result string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(result).Inc()
}

// IncRetry increments the per-page retry counter.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.PageRetriesTotal.Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddProducts adds extracted product records.
func (m *Metrics) AddProducts(n int) {
	if m == nil {
		return
	}
	m.ProductsTotal.Add(float64(n))
}

// IncSkipped increments the dropped-record counter.
func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.SkippedRecords.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncRefill increments the proxy-list refill counter.
func (m *Metrics) IncRefill() {
	if m == nil {
		return
	}
	m.ProxyRefills.Inc()
}

// AddUpserts records a reconciliation write summary.
func (m *Metrics) AddUpserts(matched, inserted int64) {
	if m == nil {
		return
	}
	m.UpsertsTotal.WithLabelValues("matched").Add(float64(matched))
	m.UpsertsTotal.WithLabelValues("inserted").Add(float64(inserted))
}
