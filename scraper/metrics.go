package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesTotal      *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	DuplicatesTotal *prometheus.CounterVec
	MalformedTotal  *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	FlushesTotal    *prometheus.CounterVec
	PageDuration    prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total result pages extracted, by score type.",
		},
		[]string{"score_type"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Total new records persisted, by score type.",
		},
		[]string{"score_type"},
	)
	duplicates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_duplicates_skipped_total",
			Help: "Total already-seen records filtered out, by score type.",
		},
		[]string{"score_type"},
	)
	malformed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_malformed_rows_total",
			Help: "Total rows skipped because they did not parse, by score type.",
		},
		[]string{"score_type"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total page-level retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total scraper errors by type.",
		},
		[]string{"error_type"},
	)
	flushes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_flushes_total",
			Help: "Total snapshot flushes to disk, by score type.",
		},
		[]string{"score_type"},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_page_duration_seconds",
			Help:    "Time spent extracting and persisting one page.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(pages, records, duplicates, malformed, retries, errorsTotal, flushes, pageDuration)

	return &Metrics{
		Registry:        registry,
		PagesTotal:      pages,
		RecordsTotal:    records,
		DuplicatesTotal: duplicates,
		MalformedTotal:  malformed,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		FlushesTotal:    flushes,
		PageDuration:    pageDuration,
	}
}

// IncPage increments the pages counter for a score type.
func (m *Metrics) IncPage(scoreType string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(scoreType).Inc()
}

// AddRecords adds to the persisted-records counter.
func (m *Metrics) AddRecords(scoreType string, n int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(scoreType).Add(float64(n))
}

// AddDuplicates adds to the duplicates-skipped counter.
func (m *Metrics) AddDuplicates(scoreType string, n int) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.WithLabelValues(scoreType).Add(float64(n))
}

// AddMalformed adds to the malformed-rows counter.
func (m *Metrics) AddMalformed(scoreType string, n int) {
	if m == nil {
		return
	}
	m.MalformedTotal.WithLabelValues(scoreType).Add(float64(n))
}

// IncRetries increments the retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncFlush increments the flush counter for a score type.
func (m *Metrics) IncFlush(scoreType string) {
	if m == nil {
		return
	}
	m.FlushesTotal.WithLabelValues(scoreType).Inc()
}

// ObservePageDuration records how long one page iteration took.
func (m *Metrics) ObservePageDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PageDuration.Observe(seconds)
}
