package importer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// Metrics holds Prometheus metrics for the import pipeline.
type Metrics struct {
	BatchesTotal      *prometheus.CounterVec
	BatchDuration     prometheus.Histogram
	BatchRows         prometheus.Histogram
	RowsTotal         *prometheus.CounterVec
	DuplicateFindings *prometheus.CounterVec
	RowsCommitted     prometheus.Counter
	ConfigFallbacks   prometheus.Counter
}

// NewMetrics registers and returns import metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_batches_total",
			Help: "Total import runs by status.",
		}, []string{"status"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "import_batch_duration_seconds",
			Help:    "Duration of batch classification in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms .. ~262s
		}),
		BatchRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "import_batch_rows",
			Help:    "Rows per import batch.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1 .. ~262144
		}),
		RowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Classified rows by outcome.",
		}, []string{"outcome"}),
		DuplicateFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_duplicate_findings_total",
			Help: "Duplicate entries found, by field and severity.",
		}, []string{"field", "severity"}),
		RowsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "import_rows_committed_total",
			Help: "Rows written to the reference store.",
		}),
		ConfigFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "import_settings_fallbacks_total",
			Help: "Runs that fell back to default dedupe settings.",
		}),
	}

	reg.MustRegister(
		m.BatchesTotal,
		m.BatchDuration,
		m.BatchRows,
		m.RowsTotal,
		m.DuplicateFindings,
		m.RowsCommitted,
		m.ConfigFallbacks,
	)

	return m
}

// observeBatch records a classified batch.
func (m *Metrics) observeBatch(r *BatchResult) {
	if m == nil || r == nil {
		return
	}
	m.BatchDuration.Observe(r.Duration.Seconds())
	m.BatchRows.Observe(float64(r.Totals.Total))
	m.RowsTotal.WithLabelValues(string(OutcomeValid)).Add(float64(r.Totals.Valid))
	m.RowsTotal.WithLabelValues(string(OutcomeInvalid)).Add(float64(r.Totals.Invalid))
	m.RowsTotal.WithLabelValues(string(OutcomeDuplicate)).Add(float64(r.Totals.Duplicates))

	for _, f := range r.Failed {
		for _, d := range f.Duplicates {
			m.DuplicateFindings.WithLabelValues(findingLabel(d), string(d.Severity)).Inc()
		}
	}
}

// findingLabel keeps custom field ids out of the label space.
func findingLabel(d dedupe.DuplicateEntry) string {
	if d.Kind == dedupe.KindCustom {
		return "custom"
	}
	return d.Field
}

func (m *Metrics) batchDone(status string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) committed(n int) {
	if m == nil {
		return
	}
	m.RowsCommitted.Add(float64(n))
}

func (m *Metrics) configFallback() {
	if m == nil {
		return
	}
	m.ConfigFallbacks.Inc()
}
