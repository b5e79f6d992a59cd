package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation service.
type Metrics struct {
	// Files accepted for extraction, by role and dedupe outcome
	FilesIngested *prometheus.CounterVec

	// Field extraction latency, by path ("pre_extracted" or "llm")
	ExtractLatency *prometheus.HistogramVec

	// Run outcomes by terminal status
	RunOutcome *prometheus.CounterVec

	// Matrix build latency including scoring every pair
	MatrixLatency prometheus.Histogram

	// Pair results by likely-match verdict
	PairVerdict *prometheus.CounterVec
}

// ExtractLatency label values.
const (
	PathPreExtracted = "pre_extracted"
	PathLLM          = "llm"
)

// New registers all reconciler metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registerer, so tests can use an
// isolated registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_files_ingested_total",
			Help: "Total files accepted for extraction by role and dedupe outcome",
		}, []string{"role", "deduplicated"}),

		ExtractLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reconciler_extract_duration_seconds",
			Help:    "Duration of field extraction by path",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"path"}), // path: "pre_extracted", "llm"

		RunOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_runs_total",
			Help: "Total reconciliation runs by terminal status",
		}, []string{"status"}),

		MatrixLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reconciler_matrix_duration_seconds",
			Help:    "Duration of building one full comparison matrix",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		PairVerdict: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_pairs_total",
			Help: "Total scored pairs by likely-match verdict",
		}, []string{"likely_match"}),
	}
}

// IncrementFilesIngested records one accepted file.
func (m *Metrics) IncrementFilesIngested(role string, deduplicated bool) {
	if m != nil {
		m.FilesIngested.WithLabelValues(role, boolLabel(deduplicated)).Inc()
	}
}

// ObserveExtractLatency records the duration of one extraction.
func (m *Metrics) ObserveExtractLatency(path string, d time.Duration) {
	if m != nil {
		m.ExtractLatency.WithLabelValues(path).Observe(d.Seconds())
	}
}

// IncrementRunOutcome records a run reaching a terminal status.
func (m *Metrics) IncrementRunOutcome(status string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveMatrixLatency records the duration of one matrix build.
func (m *Metrics) ObserveMatrixLatency(d time.Duration) {
	if m != nil {
		m.MatrixLatency.Observe(d.Seconds())
	}
}

// IncrementPairVerdict records one scored pair.
func (m *Metrics) IncrementPairVerdict(likely bool) {
	if m != nil {
		m.PairVerdict.WithLabelValues(boolLabel(likely)).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
