package refactor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// Metrics collects counters and timings of processor runs. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	occurrences   *prometheus.CounterVec
	filesChanged  prometheus.Histogram
	entries       *prometheus.CounterVec
}

// NewMetrics registers the refactoring metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigrefactor",
			Subsystem: "processor",
			Name:      "runs_total",
			Help:      "Processor runs by operation and outcome",
		}, []string{"operation", "outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sigrefactor",
			Subsystem: "processor",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stage"}),
		occurrences: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigrefactor",
			Subsystem: "search",
			Name:      "occurrences_total",
			Help:      "Located occurrences by kind",
		}, []string{"kind"}),
		filesChanged: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sigrefactor",
			Subsystem: "assembler",
			Name:      "files_changed",
			Help:      "Files touched by one change set",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		entries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigrefactor",
			Subsystem: "processor",
			Name:      "status_entries_total",
			Help:      "Status entries by severity",
		}, []string{"severity"}),
	}
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRun counts one finished run and its status entries.
func (m *Metrics) RecordRun(operation types.OperationType, outcome types.Outcome, status *types.Status) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(operation.String(), outcome.String()).Inc()
	for _, e := range status.Entries() {
		m.entries.WithLabelValues(e.Severity.String()).Inc()
	}
}

// RecordStage observes the duration of a stage started at start.
func (m *Metrics) RecordStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordOccurrences counts the occurrences of a search.
func (m *Metrics) RecordOccurrences(files []FileOccurrences) {
	if m == nil {
		return
	}
	for _, fo := range files {
		for _, occ := range fo.Occurrences {
			m.occurrences.WithLabelValues(occ.Kind.String()).Inc()
		}
		if n := len(fo.Binary); n > 0 {
			m.occurrences.WithLabelValues("binary").Add(float64(n))
		}
	}
}

// RecordChangeSet observes the size of an assembled change set.
func (m *Metrics) RecordChangeSet(cs *ChangeSet) {
	if m == nil || cs == nil {
		return
	}
	m.filesChanged.Observe(float64(len(cs.Files)))
}

// WriteTextfile writes all metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return &types.RefactorError{Type: types.FileSystemError, Message: "failed to write metrics", File: path, Cause: err}
	}
	return nil
}
