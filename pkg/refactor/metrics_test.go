package refactor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

func TestMetrics_RecordsRuns(t *testing.T) {
	metrics := NewMetrics()
	ws := newTestWorkspace(t, map[string]string{"p/Format.java": formatSource})
	p := NewChangeSignatureProcessor(ws, ProcessorOptions{Metrics: metrics})

	model := initialModel(t, p, "p.Format#f(int,String)")
	model.SetNewName("format")
	runModel(t, p, model)

	unchanged := initialModel(t, p, "p.Format#f(int,String)")
	_, _, outcome, err := p.Run(t.Context(), unchanged)
	require.NoError(t, err)
	require.Equal(t, types.OutcomeRejected, outcome)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("change-signature", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("change-signature", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.entries.WithLabelValues("Fatal")))
	assert.Positive(t, testutil.ToFloat64(metrics.occurrences.WithLabelValues("declaration")))

	expected := `
# HELP sigrefactor_assembler_files_changed Files touched by one change set
# TYPE sigrefactor_assembler_files_changed histogram
sigrefactor_assembler_files_changed_bucket{le="1"} 1
sigrefactor_assembler_files_changed_bucket{le="2"} 1
sigrefactor_assembler_files_changed_bucket{le="4"} 1
sigrefactor_assembler_files_changed_bucket{le="8"} 1
sigrefactor_assembler_files_changed_bucket{le="16"} 1
sigrefactor_assembler_files_changed_bucket{le="32"} 1
sigrefactor_assembler_files_changed_bucket{le="64"} 1
sigrefactor_assembler_files_changed_bucket{le="128"} 1
sigrefactor_assembler_files_changed_bucket{le="+Inf"} 1
sigrefactor_assembler_files_changed_sum 1
sigrefactor_assembler_files_changed_count 1
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "sigrefactor_assembler_files_changed"))

	count, err := testutil.GatherAndCount(metrics.Registry(), "sigrefactor_processor_stage_duration_seconds")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestMetrics_Nil(t *testing.T) {
	var metrics *Metrics
	assert.Nil(t, metrics.Registry())
	metrics.RecordRun(types.ChangeSignatureOperation, types.OutcomeCompleted, types.NewStatus())
	metrics.RecordChangeSet(&ChangeSet{})
	assert.NoError(t, metrics.WriteTextfile(filepath.Join(t.TempDir(), "none.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordRun(types.ChangeSignatureOperation, types.OutcomeCancelled, types.NewStatus())

	path := filepath.Join(t.TempDir(), "sigrefactor.prom")
	require.NoError(t, metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `sigrefactor_processor_runs_total{operation="change-signature",outcome="cancelled"} 1`)
}
