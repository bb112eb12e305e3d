package refactor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

const testRoot = "/ws"

func newTestWorkspace(t *testing.T, sources map[string]string) *types.Workspace {
	t.Helper()
	ws, err := analysis.NewWorkspaceFromSources(context.Background(), testRoot, sources)
	require.NoError(t, err)
	return ws
}

func newTestProcessor(t *testing.T, sources map[string]string) (*types.Workspace, *ChangeSignatureProcessor) {
	t.Helper()
	ws := newTestWorkspace(t, sources)
	return ws, NewChangeSignatureProcessor(ws, ProcessorOptions{})
}

// initialModel returns the model of handle and fails the test on a Fatal
// initial status.
func initialModel(t *testing.T, p *ChangeSignatureProcessor, handle string) *SignatureModel {
	t.Helper()
	model, status := p.CheckInitialConditions(context.Background(), handle)
	require.False(t, status.HasFatal(), status.String())
	require.NotNil(t, model)
	return model
}

// runModel runs model and requires a completed outcome.
func runModel(t *testing.T, p *ChangeSignatureProcessor, model *SignatureModel) (*ChangeSet, *types.Status) {
	t.Helper()
	cs, status, outcome, err := p.Run(context.Background(), model)
	require.NoError(t, err)
	require.Equal(t, types.OutcomeCompleted, outcome, status.String())
	require.NotNil(t, cs)
	return cs, status
}

// preview returns the new content of name, a path relative to testRoot.
func preview(t *testing.T, cs *ChangeSet, name string) string {
	t.Helper()
	f, ok := cs.File(filepath.Join(testRoot, name))
	require.True(t, ok, "no change for %s", name)
	return string(f.Preview)
}

func hasCode(status *types.Status, code string) bool {
	_, ok := status.EntryWithCode(code)
	return ok
}
