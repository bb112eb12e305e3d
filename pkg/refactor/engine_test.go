package refactor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestCreateEngine(t *testing.T) {
	engine := CreateEngine()
	require.NotNil(t, engine)

	_, ok := engine.(*DefaultEngine)
	assert.True(t, ok, "expected *DefaultEngine")
}

func TestDefaultEngine_LoadWorkspace(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"src/p/Format.java":      formatSource,
		"build/p/Generated.java": "package p;\nclass Generated {}\n",
	})
	engine := CreateEngine()

	ws, err := engine.LoadWorkspace(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, ws.Types, "p.Format")
	assert.NotContains(t, ws.Types, "p.Generated")
}

func TestDefaultEngine_ChangeSignatureAndExecute(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"p/Format.java": formatSource})
	engine := CreateEngineWithConfig(&EngineConfig{Backup: true})
	ctx := context.Background()

	ws, err := engine.LoadWorkspace(ctx, dir)
	require.NoError(t, err)

	cs, status, outcome, err := engine.ChangeSignature(ctx, ws, &ChangeSignatureRequest{
		Method: "p.Format#f(int,String)",
		Move:   []ParameterMove{{From: 1, To: 0}},
	})
	require.NoError(t, err)
	require.Equal(t, types.OutcomeCompleted, outcome, status.String())

	plan := cs.AsPlan()
	diff, err := engine.DiffPlan(ws, plan)
	require.NoError(t, err)
	assert.Contains(t, diff, "+++ b/p/Format.java")
	assert.Contains(t, diff, `+        f("x", 1);`)

	preview, err := engine.PreviewPlan(plan)
	require.NoError(t, err)
	assert.Contains(t, preview, "Format.java")

	require.NoError(t, engine.ExecutePlan(plan))
	got, err := os.ReadFile(filepath.Join(dir, "p", "Format.java"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "String f(String b, int a) {")

	backup, err := os.ReadFile(filepath.Join(dir, "p", "Format.java.backup"))
	require.NoError(t, err)
	assert.Equal(t, formatSource, string(backup))
}

func TestDefaultEngine_ValidateRefactoring(t *testing.T) {
	errorStatus := types.NewStatus()
	errorStatus.AddError("deleted parameter used", nil)

	tests := []struct {
		name          string
		allowBreaking bool
		plan          *types.RefactoringPlan
		wantErr       bool
	}{
		{"ok", false, &types.RefactoringPlan{Status: types.NewStatus()}, false},
		{"fatal", true, &types.RefactoringPlan{Status: types.FatalStatus("no", nil)}, true},
		{"error", false, &types.RefactoringPlan{Status: errorStatus}, true},
		{"error allowed", true, &types.RefactoringPlan{Status: errorStatus}, false},
		{"overlapping edits", false, &types.RefactoringPlan{
			Status: types.NewStatus(),
			Changes: []types.Change{
				{File: "A.java", Start: 0, End: 10},
				{File: "A.java", Start: 5, End: 15},
			},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := CreateEngineWithConfig(&EngineConfig{AllowBreaking: tt.allowBreaking})
			err := engine.ValidateRefactoring(tt.plan)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultEngine_ExecutePlanRefusesErrors(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"p/Calc.java": `package p;

class Calc {
    int add(int a, int b) {
        return a + b;
    }
}
`})
	engine := CreateEngine()
	ctx := context.Background()
	ws, err := engine.LoadWorkspace(ctx, dir)
	require.NoError(t, err)

	cs, status, outcome, err := engine.ChangeSignature(ctx, ws, &ChangeSignatureRequest{
		Method: "p.Calc#add(int,int)",
		Delete: []string{"b"},
	})
	require.NoError(t, err)
	require.Equal(t, types.OutcomeCompleted, outcome)
	require.True(t, status.HasError())

	err = engine.ExecutePlan(cs.AsPlan())
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, types.SeverityError, verr.Status.Severity())
}

const calcSource = `package p;

class Calc {
    int add(int a, int b) {
        return a + b;
    }
}
`

func brokenCalcPlan(path string) *types.RefactoringPlan {
	brace := strings.LastIndex(calcSource, "}")
	return &types.RefactoringPlan{
		ID:            "broken",
		Status:        types.NewStatus(),
		AffectedFiles: []string{path},
		Changes:       []types.Change{{File: path, Start: brace, End: brace + 1, OldText: "}", NewText: ""}},
	}
}

func TestDefaultEngine_ExecutePlanRollsBackSyntaxErrors(t *testing.T) {
	for _, backup := range []bool{true, false} {
		t.Run(fmt.Sprintf("backup=%v", backup), func(t *testing.T) {
			dir := writeWorkspace(t, map[string]string{"p/Calc.java": calcSource})
			path := filepath.Join(dir, "p", "Calc.java")
			engine := CreateEngineWithConfig(&EngineConfig{Backup: backup})

			err := engine.ExecutePlan(brokenCalcPlan(path))
			var refErr *types.RefactorError
			require.True(t, errors.As(err, &refErr), "got %v", err)
			assert.Equal(t, types.ValidationFailure, refErr.Type)
			assert.Equal(t, path, refErr.File)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, calcSource, string(got))
			_, err = os.Stat(path + ".backup")
			assert.True(t, os.IsNotExist(err), "backup is consumed by the rollback")
		})
	}
}

func TestDefaultEngine_ExecutePlanToleratesExistingSyntaxErrors(t *testing.T) {
	broken := strings.Replace(calcSource, "return a + b;", "return a + ;", 1)
	dir := writeWorkspace(t, map[string]string{"p/Calc.java": broken})
	path := filepath.Join(dir, "p", "Calc.java")
	engine := CreateEngine()

	start := strings.Index(broken, "add")
	plan := &types.RefactoringPlan{
		Status:        types.NewStatus(),
		AffectedFiles: []string{path},
		Changes:       []types.Change{{File: path, Start: start, End: start + 3, OldText: "add", NewText: "sum"}},
	}
	require.NoError(t, engine.ExecutePlan(plan))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "int sum(int a, int b)")
}

func TestDefaultEngine_DescriptorRoundTrip(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"p/Format.java": formatSource})
	engine := CreateEngine()
	ctx := context.Background()
	ws, err := engine.LoadWorkspace(ctx, dir)
	require.NoError(t, err)

	req := &ChangeSignatureRequest{
		Method: "p.Format#f(int,String)",
		Add:    []ParameterAddition{{Type: "boolean", Name: "trim", Default: "true", Index: -1}},
	}
	d, status := engine.DescribeChange(ctx, ws, req)
	require.False(t, status.HasFatal())
	assert.Equal(t, "p.Format#f(int,String)", d[AttrInput])
	assert.NotEmpty(t, d[AttrID])

	checkStatus, outcome, err := engine.CheckDescriptor(ctx, ws, d)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, outcome, checkStatus.String())

	replayed, _, outcome, err := engine.ReplayDescriptor(ctx, ws, d)
	require.NoError(t, err)
	require.Equal(t, types.OutcomeCompleted, outcome)
	direct, _, _, err := engine.ChangeSignature(ctx, ws, req)
	require.NoError(t, err)

	assert.Equal(t, direct.Changes(), replayed.Changes())
}

func TestDefaultEngine_RefreshFiles(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"p/Format.java": formatSource})
	engine := CreateEngine()
	ctx := context.Background()
	ws, err := engine.LoadWorkspace(ctx, dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "p", "Format.java")
	require.NoError(t, os.Remove(path))
	require.NoError(t, engine.RefreshFiles(ctx, ws, []string{path}))
	assert.NotContains(t, ws.Files, path)
	assert.NotContains(t, ws.Types, "p.Format")
}
