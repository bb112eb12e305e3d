package refactor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

const validatedSource = `package p;

import p.Missing;

class V {
    void f(int a, int b) {}
}
`

func newTestValidator(t *testing.T) (*SourceValidator, []byte) {
	t.Helper()
	ws := newTestWorkspace(t, map[string]string{"p/V.java": validatedSource})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSourceValidator(ws, analysis.NewTypeHierarchy(ws, nil), logger), []byte(validatedSource)
}

func renameB(to string) types.Change {
	start := strings.Index(validatedSource, "int b") + len("int ")
	return types.Change{File: "/ws/p/V.java", Start: start, End: start + 1, OldText: "b", NewText: to}
}

func TestSourceValidator_ReportsIntroducedProblems(t *testing.T) {
	v, original := newTestValidator(t)

	problems, err := v.Validate(context.Background(), "/ws/p/V.java", original, []types.Change{renameB("a")})
	require.NoError(t, err)
	require.Len(t, problems, 1, "the existing unresolved import is not reported again")
	assert.Equal(t, types.ProblemDuplicateParameter, problems[0].Kind)
}

func TestSourceValidator_CleanEdit(t *testing.T) {
	v, original := newTestValidator(t)

	problems, err := v.Validate(context.Background(), "/ws/p/V.java", original, []types.Change{renameB("count")})
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestSourceValidator_RejectsBadEdits(t *testing.T) {
	v, original := newTestValidator(t)

	tests := []struct {
		name  string
		edits []types.Change
	}{
		{"negative start", []types.Change{{File: "/ws/p/V.java", Start: -1, End: 2}}},
		{"end before start", []types.Change{{File: "/ws/p/V.java", Start: 5, End: 3}}},
		{"overlap", []types.Change{
			{File: "/ws/p/V.java", Start: 10, End: 20, NewText: "x"},
			{File: "/ws/p/V.java", Start: 15, End: 25, NewText: "y"},
		}},
		{"stale old text", []types.Change{{File: "/ws/p/V.java", Start: 0, End: 7, OldText: "import ", NewText: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), "/ws/p/V.java", original, tt.edits)
			var refErr *types.RefactorError
			require.True(t, errors.As(err, &refErr), "got %v", err)
			assert.Equal(t, types.ValidationFailure, refErr.Type)
		})
	}
}
