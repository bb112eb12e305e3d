package types

import (
	"context"
	"testing"
)

func TestOperationType_String(t *testing.T) {
	testCases := []struct {
		opType   OperationType
		expected string
	}{
		{ChangeSignatureOperation, "change-signature"},
		{IntroduceParameterObjectOperation, "introduce-parameter-object"},
		{OperationType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			if got := tc.opType.String(); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	fatal := FatalStatus("method is binary", nil)
	warning := NewStatus()
	warning.AddWarning("overrides a library method", nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	testCases := []struct {
		name     string
		ctx      context.Context
		status   *Status
		expected Outcome
	}{
		{"ok", context.Background(), NewStatus(), OutcomeCompleted},
		{"warning", context.Background(), warning, OutcomeCompleted},
		{"nil status", context.Background(), nil, OutcomeCompleted},
		{"fatal", context.Background(), fatal, OutcomeRejected},
		{"cancelled wins over fatal", cancelled, fatal, OutcomeCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OutcomeOf(tc.ctx, tc.status); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestProblem_Key(t *testing.T) {
	a := Problem{Kind: ProblemUndefinedType, Message: "Foo cannot be resolved to a type", Start: 10, End: 13, Line: 2}
	b := Problem{Kind: ProblemUndefinedType, Message: "Foo cannot be resolved to a type", Start: 40, End: 43, Line: 5}

	if a.Key() != b.Key() {
		t.Errorf("Expected position independent keys, got %q and %q", a.Key(), b.Key())
	}
	if a.Key() != "UndefinedType:Foo cannot be resolved to a type" {
		t.Errorf("Unexpected key %q", a.Key())
	}

	c := Problem{Kind: ProblemSyntax, Message: a.Message}
	if a.Key() == c.Key() {
		t.Errorf("Expected different kinds to produce different keys")
	}
}
