package refactor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

const shopSource = `package com.acme;

public class Shop {
    public int order(String item, int count, boolean express) {
        if (express) {
            return count * 2;
        }
        return count;
    }

    void run() {
        order("apple", 2, false);
    }
}
`

func introduce(t *testing.T, req ParameterObjectRequest) (*ChangeSet, *types.Status, types.Outcome) {
	t.Helper()
	_, p := newTestProcessor(t, map[string]string{"com/acme/Shop.java": shopSource})
	cs, status, outcome, err := p.IntroduceParameterObject(context.Background(), req)
	require.NoError(t, err)
	return cs, status, outcome
}

func TestIntroduceParameterObject_TopLevel(t *testing.T) {
	cs, status, outcome := introduce(t, ParameterObjectRequest{
		Method:     "com.acme.Shop#order(String,int,boolean)",
		Parameters: []string{"item", "count"},
		ClassName:  "OrderLine",
		TopLevel:   true,
		Getters:    true,
	})
	require.Equal(t, types.OutcomeCompleted, outcome, status.String())
	assert.Equal(t, "Introduce parameter object for 'order'", cs.Name)

	class, ok := cs.File("/ws/com/acme/OrderLine.java")
	require.True(t, ok)
	assert.True(t, class.Created)
	created := string(class.Preview)
	assert.Contains(t, created, "package com.acme;")
	assert.Contains(t, created, "public class OrderLine {")
	assert.Contains(t, created, "private final String item;")
	assert.Contains(t, created, "public OrderLine(String item, int count) {")
	assert.Contains(t, created, "public int getCount() {")

	got := preview(t, cs, "com/acme/Shop.java")
	assert.Contains(t, got, "public int order(OrderLine parameterObject, boolean express) {")
	assert.Contains(t, got, "return parameterObject.getCount() * 2;")
	assert.Contains(t, got, `order(new OrderLine("apple", 2), false);`)
}

func TestIntroduceParameterObject_NestedWithFields(t *testing.T) {
	cs, status, outcome := introduce(t, ParameterObjectRequest{
		Method:        "com.acme.Shop#order(String,int,boolean)",
		ParameterName: "line",
	})
	require.Equal(t, types.OutcomeCompleted, outcome, status.String())
	require.Len(t, cs.Files, 1)

	got := preview(t, cs, "com/acme/Shop.java")
	assert.Contains(t, got, "public static class OrderParameter {")
	assert.Contains(t, got, "public final boolean express;")
	assert.Contains(t, got, "public int order(Shop.OrderParameter line) {")
	assert.Contains(t, got, "if (line.express) {")
	assert.Contains(t, got, `order(new Shop.OrderParameter("apple", 2, false));`)
}

func TestIntroduceParameterObject_Rejected(t *testing.T) {
	tests := []struct {
		name string
		req  ParameterObjectRequest
		code string
	}{
		{"invalid class name", ParameterObjectRequest{ClassName: "9Line"}, CodeInvalidClassName},
		{"existing type", ParameterObjectRequest{ClassName: "Shop", TopLevel: true}, CodeTypeExists},
		{"unknown parameter", ParameterObjectRequest{Parameters: []string{"price"}}, CodeUnknownParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Method = "com.acme.Shop#order(String,int,boolean)"
			cs, status, outcome := introduce(t, tt.req)
			assert.Nil(t, cs)
			assert.Equal(t, types.OutcomeRejected, outcome)
			assert.True(t, hasCode(status, tt.code), status.String())
		})
	}
}

func TestParameterObjectOperation(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"com/acme/Shop.java": shopSource})
	op := &ParameterObjectOperation{Request: ParameterObjectRequest{
		Method:    "com.acme.Shop#order(String,int,boolean)",
		ClassName: "OrderLine",
		TopLevel:  true,
	}}
	assert.Equal(t, types.IntroduceParameterObjectOperation, op.Type())

	status := op.Validate(context.Background(), ws)
	assert.False(t, status.HasFatal(), status.String())

	plan, outcome, err := op.Execute(context.Background(), ws)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, outcome)
	assert.Contains(t, plan.AffectedFiles, "/ws/com/acme/OrderLine.java")
}
