package refactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

func TestParseParameterAddition(t *testing.T) {
	tests := []struct {
		in      string
		want    ParameterAddition
		wantErr bool
	}{
		{in: "int count", want: ParameterAddition{Index: -1, Type: "int", Name: "count"}},
		{in: "boolean express=false", want: ParameterAddition{Index: -1, Type: "boolean", Name: "express", Default: "false"}},
		{in: "Map<String, Integer> counts = new HashMap<>()@1", want: ParameterAddition{Index: 1, Type: "Map<String, Integer>", Name: "counts", Default: "new HashMap<>()"}},
		{in: `String to="a@b"`, want: ParameterAddition{Index: -1, Type: "String", Name: "to", Default: `"a@b"`}},
		{in: "String... names@0", want: ParameterAddition{Index: 0, Type: "String...", Name: "names"}},
		{in: "count", wantErr: true},
		{in: "int x@first", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseParameterAddition(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParameterMove(t *testing.T) {
	m, err := ParseParameterMove(" 2 : 0 ")
	require.NoError(t, err)
	assert.Equal(t, ParameterMove{From: 2, To: 0}, m)

	for _, in := range []string{"2", "a:b", "1:"} {
		_, err := ParseParameterMove(in)
		assert.Error(t, err, in)
	}
}

func TestParsePairs(t *testing.T) {
	got, err := ParsePairs([]string{"count=quantity", " item = product "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"count": "quantity", "item": "product"}, got)

	_, err = ParsePairs([]string{"count"})
	assert.Error(t, err)
	_, err = ParsePairs([]string{"=x"})
	assert.Error(t, err)
}

func TestChangeSignatureRequest_Apply(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"p/Files.java": modelSource})
	model := NewSignatureModel(ws.FindMethod("p.Files#read(String,int,String[])"))

	req := &ChangeSignatureRequest{
		NewName:          "load",
		ReturnType:       "byte[]",
		Visibility:       "protected",
		Rename:           map[string]string{"limit": "max"},
		Retype:           map[string]string{"limit": "long"},
		Delete:           []string{"path"},
		Add:              []ParameterAddition{{Index: 0, Type: "java.nio.file.Path", Name: "file", Default: "null"}},
		Move:             []ParameterMove{{From: 2, To: 0}},
		DeleteExceptions: []string{"IOException"},
		AddExceptions:    []string{"java.io.UncheckedIOException"},
		Delegate:         true,
	}
	require.NoError(t, req.Apply(model))

	assert.Equal(t, "load", model.NewName)
	assert.Equal(t, "byte[]", model.Return.NewTypeName)
	assert.Equal(t, types.VisibilityProtected, model.NewVisibility)
	assert.Equal(t, []string{"max", "file", "flags"}, newNames(model))
	assert.Equal(t, "long", model.Params[0].NewTypeName)
	assert.True(t, model.Delegate)
	assert.False(t, model.Deprecate)
	require.Len(t, model.Exceptions, 2)
	assert.Equal(t, ExceptionDeleted, model.Exceptions[0].Kind)
	assert.Equal(t, ExceptionAdded, model.Exceptions[1].Kind)
}

func TestChangeSignatureRequest_ApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		req  ChangeSignatureRequest
	}{
		{"visibility", ChangeSignatureRequest{Visibility: "friend"}},
		{"rename", ChangeSignatureRequest{Rename: map[string]string{"missing": "x"}}},
		{"delete", ChangeSignatureRequest{Delete: []string{"missing"}}},
		{"insert", ChangeSignatureRequest{Add: []ParameterAddition{{Index: 9, Type: "int", Name: "x", Default: "0"}}}},
		{"move", ChangeSignatureRequest{Move: []ParameterMove{{From: 0, To: 5}}}},
		{"exception", ChangeSignatureRequest{DeleteExceptions: []string{"SQLException"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newTestWorkspace(t, map[string]string{"p/Files.java": modelSource})
			model := NewSignatureModel(ws.FindMethod("p.Files#read(String,int,String[])"))
			err := tt.req.Apply(model)
			require.Error(t, err)

			var rerr *types.RefactorError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, types.InvalidOperation, rerr.Type)
		})
	}
}
