package refactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

const modelSource = `package p;

import java.io.IOException;

class Files {
    public String read(String path, int limit, String... flags) throws IOException {
        return path;
    }
}
`

func testModel(t *testing.T) *SignatureModel {
	t.Helper()
	ws := newTestWorkspace(t, map[string]string{"p/Files.java": modelSource})
	m := ws.FindMethod("p.Files#read(String,int,String[])")
	require.NotNil(t, m)
	return NewSignatureModel(m)
}

func newNames(model *SignatureModel) []string {
	var out []string
	for _, p := range model.NewParameters() {
		out = append(out, p.NewName)
	}
	return out
}

func TestSignatureModel_Initial(t *testing.T) {
	model := testModel(t)

	assert.Equal(t, "p.Files#read(String,int,String[])", model.Handle)
	assert.Equal(t, "read", model.NewName)
	assert.Equal(t, types.VisibilityPublic, model.NewVisibility)
	assert.Equal(t, "String", model.Return.NewTypeName)
	assert.Equal(t, []string{"path", "limit", "flags"}, newNames(model))
	assert.Equal(t, 2, model.OldVarargIndex())
	assert.True(t, model.Params[2].OldVarargs)
	assert.True(t, model.Params[2].IsNewVarargs())
	assert.Equal(t, "String", model.Params[2].NewElementTypeName())
	require.Len(t, model.Exceptions, 1)
	assert.Equal(t, ExceptionOld, model.Exceptions[0].Kind)

	assert.True(t, model.IsSameAsInitial())
	assert.True(t, model.IsOrderSame())
}

func TestSignatureModel_Edits(t *testing.T) {
	tests := []struct {
		name      string
		edit      func(*SignatureModel) error
		names     []string
		orderSame bool
	}{
		{
			name:      "rename method",
			edit:      func(m *SignatureModel) error { m.SetNewName(" load "); return nil },
			names:     []string{"path", "limit", "flags"},
			orderSame: true,
		},
		{
			name:      "rename parameter",
			edit:      func(m *SignatureModel) error { return m.RenameParameter("limit", "max") },
			names:     []string{"path", "max", "flags"},
			orderSame: true,
		},
		{
			name:  "add",
			edit:  func(m *SignatureModel) error { m.AddParameter("boolean", "strict", "false"); return nil },
			names: []string{"path", "limit", "flags", "strict"},
		},
		{
			name: "insert",
			edit: func(m *SignatureModel) error {
				_, err := m.InsertParameter(1, "boolean", "strict", "false")
				return err
			},
			names: []string{"path", "strict", "limit", "flags"},
		},
		{
			name:  "delete",
			edit:  func(m *SignatureModel) error { return m.DeleteParameter("limit") },
			names: []string{"path", "flags"},
		},
		{
			name:  "move",
			edit:  func(m *SignatureModel) error { return m.MoveParameter(0, 1) },
			names: []string{"limit", "path", "flags"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := testModel(t)
			require.NoError(t, tt.edit(model))
			assert.Equal(t, tt.names, newNames(model))
			assert.Equal(t, tt.orderSame, model.IsOrderSame())
			assert.False(t, model.IsSameAsInitial())
		})
	}
}

func TestSignatureModel_DeleteAddedParameterDropsIt(t *testing.T) {
	model := testModel(t)
	model.AddParameter("boolean", "strict", "false")
	require.NoError(t, model.DeleteParameter("strict"))

	assert.Len(t, model.Params, 3)
	assert.Empty(t, model.AddedParameters())
	assert.True(t, model.IsSameAsInitial())
}

func TestSignatureModel_InvalidEdits(t *testing.T) {
	model := testModel(t)

	assert.Error(t, model.DeleteParameter("missing"))
	assert.Error(t, model.RenameParameter("missing", "x"))
	assert.Error(t, model.RetypeParameter("missing", "int"))
	assert.Error(t, model.MoveParameter(0, 3))
	assert.Error(t, model.MoveParameter(-1, 0))
	_, err := model.InsertParameter(4, "int", "x", "0")
	assert.Error(t, err)
	assert.Error(t, model.DeleteException("RuntimeException"))
}

func TestSignatureModel_Exceptions(t *testing.T) {
	model := testModel(t)

	require.NoError(t, model.DeleteException("IOException"))
	assert.Equal(t, ExceptionDeleted, model.Exceptions[0].Kind)
	assert.False(t, model.AreExceptionsSame())

	model.AddException("IOException")
	assert.Equal(t, ExceptionOld, model.Exceptions[0].Kind)
	assert.True(t, model.IsSameAsInitial())

	model.AddException("java.util.concurrent.TimeoutException")
	require.Len(t, model.Exceptions, 2)
	added := model.Exceptions[1]
	assert.Equal(t, ExceptionAdded, added.Kind)
	assert.Equal(t, "TimeoutException", added.TypeName)
	assert.Equal(t, "java.util.concurrent.TimeoutException", added.QualifiedName)

	require.NoError(t, model.DeleteException("TimeoutException"))
	assert.Len(t, model.Exceptions, 1)
}

func TestSignatureModel_CloneIsDeep(t *testing.T) {
	model := testModel(t)
	clone := model.Clone()

	require.NoError(t, clone.RenameParameter("path", "file"))
	clone.SetReturnType("byte[]")
	clone.Exceptions[0].Kind = ExceptionDeleted

	assert.Equal(t, "path", model.Params[0].NewName)
	assert.Equal(t, "String", model.Return.NewTypeName)
	assert.Equal(t, ExceptionOld, model.Exceptions[0].Kind)
}

func TestSignatureModel_ClashesWithInitial(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"p/Format.java": formatSource})
	model := NewSignatureModel(ws.FindMethod("p.Format#f(int,String)"))

	require.NoError(t, model.RenameParameter("a", "count"))
	assert.True(t, model.ClashesWithInitial(), "renaming a parameter keeps the erasure")

	require.NoError(t, model.RetypeParameter("count", "long"))
	assert.False(t, model.ClashesWithInitial())

	model.SetNewName("g")
	assert.False(t, model.ClashesWithInitial())
}

func TestSignatureModel_NewSignature(t *testing.T) {
	model := testModel(t)
	require.NoError(t, model.DeleteParameter("limit"))
	model.SetNewName("load")

	assert.Equal(t, "load(String path, String... flags)", model.NewSignature())
	assert.Empty(t, model.ParameterNamesChanged())

	require.NoError(t, model.RenameParameter("path", "file"))
	assert.Equal(t, []string{"file"}, model.ParameterNamesChanged())
}

func TestParameterInfo(t *testing.T) {
	p := NewAddedParameter("List<String>", "items", "null")
	assert.True(t, p.IsAdded())
	assert.False(t, p.IsRenamed())
	assert.False(t, p.IsNewVarargs())

	v := NewAddedParameter("int...", "values", "")
	assert.True(t, v.IsNewVarargs())
	assert.True(t, v.IsVarargChanged())
	assert.Equal(t, "int", v.NewElementTypeName())
	assert.Equal(t, "Map<K,V>", StripEllipsis("Map<K,V>..."))
}

func TestReshuffle(t *testing.T) {
	old := func(i int) *ParameterInfo { return &ParameterInfo{OldIndex: i} }
	added := NewAddedParameter("int", "x", "0")
	deleted := &ParameterInfo{OldIndex: 1, Deleted: true}

	olds := func(slots []slot) []int {
		out := []int{}
		for _, s := range slots {
			out = append(out, s.Old)
		}
		return out
	}

	tests := []struct {
		name   string
		params []*ParameterInfo
		count  int
		vararg int
		want   []int
	}{
		{"identity", []*ParameterInfo{old(0), old(1)}, 2, -1, []int{0, 1}},
		{"swap", []*ParameterInfo{old(1), old(0)}, 2, -1, []int{1, 0}},
		{"added", []*ParameterInfo{old(0), added, old(1)}, 2, -1, []int{0, -1, 1}},
		{"deleted", []*ParameterInfo{old(0), deleted}, 2, -1, []int{0}},
		{"vararg tail", []*ParameterInfo{added, old(0), old(1)}, 4, 1, []int{-1, 0, 1, 2, 3}},
		{"empty vararg tail", []*ParameterInfo{old(1), old(0)}, 1, 1, []int{0}},
		{"deleted vararg", []*ParameterInfo{old(0), {OldIndex: 1, Deleted: true}}, 3, 1, []int{0}},
		{"missing element", []*ParameterInfo{old(0), old(1)}, 1, -1, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, olds(reshuffle(tt.params, tt.count, tt.vararg)))
		})
	}
}
