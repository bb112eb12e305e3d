package refactor

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

func TestEncodeDescriptor(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"p/Format.java": formatSource})
	model := NewSignatureModel(ws.FindMethod("p.Format#f(int,String)"))
	require.NoError(t, model.MoveParameter(1, 0))
	require.NoError(t, model.DeleteParameter("a"))
	model.AddParameter("boolean", "trim", "true")
	model.SetVisibility(types.VisibilityPrivate)
	model.SetDelegate(true, true)

	d := EncodeDescriptor(model, "id-1")
	assert.Equal(t, "p.Format#f(int,String)", d[AttrInput])
	assert.Equal(t, "f", d[AttrName])
	assert.Equal(t, "true", d[AttrDelegate])
	assert.Equal(t, "true", d[AttrDeprecate])
	assert.Equal(t, "id-1", d[AttrID])
	assert.NotEmpty(t, d[AttrVisibility])
	assert.Equal(t, "String b 1 String b false", d["parameter1"])
	assert.Equal(t, "int a 0 {deleted} {deleted} true", d["parameter2"])
	assert.Equal(t, "{added} {added} -1 boolean trim false", d["parameter3"])
	assert.Equal(t, "true", d["default3"])
	assert.NotContains(t, d, AttrReturn)
}

func TestDescriptor_RoundTrip(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"p/Files.java": modelSource})
	model := NewSignatureModel(ws.FindMethod("p.Files#read(String,int,String[])"))
	model.SetNewName("load")
	model.SetReturnType("byte[]")
	require.NoError(t, model.RenameParameter("limit", "max"))
	require.NoError(t, model.RetypeParameter("max", "long"))
	_, err := model.InsertParameter(0, "java.util.List<String>", "roots", "java.util.List.of()")
	require.NoError(t, err)
	require.NoError(t, model.DeleteException("IOException"))
	model.AddException("java.util.concurrent.TimeoutException")

	var buf bytes.Buffer
	require.NoError(t, WriteDescriptor(&buf, EncodeDescriptor(model, "")))
	read, err := ReadDescriptor(&buf)
	require.NoError(t, err)

	decoded, status := DecodeDescriptor(ws, read)
	require.False(t, status.HasFatal(), status.String())

	assert.Equal(t, "load", decoded.NewName)
	assert.Equal(t, "byte[]", decoded.Return.NewTypeName)
	assert.Equal(t, []string{"roots", "path", "max", "flags"}, newNames(decoded))
	require.Len(t, decoded.Params, 4)
	assert.Equal(t, "java.util.List<String>", decoded.Params[0].NewTypeName)
	assert.Equal(t, "java.util.List.of()", decoded.Params[0].DefaultValue)
	assert.Equal(t, "long", decoded.Params[2].NewTypeName)
	assert.Equal(t, 2, decoded.Params[3].OldIndex)

	require.Len(t, decoded.Exceptions, 2)
	assert.Equal(t, ExceptionDeleted, decoded.Exceptions[0].Kind)
	assert.Equal(t, ExceptionAdded, decoded.Exceptions[1].Kind)
	assert.Equal(t, "java.util.concurrent.TimeoutException", decoded.Exceptions[1].QualifiedName)
}

func TestDescriptor_ReplayProducesSameEdits(t *testing.T) {
	src := map[string]string{"p/Format.java": formatSource}
	_, p := newTestProcessor(t, src)
	model := initialModel(t, p, "p.Format#f(int,String)")
	require.NoError(t, model.MoveParameter(1, 0))
	model.AddParameter("int", "width", "10")
	model.AddParameter("java.util.Map< String,Integer >", "sizes", "null")
	model.AddParameter("java.util.List<? extends Number>", "limits", "null")
	direct, _ := runModel(t, p, model)

	ws2, p2 := newTestProcessor(t, src)
	decoded, status := DecodeDescriptor(ws2, direct.Descriptor)
	require.False(t, status.HasFatal(), status.String())
	replayed, _ := runModel(t, p2, decoded)

	assert.Equal(t, direct.Changes(), replayed.Changes())
	got := preview(t, replayed, "p/Format.java")
	assert.Contains(t, got, "String f(String b, int a, int width, Map<String, Integer> sizes, List<? extends Number> limits) {")
	assert.Contains(t, got, "import java.util.Map;\nimport java.util.List;")
	assert.Contains(t, got, `f("x", 1, 10, null, null);`)
}

func TestFormatType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"int", "int"},
		{" Map< String,Integer > ", "Map<String, Integer>"},
		{"Map<String,List<int [ ]>>", "Map<String, List<int[]>>"},
		{"String ...", "String..."},
		{"java.util.List<?extendsNumber>", "java.util.List<? extends Number>"},
		{"List<?superT>", "List<? super T>"},
		{"List<?>", "List<?>"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatType(tt.in))
			assert.Equal(t, tt.want, formatType(compactType(tt.want)), "compact form formats the same")
		})
	}
}

func TestDecodeDescriptor_Invalid(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"p/Format.java": formatSource})
	base := func() Descriptor {
		return Descriptor{
			AttrInput:     "p.Format#f(int,String)",
			AttrName:      "f",
			AttrDelegate:  "false",
			AttrDeprecate: "false",
		}
	}

	tests := []struct {
		name   string
		edit   func(Descriptor)
		reason string
	}{
		{"missing input", func(d Descriptor) { delete(d, AttrInput) }, "'input' not found"},
		{"unknown method", func(d Descriptor) { d[AttrInput] = "p.Format#g()" }, "does not exist"},
		{"missing name", func(d Descriptor) { delete(d, AttrName) }, "'name' not found"},
		{"missing delegate", func(d Descriptor) { delete(d, AttrDelegate) }, "'delegate' not found"},
		{"bad visibility", func(d Descriptor) { d[AttrVisibility] = "public" }, "Illegal value"},
		{"short parameter", func(d Descriptor) { d["parameter1"] = "int a 0" }, "Illegal value"},
		{"parameter index out of range", func(d Descriptor) { d["parameter1"] = "int a 7 int a false" }, "Illegal value"},
		{"exception kind missing", func(d Descriptor) { d["element1"] = "IOException" }, "Illegal value"},
		{"exception not thrown", func(d Descriptor) { d["element1"] = "IOException"; d["kind1"] = "2" }, "not thrown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.edit(d)
			model, status := DecodeDescriptor(ws, d)
			assert.Nil(t, model)
			require.True(t, status.HasFatal())
			entry, ok := status.EntryWithCode(CodeInvalidDescriptor)
			require.True(t, ok)
			assert.Contains(t, entry.Message, tt.reason)
		})
	}
}

func TestDecodeDescriptor_NoParametersKeepsSignature(t *testing.T) {
	ws := newTestWorkspace(t, map[string]string{"p/Format.java": formatSource})
	d := Descriptor{AttrInput: "p.Format#f(int,String)", AttrName: "format", AttrDelegate: "false", AttrDeprecate: "false"}

	model, status := DecodeDescriptor(ws, d)
	require.False(t, status.HasFatal())
	assert.Equal(t, []string{"a", "b"}, newNames(model))
	assert.True(t, model.IsOrderSame())

	p := NewChangeSignatureProcessor(ws, ProcessorOptions{})
	st, outcome, err := p.CheckFinalConditions(context.Background(), model)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, outcome, st.String())
}

func TestReadDescriptor_Malformed(t *testing.T) {
	_, err := ReadDescriptor(strings.NewReader("input: [unclosed"))
	require.Error(t, err)

	var rerr *types.RefactorError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, types.DescriptorError, rerr.Type)
}
