package rewrite

import (
	"context"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

func plainFile(content string) *types.File {
	return &types.File{Path: "/ws/A.java", Content: []byte(content)}
}

func parsedFile(t *testing.T, content string) *types.File {
	t.Helper()
	tree, err := analysis.ParseTree(context.Background(), []byte(content))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return &types.File{Path: "/ws/A.java", Content: []byte(content), Tree: tree}
}

func firstOfType(root *sitter.Node, typ string) *sitter.Node {
	var found *sitter.Node
	analysis.Walk(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Type() == typ {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestScript_ReplaceAndInsert(t *testing.T) {
	src := "int a = foo(1);"
	s := NewScript(plainFile(src))
	at := strings.Index(src, "foo")
	s.Replace(at, at+3, "bar", "rename")
	s.Insert(len(src), " // done", "comment")

	out, err := s.Render()
	require.NoError(t, err)
	assert.Equal(t, "int a = bar(1); // done", out)

	changes, err := s.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "foo", changes[0].OldText)
	assert.Equal(t, "bar", changes[0].NewText)
	assert.Equal(t, "rename", changes[0].Description)
}

func TestScript_NestedEditsFollowCopies(t *testing.T) {
	src := "f(g(x), y)"
	s := NewScript(plainFile(src))
	// swap the two arguments and rename x inside the first one
	s.ReplaceSegments(2, 9, "reorder", Copy(8, 9), Lit(", "), Copy(2, 6))
	s.Replace(4, 5, "z", "rename x")

	out, err := s.Render()
	require.NoError(t, err)
	assert.Equal(t, "f(y, g(z))", out)

	changes, err := s.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 1, "the nested rename is folded into the outer edit")
	assert.Equal(t, "y, g(z)", changes[0].NewText)
}

func TestScript_OverlappingEditsFail(t *testing.T) {
	s := NewScript(plainFile("abcdef"))
	s.Replace(0, 3, "x", "first")
	s.Replace(2, 5, "y", "second")

	_, err := s.Render()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlapping edits")
}

func TestScript_InsertAtReplacementBoundary(t *testing.T) {
	s := NewScript(plainFile("abc"))
	s.Replace(1, 2, "B", "upper")
	s.Insert(1, "<", "before")
	s.Insert(2, ">", "after")

	out, err := s.Render()
	require.NoError(t, err)
	assert.Equal(t, "a<B>c", out)
}

func TestScript_UnchangedEditsProduceNoChange(t *testing.T) {
	s := NewScript(plainFile("abc"))
	s.Replace(0, 1, "a", "noop")

	changes, err := s.Changes()
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Equal(t, []string{"noop"}, s.Labels())
}

func TestRewriteList(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		order func(elems []*sitter.Node) []ListItem
		want  string
	}{
		{
			name: "swap",
			src:  `class A { void m() { f(1, "x"); } }`,
			order: func(e []*sitter.Node) []ListItem {
				return []ListItem{Keep(e[1]), Keep(e[0])}
			},
			want: `class A { void m() { f("x", 1); } }`,
		},
		{
			name: "append",
			src:  `class A { void m() { f(1); } }`,
			order: func(e []*sitter.Node) []ListItem {
				return []ListItem{Keep(e[0]), New("0")}
			},
			want: `class A { void m() { f(1, 0); } }`,
		},
		{
			name: "remove all",
			src:  `class A { void m() { f( 1 ); } }`,
			order: func(e []*sitter.Node) []ListItem {
				return nil
			},
			want: `class A { void m() { f(); } }`,
		},
		{
			name: "into empty",
			src:  `class A { void m() { f(); } }`,
			order: func(e []*sitter.Node) []ListItem {
				return []ListItem{New("a"), New("b")}
			},
			want: `class A { void m() { f(a, b); } }`,
		},
		{
			name: "keeps multi-line separator",
			src:  "class A { void m() { f(1,\n    2); } }",
			order: func(e []*sitter.Node) []ListItem {
				return []ListItem{Keep(e[1]), Keep(e[0])}
			},
			want: "class A { void m() { f(2,\n    1); } }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := parsedFile(t, tt.src)
			list := firstOfType(file.Root(), "argument_list")
			require.NotNil(t, list)
			elems := analysis.ListElements(list)

			s := NewScript(file)
			s.RewriteList(list, elems, tt.order(elems), "args")
			out, err := s.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRewriteList_SameOrderRecordsNothing(t *testing.T) {
	file := parsedFile(t, `class A { void m() { f(1, 2); } }`)
	list := firstOfType(file.Root(), "argument_list")
	elems := analysis.ListElements(list)

	s := NewScript(file)
	s.RewriteList(list, elems, []ListItem{Keep(elems[0]), Keep(elems[1])}, "args")
	assert.True(t, s.Empty())
}

func TestRewriteList_ElementEditsSurviveReorder(t *testing.T) {
	file := parsedFile(t, `class A { void m() { f(a, b); } }`)
	list := firstOfType(file.Root(), "argument_list")
	elems := analysis.ListElements(list)

	s := NewScript(file)
	s.ReplaceNode(elems[0], "renamed", "rename")
	s.RewriteList(list, elems, []ListItem{Keep(elems[1]), Keep(elems[0])}, "args")

	out, err := s.Render()
	require.NoError(t, err)
	assert.Equal(t, `class A { void m() { f(b, renamed); } }`, out)
}

func TestImportRewrite(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		qualified string
		wantName  string
		want      string
	}{
		{
			name:      "after last import",
			src:       "package p;\n\nimport java.util.List;\n\nclass A {}\n",
			qualified: "java.io.IOException",
			wantName:  "IOException",
			want:      "package p;\n\nimport java.util.List;\nimport java.io.IOException;\n\nclass A {}\n",
		},
		{
			name:      "after package",
			src:       "package p;\n\nclass A {}\n",
			qualified: "java.io.IOException",
			wantName:  "IOException",
			want:      "package p;\n\nimport java.io.IOException;\n\nclass A {}\n",
		},
		{
			name:      "already imported on demand",
			src:       "package p;\nimport java.io.*;\nclass A {}\n",
			qualified: "java.io.IOException",
			wantName:  "IOException",
			want:      "package p;\nimport java.io.*;\nclass A {}\n",
		},
		{
			name:      "java.lang",
			src:       "class A {}\n",
			qualified: "java.lang.Exception",
			wantName:  "Exception",
			want:      "class A {}\n",
		},
		{
			name:      "simple name taken",
			src:       "package p;\nimport a.Widget;\nclass A {}\n",
			qualified: "b.Widget",
			wantName:  "b.Widget",
			want:      "package p;\nimport a.Widget;\nclass A {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, err := analysis.NewWorkspaceFromSources(context.Background(), "/ws", map[string]string{"A.java": tt.src})
			require.NoError(t, err)
			file := ws.Files["/ws/A.java"]

			s := NewScript(file)
			imports := s.Imports()
			assert.Equal(t, tt.wantName, imports.Add(tt.qualified))
			// adding twice records one edit
			imports.Add(tt.qualified)

			out, err := s.Render()
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestImportRewrite_SeveralImportsShareOneChange(t *testing.T) {
	ws, err := analysis.NewWorkspaceFromSources(context.Background(), "/ws", map[string]string{
		"A.java": "package p;\n\nclass A {}\n",
	})
	require.NoError(t, err)
	file := ws.Files["/ws/A.java"]

	s := NewScript(file)
	assert.Equal(t, "List", s.Imports().Add("java.util.List"))
	assert.Equal(t, "Map", s.Imports().Add("java.util.Map"))
	assert.Equal(t, "java.awt.List", s.Imports().Add("java.awt.List"), "simple name already added")
	assert.Equal(t, "List", s.Imports().Add("java.util.List"))

	changes, err := s.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 1)

	out, err := s.Render()
	require.NoError(t, err)
	assert.Equal(t, "package p;\n\nimport java.util.List;\nimport java.util.Map;\n\nclass A {}\n", out)
}

func TestScript_InsertionsAtOneOffsetMerge(t *testing.T) {
	s := NewScript(plainFile("class A {}"))
	s.Insert(9, " int a;", "first")
	s.Insert(9, " int b;", "second")
	s.Replace(6, 7, "B", "rename")

	changes, err := s.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, " int a; int b;", changes[1].NewText)
	assert.Equal(t, "first", changes[1].Description)

	out, err := s.Render()
	require.NoError(t, err)
	assert.Equal(t, "class B { int a; int b;}", out)
}
