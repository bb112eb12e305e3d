package types

import (
	"reflect"
	"testing"
)

func newTestFile(path string, decls ...*TypeDecl) *File {
	f := &File{Path: path, Content: []byte("package p;\nclass A {\n}\n")}
	for _, d := range decls {
		d.File = f
		f.Types = append(f.Types, d)
	}
	return f
}

func TestWorkspace_AddRemoveFile(t *testing.T) {
	ws := NewWorkspace("/ws")
	a := &TypeDecl{Name: "A", QualifiedName: "p.A"}
	inner := &TypeDecl{Name: "Inner", QualifiedName: "p.A.Inner", Outer: a}
	ws.AddFile(newTestFile("/ws/p/A.java", a, inner))
	ws.AddFile(newTestFile("/ws/q/A.java", &TypeDecl{Name: "A", QualifiedName: "q.A"}))

	if len(ws.Types) != 3 {
		t.Fatalf("Expected 3 types, got %d", len(ws.Types))
	}
	if want := []string{"/ws/p/A.java", "/ws/q/A.java"}; !reflect.DeepEqual(ws.SortedPaths(), want) {
		t.Errorf("Expected paths %v, got %v", want, ws.SortedPaths())
	}

	named := ws.TypesNamed("A")
	if len(named) != 2 || named[0].QualifiedName != "p.A" || named[1].QualifiedName != "q.A" {
		t.Errorf("Expected p.A and q.A sorted, got %v", named)
	}

	removed := ws.RemoveFile("/ws/p/A.java")
	if removed == nil {
		t.Fatalf("Expected the removed file to be returned")
	}
	if _, ok := ws.Types["p.A.Inner"]; ok {
		t.Errorf("Expected nested type to be removed with its file")
	}
	if ws.RemoveFile("/ws/p/A.java") != nil {
		t.Errorf("Expected a second removal to return nil")
	}
}

func TestWorkspace_FindMethod(t *testing.T) {
	ws := NewWorkspace("/ws")
	a := &TypeDecl{Name: "A", QualifiedName: "p.A"}
	f := &MethodDecl{Name: "f", Declaring: a, Params: []*ParamDecl{{Name: "x", Type: "int"}}}
	g := &MethodDecl{Name: "f", Declaring: a}
	a.Methods = []*MethodDecl{g, f}
	ws.AddFile(newTestFile("/ws/p/A.java", a))

	testCases := []struct {
		handle   string
		expected *MethodDecl
	}{
		{"p.A#f(int)", f},
		{"p.A#f()", g},
		{"p.A#f(long)", nil},
		{"p.B#f()", nil},
		{"no-hash", nil},
	}
	for _, tc := range testCases {
		if got := ws.FindMethod(tc.handle); got != tc.expected {
			t.Errorf("FindMethod(%q) = %v, want %v", tc.handle, got, tc.expected)
		}
	}
}

func TestWorkspace_IsReadOnly(t *testing.T) {
	ws := NewWorkspace("/ws")
	ws.ReadOnlyRoots = []string{"lib", "/opt/jdk/src"}

	testCases := []struct {
		path     string
		expected bool
	}{
		{"/ws/lib/x/Y.java", true},
		{"/opt/jdk/src/java/util/List.java", true},
		{"/ws/src/A.java", false},
		{"/ws/library/A.java", false},
	}
	for _, tc := range testCases {
		if got := ws.IsReadOnly(tc.path); got != tc.expected {
			t.Errorf("IsReadOnly(%q) = %v, want %v", tc.path, got, tc.expected)
		}
	}
}

func TestFile_Positions(t *testing.T) {
	f := newTestFile("/ws/p/A.java")

	if got := f.LineOf(0); got != 1 {
		t.Errorf("Expected line 1, got %d", got)
	}
	if got := f.LineOf(12); got != 2 {
		t.Errorf("Expected line 2, got %d", got)
	}
	if got := f.LineOf(1000); got != 4 {
		t.Errorf("Expected offsets past the end to clamp, got line %d", got)
	}
	if got := f.Slice(11, 18); got != "class A" {
		t.Errorf("Unexpected slice %q", got)
	}
	if got := f.Slice(5, 2); got != "" {
		t.Errorf("Expected empty slice for an inverted range, got %q", got)
	}

	ctx := f.Context(11, 18)
	if ctx.Line != 2 || ctx.Snippet != "class A" || ctx.String() != "/ws/p/A.java:2" {
		t.Errorf("Unexpected context %+v", ctx)
	}
	if f.Root() != nil {
		t.Errorf("Expected nil root without a tree")
	}
}

func TestImport(t *testing.T) {
	imp := Import{Name: "java.util.Map.Entry"}
	if imp.SimpleName() != "Entry" || imp.Qualifier() != "java.util.Map" {
		t.Errorf("Unexpected split %q %q", imp.SimpleName(), imp.Qualifier())
	}
	bare := Import{Name: "Foo"}
	if bare.SimpleName() != "Foo" || bare.Qualifier() != "" {
		t.Errorf("Unexpected split of an unqualified import")
	}
}
