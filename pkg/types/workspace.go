package types

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Workspace represents a set of parsed Java source files rooted at a directory
type Workspace struct {
	RootPath      string
	Files         map[string]*File     // absolute path -> File
	Types         map[string]*TypeDecl // qualified name -> type
	ReadOnlyRoots []string             // matches under these roots are reported as binary
}

// NewWorkspace returns an empty workspace rooted at root.
func NewWorkspace(root string) *Workspace {
	return &Workspace{
		RootPath: root,
		Files:    make(map[string]*File),
		Types:    make(map[string]*TypeDecl),
	}
}

// File represents a single Java compilation unit
type File struct {
	Path    string
	Package string
	Content []byte
	Tree    *sitter.Tree
	Imports []Import
	Types   []*TypeDecl // every type declared in the file, outer types first
}

// Root returns the root node of the file's syntax tree.
func (f *File) Root() *sitter.Node {
	if f == nil || f.Tree == nil {
		return nil
	}
	return f.Tree.RootNode()
}

// Text returns the source text of n.
func (f *File) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.Content)
}

// Slice returns the source text of the byte range [start, end).
func (f *File) Slice(start, end int) string {
	if start < 0 || end > len(f.Content) || start > end {
		return ""
	}
	return string(f.Content[start:end])
}

// LineOf returns the 1-based line of a byte offset.
func (f *File) LineOf(offset int) int {
	if offset > len(f.Content) {
		offset = len(f.Content)
	}
	return strings.Count(string(f.Content[:offset]), "\n") + 1
}

// Context builds a SourceContext for the byte range [start, end).
func (f *File) Context(start, end int) *SourceContext {
	return &SourceContext{
		File:    f.Path,
		Start:   start,
		End:     end,
		Line:    f.LineOf(start),
		Snippet: f.Slice(start, end),
	}
}

// NodeContext builds a SourceContext for n.
func (f *File) NodeContext(n *sitter.Node) *SourceContext {
	if n == nil {
		return &SourceContext{File: f.Path}
	}
	return f.Context(int(n.StartByte()), int(n.EndByte()))
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.Tree != nil {
		f.Tree.Close()
		f.Tree = nil
	}
}

// Import is a single import declaration.
type Import struct {
	Name     string // qualified name without the trailing .*
	Static   bool
	OnDemand bool
	Start    int
	End      int
}

// SimpleName returns the last segment of the imported name.
func (i Import) SimpleName() string {
	if idx := strings.LastIndex(i.Name, "."); idx >= 0 {
		return i.Name[idx+1:]
	}
	return i.Name
}

// Qualifier returns the imported name without its last segment.
func (i Import) Qualifier() string {
	if idx := strings.LastIndex(i.Name, "."); idx >= 0 {
		return i.Name[:idx]
	}
	return ""
}

// IsReadOnly reports whether path lives under one of the read-only roots.
func (ws *Workspace) IsReadOnly(path string) bool {
	for _, root := range ws.ReadOnlyRoots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(ws.RootPath, root)
		}
		rel, err := filepath.Rel(root, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// AddFile registers f and all types it declares.
func (ws *Workspace) AddFile(f *File) {
	ws.Files[f.Path] = f
	for _, t := range f.Types {
		ws.Types[t.QualifiedName] = t
	}
}

// RemoveFile drops the file at path and the types it declared.
func (ws *Workspace) RemoveFile(path string) *File {
	f, ok := ws.Files[path]
	if !ok {
		return nil
	}
	for _, t := range f.Types {
		if ws.Types[t.QualifiedName] == t {
			delete(ws.Types, t.QualifiedName)
		}
	}
	delete(ws.Files, path)
	return f
}

// SortedPaths returns all file paths in lexical order.
func (ws *Workspace) SortedPaths() []string {
	paths := make([]string, 0, len(ws.Files))
	for p := range ws.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TypesNamed returns every type whose simple name is name, sorted by
// qualified name.
func (ws *Workspace) TypesNamed(name string) []*TypeDecl {
	var out []*TypeDecl
	for _, t := range ws.Types {
		if t.Name == name {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out
}

// FindMethod resolves a method handle of the form pkg.Type#name(T1,T2).
func (ws *Workspace) FindMethod(handle string) *MethodDecl {
	hash := strings.Index(handle, "#")
	if hash < 0 {
		return nil
	}
	t, ok := ws.Types[handle[:hash]]
	if !ok {
		return nil
	}
	for _, m := range t.Methods {
		if m.Handle() == handle {
			return m
		}
	}
	return nil
}
