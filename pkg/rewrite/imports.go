package rewrite

import (
	"strings"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// ImportRewrite adds single-type imports to a file, once each. All new
// imports share one insertion.
type ImportRewrite struct {
	script *Script
	added  map[string]string // simple name -> qualified name
	lines  []string
	edit   *Edit
}

// Imports returns the import rewriter of s.
func (s *Script) Imports() *ImportRewrite {
	if s.imports == nil {
		s.imports = &ImportRewrite{script: s, added: make(map[string]string)}
	}
	return s.imports
}

// Add imports qualified unless the file already sees it. It returns the name
// to use in code: the simple name, or the qualified name when the simple
// name is taken by another import.
func (r *ImportRewrite) Add(qualified string) string {
	simple := qualified
	pkg := ""
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		simple, pkg = qualified[i+1:], qualified[:i]
	}
	file := r.script.file
	if pkg == "" || pkg == "java.lang" || pkg == file.Package {
		return simple
	}
	for _, imp := range file.Imports {
		if imp.Static {
			continue
		}
		if imp.OnDemand && imp.Name == pkg {
			return simple
		}
		if !imp.OnDemand && imp.SimpleName() == simple {
			if imp.Name == qualified {
				return simple
			}
			return qualified
		}
	}
	if prev, ok := r.added[simple]; ok {
		if prev == qualified {
			return simple
		}
		return qualified
	}
	r.added[simple] = qualified
	r.lines = append(r.lines, "import "+qualified+";")
	text := importText(file, strings.Join(r.lines, "\n"))
	if r.edit == nil {
		r.script.Insert(importOffset(file), text, "Add import "+qualified)
		r.edit = r.script.edits[len(r.script.edits)-1]
		return simple
	}
	r.edit.Segments = []Segment{Lit(text)}
	return simple
}

func importOffset(file *types.File) int {
	if n := len(file.Imports); n > 0 {
		return file.Imports[n-1].End
	}
	root := file.Root()
	for i := 0; root != nil && i < int(root.ChildCount()); i++ {
		if c := root.Child(i); c.Type() == "package_declaration" {
			return int(c.EndByte())
		}
	}
	return 0
}

func importText(file *types.File, line string) string {
	switch {
	case len(file.Imports) > 0:
		return "\n" + line
	case importOffset(file) > 0:
		return "\n\n" + line
	default:
		return line + "\n\n"
	}
}
