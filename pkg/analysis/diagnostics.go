package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// DiagnosticEngine reports compile problems of parsed files. It only knows
// what can be decided from syntax and the workspace declarations: parse
// errors, missing tokens, duplicate parameters and methods, and unresolvable
// references to workspace packages.
type DiagnosticEngine struct {
	hierarchy *TypeHierarchy
}

func NewDiagnosticEngine(hierarchy *TypeHierarchy) *DiagnosticEngine {
	return &DiagnosticEngine{hierarchy: hierarchy}
}

// Problems returns the problems of file ordered by position.
func (de *DiagnosticEngine) Problems(ctx context.Context, ws *types.Workspace, file *types.File) ([]types.Problem, error) {
	var problems []types.Problem
	add := func(kind types.ProblemKind, msg string, n *sitter.Node) {
		problems = append(problems, types.Problem{
			Kind:    kind,
			Message: msg,
			Start:   int(n.StartByte()),
			End:     int(n.EndByte()),
			Line:    int(n.StartPoint().Row) + 1,
		})
	}

	Walk(file.Root(), func(n *sitter.Node) bool {
		switch {
		case n.Type() == "ERROR":
			add(types.ProblemSyntax, "Syntax error on "+quoteSnippet(file.Text(n)), n)
			return false
		case n.IsMissing():
			add(types.ProblemMissingNode, fmt.Sprintf("Syntax error, insert %q", n.Type()), n)
		}
		return true
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, t := range file.Types {
		seen := make(map[string]bool)
		for _, m := range t.Methods {
			names := make(map[string]bool)
			for _, p := range m.Params {
				if names[p.Name] {
					add(types.ProblemDuplicateParameter, fmt.Sprintf("Duplicate parameter %s", p.Name), p.Node)
				}
				names[p.Name] = true
			}
			key := m.Name + "(" + strings.Join(m.ParamTypes(), ",") + ")"
			if seen[key] {
				what := "method"
				if m.Constructor {
					what = "constructor"
				}
				add(types.ProblemDuplicateMethod, fmt.Sprintf("Duplicate %s %s in type %s", what, m.Signature(), t.Name), m.Node.ChildByFieldName("name"))
			}
			seen[key] = true
		}
	}

	packages := workspacePackages(ws)
	importNodes := ChildrenByType(file.Root(), nodeImportDecl)
	for _, imp := range file.Imports {
		if imp.Static || imp.OnDemand {
			continue
		}
		if !packages[imp.Qualifier()] {
			continue
		}
		if _, ok := ws.Types[imp.Name]; !ok {
			var n *sitter.Node
			for _, in := range importNodes {
				if int(in.StartByte()) == imp.Start {
					n = in
				}
			}
			if n == nil {
				continue
			}
			add(types.ProblemUnresolvedImport, fmt.Sprintf("The import %s cannot be resolved", imp.Name), n)
		}
	}

	for _, t := range file.Types {
		scope := t
		for _, m := range t.Methods {
			for _, p := range m.Params {
				if name, ok := de.undefined(scope, m, p.Type, packages); ok {
					add(types.ProblemUndefinedType, fmt.Sprintf("%s cannot be resolved to a type", name), ParamTypeNode(p.Node))
				}
			}
		}
	}

	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Start < problems[j].Start })
	return problems, nil
}

// undefined reports a simple type name that matches nothing: no workspace
// type, no import, no type variable, and no well known java.lang type. Files
// with on-demand imports of foreign packages are never flagged.
func (de *DiagnosticEngine) undefined(scope *types.TypeDecl, m *types.MethodDecl, typeName string, packages map[string]bool) (string, bool) {
	name := strings.TrimRight(types.Erasure(typeName), "[]")
	if name == "" || strings.Contains(name, ".") || IsPrimitive(name) || javaLang[name] {
		return "", false
	}
	if isTypeVariable(m, name) {
		return "", false
	}
	for _, imp := range scope.File.Imports {
		if imp.OnDemand && !packages[imp.Name] {
			return "", false
		}
		if !imp.OnDemand && imp.SimpleName() == name {
			return "", false
		}
	}
	if de.hierarchy.ResolveType(scope, name) != nil {
		return "", false
	}
	return name, true
}

var javaLang = map[string]bool{
	"Object": true, "String": true, "Integer": true, "Long": true, "Short": true,
	"Byte": true, "Character": true, "Boolean": true, "Float": true, "Double": true,
	"Number": true, "Void": true, "Class": true, "Enum": true, "Record": true,
	"Iterable": true, "Comparable": true, "CharSequence": true, "Runnable": true,
	"AutoCloseable": true, "Cloneable": true, "Thread": true, "Throwable": true,
	"Exception": true, "RuntimeException": true, "Error": true, "Math": true,
	"StringBuilder": true, "StringBuffer": true, "System": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
	"NullPointerException": true, "UnsupportedOperationException": true,
	"IndexOutOfBoundsException": true, "ClassCastException": true,
	"ArithmeticException": true, "InterruptedException": true,
	"CloneNotSupportedException": true, "Deprecated": true, "Override": true,
	"SuppressWarnings": true, "FunctionalInterface": true, "SafeVarargs": true,
}

func workspacePackages(ws *types.Workspace) map[string]bool {
	out := make(map[string]bool)
	for _, f := range ws.Files {
		if f.Package != "" {
			out[f.Package] = true
		}
	}
	return out
}

func quoteSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}

var javaKeywords = map[string]bool{
	"abstract": true, "assert": true, "boolean": true, "break": true, "byte": true,
	"case": true, "catch": true, "char": true, "class": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extends": true, "final": true, "finally": true, "float": true,
	"for": true, "goto": true, "if": true, "implements": true, "import": true,
	"instanceof": true, "int": true, "interface": true, "long": true, "native": true,
	"new": true, "package": true, "private": true, "protected": true, "public": true,
	"return": true, "short": true, "static": true, "strictfp": true, "super": true,
	"switch": true, "synchronized": true, "this": true, "throw": true, "throws": true,
	"transient": true, "try": true, "void": true, "volatile": true, "while": true,
	"true": true, "false": true, "null": true, "_": true,
}

// IsValidIdentifier reports a legal Java identifier.
func IsValidIdentifier(name string) bool {
	if name == "" || javaKeywords[name] {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r > 127:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// IsValidType reports whether text parses as a single Java type.
func IsValidType(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	const prefix = "class A { void m("
	tree, err := ParseTree(ctx, []byte(prefix+text+" x) {} }"))
	if err != nil {
		return false
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return false
	}
	var typeNode *sitter.Node
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() == nodeFormalParameters {
			elems := ListElements(n)
			if len(elems) == 1 && elems[0].Type() == nodeFormalParameter {
				typeNode = elems[0].ChildByFieldName("type")
			}
			return false
		}
		return true
	})
	return typeNode != nil &&
		int(typeNode.StartByte()) >= len(prefix) &&
		int(typeNode.EndByte()) == len(prefix)+len(text)
}

// IsValidReturnType accepts void in addition to ordinary types.
func IsValidReturnType(ctx context.Context, text string) bool {
	return strings.TrimSpace(text) == "void" || IsValidType(ctx, text)
}

// IsValidExpression reports whether text parses as a single expression.
func IsValidExpression(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	const prefix = "class A { Object f = "
	tree, err := ParseTree(ctx, []byte(prefix+text+"; }"))
	if err != nil {
		return false
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return false
	}
	var value *sitter.Node
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() == nodeFieldDecl {
			if decls := ChildrenByType(n, nodeVariableDeclarator); len(decls) == 1 {
				value = decls[0].ChildByFieldName("value")
			}
			return false
		}
		return true
	})
	return value != nil && int(value.EndByte()) == len(prefix)+len(text)
}

// IsValidArgumentList reports whether text parses as a comma separated list
// of expressions.
func IsValidArgumentList(ctx context.Context, text string) bool {
	const prefix = "class A { { m("
	tree, err := ParseTree(ctx, []byte(prefix+text+"); } }"))
	if err != nil {
		return false
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return false
	}
	ok := false
	Walk(root, func(n *sitter.Node) bool {
		if n.Type() == nodeArgumentList {
			ok = int(n.EndByte()) == len(prefix)+len(text)+1
			return false
		}
		return true
	})
	return ok
}
