package analysis

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// SearchMatch is one source location referencing a searched method. Node is
// the syntax node at the match: the name identifier for declarations, calls,
// method references and static imports, the whole expression for
// constructor calls, and the enclosing comment for Javadoc references, in
// which case Start/End delimit the reference text.
type SearchMatch struct {
	File   *types.File
	Node   *sitter.Node
	Start  int
	End    int
	Method *types.MethodDecl
	Binary bool
}

// FileMatches groups matches of one file.
type FileMatches struct {
	File          *types.File
	Matches       []SearchMatch
	BinaryMatches []SearchMatch
}

// Searcher is the search collaborator of the refactoring pipeline.
type Searcher interface {
	// FindMethodOccurrences returns declarations and all references of the
	// given (non-constructor) methods.
	FindMethodOccurrences(ctx context.Context, methods []*types.MethodDecl) ([]FileMatches, error)
	// FindConstructorDeclarations returns the declaration of ctor.
	FindConstructorDeclarations(ctx context.Context, ctor *types.MethodDecl) ([]FileMatches, error)
	// FindConstructorReferences returns calls to ctor, excluding synthetic ones.
	FindConstructorReferences(ctx context.Context, ctor *types.MethodDecl) ([]FileMatches, error)
}

// SearchEngine searches the parsed workspace syntactically, using the type
// hierarchy to filter candidate receivers.
type SearchEngine struct {
	ws        *types.Workspace
	hierarchy *TypeHierarchy
	logger    *slog.Logger
}

// NewSearchEngine creates a searcher over ws.
func NewSearchEngine(ws *types.Workspace, hierarchy *TypeHierarchy, logger *slog.Logger) *SearchEngine {
	return &SearchEngine{ws: ws, hierarchy: hierarchy, logger: logger}
}

// FindMethodOccurrences implements Searcher.
func (s *SearchEngine) FindMethodOccurrences(ctx context.Context, methods []*types.MethodDecl) ([]FileMatches, error) {
	if len(methods) == 0 {
		return nil, nil
	}
	byFile := make(map[string]*FileMatches)
	for _, path := range s.ws.SortedPaths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := s.ws.Files[path]
		if !strings.Contains(string(file.Content), methods[0].Name) {
			continue
		}
		fm := &FileMatches{File: file}
		s.collectDeclarations(file, methods, fm)
		s.collectMethodReferences(ctx, file, methods, fm)
		s.collectDocReferences(file, methods, fm)
		if len(fm.Matches)+len(fm.BinaryMatches) > 0 {
			byFile[path] = fm
		}
	}
	return sortedMatches(byFile), nil
}

// FindConstructorDeclarations implements Searcher.
func (s *SearchEngine) FindConstructorDeclarations(ctx context.Context, ctor *types.MethodDecl) ([]FileMatches, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file := ctor.File()
	fm := &FileMatches{File: file}
	s.collectDeclarations(file, []*types.MethodDecl{ctor}, fm)
	return sortedMatches(map[string]*FileMatches{file.Path: fm}), nil
}

// FindConstructorReferences implements Searcher.
func (s *SearchEngine) FindConstructorReferences(ctx context.Context, ctor *types.MethodDecl) ([]FileMatches, error) {
	owner := ctor.Declaring
	byFile := make(map[string]*FileMatches)
	for _, path := range s.ws.SortedPaths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := s.ws.Files[path]
		if path != owner.File.Path && (owner.Name == "" || !strings.Contains(string(file.Content), owner.Name)) {
			continue
		}
		fm := &FileMatches{File: file}
		Walk(file.Root(), func(n *sitter.Node) bool {
			switch n.Type() {
			case nodeObjectCreation:
				scope := EnclosingType(file, n)
				if s.hierarchy.ResolveType(scope, file.Text(n.ChildByFieldName("type"))) == owner &&
					s.pickOverload(file, owner.Constructors(), ctor, n.ChildByFieldName("arguments")) {
					s.add(fm, SearchMatch{File: file, Node: n, Method: ctor})
				}
			case nodeExplicitCtorCall:
				if s.explicitCallTarget(file, n) == owner &&
					s.pickOverload(file, owner.Constructors(), ctor, n.ChildByFieldName("arguments")) {
					s.add(fm, SearchMatch{File: file, Node: n, Method: ctor})
				}
			case nodeEnumConstant:
				// constants without an argument list call the constructor
				// implicitly and are synthetic
				args := n.ChildByFieldName("arguments")
				if args == nil {
					args = ChildByType(n, nodeArgumentList)
				}
				if args != nil && owner.Kind == types.EnumType && EnclosingType(file, n) == owner &&
					s.pickOverload(file, owner.Constructors(), ctor, args) {
					s.add(fm, SearchMatch{File: file, Node: n, Method: ctor})
				}
			}
			return true
		})
		s.collectDocReferences(file, []*types.MethodDecl{ctor}, fm)
		if len(fm.Matches)+len(fm.BinaryMatches) > 0 {
			byFile[path] = fm
		}
	}
	return sortedMatches(byFile), nil
}

// explicitCallTarget returns the type whose constructor a this(...) or
// super(...) call invokes.
func (s *SearchEngine) explicitCallTarget(file *types.File, call *sitter.Node) *types.TypeDecl {
	scope := EnclosingType(file, call)
	if scope == nil {
		return nil
	}
	ctor := call.ChildByFieldName("constructor")
	if ctor == nil {
		return nil
	}
	if ctor.Type() == "this" {
		return scope
	}
	if scope.SuperClass == "" {
		return nil
	}
	return s.hierarchy.ResolveType(scope, scope.SuperClass)
}

func (s *SearchEngine) add(fm *FileMatches, m SearchMatch) {
	if s.ws.IsReadOnly(fm.File.Path) {
		m.Binary = true
		fm.BinaryMatches = append(fm.BinaryMatches, m)
		return
	}
	fm.Matches = append(fm.Matches, m)
}

func (s *SearchEngine) collectDeclarations(file *types.File, methods []*types.MethodDecl, fm *FileMatches) {
	for _, m := range methods {
		if m.File() != file {
			continue
		}
		name := m.Node.ChildByFieldName("name")
		s.add(fm, SearchMatch{File: file, Node: name, Method: m})
	}
}

func (s *SearchEngine) collectMethodReferences(ctx context.Context, file *types.File, methods []*types.MethodDecl, fm *FileMatches) {
	name := methods[0].Name
	Walk(file.Root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case nodeMethodInvocation:
			if file.Text(n.ChildByFieldName("name")) != name {
				return true
			}
			if target := s.invocationTarget(ctx, file, n, methods); target != nil {
				s.add(fm, SearchMatch{File: file, Node: n.ChildByFieldName("name"), Method: target})
			}
		case nodeMethodReference:
			children := NamedChildren(n)
			if len(children) < 2 {
				return true
			}
			ident := children[len(children)-1]
			if ident.Type() != nodeIdentifier || file.Text(ident) != name {
				return true
			}
			if target := s.receiverTarget(ctx, file, children[0], methods); target != nil {
				s.add(fm, SearchMatch{File: file, Node: ident, Method: target})
			}
		case nodeImportDecl:
			if ChildByType(n, "static") == nil {
				return false
			}
			for _, c := range NamedChildren(n) {
				if c.Type() != nodeScopedIdentifier {
					continue
				}
				imp := file.Text(c)
				dot := strings.LastIndex(imp, ".")
				if dot < 0 || imp[dot+1:] != name {
					continue
				}
				owner := s.ws.Types[imp[:dot]]
				for _, m := range methods {
					if owner != nil && m.IsStatic() && s.hierarchy.IsSubtype(ctx, owner, m.Declaring) {
						s.add(fm, SearchMatch{File: file, Node: c.ChildByFieldName("name"), Method: m})
						break
					}
				}
			}
			return false
		case nodeLambda:
			if target := s.lambdaTarget(ctx, file, n, methods); target != nil {
				s.add(fm, SearchMatch{File: file, Node: n, Method: target})
			}
		}
		return true
	})
}

// invocationTarget returns the ripple member a call resolves to, or nil.
func (s *SearchEngine) invocationTarget(ctx context.Context, file *types.File, call *sitter.Node, methods []*types.MethodDecl) *types.MethodDecl {
	args := call.ChildByFieldName("arguments")
	obj := call.ChildByFieldName("object")
	if obj != nil {
		return s.receiverTargetWithArgs(ctx, file, obj, methods, args)
	}
	// unqualified: enclosing types from the inside out, then static imports
	for scope := EnclosingType(file, call); scope != nil; scope = scope.Outer {
		if m := s.memberOf(ctx, scope, methods); m != nil {
			if s.pickOverload(file, s.candidates(ctx, scope, m.Name), m, args) {
				return m
			}
			return nil
		}
		if s.hierarchy.findMethodByName(scope, methods[0].Name) != nil {
			return nil
		}
	}
	for _, imp := range file.Imports {
		if !imp.Static {
			continue
		}
		owner := s.ws.Types[imp.Qualifier()]
		if imp.OnDemand {
			owner = s.ws.Types[imp.Name]
		} else if imp.SimpleName() != methods[0].Name {
			continue
		}
		if owner == nil {
			continue
		}
		if m := s.memberOf(ctx, owner, methods); m != nil && s.pickOverload(file, s.candidates(ctx, owner, m.Name), m, args) {
			return m
		}
	}
	return nil
}

func (s *SearchEngine) receiverTarget(ctx context.Context, file *types.File, receiver *sitter.Node, methods []*types.MethodDecl) *types.MethodDecl {
	return s.receiverTargetWithArgs(ctx, file, receiver, methods, nil)
}

func (s *SearchEngine) receiverTargetWithArgs(ctx context.Context, file *types.File, receiver *sitter.Node, methods []*types.MethodDecl, args *sitter.Node) *types.MethodDecl {
	var owner *types.TypeDecl
	var known bool
	switch receiver.Type() {
	case nodeTypeIdentifier, "scoped_type_identifier", "generic_type":
		owner = s.hierarchy.ResolveType(EnclosingType(file, receiver), file.Text(receiver))
		known = true
	default:
		owner, known = s.hierarchy.ReceiverType(file, receiver)
	}
	if !known {
		// unresolvable receiver: accept any arity-compatible ripple member
		for _, m := range methods {
			if args == nil || ArityCompatible(m, len(ListElements(args))) {
				s.logger.Debug("accepting call with unresolved receiver", "file", file.Path, "receiver", file.Text(receiver))
				return m
			}
		}
		return nil
	}
	if owner == nil {
		return nil
	}
	m := s.memberOf(ctx, owner, methods)
	if m == nil {
		return nil
	}
	if args != nil && !s.pickOverload(file, s.candidates(ctx, owner, m.Name), m, args) {
		return nil
	}
	return m
}

// memberOf returns the ripple member visible as a method of t: one declared
// in t or inherited from a supertype, or the member overriding it in a
// subtype when t is a supertype of the ripple.
func (s *SearchEngine) memberOf(ctx context.Context, t *types.TypeDecl, methods []*types.MethodDecl) *types.MethodDecl {
	for _, m := range methods {
		if m.Declaring == t {
			return m
		}
	}
	for _, m := range methods {
		if s.hierarchy.IsSubtype(ctx, t, m.Declaring) {
			return m
		}
	}
	return nil
}

// candidates returns every method named name visible in t.
func (s *SearchEngine) candidates(ctx context.Context, t *types.TypeDecl, name string) []*types.MethodDecl {
	var out []*types.MethodDecl
	all := []*types.TypeDecl{t}
	supers, _ := s.hierarchy.SuperTypes(ctx, t)
	all = append(all, supers...)
	for _, cur := range all {
		for _, m := range cur.Methods {
			if m.Name == name && !m.Constructor {
				out = append(out, m)
			}
		}
	}
	return out
}

// pickOverload reports whether the argument list selects target among the
// candidate overloads.
func (s *SearchEngine) pickOverload(file *types.File, candidates []*types.MethodDecl, target *types.MethodDecl, args *sitter.Node) bool {
	elems := ListElements(args)
	if !ArityCompatible(target, len(elems)) {
		return false
	}
	var best *types.MethodDecl
	bestScore := -1
	for _, c := range candidates {
		if !ArityCompatible(c, len(elems)) {
			continue
		}
		score := s.argumentScore(file, c, elems)
		switch {
		case score > bestScore:
			best, bestScore = c, score
		case score == bestScore:
			if s.hierarchy.Overrides(c, target) || s.hierarchy.Overrides(target, c) || c == target {
				best = c
			}
		}
	}
	if best == nil {
		return true
	}
	return best == target || s.hierarchy.Overrides(best, target) || s.hierarchy.Overrides(target, best) || sameSignature(best, target)
}

func sameSignature(a, b *types.MethodDecl) bool {
	if a.Name != b.Name || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if types.SimpleTypeName(a.Params[i].Type) != types.SimpleTypeName(b.Params[i].Type) {
			return false
		}
	}
	return true
}

// argumentScore counts arguments whose literal or declared type matches the
// parameter type; a known mismatch scores -100.
func (s *SearchEngine) argumentScore(file *types.File, m *types.MethodDecl, args []*sitter.Node) int {
	score := 0
	for i, arg := range args {
		var param *types.ParamDecl
		switch {
		case i < len(m.Params):
			param = m.Params[i]
		case m.IsVarargs():
			param = m.Params[len(m.Params)-1]
		}
		if param == nil {
			break
		}
		argType := LiteralType(file, arg)
		if argType == "" && arg.Type() == nodeIdentifier {
			if typ, _, ok := s.hierarchy.DeclaredTypeOf(file, arg, file.Text(arg)); ok {
				argType = types.SimpleTypeName(typ)
			}
		}
		if argType == "" || argType == "null" {
			continue
		}
		want := types.SimpleTypeName(param.Type)
		if param.Varargs && i == len(m.Params)-1 && strings.HasSuffix(argType, "[]") {
			want += "[]"
		}
		if isTypeVariable(m, param.Type) || argType == want || assignable(argType, want) {
			score++
		} else if IsPrimitive(want) || want == "String" || IsPrimitive(argType) || argType == "String" {
			score -= 100
		}
	}
	return score
}

var widening = map[string][]string{
	"byte":    {"short", "int", "long", "float", "double", "Byte", "Object", "Number"},
	"short":   {"int", "long", "float", "double", "Short", "Object", "Number"},
	"char":    {"int", "long", "float", "double", "Character", "Object"},
	"int":     {"long", "float", "double", "Integer", "Object", "Number"},
	"long":    {"float", "double", "Long", "Object", "Number"},
	"float":   {"double", "Float", "Object", "Number"},
	"double":  {"Double", "Object", "Number"},
	"boolean": {"Boolean", "Object"},
	"String":  {"Object", "CharSequence", "Comparable"},
}

func assignable(from, to string) bool {
	for _, t := range widening[from] {
		if t == to {
			return true
		}
	}
	return to == "Object" && !IsPrimitive(from)
}

// ArityCompatible reports whether a call with n arguments can target m.
func ArityCompatible(m *types.MethodDecl, n int) bool {
	if m.IsVarargs() {
		return n >= len(m.Params)-1
	}
	return n == len(m.Params)
}

// lambdaTarget matches lambdas whose declared target type is the functional
// interface declaring one of the methods.
func (s *SearchEngine) lambdaTarget(ctx context.Context, file *types.File, lambda *sitter.Node, methods []*types.MethodDecl) *types.MethodDecl {
	var typeName string
	parent := lambda.Parent()
	switch {
	case parent == nil:
		return nil
	case parent.Type() == nodeVariableDeclarator:
		if decl := parent.Parent(); decl != nil {
			typeName = file.Text(decl.ChildByFieldName("type"))
		}
	case parent.Type() == "cast_expression":
		typeName = file.Text(parent.ChildByFieldName("type"))
	default:
		return nil
	}
	target := s.hierarchy.ResolveType(EnclosingType(file, lambda), typeName)
	if target == nil || !target.IsInterface() {
		return nil
	}
	for _, m := range methods {
		if m.Declaring == target || s.hierarchy.IsSubtype(ctx, target, m.Declaring) {
			if isFunctional(target) {
				return m
			}
		}
	}
	return nil
}

func isFunctional(t *types.TypeDecl) bool {
	n := 0
	for _, m := range t.Methods {
		if !m.HasBody && !m.IsStatic() {
			n++
		}
	}
	return n == 1
}

// docRefPattern matches {@link Type#name(args)}, {@linkplain ...} and
// @see references.
var docRefPattern = regexp.MustCompile(`(?:\{@link(?:plain)?\s+|@see\s+)([\w.$]*)#([\w$]+)(\([^)]*\))?`)

// DocReference is a parsed Javadoc member reference.
type DocReference struct {
	Qualifier   string
	Name        string
	Params      []DocParam
	HasParams   bool
	Start       int // of the whole Type#name(..) text
	End         int
	NameStart   int
	NameEnd     int
	ParamsStart int // inside the parentheses
	ParamsEnd   int
}

// DocParam is one element of a Javadoc reference parameter list.
type DocParam struct {
	Type  string
	Name  string
	Start int
	End   int
}

// ParseDocReferences extracts member references from a comment whose text
// starts at base.
func ParseDocReferences(text string, base int) []DocReference {
	var refs []DocReference
	for _, loc := range docRefPattern.FindAllStringSubmatchIndex(text, -1) {
		ref := DocReference{
			Qualifier: text[loc[2]:loc[3]],
			Name:      text[loc[4]:loc[5]],
			Start:     base + loc[2],
			End:       base + loc[5],
			NameStart: base + loc[4],
			NameEnd:   base + loc[5],
		}
		if loc[6] >= 0 {
			ref.HasParams = true
			ref.End = base + loc[7]
			ref.ParamsStart = base + loc[6] + 1
			ref.ParamsEnd = base + loc[7] - 1
			inner := text[loc[6]+1 : loc[7]-1]
			offset := loc[6] + 1
			for _, part := range splitTopLevel(inner) {
				trimmed := strings.TrimSpace(part.text)
				if trimmed == "" {
					continue
				}
				lead := strings.Index(part.text, trimmed)
				p := DocParam{
					Start: base + offset + part.start + lead,
					End:   base + offset + part.start + lead + len(trimmed),
				}
				fields := strings.Fields(trimmed)
				p.Type = fields[0]
				if len(fields) > 1 {
					p.Name = fields[len(fields)-1]
				}
				ref.Params = append(ref.Params, p)
			}
		}
		refs = append(refs, ref)
	}
	return refs
}

type textPart struct {
	text  string
	start int
}

// splitTopLevel splits on commas outside angle brackets.
func splitTopLevel(s string) []textPart {
	var parts []textPart
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, textPart{text: s[start:i], start: start})
				start = i + 1
			}
		}
	}
	return append(parts, textPart{text: s[start:], start: start})
}

func (s *SearchEngine) collectDocReferences(file *types.File, methods []*types.MethodDecl, fm *FileMatches) {
	name := methods[0].Name
	if methods[0].Constructor {
		name = methods[0].Declaring.Name
	}
	Walk(file.Root(), func(n *sitter.Node) bool {
		if !IsComment(n) {
			return true
		}
		text := file.Text(n)
		if !strings.HasPrefix(text, "/**") || !strings.Contains(text, name) {
			return false
		}
		for _, ref := range ParseDocReferences(text, int(n.StartByte())) {
			if ref.Name != name {
				continue
			}
			scope := EnclosingType(file, n)
			if scope == nil {
				scope = s.typeDocumentedBy(file, n)
			}
			var owner *types.TypeDecl
			if ref.Qualifier == "" {
				owner = scope
			} else {
				owner = s.hierarchy.ResolveType(scope, ref.Qualifier)
			}
			if owner == nil {
				continue
			}
			for _, m := range methods {
				if (m.Declaring == owner || (!m.Constructor && s.hierarchy.IsSubtype(context.Background(), owner, m.Declaring))) &&
					(!ref.HasParams || len(ref.Params) == len(m.Params)) {
					s.add(fm, SearchMatch{File: file, Node: n, Start: ref.Start, End: ref.End, Method: m})
					break
				}
			}
		}
		return false
	})
}

// typeDocumentedBy returns the type a top-level doc comment belongs to.
func (s *SearchEngine) typeDocumentedBy(file *types.File, comment *sitter.Node) *types.TypeDecl {
	for next := comment.NextSibling(); next != nil; next = next.NextSibling() {
		if IsComment(next) {
			continue
		}
		for _, t := range file.Types {
			if SameNode(t.Node, next) {
				return t
			}
		}
		return nil
	}
	return nil
}

func sortedMatches(byFile map[string]*FileMatches) []FileMatches {
	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]FileMatches, 0, len(paths))
	for _, p := range paths {
		fm := byFile[p]
		sort.SliceStable(fm.Matches, func(i, j int) bool { return matchStart(fm.Matches[i]) < matchStart(fm.Matches[j]) })
		out = append(out, *fm)
	}
	return out
}

func matchStart(m SearchMatch) int {
	if m.End > 0 {
		return m.Start
	}
	return int(m.Node.StartByte())
}
