package analysis

import (
	"context"
	"sort"
	"strings"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// HierarchyOracle answers type hierarchy questions for the refactoring
// pipeline.
type HierarchyOracle interface {
	// SuperTypes returns all transitive supertypes of t, nearest first.
	SuperTypes(ctx context.Context, t *types.TypeDecl) ([]*types.TypeDecl, error)
	// SubTypes returns all transitive subtypes of t.
	SubTypes(ctx context.Context, t *types.TypeDecl) ([]*types.TypeDecl, error)
	// Overrides reports whether overrider overrides or implements overridden.
	Overrides(overrider, overridden *types.MethodDecl) bool
	// ResolveType resolves a type name as seen from inside scope.
	ResolveType(scope *types.TypeDecl, name string) *types.TypeDecl
}

// TypeHierarchy is the workspace-backed HierarchyOracle.
type TypeHierarchy struct {
	ws    *types.Workspace
	cache *HierarchyCache
}

// NewTypeHierarchy creates a hierarchy over ws backed by cache.
func NewTypeHierarchy(ws *types.Workspace, cache *HierarchyCache) *TypeHierarchy {
	if cache == nil {
		cache = NewHierarchyCache()
	}
	return &TypeHierarchy{ws: ws, cache: cache}
}

// Cache exposes the backing cache.
func (h *TypeHierarchy) Cache() *HierarchyCache { return h.cache }

// ResolveType resolves name using Java scoping: member types of enclosing
// types, single-type imports, the current package, on-demand imports, and
// finally a unique simple-name match in the workspace.
func (h *TypeHierarchy) ResolveType(scope *types.TypeDecl, name string) *types.TypeDecl {
	if scope == nil || scope.File == nil {
		return h.ws.Types[types.Erasure(name)]
	}
	name = strings.TrimRight(types.Erasure(name), "[]")
	key := scope.QualifiedName + "|" + name
	if t, ok := h.cache.GetResolved(key); ok {
		return t
	}
	t := h.resolve(scope, name)
	h.cache.SetResolved(key, t)
	return t
}

func (h *TypeHierarchy) resolve(scope *types.TypeDecl, name string) *types.TypeDecl {
	if t, ok := h.ws.Types[name]; ok {
		return t
	}
	first, rest := name, ""
	if i := strings.Index(name, "."); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	for cur := scope; cur != nil; cur = cur.Outer {
		if cur.Name == first {
			if t, ok := h.ws.Types[cur.QualifiedName+rest]; ok {
				return t
			}
		}
		if t, ok := h.ws.Types[cur.QualifiedName+"."+name]; ok {
			return t
		}
	}
	file := scope.File
	for _, imp := range file.Imports {
		if !imp.Static && !imp.OnDemand && imp.SimpleName() == first {
			if t, ok := h.ws.Types[imp.Name+rest]; ok {
				return t
			}
		}
	}
	if file.Package != "" {
		if t, ok := h.ws.Types[file.Package+"."+name]; ok {
			return t
		}
	}
	for _, imp := range file.Imports {
		if imp.OnDemand && !imp.Static {
			if t, ok := h.ws.Types[imp.Name+"."+name]; ok {
				return t
			}
		}
	}
	if candidates := h.ws.TypesNamed(first); len(candidates) == 1 && rest == "" {
		return candidates[0]
	}
	return nil
}

// DirectSuperTypes returns the resolvable direct supertypes of t.
func (h *TypeHierarchy) DirectSuperTypes(t *types.TypeDecl) []*types.TypeDecl {
	scope := t
	if t.Local && t.Outer != nil && t.Name == "" {
		scope = t.Outer
	}
	var out []*types.TypeDecl
	if t.SuperClass != "" {
		if s := h.ResolveType(scope, t.SuperClass); s != nil && s != t {
			out = append(out, s)
		}
	}
	for _, name := range t.Interfaces {
		if s := h.ResolveType(scope, name); s != nil && s != t {
			out = append(out, s)
		}
	}
	return out
}

// SuperTypes returns all transitive supertypes of t in breadth-first order.
func (h *TypeHierarchy) SuperTypes(ctx context.Context, t *types.TypeDecl) ([]*types.TypeDecl, error) {
	if supers, ok := h.cache.GetSuperTypes(t.QualifiedName); ok {
		return supers, nil
	}
	seen := map[*types.TypeDecl]bool{t: true}
	var out []*types.TypeDecl
	queue := []*types.TypeDecl{t}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		for _, s := range h.DirectSuperTypes(cur) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
				queue = append(queue, s)
			}
		}
	}
	h.cache.SetSuperTypes(t.QualifiedName, out)
	return out, nil
}

// SubTypes returns all transitive subtypes of t sorted by qualified name.
func (h *TypeHierarchy) SubTypes(ctx context.Context, t *types.TypeDecl) ([]*types.TypeDecl, error) {
	index := h.cache.SubIndex(h.buildSubIndex)
	seen := map[*types.TypeDecl]bool{t: true}
	var out []*types.TypeDecl
	queue := []*types.TypeDecl{t}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		for _, s := range index[cur.QualifiedName] {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
				queue = append(queue, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

func (h *TypeHierarchy) buildSubIndex() map[string][]*types.TypeDecl {
	index := make(map[string][]*types.TypeDecl)
	for _, path := range h.ws.SortedPaths() {
		for _, t := range h.ws.Files[path].Types {
			for _, s := range h.DirectSuperTypes(t) {
				index[s.QualifiedName] = append(index[s.QualifiedName], t)
			}
		}
	}
	return index
}

// IsSubtype reports whether sub equals super or inherits from it.
func (h *TypeHierarchy) IsSubtype(ctx context.Context, sub, super *types.TypeDecl) bool {
	if sub == super {
		return true
	}
	supers, err := h.SuperTypes(ctx, sub)
	if err != nil {
		return false
	}
	for _, s := range supers {
		if s == super {
			return true
		}
	}
	return false
}

// Overrides reports whether overrider has the same name and erased
// parameter types as overridden. Type variables match any type since a
// generic supertype may be instantiated with a concrete argument.
func (h *TypeHierarchy) Overrides(overrider, overridden *types.MethodDecl) bool {
	if overrider == overridden {
		return false
	}
	if overrider.Constructor || overridden.Constructor {
		return false
	}
	if !overrider.IsVirtual() || !overridden.IsVirtual() {
		return false
	}
	if overrider.Name != overridden.Name || len(overrider.Params) != len(overridden.Params) {
		return false
	}
	for i := range overrider.Params {
		a, b := overrider.Params[i], overridden.Params[i]
		if a.Varargs != b.Varargs && !isArrayOf(a, b) && !isArrayOf(b, a) {
			return false
		}
		if isTypeVariable(overrider, a.Type) || isTypeVariable(overridden, b.Type) {
			continue
		}
		if types.SimpleTypeName(arrayForm(a)) != types.SimpleTypeName(arrayForm(b)) {
			return false
		}
	}
	return true
}

func arrayForm(p *types.ParamDecl) string {
	if p.Varargs {
		return p.Type + "[]"
	}
	return p.Type
}

func isArrayOf(vararg, array *types.ParamDecl) bool {
	return vararg.Varargs && !array.Varargs && types.SimpleTypeName(array.Type) == types.SimpleTypeName(vararg.Type)+"[]"
}

func isTypeVariable(m *types.MethodDecl, typeName string) bool {
	name := strings.TrimRight(types.Erasure(typeName), "[]")
	for _, tp := range m.TypeParams {
		if tp == name {
			return true
		}
	}
	return m.Declaring != nil && m.Declaring.HasTypeParam(name)
}

// MentionsTypeVariable reports whether typeName refers to a type parameter
// of m or of its declaring types anywhere in its structure.
func MentionsTypeVariable(m *types.MethodDecl, typeName string) bool {
	for _, tok := range strings.FieldsFunc(typeName, func(r rune) bool {
		return !(r == '_' || r == '$' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) {
		if isTypeVariable(m, tok) {
			return true
		}
	}
	return false
}
