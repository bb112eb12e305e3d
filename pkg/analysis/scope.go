package analysis

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

var primitiveTypes = map[string]bool{
	"int": true, "long": true, "short": true, "byte": true, "char": true,
	"boolean": true, "float": true, "double": true, "void": true,
}

// IsPrimitive reports a Java primitive type name.
func IsPrimitive(name string) bool {
	return primitiveTypes[name]
}

// EnclosingType returns the innermost type declared in file whose node
// contains n.
func EnclosingType(file *types.File, n *sitter.Node) *types.TypeDecl {
	var best *types.TypeDecl
	for _, t := range file.Types {
		if t.Node == nil || !Contains(t.Node, n) {
			continue
		}
		if best == nil || Contains(best.Node, t.Node) {
			best = t
		}
	}
	return best
}

// EnclosingMethod returns the innermost method or constructor containing n.
func EnclosingMethod(file *types.File, n *sitter.Node) *types.MethodDecl {
	decl := n
	if !IsDeclarationNode(decl) {
		decl = Ancestor(n, nodeMethodDecl, nodeConstructorDecl, nodeCompactCtorDecl)
	}
	if decl == nil {
		return nil
	}
	for _, t := range file.Types {
		for _, m := range t.Methods {
			if SameNode(m.Node, decl) {
				return m
			}
		}
	}
	return nil
}

// DeclaredTypeOf finds the declared type of the variable name visible at
// node at: locals, parameters, catch and resource variables, and fields of
// enclosing types and their supertypes.
func (h *TypeHierarchy) DeclaredTypeOf(file *types.File, at *sitter.Node, name string) (string, *sitter.Node, bool) {
	for cur := at.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.Type() {
		case nodeBlock, nodeConstructorBody, "switch_block_statement_group", "switch_rule":
			for _, stmt := range NamedChildren(cur) {
				if stmt.StartByte() >= at.StartByte() {
					break
				}
				if stmt.Type() == nodeLocalVariableDecl {
					if typ, init, ok := declaratorType(file, stmt, name); ok {
						return typ, init, true
					}
				}
			}
		case "for_statement":
			if init := cur.ChildByFieldName("init"); init != nil && init.Type() == nodeLocalVariableDecl {
				if typ, v, ok := declaratorType(file, init, name); ok {
					return typ, v, true
				}
			}
		case "enhanced_for_statement", "catch_formal_parameter", "resource":
			if n := cur.ChildByFieldName("name"); n != nil && file.Text(n) == name {
				return file.Text(cur.ChildByFieldName("type")), nil, true
			}
		case "catch_clause":
			if p := ChildByType(cur, "catch_formal_parameter"); p != nil {
				if n := p.ChildByFieldName("name"); n != nil && file.Text(n) == name {
					if ct := ChildByType(p, "catch_type"); ct != nil {
						return file.Text(ct), nil, true
					}
				}
			}
		case nodeLambda:
			params := cur.ChildByFieldName("parameters")
			if params == nil {
				continue
			}
			if params.Type() == nodeIdentifier && file.Text(params) == name {
				return "", nil, true
			}
			for _, p := range NamedChildren(params) {
				if p.Type() == nodeIdentifier && file.Text(p) == name {
					return "", nil, true
				}
				if (p.Type() == nodeFormalParameter || p.Type() == nodeSpreadParameter) && file.Text(ParamNameNode(p)) == name {
					return file.Text(ParamTypeNode(p)), nil, true
				}
			}
		case nodeMethodDecl, nodeConstructorDecl:
			for _, p := range ListElements(cur.ChildByFieldName("parameters")) {
				if p.Type() != nodeFormalParameter && p.Type() != nodeSpreadParameter {
					continue
				}
				if file.Text(ParamNameNode(p)) == name {
					typ := file.Text(ParamTypeNode(p))
					if p.Type() == nodeSpreadParameter {
						typ += "[]"
					}
					return typ, nil, true
				}
			}
		}
	}
	if t := EnclosingType(file, at); t != nil {
		if typ, ok := h.FieldType(t, name); ok {
			return typ, nil, true
		}
	}
	return "", nil, false
}

func declaratorType(file *types.File, decl *sitter.Node, name string) (string, *sitter.Node, bool) {
	for _, d := range ChildrenByType(decl, nodeVariableDeclarator) {
		if n := d.ChildByFieldName("name"); n != nil && file.Text(n) == name {
			return file.Text(decl.ChildByFieldName("type")), d.ChildByFieldName("value"), true
		}
	}
	return "", nil, false
}

// FieldType looks up a field declared in t, its enclosing types, or any
// resolvable supertype.
func (h *TypeHierarchy) FieldType(t *types.TypeDecl, name string) (string, bool) {
	seen := map[*types.TypeDecl]bool{}
	var lookup func(*types.TypeDecl) (string, bool)
	lookup = func(cur *types.TypeDecl) (string, bool) {
		if cur == nil || seen[cur] {
			return "", false
		}
		seen[cur] = true
		body := cur.Body()
		if cur.Node != nil && cur.Node.Type() == nodeObjectCreation {
			body = ChildByType(cur.Node, nodeClassBody)
		}
		for _, fd := range ChildrenByType(body, nodeFieldDecl) {
			if typ, _, ok := declaratorType(cur.File, fd, name); ok {
				return typ, true
			}
		}
		if cur.Kind == types.EnumType {
			if enumBody := cur.Body(); enumBody != nil {
				for _, c := range ChildrenByType(enumBody, nodeEnumConstant) {
					if cur.File.Text(c.ChildByFieldName("name")) == name {
						return cur.QualifiedName, true
					}
				}
				for _, fd := range ChildrenByType(ChildByType(enumBody, nodeEnumBodyDecls), nodeFieldDecl) {
					if typ, _, ok := declaratorType(cur.File, fd, name); ok {
						return typ, true
					}
				}
			}
		}
		for _, s := range h.DirectSuperTypes(cur) {
			if typ, ok := lookup(s); ok {
				return typ, true
			}
		}
		return lookup(cur.Outer)
	}
	return lookup(t)
}

// ReceiverType determines the static type of a call receiver expression.
// known=false means the type could not be determined; known=true with a nil
// type means the receiver is of a type outside the workspace.
func (h *TypeHierarchy) ReceiverType(file *types.File, expr *sitter.Node) (t *types.TypeDecl, known bool) {
	scope := EnclosingType(file, expr)
	resolveName := func(typeName string) (*types.TypeDecl, bool) {
		name := strings.TrimSpace(types.Erasure(typeName))
		switch {
		case name == "" || name == "var":
			return nil, false
		case IsPrimitive(name), strings.HasSuffix(name, "[]"):
			return nil, true
		}
		if m := EnclosingMethod(file, expr); m != nil && isTypeVariable(m, name) {
			return nil, false
		}
		if scope != nil && scope.HasTypeParam(name) {
			return nil, false
		}
		r := h.ResolveType(scope, name)
		return r, true
	}

	switch expr.Type() {
	case "this":
		return scope, true
	case "super":
		s := scope
		if s == nil {
			return nil, false
		}
		if s.SuperClass == "" {
			return nil, true
		}
		return resolveName(s.SuperClass)
	case "parenthesized_expression":
		if inner := NamedChildren(expr); len(inner) == 1 {
			return h.ReceiverType(file, inner[0])
		}
	case "cast_expression":
		return resolveName(file.Text(expr.ChildByFieldName("type")))
	case nodeObjectCreation:
		return resolveName(file.Text(expr.ChildByFieldName("type")))
	case "string_literal":
		return nil, true
	case nodeIdentifier:
		name := file.Text(expr)
		if typ, init, ok := h.DeclaredTypeOf(file, expr, name); ok {
			if types.Erasure(typ) == "var" && init != nil {
				return h.ReceiverType(file, init)
			}
			return resolveName(typ)
		}
		if r := h.ResolveType(scope, name); r != nil {
			return r, true
		}
		if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			return nil, true
		}
	case nodeFieldAccess:
		obj := expr.ChildByFieldName("object")
		field := file.Text(expr.ChildByFieldName("field"))
		if r := h.ResolveType(scope, file.Text(expr)); r != nil {
			return r, true
		}
		owner, ok := h.ReceiverType(file, obj)
		if !ok || owner == nil {
			return nil, ok
		}
		if typ, found := h.FieldType(owner, field); found {
			return resolveName(typ)
		}
	case nodeMethodInvocation:
		name := file.Text(expr.ChildByFieldName("name"))
		owner := scope
		if obj := expr.ChildByFieldName("object"); obj != nil {
			var ok bool
			owner, ok = h.ReceiverType(file, obj)
			if !ok || owner == nil {
				return nil, ok
			}
		}
		if m := h.findMethodByName(owner, name); m != nil && m.ReturnType != "" {
			if isTypeVariable(m, m.ReturnType) {
				return nil, false
			}
			return h.ResolveType(m.Declaring, m.ReturnType), true
		}
	}
	return nil, false
}

func (h *TypeHierarchy) findMethodByName(t *types.TypeDecl, name string) *types.MethodDecl {
	seen := map[*types.TypeDecl]bool{}
	var find func(*types.TypeDecl) *types.MethodDecl
	find = func(cur *types.TypeDecl) *types.MethodDecl {
		if cur == nil || seen[cur] {
			return nil
		}
		seen[cur] = true
		for _, m := range cur.Methods {
			if m.Name == name && !m.Constructor {
				return m
			}
		}
		for _, s := range h.DirectSuperTypes(cur) {
			if m := find(s); m != nil {
				return m
			}
		}
		return nil
	}
	return find(t)
}

// LiteralType returns the Java type of a literal expression, or "".
func LiteralType(file *types.File, expr *sitter.Node) string {
	switch expr.Type() {
	case "string_literal", "text_block":
		return "String"
	case "character_literal":
		return "char"
	case "true", "false":
		return "boolean"
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(strings.ToLower(file.Text(expr)), "l") {
			return "long"
		}
		return "int"
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(strings.ToLower(file.Text(expr)), "f") {
			return "float"
		}
		return "double"
	case "null_literal":
		return "null"
	}
	return ""
}
