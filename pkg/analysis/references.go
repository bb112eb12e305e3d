package analysis

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// ParameterReferences returns the identifiers in the body of decl that refer
// to its parameter name. Field names after a dot, invoked method names and
// nested declarations that redeclare the name are skipped.
func ParameterReferences(file *types.File, decl *sitter.Node, name string) []*sitter.Node {
	body := decl.ChildByFieldName("body")
	if body == nil || name == "" {
		return nil
	}
	var refs []*sitter.Node
	Walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case nodeMethodDecl, nodeConstructorDecl:
			return !declaresParameter(file, n, name)
		case nodeLambda:
			return !lambdaDeclares(file, n, name)
		case nodeClassBody:
			return !declaresField(file, n, name)
		case nodeIdentifier:
			if file.Text(n) == name && isVariableUse(n) {
				refs = append(refs, n)
			}
			return false
		}
		return true
	})
	return refs
}

// DeclaresLocal reports whether the body of decl declares a local variable,
// lambda parameter, catch parameter or loop variable called name.
func DeclaresLocal(file *types.File, decl *sitter.Node, name string) bool {
	body := decl.ChildByFieldName("body")
	found := false
	Walk(body, func(n *sitter.Node) bool {
		if found {
			return false
		}
		switch n.Type() {
		case nodeVariableDeclarator, "catch_formal_parameter", "enhanced_for_statement", "resource":
			if nm := n.ChildByFieldName("name"); nm != nil && file.Text(nm) == name {
				found = true
			}
		case nodeLambda:
			found = lambdaDeclares(file, n, name)
		}
		return !found
	})
	return found
}

func isVariableUse(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case nodeFieldAccess:
		return !SameNode(parent.ChildByFieldName("field"), n)
	case nodeMethodInvocation:
		return !SameNode(parent.ChildByFieldName("name"), n)
	case nodeMethodReference:
		children := NamedChildren(parent)
		return len(children) < 2 || !SameNode(children[len(children)-1], n)
	case nodeVariableDeclarator:
		return !SameNode(parent.ChildByFieldName("name"), n)
	case "labeled_statement", "break_statement", "continue_statement":
		return false
	case nodeScopedIdentifier:
		return SameNode(parent.ChildByFieldName("scope"), n)
	}
	return true
}

func declaresParameter(file *types.File, decl *sitter.Node, name string) bool {
	for _, p := range ListElements(decl.ChildByFieldName("parameters")) {
		if p.Type() != nodeFormalParameter && p.Type() != nodeSpreadParameter {
			continue
		}
		if file.Text(ParamNameNode(p)) == name {
			return true
		}
	}
	return false
}

func lambdaDeclares(file *types.File, lambda *sitter.Node, name string) bool {
	params := lambda.ChildByFieldName("parameters")
	if params == nil {
		return false
	}
	if params.Type() == nodeIdentifier {
		return file.Text(params) == name
	}
	for _, p := range NamedChildren(params) {
		switch p.Type() {
		case nodeIdentifier:
			if file.Text(p) == name {
				return true
			}
		case nodeFormalParameter, nodeSpreadParameter:
			if file.Text(ParamNameNode(p)) == name {
				return true
			}
		}
	}
	return false
}

func declaresField(file *types.File, body *sitter.Node, name string) bool {
	for _, fd := range ChildrenByType(body, nodeFieldDecl) {
		if _, _, ok := declaratorType(file, fd, name); ok {
			return true
		}
	}
	return false
}
