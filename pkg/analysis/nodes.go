package analysis

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Tree-sitter Java node types used across the package.
const (
	nodeProgram             = "program"
	nodePackageDecl         = "package_declaration"
	nodeImportDecl          = "import_declaration"
	nodeClassDecl           = "class_declaration"
	nodeInterfaceDecl       = "interface_declaration"
	nodeEnumDecl            = "enum_declaration"
	nodeRecordDecl          = "record_declaration"
	nodeAnnotationDecl      = "annotation_type_declaration"
	nodeMethodDecl          = "method_declaration"
	nodeConstructorDecl     = "constructor_declaration"
	nodeCompactCtorDecl     = "compact_constructor_declaration"
	nodeFormalParameters    = "formal_parameters"
	nodeFormalParameter     = "formal_parameter"
	nodeSpreadParameter     = "spread_parameter"
	nodeReceiverParameter   = "receiver_parameter"
	nodeModifiers           = "modifiers"
	nodeThrows              = "throws"
	nodeSuperclass          = "superclass"
	nodeSuperInterfaces     = "super_interfaces"
	nodeExtendsInterfaces   = "extends_interfaces"
	nodeTypeList            = "type_list"
	nodeTypeParameters      = "type_parameters"
	nodeTypeParameter       = "type_parameter"
	nodeMethodInvocation    = "method_invocation"
	nodeObjectCreation      = "object_creation_expression"
	nodeExplicitCtorCall    = "explicit_constructor_invocation"
	nodeMethodReference     = "method_reference"
	nodeLambda              = "lambda_expression"
	nodeArgumentList        = "argument_list"
	nodeArrayCreation       = "array_creation_expression"
	nodeEnumConstant        = "enum_constant"
	nodeEnumBodyDecls       = "enum_body_declarations"
	nodeClassBody           = "class_body"
	nodeVariableDeclarator  = "variable_declarator"
	nodeLocalVariableDecl   = "local_variable_declaration"
	nodeFieldDecl           = "field_declaration"
	nodeIdentifier          = "identifier"
	nodeTypeIdentifier      = "type_identifier"
	nodeScopedIdentifier    = "scoped_identifier"
	nodeAsterisk            = "asterisk"
	nodeBlock               = "block"
	nodeConstructorBody     = "constructor_body"
	nodeAssignment          = "assignment_expression"
	nodeUpdateExpression    = "update_expression"
	nodeFieldAccess         = "field_access"
	nodeDimensions          = "dimensions"
	nodeExpressionStatement = "expression_statement"
)

// ChildByType returns the first direct child of n with the given type.
func ChildByType(n *sitter.Node, typ string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == typ {
			return c
		}
	}
	return nil
}

// ChildrenByType returns every direct child of n with the given type.
func ChildrenByType(n *sitter.Node, typ string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children of n that are not comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && !IsComment(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsComment reports any comment node. Older grammars use "comment", newer
// ones split line and block comments.
func IsComment(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "comment", "line_comment", "block_comment":
		return true
	}
	return false
}

// Javadoc returns the doc comment directly preceding a declaration.
func Javadoc(n *sitter.Node, src []byte) *sitter.Node {
	if n == nil {
		return nil
	}
	prev := n.PrevSibling()
	if prev == nil || !IsComment(prev) {
		return nil
	}
	if !strings.HasPrefix(prev.Content(src), "/**") {
		return nil
	}
	return prev
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// Ancestor returns the closest ancestor of n whose type is in typs.
func Ancestor(n *sitter.Node, typs ...string) *sitter.Node {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		for _, t := range typs {
			if cur.Type() == t {
				return cur
			}
		}
	}
	return nil
}

// SameNode compares nodes by position and type.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Contains reports whether inner lies within outer.
func Contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// ListElements returns the elements of a parenthesized comma list such as
// formal_parameters or argument_list, skipping punctuation and comments.
func ListElements(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.IsNamed() || IsComment(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IsDeclarationNode reports a method or constructor declaration.
func IsDeclarationNode(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case nodeMethodDecl, nodeConstructorDecl, nodeCompactCtorDecl:
		return true
	}
	return false
}

// IsTypeDeclarationNode reports a type declaration.
func IsTypeDeclarationNode(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case nodeClassDecl, nodeInterfaceDecl, nodeEnumDecl, nodeRecordDecl, nodeAnnotationDecl:
		return true
	}
	return false
}
