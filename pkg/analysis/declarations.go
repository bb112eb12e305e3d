package analysis

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// extractor builds the declaration model of one compilation unit.
type extractor struct {
	file      *types.File
	anonCount map[*types.TypeDecl]int
}

func extractDeclarations(file *types.File) {
	x := &extractor{file: file, anonCount: make(map[*types.TypeDecl]int)}
	root := file.Root()
	if root == nil {
		return
	}
	if pkg := ChildByType(root, nodePackageDecl); pkg != nil {
		for _, c := range NamedChildren(pkg) {
			if c.Type() == nodeScopedIdentifier || c.Type() == nodeIdentifier {
				file.Package = file.Text(c)
			}
		}
	}
	for _, imp := range ChildrenByType(root, nodeImportDecl) {
		file.Imports = append(file.Imports, x.importDecl(imp))
	}
	x.visit(root, nil, false)
}

func (x *extractor) importDecl(n *sitter.Node) types.Import {
	imp := types.Import{Start: int(n.StartByte()), End: int(n.EndByte())}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			imp.Static = true
		case nodeScopedIdentifier, nodeIdentifier:
			imp.Name = x.file.Text(c)
		case nodeAsterisk, "*":
			imp.OnDemand = true
		}
	}
	return imp
}

func (x *extractor) visit(n *sitter.Node, owner *types.TypeDecl, local bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch {
		case IsTypeDeclarationNode(c):
			t := x.typeDecl(c, owner, local)
			if body := t.Body(); body != nil {
				x.visit(body, t, local)
			}
		case c.Type() == nodeObjectCreation && ChildByType(c, nodeClassBody) != nil:
			// arguments may contain further anonymous classes
			if args := c.ChildByFieldName("arguments"); args != nil {
				x.visit(args, owner, local)
			}
			t := x.anonymousType(c, owner, x.file.Text(c.ChildByFieldName("type")))
			x.visit(ChildByType(c, nodeClassBody), t, true)
		case c.Type() == nodeEnumConstant && ChildByType(c, nodeClassBody) != nil:
			t := x.anonymousType(c, owner, owner.Name)
			x.visit(ChildByType(c, nodeClassBody), t, true)
		case IsDeclarationNode(c) && owner != nil:
			m := x.methodDecl(c, owner)
			owner.Methods = append(owner.Methods, m)
			x.visit(c, owner, true)
		default:
			x.visit(c, owner, local)
		}
	}
}

func (x *extractor) typeDecl(n *sitter.Node, outer *types.TypeDecl, local bool) *types.TypeDecl {
	t := &types.TypeDecl{
		Name:      x.file.Text(n.ChildByFieldName("name")),
		File:      x.file,
		Outer:     outer,
		Node:      n,
		Modifiers: x.modifiers(n),
		Local:     local,
	}
	switch n.Type() {
	case nodeInterfaceDecl:
		t.Kind = types.InterfaceType
	case nodeEnumDecl:
		t.Kind = types.EnumType
	case nodeRecordDecl:
		t.Kind = types.RecordType
	case nodeAnnotationDecl:
		t.Kind = types.AnnotationType
	default:
		t.Kind = types.ClassType
	}
	switch {
	case outer != nil:
		t.QualifiedName = outer.QualifiedName + "." + t.Name
	case x.file.Package != "":
		t.QualifiedName = x.file.Package + "." + t.Name
	default:
		t.QualifiedName = t.Name
	}
	if local {
		x.anonCount[outer]++
		t.QualifiedName = fmt.Sprintf("%s$%d%s", outer.QualifiedName, x.anonCount[outer], t.Name)
	}
	t.TypeParams = x.typeParams(n)

	if sc := n.ChildByFieldName("superclass"); sc != nil {
		for _, c := range NamedChildren(sc) {
			t.SuperClass = x.file.Text(c)
		}
	}
	t.Interfaces = append(t.Interfaces, x.typeList(n.ChildByFieldName("interfaces"))...)
	if t.Kind == types.InterfaceType {
		t.Interfaces = append(t.Interfaces, x.typeList(ChildByType(n, nodeExtendsInterfaces))...)
	}
	x.file.Types = append(x.file.Types, t)
	return t
}

func (x *extractor) anonymousType(n *sitter.Node, outer *types.TypeDecl, super string) *types.TypeDecl {
	x.anonCount[outer]++
	t := &types.TypeDecl{
		Kind:       types.ClassType,
		File:       x.file,
		Outer:      outer,
		Node:       n,
		SuperClass: super,
		Local:      true,
	}
	if outer != nil {
		t.QualifiedName = fmt.Sprintf("%s$%d", outer.QualifiedName, x.anonCount[outer])
	}
	x.file.Types = append(x.file.Types, t)
	return t
}

// typeList reads the types of a super_interfaces/extends_interfaces node.
func (x *extractor) typeList(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	list := ChildByType(n, nodeTypeList)
	if list == nil {
		list = n
	}
	var out []string
	for _, c := range NamedChildren(list) {
		out = append(out, x.file.Text(c))
	}
	return out
}

func (x *extractor) typeParams(n *sitter.Node) []string {
	tps := n.ChildByFieldName("type_parameters")
	if tps == nil {
		tps = ChildByType(n, nodeTypeParameters)
	}
	var out []string
	for _, tp := range ChildrenByType(tps, nodeTypeParameter) {
		for _, c := range NamedChildren(tp) {
			if c.Type() == nodeTypeIdentifier || c.Type() == nodeIdentifier {
				out = append(out, x.file.Text(c))
				break
			}
		}
	}
	return out
}

func (x *extractor) modifiers(n *sitter.Node) types.Modifiers {
	var mods types.Modifiers
	m := ChildByType(n, nodeModifiers)
	if m == nil {
		return mods
	}
	for i := 0; i < int(m.ChildCount()); i++ {
		if flag, ok := types.ModifierFromKeyword(m.Child(i).Type()); ok {
			mods |= flag
		}
	}
	return mods
}

func (x *extractor) methodDecl(n *sitter.Node, owner *types.TypeDecl) *types.MethodDecl {
	m := &types.MethodDecl{
		Name:        x.file.Text(n.ChildByFieldName("name")),
		Declaring:   owner,
		Node:        n,
		Constructor: n.Type() != nodeMethodDecl,
		Modifiers:   x.modifiers(n),
		TypeParams:  x.typeParams(n),
	}
	if !m.Constructor {
		m.ReturnType = x.file.Text(n.ChildByFieldName("type"))
		if dims := n.ChildByFieldName("dimensions"); dims != nil {
			m.ReturnType += strings.ReplaceAll(x.file.Text(dims), " ", "")
		}
	}
	for _, p := range ListElements(n.ChildByFieldName("parameters")) {
		if pd := x.paramDecl(p); pd != nil {
			m.Params = append(m.Params, pd)
		}
	}
	m.Exceptions = ThrownTypes(x.file, n)
	m.HasBody = n.ChildByFieldName("body") != nil
	return m
}

func (x *extractor) paramDecl(n *sitter.Node) *types.ParamDecl {
	switch n.Type() {
	case nodeFormalParameter:
		typ := x.file.Text(n.ChildByFieldName("type"))
		if dims := n.ChildByFieldName("dimensions"); dims != nil {
			typ += strings.ReplaceAll(x.file.Text(dims), " ", "")
		}
		return &types.ParamDecl{
			Name: x.file.Text(n.ChildByFieldName("name")),
			Type: typ,
			Node: n,
		}
	case nodeSpreadParameter:
		return &types.ParamDecl{
			Name:    x.file.Text(SpreadName(n)),
			Type:    x.file.Text(SpreadType(n)),
			Varargs: true,
			Node:    n,
		}
	}
	return nil
}

// SpreadType returns the element type node of a spread_parameter.
func SpreadType(n *sitter.Node) *sitter.Node {
	if t := n.ChildByFieldName("type"); t != nil {
		return t
	}
	for _, c := range NamedChildren(n) {
		if c.Type() != nodeModifiers && c.Type() != nodeVariableDeclarator {
			return c
		}
	}
	return nil
}

// SpreadName returns the name node of a spread_parameter.
func SpreadName(n *sitter.Node) *sitter.Node {
	decl := ChildByType(n, nodeVariableDeclarator)
	if decl == nil {
		return nil
	}
	if name := decl.ChildByFieldName("name"); name != nil {
		return name
	}
	return ChildByType(decl, nodeIdentifier)
}

// ParamNameNode returns the identifier of a formal or spread parameter.
func ParamNameNode(n *sitter.Node) *sitter.Node {
	if n.Type() == nodeSpreadParameter {
		return SpreadName(n)
	}
	return n.ChildByFieldName("name")
}

// ParamTypeNode returns the type node of a formal or spread parameter.
func ParamTypeNode(n *sitter.Node) *sitter.Node {
	if n.Type() == nodeSpreadParameter {
		return SpreadType(n)
	}
	return n.ChildByFieldName("type")
}

// ThrowsNode returns the throws clause of a declaration.
func ThrowsNode(n *sitter.Node) *sitter.Node {
	return ChildByType(n, nodeThrows)
}

// ThrownTypes returns the declared exception types as written.
func ThrownTypes(file *types.File, n *sitter.Node) []string {
	var out []string
	for _, c := range NamedChildren(ThrowsNode(n)) {
		out = append(out, file.Text(c))
	}
	return out
}
