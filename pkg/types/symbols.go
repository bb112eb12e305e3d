package types

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

type TypeKind int

const (
	ClassType TypeKind = iota
	InterfaceType
	EnumType
	RecordType
	AnnotationType
)

// String returns the string representation of a TypeKind
func (k TypeKind) String() string {
	switch k {
	case ClassType:
		return "class"
	case InterfaceType:
		return "interface"
	case EnumType:
		return "enum"
	case RecordType:
		return "record"
	case AnnotationType:
		return "@interface"
	default:
		return "unknown"
	}
}

// Modifiers is a bit set of Java declaration modifiers.
type Modifiers uint16

const (
	ModPublic Modifiers = 1 << iota
	ModPrivate
	ModProtected
	ModStatic
	ModFinal
	ModAbstract
	ModNative
	ModDefault
	ModSynchronized
)

var modifierKeywords = []struct {
	mod  Modifiers
	word string
}{
	{ModPublic, "public"},
	{ModProtected, "protected"},
	{ModPrivate, "private"},
	{ModAbstract, "abstract"},
	{ModDefault, "default"},
	{ModStatic, "static"},
	{ModFinal, "final"},
	{ModSynchronized, "synchronized"},
	{ModNative, "native"},
}

// ModifierFromKeyword maps a Java keyword to its modifier bit.
func ModifierFromKeyword(word string) (Modifiers, bool) {
	for _, mk := range modifierKeywords {
		if mk.word == word {
			return mk.mod, true
		}
	}
	return 0, false
}

func (m Modifiers) Has(flag Modifiers) bool { return m&flag != 0 }

// Visibility extracts the access level.
func (m Modifiers) Visibility() Visibility {
	switch {
	case m.Has(ModPublic):
		return VisibilityPublic
	case m.Has(ModProtected):
		return VisibilityProtected
	case m.Has(ModPrivate):
		return VisibilityPrivate
	default:
		return VisibilityPackage
	}
}

// Keywords renders the modifiers in canonical Java order.
func (m Modifiers) Keywords() []string {
	var out []string
	for _, mk := range modifierKeywords {
		if m.Has(mk.mod) {
			out = append(out, mk.word)
		}
	}
	return out
}

// Visibility is a Java access level. The numeric values are the modifier
// flag codes used by the descriptor format.
type Visibility int

const (
	VisibilityPackage   Visibility = 0
	VisibilityPublic    Visibility = 1
	VisibilityPrivate   Visibility = 2
	VisibilityProtected Visibility = 4
)

// Rank orders visibilities from most restrictive to least.
func (v Visibility) Rank() int {
	switch v {
	case VisibilityPrivate:
		return 0
	case VisibilityPackage:
		return 1
	case VisibilityProtected:
		return 2
	case VisibilityPublic:
		return 3
	default:
		return -1
	}
}

// Keyword returns the Java keyword, empty for package visibility.
func (v Visibility) Keyword() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityProtected:
		return "protected"
	case VisibilityPrivate:
		return "private"
	default:
		return ""
	}
}

func (v Visibility) String() string {
	if v == VisibilityPackage {
		return "package"
	}
	return v.Keyword()
}

// ParseVisibility accepts a keyword or "package"/"" for default access.
func ParseVisibility(s string) (Visibility, bool) {
	switch strings.TrimSpace(s) {
	case "public":
		return VisibilityPublic, true
	case "protected":
		return VisibilityProtected, true
	case "private":
		return VisibilityPrivate, true
	case "package", "default", "":
		return VisibilityPackage, true
	}
	return 0, false
}

// TypeDecl is a class, interface, enum, record or annotation declaration.
type TypeDecl struct {
	Name          string
	QualifiedName string
	Kind          TypeKind
	File          *File
	Outer         *TypeDecl
	Node          *sitter.Node
	Modifiers     Modifiers
	TypeParams    []string
	SuperClass    string   // as written, generic arguments included
	Interfaces    []string // as written
	Methods       []*MethodDecl
	Local         bool // anonymous or method-local
}

func (t *TypeDecl) IsInterface() bool {
	return t.Kind == InterfaceType || t.Kind == AnnotationType
}

// Body returns the class/interface/enum body node.
func (t *TypeDecl) Body() *sitter.Node {
	if t.Node == nil {
		return nil
	}
	return t.Node.ChildByFieldName("body")
}

// Constructors returns the declared constructors in source order.
func (t *TypeDecl) Constructors() []*MethodDecl {
	var out []*MethodDecl
	for _, m := range t.Methods {
		if m.Constructor {
			out = append(out, m)
		}
	}
	return out
}

// HasTypeParam reports whether name is a type parameter of t or of one of
// its enclosing types.
func (t *TypeDecl) HasTypeParam(name string) bool {
	for cur := t; cur != nil; cur = cur.Outer {
		for _, tp := range cur.TypeParams {
			if tp == name {
				return true
			}
		}
	}
	return false
}

// MethodDecl is a method or constructor declaration.
type MethodDecl struct {
	Name        string
	Declaring   *TypeDecl
	Node        *sitter.Node
	Constructor bool
	Modifiers   Modifiers
	TypeParams  []string
	ReturnType  string
	Params      []*ParamDecl
	Exceptions  []string
	HasBody     bool
}

// ParamDecl is one formal parameter.
type ParamDecl struct {
	Name    string
	Type    string // element type for varargs, without the ellipsis
	Varargs bool
	Node    *sitter.Node
}

// DeclaredType renders the type as written in a declaration.
func (p *ParamDecl) DeclaredType() string {
	if p.Varargs {
		return p.Type + "..."
	}
	return p.Type
}

func (m *MethodDecl) File() *File {
	if m.Declaring == nil {
		return nil
	}
	return m.Declaring.File
}

// IsVarargs reports whether the last parameter is a vararg.
func (m *MethodDecl) IsVarargs() bool {
	return len(m.Params) > 0 && m.Params[len(m.Params)-1].Varargs
}

// VarargIndex returns the index of the vararg parameter or -1.
func (m *MethodDecl) VarargIndex() int {
	if m.IsVarargs() {
		return len(m.Params) - 1
	}
	return -1
}

// IsStatic reports a static method.
func (m *MethodDecl) IsStatic() bool { return m.Modifiers.Has(ModStatic) }

// IsAbstract reports a method without a body that is not native.
func (m *MethodDecl) IsAbstract() bool {
	return !m.HasBody && !m.Modifiers.Has(ModNative)
}

// IsNative reports a native method.
func (m *MethodDecl) IsNative() bool { return m.Modifiers.Has(ModNative) }

// IsVirtual reports whether the method takes part in dynamic dispatch.
func (m *MethodDecl) IsVirtual() bool {
	return !m.Constructor && !m.IsStatic() && !m.Modifiers.Has(ModPrivate)
}

// Visibility returns the effective visibility; interface members are
// implicitly public.
func (m *MethodDecl) Visibility() Visibility {
	v := m.Modifiers.Visibility()
	if m.Declaring != nil && m.Declaring.IsInterface() && v == VisibilityPackage {
		return VisibilityPublic
	}
	return v
}

// ParamTypes returns the erased parameter types as written, varargs
// rendered as arrays.
func (m *MethodDecl) ParamTypes() []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		t := Erasure(p.Type)
		if p.Varargs {
			t += "[]"
		}
		out[i] = t
	}
	return out
}

// Handle returns the stable identity pkg.Type#name(T1,T2).
func (m *MethodDecl) Handle() string {
	owner := ""
	if m.Declaring != nil {
		owner = m.Declaring.QualifiedName
	}
	return owner + "#" + m.Name + "(" + strings.Join(m.ParamTypes(), ",") + ")"
}

// Signature renders the method head for messages.
func (m *MethodDecl) Signature() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteString("(")
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.DeclaredType())
	}
	b.WriteString(")")
	return b.String()
}

// Body returns the block node of the method.
func (m *MethodDecl) Body() *sitter.Node {
	if m.Node == nil {
		return nil
	}
	return m.Node.ChildByFieldName("body")
}

// Erasure strips generic arguments and type annotations from a type name,
// leaving array brackets in place. Varargs are rendered as arrays.
func Erasure(typeName string) string {
	var kept []string
	for _, f := range strings.Fields(typeName) {
		if !strings.HasPrefix(f, "@") {
			kept = append(kept, f)
		}
	}
	var b strings.Builder
	depth := 0
	for _, r := range strings.Join(kept, "") {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasSuffix(out, "...") {
		out = strings.TrimSuffix(out, "...") + "[]"
	}
	return out
}

// SimpleTypeName returns the erased, unqualified type name.
func SimpleTypeName(typeName string) string {
	e := Erasure(typeName)
	dims := ""
	for strings.HasSuffix(e, "[]") {
		e = strings.TrimSuffix(e, "[]")
		dims += "[]"
	}
	if i := strings.LastIndex(e, "."); i >= 0 {
		e = e[i+1:]
	}
	return e + dims
}
