package refactor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// ParameterInfo describes one parameter slot in the union of the old and
// new parameter lists. The position of an info in SignatureModel.Params is
// its position in the new signature.
type ParameterInfo struct {
	OldIndex     int // -1 for added parameters
	OldName      string
	NewName      string
	OldTypeName  string // as declared, "..." included for varargs
	NewTypeName  string // as given, "..." marks a vararg
	OldBinding   *types.TypeDecl
	NewBinding   *types.TypeDecl
	OldVarargs   bool
	DefaultValue string
	Deleted      bool
	Inlined      bool
}

func newOldParameter(index int, p *types.ParamDecl) *ParameterInfo {
	return &ParameterInfo{
		OldIndex:    index,
		OldName:     p.Name,
		NewName:     p.Name,
		OldTypeName: p.DeclaredType(),
		NewTypeName: p.DeclaredType(),
		OldVarargs:  p.Varargs,
	}
}

// NewAddedParameter creates the info of a parameter that does not exist in
// the old signature.
func NewAddedParameter(typeName, name, defaultValue string) *ParameterInfo {
	return &ParameterInfo{
		OldIndex:     -1,
		NewName:      name,
		NewTypeName:  typeName,
		DefaultValue: defaultValue,
	}
}

func (p *ParameterInfo) IsAdded() bool { return p.OldIndex == -1 }

func (p *ParameterInfo) IsRenamed() bool { return !p.IsAdded() && p.OldName != p.NewName }

func (p *ParameterInfo) IsTypeNameChanged() bool {
	return !p.IsAdded() && compactType(p.OldTypeName) != compactType(p.NewTypeName)
}

// IsNewVarargs reports whether the new type is written with a trailing "...".
func (p *ParameterInfo) IsNewVarargs() bool {
	return strings.HasSuffix(strings.TrimSpace(p.NewTypeName), "...")
}

func (p *ParameterInfo) IsVarargChanged() bool { return p.OldVarargs != p.IsNewVarargs() }

// NewElementTypeName returns the new type without the vararg ellipsis.
func (p *ParameterInfo) NewElementTypeName() string {
	return StripEllipsis(p.NewTypeName)
}

// StripEllipsis removes a trailing "..." from a type name.
func StripEllipsis(typeName string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(typeName), "..."))
}

// compactType removes whitespace so "List<String>" and "List< String >"
// compare equal.
func compactType(typeName string) string {
	return strings.Join(strings.Fields(typeName), "")
}

// formatType writes a type in one canonical layout: no blanks around
// punctuation, ", " between type arguments and single blanks between words.
// It also restores the blanks compactType drops after a wildcard, so
// "Map<String,?extendsNumber>" becomes "Map<String, ? extends Number>".
func formatType(typeName string) string {
	var toks []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			toks = append(toks, word.String())
			word.Reset()
		}
	}
	for _, r := range typeName {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$':
			word.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			toks = append(toks, string(r))
		}
	}
	flush()

	var b strings.Builder
	prev := ""
	for _, t := range toks {
		if prev == "?" {
			for _, kw := range []string{"extends", "super"} {
				if rest, ok := strings.CutPrefix(t, kw); ok && rest != "" && isWord(rest) {
					b.WriteString(" " + kw)
					prev, t = kw, rest
					break
				}
			}
		}
		switch {
		case prev == ",":
			b.WriteByte(' ')
		case t == "&" || prev == "&":
			b.WriteByte(' ')
		case isWord(t) && (isWord(prev) || prev == "?" || prev == ")"):
			b.WriteByte(' ')
		}
		b.WriteString(t)
		prev = t
	}
	return b.String()
}

func isWord(tok string) bool {
	if tok == "" {
		return false
	}
	r := []rune(tok)[0]
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$'
}

// newTypeText returns the canonical form of typeName, or old itself when
// the two differ only in blanks.
func newTypeText(old, typeName string) string {
	if old != "" && compactType(old) == compactType(typeName) {
		return old
	}
	return formatType(typeName)
}

// ExceptionKind tells whether a thrown type is kept, added or deleted.
type ExceptionKind int

const (
	ExceptionOld ExceptionKind = iota
	ExceptionAdded
	ExceptionDeleted
)

func (k ExceptionKind) String() string {
	switch k {
	case ExceptionOld:
		return "old"
	case ExceptionAdded:
		return "added"
	case ExceptionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ExceptionInfo is one thrown-type slot in the union of old and new lists.
type ExceptionInfo struct {
	TypeName      string // as written
	QualifiedName string // empty when unresolved
	Binding       *types.TypeDecl
	Kind          ExceptionKind
}

// Identity returns the qualified name when known, otherwise the simple name.
func (e *ExceptionInfo) Identity() string {
	if e.QualifiedName != "" {
		return e.QualifiedName
	}
	return types.SimpleTypeName(e.TypeName)
}

// SimpleName returns the unqualified exception type name.
func (e *ExceptionInfo) SimpleName() string {
	if e.QualifiedName != "" {
		return types.SimpleTypeName(e.QualifiedName)
	}
	return types.SimpleTypeName(e.TypeName)
}

// Matches reports whether a thrown type as written in source refers to the
// same exception.
func (e *ExceptionInfo) Matches(written string) bool {
	written = types.Erasure(written)
	if e.QualifiedName != "" && written == e.QualifiedName {
		return true
	}
	return types.SimpleTypeName(written) == e.SimpleName()
}

// ReturnTypeInfo tracks the return type change.
type ReturnTypeInfo struct {
	OldTypeName string
	NewTypeName string
	NewBinding  *types.TypeDecl
}

func (r *ReturnTypeInfo) IsChanged() bool {
	return compactType(r.OldTypeName) != compactType(r.NewTypeName)
}

func (r *ReturnTypeInfo) IsVoid() bool { return strings.TrimSpace(r.NewTypeName) == "void" }

func (r *ReturnTypeInfo) WasVoid() bool { return strings.TrimSpace(r.OldTypeName) == "void" }

// SignatureModel is the requested new signature of a method, built from its
// declaration and then edited by the caller. The pipeline never mutates it.
type SignatureModel struct {
	Method        *types.MethodDecl
	Handle        string
	OldName       string
	NewName       string
	OldVisibility types.Visibility
	NewVisibility types.Visibility
	Return        *ReturnTypeInfo
	Params        []*ParameterInfo
	Exceptions    []*ExceptionInfo
	Delegate      bool
	Deprecate     bool
}

// NewSignatureModel builds the initial model of m: every parameter and
// exception is old and unchanged.
func NewSignatureModel(m *types.MethodDecl) *SignatureModel {
	model := &SignatureModel{
		Method:        m,
		Handle:        m.Handle(),
		OldName:       m.Name,
		NewName:       m.Name,
		OldVisibility: m.Visibility(),
		NewVisibility: m.Visibility(),
		Return:        &ReturnTypeInfo{OldTypeName: m.ReturnType, NewTypeName: m.ReturnType},
	}
	for i, p := range m.Params {
		model.Params = append(model.Params, newOldParameter(i, p))
	}
	for _, ex := range m.Exceptions {
		model.Exceptions = append(model.Exceptions, &ExceptionInfo{TypeName: ex, Kind: ExceptionOld})
	}
	return model
}

// Clone returns a deep copy of the model; the processor works on a clone so
// the caller's model stays untouched.
func (s *SignatureModel) Clone() *SignatureModel {
	c := *s
	ret := *s.Return
	c.Return = &ret
	c.Params = make([]*ParameterInfo, len(s.Params))
	for i, p := range s.Params {
		cp := *p
		c.Params[i] = &cp
	}
	c.Exceptions = make([]*ExceptionInfo, len(s.Exceptions))
	for i, e := range s.Exceptions {
		ce := *e
		c.Exceptions[i] = &ce
	}
	return &c
}

func (s *SignatureModel) SetNewName(name string) { s.NewName = strings.TrimSpace(name) }

func (s *SignatureModel) SetVisibility(v types.Visibility) { s.NewVisibility = v }

func (s *SignatureModel) SetReturnType(typeName string) {
	s.Return.NewTypeName = newTypeText(s.Return.OldTypeName, typeName)
}

func (s *SignatureModel) SetDelegate(delegate, deprecate bool) {
	s.Delegate = delegate
	s.Deprecate = deprecate
}

// AddParameter appends a new parameter to the new signature.
func (s *SignatureModel) AddParameter(typeName, name, defaultValue string) *ParameterInfo {
	p := NewAddedParameter(formatType(typeName), strings.TrimSpace(name), defaultValue)
	s.Params = append(s.Params, p)
	return p
}

// InsertParameter adds a new parameter at position pos of the parameter
// list.
func (s *SignatureModel) InsertParameter(pos int, typeName, name, defaultValue string) (*ParameterInfo, error) {
	if pos < 0 || pos > len(s.Params) {
		return nil, invalidOperation("parameter position %d out of range", pos)
	}
	p := NewAddedParameter(formatType(typeName), strings.TrimSpace(name), defaultValue)
	s.Params = append(s.Params[:pos], append([]*ParameterInfo{p}, s.Params[pos:]...)...)
	return p, nil
}

// DeleteParameter marks the parameter currently named name as deleted.
// Added parameters are dropped from the list instead.
func (s *SignatureModel) DeleteParameter(name string) error {
	for i, p := range s.Params {
		if p.Deleted || p.NewName != name {
			continue
		}
		if p.IsAdded() {
			s.Params = append(s.Params[:i], s.Params[i+1:]...)
			return nil
		}
		p.Deleted = true
		return nil
	}
	return invalidOperation("no parameter named %s", name)
}

// MoveParameter moves the info at index from to index to.
func (s *SignatureModel) MoveParameter(from, to int) error {
	if from < 0 || from >= len(s.Params) || to < 0 || to >= len(s.Params) {
		return invalidOperation("cannot move parameter %d to %d", from, to)
	}
	p := s.Params[from]
	rest := append(append([]*ParameterInfo{}, s.Params[:from]...), s.Params[from+1:]...)
	s.Params = append(rest[:to], append([]*ParameterInfo{p}, rest[to:]...)...)
	return nil
}

func (s *SignatureModel) RenameParameter(oldName, newName string) error {
	p := s.parameterNamed(oldName)
	if p == nil {
		return invalidOperation("no parameter named %s", oldName)
	}
	p.NewName = strings.TrimSpace(newName)
	return nil
}

func (s *SignatureModel) RetypeParameter(name, newType string) error {
	p := s.parameterNamed(name)
	if p == nil {
		return invalidOperation("no parameter named %s", name)
	}
	p.NewTypeName = newTypeText(p.OldTypeName, newType)
	return nil
}

func (s *SignatureModel) parameterNamed(name string) *ParameterInfo {
	for _, p := range s.Params {
		if !p.Deleted && p.NewName == name {
			return p
		}
	}
	return nil
}

// AddException adds a thrown type. Re-adding a deleted old exception turns
// it back into an old one.
func (s *SignatureModel) AddException(typeName string) {
	typeName = strings.TrimSpace(typeName)
	for _, e := range s.Exceptions {
		if e.Matches(typeName) {
			if e.Kind == ExceptionDeleted {
				e.Kind = ExceptionOld
			}
			return
		}
	}
	info := &ExceptionInfo{TypeName: types.SimpleTypeName(typeName), Kind: ExceptionAdded}
	if strings.Contains(types.Erasure(typeName), ".") {
		info.QualifiedName = types.Erasure(typeName)
	}
	s.Exceptions = append(s.Exceptions, info)
}

// DeleteException removes a thrown type.
func (s *SignatureModel) DeleteException(typeName string) error {
	for i, e := range s.Exceptions {
		if !e.Matches(typeName) {
			continue
		}
		if e.Kind == ExceptionAdded {
			s.Exceptions = append(s.Exceptions[:i], s.Exceptions[i+1:]...)
		} else {
			e.Kind = ExceptionDeleted
		}
		return nil
	}
	return invalidOperation("method does not throw %s", typeName)
}

// IsOrderSame reports whether the parameter list keeps every old parameter
// at its position and adds or deletes nothing.
func (s *SignatureModel) IsOrderSame() bool {
	for i, p := range s.Params {
		if p.OldIndex != i || p.Deleted {
			return false
		}
	}
	return true
}

func (s *SignatureModel) IsNameSame() bool { return s.NewName == s.OldName }

func (s *SignatureModel) IsVisibilitySame() bool { return s.NewVisibility == s.OldVisibility }

// AreNamesSame reports whether no kept parameter is renamed.
func (s *SignatureModel) AreNamesSame() bool {
	for _, p := range s.Params {
		if p.IsAdded() || p.IsRenamed() {
			return false
		}
	}
	return true
}

func (s *SignatureModel) AreParameterTypesSame() bool {
	for _, p := range s.Params {
		if p.IsAdded() || p.Deleted || p.IsTypeNameChanged() {
			return false
		}
	}
	return true
}

func (s *SignatureModel) AreExceptionsSame() bool {
	for _, e := range s.Exceptions {
		if e.Kind != ExceptionOld {
			return false
		}
	}
	return true
}

// IsSameAsInitial reports a no-op request.
func (s *SignatureModel) IsSameAsInitial() bool {
	if !s.IsVisibilitySame() || !s.IsNameSame() || s.Return.IsChanged() || !s.AreExceptionsSame() {
		return false
	}
	if len(s.Method.Params) == 0 && len(s.Params) == 0 {
		return true
	}
	return s.AreNamesSame() && s.IsOrderSame() && s.AreParameterTypesSame()
}

// ClashesWithInitial reports whether the old and new method could not
// coexist, which rules out keeping a delegate.
func (s *SignatureModel) ClashesWithInitial() bool {
	if !s.IsNameSame() {
		return false
	}
	kept := s.NewParameters()
	if len(s.Method.Params) != len(kept) {
		return false
	}
	if len(kept) == 0 {
		return true
	}
	oldTypes := s.Method.ParamTypes()
	for i, p := range kept {
		newType := types.Erasure(p.NewTypeName)
		if types.SimpleTypeName(newType) != types.SimpleTypeName(oldTypes[i]) {
			return false
		}
	}
	return true
}

// OldVarargIndex returns the index of the old vararg parameter, or -1.
func (s *SignatureModel) OldVarargIndex() int {
	return s.Method.VarargIndex()
}

// NewParameters returns the kept and added parameters in new order.
func (s *SignatureModel) NewParameters() []*ParameterInfo {
	var out []*ParameterInfo
	for _, p := range s.Params {
		if !p.Deleted {
			out = append(out, p)
		}
	}
	return out
}

func (s *SignatureModel) AddedParameters() []*ParameterInfo {
	var out []*ParameterInfo
	for _, p := range s.Params {
		if p.IsAdded() {
			out = append(out, p)
		}
	}
	return out
}

func (s *SignatureModel) DeletedParameters() []*ParameterInfo {
	var out []*ParameterInfo
	for _, p := range s.Params {
		if p.Deleted {
			out = append(out, p)
		}
	}
	return out
}

// ParameterNamesChanged returns the new names that no old parameter had.
func (s *SignatureModel) ParameterNamesChanged() []string {
	old := make(map[string]bool)
	for _, p := range s.Params {
		if !p.IsAdded() {
			old[p.OldName] = true
		}
	}
	var out []string
	for _, p := range s.NewParameters() {
		if !old[p.NewName] {
			out = append(out, p.NewName)
		}
	}
	return out
}

// NewSignature renders the method head after the change, for messages.
func (s *SignatureModel) NewSignature() string {
	parts := make([]string, 0, len(s.Params))
	for _, p := range s.NewParameters() {
		parts = append(parts, p.NewTypeName+" "+p.NewName)
	}
	return s.NewName + "(" + strings.Join(parts, ", ") + ")"
}

func invalidOperation(format string, args ...any) error {
	return &types.RefactorError{Type: types.InvalidOperation, Message: fmt.Sprintf(format, args...)}
}
