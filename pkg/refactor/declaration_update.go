package refactor

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/rewrite"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// updateDeclaration rewrites one ripple member declaration: parameters,
// name, return type, visibility, parameter order, thrown types, Javadoc
// tags, and finally the optional delegate.
func (e *OccurrenceUpdateEngine) updateDeclaration(uc *updateContext, fr *fileRewrite, occ Occurrence) *types.Status {
	status := types.NewStatus()
	m := occ.Method
	decl := occ.Node
	model := uc.model

	e.changeParameters(uc, fr, m, decl)
	if uc.paramObject != nil {
		uc.paramObject.rewriteBody(fr, m, decl)
	}
	if !m.Constructor {
		if !model.IsNameSame() {
			fr.script.ReplaceNode(decl.ChildByFieldName("name"), model.NewName, "Rename method")
		}
		if model.Return.IsChanged() {
			e.changeReturnType(uc, fr, decl)
		}
	}
	if needsVisibilityUpdate(model, m) {
		changeVisibility(fr.script, decl, model.NewVisibility)
	}
	if !model.IsOrderSame() {
		e.reshuffleParameters(uc, fr, m, decl)
	}
	if !model.AreExceptionsSame() {
		e.changeExceptions(uc, fr, decl)
	}
	e.changeDocTags(uc, fr, m, decl)
	status.Merge(checkDeletedParametersUsed(uc, occ.File, m, decl))
	if model.Delegate && m.HasBody {
		addDelegate(uc, fr, m, decl)
	}
	return status
}

// changeParameters renames and retypes the kept parameters of m. A ripple
// member whose parameter has a different name keeps its own name.
func (e *OccurrenceUpdateEngine) changeParameters(uc *updateContext, fr *fileRewrite, m *types.MethodDecl, decl *sitter.Node) {
	file := fr.script.File()
	for _, p := range uc.model.Params {
		if p.IsAdded() || p.Deleted || p.OldIndex >= len(m.Params) {
			continue
		}
		pd := m.Params[p.OldIndex]
		if p.IsRenamed() && pd.Name == p.OldName {
			fr.script.ReplaceNode(analysis.ParamNameNode(pd.Node), p.NewName, "Rename parameter "+p.OldName)
			for _, ref := range analysis.ParameterReferences(file, decl, pd.Name) {
				fr.script.ReplaceNode(ref, p.NewName, "Rename parameter "+p.OldName)
			}
		}
		if p.IsTypeNameChanged() {
			retypeParameter(fr, pd, p)
		}
	}
}

// retypeParameter replaces the declared type of one parameter. The vararg
// ellipsis and C-style array dimensions after the name are part of the
// replaced type.
func retypeParameter(fr *fileRewrite, pd *types.ParamDecl, p *ParameterInfo) {
	s := fr.script
	label := "Change type of parameter " + p.NewName
	newType := fr.typeName(p.NewTypeName)
	typeNode := analysis.ParamTypeNode(pd.Node)
	if typeNode == nil {
		return
	}
	end := int(typeNode.EndByte())
	if pd.Varargs {
		if dots := analysis.ChildByType(pd.Node, "..."); dots != nil {
			end = int(dots.EndByte())
		}
	}
	s.Replace(int(typeNode.StartByte()), end, newType, label)
	if dims := pd.Node.ChildByFieldName("dimensions"); dims != nil {
		s.RemoveNode(dims, label)
	}
}

func (e *OccurrenceUpdateEngine) changeReturnType(uc *updateContext, fr *fileRewrite, decl *sitter.Node) {
	typeNode := decl.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	fr.script.ReplaceNode(typeNode, fr.typeName(uc.model.Return.NewTypeName), "Change return type")
	if dims := decl.ChildByFieldName("dimensions"); dims != nil {
		fr.script.RemoveNode(dims, "Change return type")
	}
}

// needsVisibilityUpdate reports whether the declaration of m moves in the
// requested direction: a widening change applies to members that are
// narrower than the new visibility, a narrowing change to members that are
// wider.
func needsVisibilityUpdate(model *SignatureModel, m *types.MethodDecl) bool {
	if model.IsVisibilitySame() {
		return false
	}
	current := m.Visibility()
	if model.NewVisibility.Rank() > model.OldVisibility.Rank() {
		return model.NewVisibility.Rank() > current.Rank()
	}
	return current.Rank() > model.NewVisibility.Rank()
}

func changeVisibility(s *rewrite.Script, decl *sitter.Node, v types.Visibility) {
	const label = "Change visibility"
	file := s.File()
	mods := analysis.ChildByType(decl, "modifiers")
	var keyword, firstKeyword *sitter.Node
	for i := 0; mods != nil && i < int(mods.ChildCount()); i++ {
		c := mods.Child(i)
		switch c.Type() {
		case "public", "protected", "private":
			keyword = c
		}
		if firstKeyword == nil && !c.IsNamed() {
			firstKeyword = c
		}
	}

	switch {
	case keyword != nil && v == types.VisibilityPackage:
		end := int(keyword.EndByte())
		for end < len(file.Content) && (file.Content[end] == ' ' || file.Content[end] == '\t') {
			end++
		}
		s.Remove(int(keyword.StartByte()), end, label)
	case keyword != nil:
		s.ReplaceNode(keyword, v.Keyword(), label)
	case v == types.VisibilityPackage:
	case firstKeyword != nil:
		s.Insert(int(firstKeyword.StartByte()), v.Keyword()+" ", label)
	default:
		anchor := decl.ChildByFieldName("type_parameters")
		if anchor == nil {
			anchor = analysis.ChildByType(decl, "type_parameters")
		}
		if anchor == nil {
			anchor = decl.ChildByFieldName("type")
		}
		if anchor == nil {
			anchor = decl.ChildByFieldName("name")
		}
		s.Insert(int(anchor.StartByte()), v.Keyword()+" ", label)
	}
}

func (e *OccurrenceUpdateEngine) reshuffleParameters(uc *updateContext, fr *fileRewrite, m *types.MethodDecl, decl *sitter.Node) {
	elems := make([]*sitter.Node, len(m.Params))
	for i, pd := range m.Params {
		elems[i] = pd.Node
	}
	var items []rewrite.ListItem
	for _, sl := range reshuffle(uc.model.Params, len(elems), m.VarargIndex()) {
		if sl.Old >= 0 {
			items = append(items, rewrite.Keep(elems[sl.Old]))
			continue
		}
		p := sl.Param
		items = append(items, rewrite.New(fr.typeName(p.NewTypeName)+" "+p.NewName))
	}
	fr.script.RewriteList(decl.ChildByFieldName("parameters"), elems, items, "Reorder parameters")
}

// changeExceptions removes deleted thrown types and appends added ones.
func (e *OccurrenceUpdateEngine) changeExceptions(uc *updateContext, fr *fileRewrite, decl *sitter.Node) {
	const label = "Change thrown exceptions"
	s := fr.script
	file := s.File()
	throws := analysis.ThrowsNode(decl)
	elems := analysis.NamedChildren(throws)

	var items []rewrite.ListItem
	var added []string
	for _, el := range elems {
		if !matchesKind(uc.model.Exceptions, file.Text(el), ExceptionDeleted) {
			items = append(items, rewrite.Keep(el))
		}
	}
	for _, ex := range uc.model.Exceptions {
		if ex.Kind != ExceptionAdded || thrownAlready(file, elems, ex) {
			continue
		}
		name := ex.TypeName
		if ex.QualifiedName != "" {
			name = fr.imports.Add(ex.QualifiedName)
		}
		items = append(items, rewrite.New(name))
		added = append(added, name)
	}

	switch {
	case throws == nil && len(added) > 0:
		anchor := decl.ChildByFieldName("dimensions")
		if anchor == nil {
			anchor = decl.ChildByFieldName("parameters")
		}
		s.Insert(int(anchor.EndByte()), " throws "+strings.Join(added, ", "), label)
	case throws != nil && len(items) == 0:
		start := int(throws.StartByte())
		if prev := throws.PrevSibling(); prev != nil {
			start = int(prev.EndByte())
		}
		s.Remove(start, int(throws.EndByte()), label)
	case throws != nil:
		s.RewriteList(throws, elems, items, label)
	}
}

func matchesKind(infos []*ExceptionInfo, written string, kind ExceptionKind) bool {
	for _, ex := range infos {
		if ex.Kind == kind && ex.Matches(written) {
			return true
		}
	}
	return false
}

func thrownAlready(file *types.File, elems []*sitter.Node, ex *ExceptionInfo) bool {
	for _, el := range elems {
		if ex.Matches(file.Text(el)) {
			return true
		}
	}
	return false
}

// checkDeletedParametersUsed reports deleted parameters that are still
// read in the body of m.
func checkDeletedParametersUsed(uc *updateContext, file *types.File, m *types.MethodDecl, decl *sitter.Node) *types.Status {
	status := types.NewStatus()
	for _, p := range uc.model.DeletedParameters() {
		if p.Inlined || p.OldIndex >= len(m.Params) {
			continue
		}
		name := m.Params[p.OldIndex].Name
		refs := analysis.ParameterReferences(file, decl, name)
		if len(refs) == 0 {
			continue
		}
		status.AddEntry(types.SeverityError, CodeDeletedParameterUsed,
			fmt.Sprintf("Parameter '%s' is used in method '%s' declared in type '%s'", name, m.Name, m.Declaring.QualifiedName),
			file.NodeContext(refs[0]))
	}
	return status
}

// addDelegate inserts a copy of the original declaration after it whose body
// forwards to the changed method.
func addDelegate(uc *updateContext, fr *fileRewrite, m *types.MethodDecl, decl *sitter.Node) {
	file := fr.script.File()
	body := decl.ChildByFieldName("body")
	if body == nil {
		return
	}
	model := uc.model
	indent := analysis.LineIndent(file, int(decl.StartByte()))
	step := indentStep(indent)

	var args []string
	for _, sl := range reshuffle(model.Params, len(m.Params), m.VarargIndex()) {
		if sl.Old >= 0 {
			args = append(args, m.Params[sl.Old].Name)
			continue
		}
		if v := strings.TrimSpace(sl.Param.DefaultValue); v != "" {
			args = append(args, v)
		}
	}
	call := model.NewName + "(" + strings.Join(args, ", ") + ")"
	switch {
	case m.Constructor:
		call = "this(" + strings.Join(args, ", ") + ")"
	case strings.TrimSpace(m.ReturnType) != "void":
		call = "return " + call
	}

	var b strings.Builder
	b.WriteString("\n\n")
	if model.Deprecate {
		fmt.Fprintf(&b, "%s/**\n%s * @deprecated Use {@link #%s} instead\n%s */\n", indent, indent, delegateLinkTarget(model), indent)
		if !strings.Contains(file.Slice(int(decl.StartByte()), int(body.StartByte())), "@Deprecated") {
			b.WriteString(indent + "@Deprecated\n")
		}
	}
	b.WriteString(indent)
	b.WriteString(file.Slice(int(decl.StartByte()), int(body.StartByte())))
	fmt.Fprintf(&b, "{\n%s%s%s;\n%s}", indent, step, call, indent)
	fr.script.Insert(int(decl.EndByte()), b.String(), "Add delegate")
}

func delegateLinkTarget(model *SignatureModel) string {
	name := model.NewName
	if model.Method.Constructor {
		name = model.Method.Declaring.Name
	}
	var parts []string
	for _, p := range model.NewParameters() {
		parts = append(parts, types.Erasure(p.NewTypeName))
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}
