package refactor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/rewrite"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// Status codes of the parameter object checks.
const (
	CodeInvalidClassName = "INVALID_CLASS_NAME"
	CodeTypeExists       = "TYPE_EXISTS"
	CodeNoParameters     = "NO_PARAMETERS"
	CodeUnknownParameter = "UNKNOWN_PARAMETER"
)

const defaultParameterObjectName = "parameterObject"

// ParameterObjectRequest selects the parameters that move into a new class.
type ParameterObjectRequest struct {
	Method        string   // handle of the method
	Parameters    []string // parameters to wrap; empty wraps all
	ClassName     string   // defaults to <Method>Parameter
	ParameterName string   // defaults to parameterObject
	TopLevel      bool
	Getters       bool
	Setters       bool
}

type objectField struct {
	oldIndex int
	name     string
	typeName string
	varargs  bool
}

// parameterObject carries what the update strategies need to replace the
// wrapped parameters: the class, its fields, and the added parameter.
type parameterObject struct {
	req        ParameterObjectRequest
	method     *types.MethodDecl
	fields     []objectField
	typeName   string
	paramIndex int
	param      *ParameterInfo
	hierarchy  *analysis.TypeHierarchy
}

// newParameterObject validates req against m and builds the model that
// deletes the wrapped parameters and adds the object parameter in place of
// the first one.
func newParameterObject(ws *types.Workspace, hierarchy *analysis.TypeHierarchy, m *types.MethodDecl, req ParameterObjectRequest) (*parameterObject, *SignatureModel, *types.Status) {
	status := types.NewStatus()
	if req.ClassName == "" {
		name := m.Name
		if m.Constructor {
			name = m.Declaring.Name
		}
		req.ClassName = capitalize(name) + "Parameter"
	}
	if req.ParameterName == "" {
		req.ParameterName = defaultParameterObjectName
	}
	if !analysis.IsValidIdentifier(req.ClassName) {
		status.AddEntry(types.SeverityFatal, CodeInvalidClassName, fmt.Sprintf("'%s' is not a valid class name", req.ClassName), nil)
		return nil, nil, status
	}
	if exists := parameterObjectClash(ws, m, req); exists != "" {
		status.AddEntry(types.SeverityFatal, CodeTypeExists, fmt.Sprintf("A type named '%s' already exists", exists), nil)
		return nil, nil, status
	}

	selected := make(map[string]bool)
	for _, name := range req.Parameters {
		found := false
		for _, p := range m.Params {
			found = found || p.Name == name
		}
		if !found {
			status.AddEntry(types.SeverityFatal, CodeUnknownParameter,
				fmt.Sprintf("Method %s has no parameter '%s'", m.Signature(), name), nil)
			return nil, nil, status
		}
		selected[name] = true
	}

	po := &parameterObject{req: req, method: m, hierarchy: hierarchy, paramIndex: -1}
	model := NewSignatureModel(m)
	for i, p := range model.Params {
		if len(selected) > 0 && !selected[p.OldName] {
			continue
		}
		p.Deleted = true
		p.Inlined = true
		pd := m.Params[p.OldIndex]
		typeName := pd.Type
		if pd.Varargs {
			typeName += "[]"
		}
		po.fields = append(po.fields, objectField{oldIndex: p.OldIndex, name: pd.Name, typeName: typeName, varargs: pd.Varargs})
		if po.paramIndex < 0 {
			po.paramIndex = i
		}
	}
	if len(po.fields) == 0 {
		status.AddEntry(types.SeverityFatal, CodeNoParameters, "Select at least one parameter to wrap", nil)
		return nil, nil, status
	}

	po.typeName = po.classReference()
	// call sites compute the argument; the placeholder only satisfies the checks
	param := NewAddedParameter(po.typeName, req.ParameterName, "null")
	model.Params = append(model.Params[:po.paramIndex], append([]*ParameterInfo{param}, model.Params[po.paramIndex:]...)...)
	po.param = param
	return po, model, status
}

// bind returns a copy of po that refers to the added parameter of model,
// which is a clone of the model po was built with.
func (po *parameterObject) bind(model *SignatureModel) *parameterObject {
	bound := *po
	bound.param = model.Params[po.paramIndex]
	return &bound
}

// classReference is the type name written for the new class: qualified by
// package for a top level class, by the enclosing types for a nested one.
func (po *parameterObject) classReference() string {
	if !po.req.TopLevel {
		var chain []string
		for t := po.method.Declaring; t != nil; t = t.Outer {
			chain = append([]string{t.Name}, chain...)
		}
		return strings.Join(chain, ".") + "." + po.req.ClassName
	}
	if pkg := po.method.File().Package; pkg != "" {
		return pkg + "." + po.req.ClassName
	}
	return po.req.ClassName
}

func parameterObjectClash(ws *types.Workspace, m *types.MethodDecl, req ParameterObjectRequest) string {
	if req.TopLevel {
		qualified := req.ClassName
		if pkg := m.File().Package; pkg != "" {
			qualified = pkg + "." + req.ClassName
		}
		if _, ok := ws.Types[qualified]; ok {
			return qualified
		}
		if _, ok := ws.Files[classFilePath(m, req.ClassName)]; ok {
			return qualified
		}
		return ""
	}
	for _, t := range m.File().Types {
		if t.Outer == m.Declaring && t.Name == req.ClassName {
			return t.QualifiedName
		}
	}
	return ""
}

func classFilePath(m *types.MethodDecl, className string) string {
	return filepath.Join(filepath.Dir(m.File().Path), className+".java")
}

// argument builds the object argument of a call: the object parameter
// itself for a recursive call passing the wrapped parameters unchanged,
// a new instance otherwise. Copied arguments keep their own edits.
func (po *parameterObject) argument(uc *updateContext, fr *fileRewrite, occ Occurrence, elems []*sitter.Node, recursive *sitter.Node) rewrite.ListItem {
	file := occ.File
	if recursive != nil && !analysis.DeclaresLocal(file, recursive, po.param.NewName) && po.passesOwnParameters(file, occ, elems) {
		return rewrite.New(po.param.NewName)
	}
	segs := []rewrite.Segment{rewrite.Lit("new " + fr.typeName(po.typeName) + "(")}
	for i, f := range po.fields {
		if i > 0 {
			segs = append(segs, rewrite.Lit(", "))
		}
		switch {
		case f.varargs:
			var tail []*sitter.Node
			if f.oldIndex < len(elems) {
				tail = elems[f.oldIndex:]
			}
			segs = append(segs, po.varargArgument(fr, file, f, tail)...)
		case f.oldIndex < len(elems):
			segs = append(segs, rewrite.CopyNode(elems[f.oldIndex]))
		default:
			segs = append(segs, rewrite.Lit("null"))
		}
	}
	segs = append(segs, rewrite.Lit(")"))
	return rewrite.Compose(segs...)
}

func (po *parameterObject) passesOwnParameters(file *types.File, occ Occurrence, elems []*sitter.Node) bool {
	enclosing := analysis.EnclosingMethod(file, occ.Node)
	if enclosing == nil {
		return false
	}
	for _, f := range po.fields {
		if f.oldIndex >= len(elems) || f.oldIndex >= len(enclosing.Params) {
			return false
		}
		if f.varargs && len(elems) != f.oldIndex+1 {
			return false
		}
		if file.Text(elems[f.oldIndex]) != enclosing.Params[f.oldIndex].Name {
			return false
		}
	}
	return true
}

// varargArgument wraps the vararg tail of a call into an array creation
// unless the tail is a single array.
func (po *parameterObject) varargArgument(fr *fileRewrite, file *types.File, f objectField, tail []*sitter.Node) []rewrite.Segment {
	if len(tail) == 1 && po.isArray(file, tail[0]) {
		return []rewrite.Segment{rewrite.CopyNode(tail[0])}
	}
	segs := []rewrite.Segment{rewrite.Lit("new " + fr.typeName(f.typeName) + "{")}
	for i, n := range tail {
		if i > 0 {
			segs = append(segs, rewrite.Lit(", "))
		}
		segs = append(segs, rewrite.CopyNode(n))
	}
	return append(segs, rewrite.Lit("}"))
}

func (po *parameterObject) isArray(file *types.File, n *sitter.Node) bool {
	switch n.Type() {
	case "array_creation_expression", "array_initializer", "null_literal":
		return true
	case "identifier":
		typeName, _, ok := po.hierarchy.DeclaredTypeOf(file, n, file.Text(n))
		return ok && (strings.HasSuffix(typeName, "]") || strings.HasSuffix(typeName, "..."))
	}
	return false
}

// rewriteBody replaces reads of wrapped parameters in the body of a ripple
// member with reads from the object. A parameter that is assigned becomes a
// local initialized from the object instead.
func (po *parameterObject) rewriteBody(fr *fileRewrite, m *types.MethodDecl, decl *sitter.Node) {
	body := decl.ChildByFieldName("body")
	if body == nil {
		return
	}
	file := fr.script.File()
	var locals []string
	for _, f := range po.fields {
		if f.oldIndex >= len(m.Params) {
			continue
		}
		name := m.Params[f.oldIndex].Name
		refs := analysis.ParameterReferences(file, decl, name)
		if len(refs) == 0 {
			continue
		}
		if anyAssigned(refs) {
			locals = append(locals, fmt.Sprintf("%s %s = %s;", fr.typeName(f.typeName), name, po.access(f)))
			continue
		}
		for _, ref := range refs {
			fr.script.ReplaceNode(ref, po.access(f), "Replace parameter "+name)
		}
	}
	if len(locals) == 0 {
		return
	}
	indent := analysis.LineIndent(file, int(decl.StartByte()))
	indent += indentStep(indent)
	at := int(body.StartByte()) + 1
	for _, stmt := range analysis.NamedChildren(body) {
		if stmt.Type() == "explicit_constructor_invocation" {
			at = int(stmt.EndByte())
		}
		break
	}
	var b strings.Builder
	for _, l := range locals {
		b.WriteString("\n" + indent + l)
	}
	fr.script.Insert(at, b.String(), "Initialize parameters from "+po.param.NewName)
}

func anyAssigned(refs []*sitter.Node) bool {
	for _, ref := range refs {
		parent := ref.Parent()
		if parent == nil {
			continue
		}
		switch parent.Type() {
		case "assignment_expression":
			if left := parent.ChildByFieldName("left"); left != nil && analysis.SameNode(left, ref) {
				return true
			}
		case "update_expression":
			return true
		}
	}
	return false
}

func (po *parameterObject) access(f objectField) string {
	if po.req.Getters {
		return po.param.NewName + "." + getterName(f) + "()"
	}
	return po.param.NewName + "." + f.name
}

func getterName(f objectField) string {
	if f.typeName == "boolean" {
		return "is" + capitalize(f.name)
	}
	return "get" + capitalize(f.name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// members renders fields, constructor and accessors of the class.
func (po *parameterObject) members(indent, step string) string {
	var b strings.Builder
	fieldMods := "public "
	if po.req.Getters {
		fieldMods = "private "
	}
	if !po.req.Setters {
		fieldMods += "final "
	}
	for _, f := range po.fields {
		fmt.Fprintf(&b, "%s%s%s %s;\n", indent, fieldMods, f.typeName, f.name)
	}

	var params []string
	for _, f := range po.fields {
		params = append(params, f.typeName+" "+f.name)
	}
	fmt.Fprintf(&b, "\n%spublic %s(%s) {\n", indent, po.req.ClassName, strings.Join(params, ", "))
	for _, f := range po.fields {
		fmt.Fprintf(&b, "%s%sthis.%s = %s;\n", indent, step, f.name, f.name)
	}
	fmt.Fprintf(&b, "%s}\n", indent)

	for _, f := range po.fields {
		if po.req.Getters {
			fmt.Fprintf(&b, "\n%spublic %s %s() {\n%s%sreturn %s;\n%s}\n", indent, f.typeName, getterName(f), indent, step, f.name, indent)
		}
		if po.req.Setters {
			fmt.Fprintf(&b, "\n%spublic void set%s(%s %s) {\n%s%sthis.%s = %s;\n%s}\n",
				indent, capitalize(f.name), f.typeName, f.name, indent, step, f.name, f.name, indent)
		}
	}
	return b.String()
}

// emit adds the class to the run: a new file next to the declaring file, or
// a nested class at the end of the declaring type.
func (po *parameterObject) emit(rewrites *rewriteSet) {
	decl := po.method.File()
	if po.req.TopLevel {
		step := "    "
		var b strings.Builder
		if decl.Package != "" {
			fmt.Fprintf(&b, "package %s;\n\n", decl.Package)
		}
		if imports := po.imports(); len(imports) > 0 {
			for _, imp := range imports {
				fmt.Fprintf(&b, "import %s;\n", imp)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "public class %s {\n", po.req.ClassName)
		b.WriteString(po.members(step, step))
		b.WriteString("}\n")
		rewrites.create(classFilePath(po.method, po.req.ClassName), po.req.ClassName, b.String())
		return
	}

	owner := po.method.Declaring
	body := owner.Body()
	if body == nil {
		return
	}
	fr := rewrites.forFile(decl)
	outer := analysis.LineIndent(decl, int(owner.Node.StartByte()))
	step := indentStep(outer)
	indent := outer + step
	text := fmt.Sprintf("\n%spublic static class %s {\n%s%s}\n", indent, po.req.ClassName, po.members(indent+step, step), indent)
	fr.script.Insert(int(body.EndByte())-1, text, "Add class "+po.req.ClassName)
	rewrites.createdTypes = append(rewrites.createdTypes, po.req.ClassName)
}

// imports returns the imports of the declaring file the field types need.
func (po *parameterObject) imports() []string {
	used := make(map[string]bool)
	for _, f := range po.fields {
		for _, word := range strings.FieldsFunc(f.typeName, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$'
		}) {
			used[word] = true
		}
	}
	var out []string
	for _, imp := range po.method.File().Imports {
		switch {
		case imp.Static:
		case imp.OnDemand:
			out = append(out, imp.Name+".*")
		case used[imp.SimpleName()]:
			out = append(out, imp.Name)
		}
	}
	return out
}

// IntroduceParameterObject replaces parameters of a method with one
// parameter of a new class holding them.
func (p *ChangeSignatureProcessor) IntroduceParameterObject(ctx context.Context, req ParameterObjectRequest) (*ChangeSet, *types.Status, types.Outcome, error) {
	m, status := p.initial(ctx, req.Method)
	if status.HasFatal() {
		return nil, status, types.OutcomeOf(ctx, status), nil
	}
	po, model, st := newParameterObject(p.ws, p.hierarchy, m, req)
	status.Merge(st)
	if status.HasFatal() {
		return nil, status, types.OutcomeOf(ctx, status), nil
	}
	cs, st, outcome, err := p.run(ctx, model, po, types.IntroduceParameterObjectOperation)
	status.Merge(st)
	if cs != nil {
		cs.Name = fmt.Sprintf("Introduce parameter object for '%s'", m.Name)
		cs.Status = status
	}
	return cs, status, outcome, err
}

// ParameterObjectOperation runs Introduce Parameter Object as an Operation.
type ParameterObjectOperation struct {
	Request ParameterObjectRequest
	Options ProcessorOptions
}

func (op *ParameterObjectOperation) Type() types.OperationType {
	return types.IntroduceParameterObjectOperation
}

func (op *ParameterObjectOperation) Validate(ctx context.Context, ws *types.Workspace) *types.Status {
	p := NewChangeSignatureProcessor(ws, op.Options)
	m, status := p.initial(ctx, op.Request.Method)
	if status.HasFatal() {
		return status
	}
	_, _, st := newParameterObject(ws, p.hierarchy, m, op.Request)
	status.Merge(st)
	return status
}

func (op *ParameterObjectOperation) Execute(ctx context.Context, ws *types.Workspace) (*types.RefactoringPlan, types.Outcome, error) {
	cs, status, outcome, err := NewChangeSignatureProcessor(ws, op.Options).IntroduceParameterObject(ctx, op.Request)
	return planOf(cs, status), outcome, err
}

func (op *ParameterObjectOperation) Description() string {
	return fmt.Sprintf("Introduce parameter object for %s", op.Request.Method)
}
