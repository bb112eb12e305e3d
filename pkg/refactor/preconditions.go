package refactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// Status codes attached to checker and engine entries.
const (
	CodeMethodNotFound         = "METHOD_NOT_FOUND"
	CodeReadOnly               = "READ_ONLY"
	CodeLocalType              = "LOCAL_TYPE"
	CodeUnchanged              = "UNCHANGED"
	CodeInvalidName            = "INVALID_NAME"
	CodeNameIsTypeName         = "NAME_IS_TYPE_NAME"
	CodeInvalidParameterName   = "INVALID_PARAMETER_NAME"
	CodeInvalidDefault         = "INVALID_DEFAULT_VALUE"
	CodeDuplicateParameter     = "DUPLICATE_PARAMETER"
	CodeInvalidType            = "INVALID_TYPE"
	CodeVarargPlacement        = "VARARG_PLACEMENT"
	CodeVarargConversion       = "VARARG_CONVERSION"
	CodeTypeVariableInRipple   = "TYPE_VARIABLE_IN_RIPPLE"
	CodePrivateInRipple        = "PRIVATE_IN_RIPPLE"
	CodeInterfaceVisibility    = "INTERFACE_VISIBILITY"
	CodeNativeReorder          = "NATIVE_REORDER"
	CodeParameterNameClash     = "PARAMETER_NAME_CLASH"
	CodeDelegateClash          = "DELEGATE_CLASH"
	CodeDeclaredInInterface    = "METHOD_DECLARED_IN_INTERFACE"
	CodeOverridesMethod        = "OVERRIDES_METHOD"
	CodeBinaryReferences       = "BINARY_REFERENCES"
	CodeDeletedParameterUsed   = "DELETED_PARAMETER_USED"
	CodeUnrecognizedOccurrence = "UNRECOGNIZED_OCCURRENCE"
	CodeLambdaNotUpdated       = "LAMBDA_NOT_UPDATED"
	CodeCompileError           = "COMPILE_ERROR"
	CodeInvalidDescriptor      = "INVALID_DESCRIPTOR"
	CodeInvalidRequest         = "INVALID_REQUEST"
)

// PreconditionChecker validates a SignatureModel before any rewrite runs.
// Every check appends to a status; a stage stops at the first Fatal.
type PreconditionChecker struct {
	ws        *types.Workspace
	hierarchy analysis.HierarchyOracle
}

func NewPreconditionChecker(ws *types.Workspace, hierarchy analysis.HierarchyOracle) *PreconditionChecker {
	return &PreconditionChecker{ws: ws, hierarchy: hierarchy}
}

// CheckInitial validates the method alone.
func (c *PreconditionChecker) CheckInitial(ctx context.Context, m *types.MethodDecl) *types.Status {
	status := types.NewStatus()
	if m == nil || m.Node == nil || m.File() == nil {
		status.AddEntry(types.SeverityFatal, CodeMethodNotFound, "The method could not be found in a source file", nil)
		return status
	}
	file := m.File()
	if c.ws.IsReadOnly(file.Path) {
		status.AddEntry(types.SeverityFatal, CodeReadOnly,
			fmt.Sprintf("Method %s is declared in a read-only location and cannot be changed", m.Signature()), file.NodeContext(m.Node))
		return status
	}
	if m.Declaring.Local {
		status.AddEntry(types.SeverityFatal, CodeLocalType,
			fmt.Sprintf("Method %s is declared in a local or anonymous type", m.Signature()), file.NodeContext(m.Node))
		return status
	}
	if err := ctx.Err(); err != nil {
		return status
	}
	if file.Root() != nil && file.Root().HasError() {
		status.AddWarning(fmt.Sprintf("%s has syntax errors; the result may be incomplete", file.Path), nil)
	}
	return status
}

// CheckUnchanged rejects a request that changes nothing and a delegate that
// would clash with the changed method.
func (c *PreconditionChecker) CheckUnchanged(model *SignatureModel) *types.Status {
	status := types.NewStatus()
	if model.IsSameAsInitial() {
		status.AddEntry(types.SeverityFatal, CodeUnchanged, "Method signature and return type are unchanged", nil)
		return status
	}
	if model.Delegate && model.ClashesWithInitial() {
		status.AddEntry(types.SeverityError, CodeDelegateClash,
			"The delegate cannot be created because the old and the new method signatures are the same", nil)
	}
	return status
}

// CheckSignature validates the requested signature: method name, parameter
// names and default values, duplicate names, type syntax and vararg
// placement. It stops at the first step that produces a Fatal.
func (c *PreconditionChecker) CheckSignature(ctx context.Context, model *SignatureModel) *types.Status {
	status := types.NewStatus()
	steps := []func(context.Context, *SignatureModel, *types.Status){
		c.checkMethodName,
		c.checkParameterNamesAndValues,
		c.checkDuplicateNames,
		c.checkTypeSyntax,
		c.checkVarargPlacement,
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			return status
		}
		step(ctx, model, status)
		if status.HasFatal() {
			return status
		}
	}
	return status
}

func (c *PreconditionChecker) checkMethodName(_ context.Context, model *SignatureModel, status *types.Status) {
	if model.Method.Constructor || model.IsNameSame() {
		return
	}
	name := model.NewName
	switch {
	case name == "":
		status.AddEntry(types.SeverityFatal, CodeInvalidName, "Enter a method name", nil)
	case !analysis.IsValidIdentifier(name):
		status.AddEntry(types.SeverityFatal, CodeInvalidName, fmt.Sprintf("'%s' is not a valid Java identifier", name), nil)
	case name == model.Method.Declaring.Name:
		status.AddEntry(types.SeverityWarning, CodeNameIsTypeName,
			fmt.Sprintf("Method name '%s' is the name of the declaring type and looks like a constructor", name), nil)
	}
}

func (c *PreconditionChecker) checkParameterNamesAndValues(ctx context.Context, model *SignatureModel, status *types.Status) {
	for i, p := range model.NewParameters() {
		pos := i + 1
		if p.NewName == "" {
			status.AddEntry(types.SeverityFatal, CodeInvalidParameterName,
				fmt.Sprintf("Enter a name for parameter %d", pos), nil)
			return
		}
		if !analysis.IsValidIdentifier(p.NewName) {
			status.AddEntry(types.SeverityFatal, CodeInvalidParameterName,
				fmt.Sprintf("'%s' is not a valid parameter name (parameter %d)", p.NewName, pos), nil)
			return
		}
		if !p.IsAdded() {
			continue
		}
		value := strings.TrimSpace(p.DefaultValue)
		if p.IsNewVarargs() {
			if value != "" && !analysis.IsValidArgumentList(ctx, value) {
				status.AddEntry(types.SeverityFatal, CodeInvalidDefault,
					fmt.Sprintf("'%s' is not a valid vararg default value for parameter '%s'", value, p.NewName), nil)
				return
			}
			continue
		}
		if value == "" {
			status.AddEntry(types.SeverityFatal, CodeInvalidDefault,
				fmt.Sprintf("Enter the default value for parameter '%s'", p.NewName), nil)
			return
		}
		if !analysis.IsValidExpression(ctx, value) {
			status.AddEntry(types.SeverityFatal, CodeInvalidDefault,
				fmt.Sprintf("'%s' is not a valid expression (default value of parameter '%s')", value, p.NewName), nil)
			return
		}
	}
}

func (c *PreconditionChecker) checkDuplicateNames(_ context.Context, model *SignatureModel, status *types.Status) {
	seen := make(map[string]int)
	for _, p := range model.NewParameters() {
		seen[p.NewName]++
		if seen[p.NewName] == 2 {
			status.AddEntry(types.SeverityFatal, CodeDuplicateParameter,
				fmt.Sprintf("Duplicate parameter name: %s", p.NewName), nil)
		}
	}
}

func (c *PreconditionChecker) checkTypeSyntax(ctx context.Context, model *SignatureModel, status *types.Status) {
	for i, p := range model.NewParameters() {
		elem := p.NewElementTypeName()
		if elem == "void" {
			status.AddEntry(types.SeverityFatal, CodeInvalidType,
				fmt.Sprintf("'void' is not a valid type for parameter '%s'", p.NewName), nil)
			continue
		}
		if p.IsAdded() || p.IsTypeNameChanged() {
			if elem == "" || !analysis.IsValidType(ctx, elem) {
				status.AddEntry(types.SeverityFatal, CodeInvalidType,
					fmt.Sprintf("'%s' is not a valid type (parameter %d)", p.NewTypeName, i+1), nil)
			}
		}
	}
	if model.Return.IsChanged() && !model.Method.Constructor {
		if !analysis.IsValidReturnType(ctx, model.Return.NewTypeName) {
			status.AddEntry(types.SeverityFatal, CodeInvalidType,
				fmt.Sprintf("'%s' is not a valid return type", model.Return.NewTypeName), nil)
		}
	}
}

// checkVarargPlacement enforces a single vararg in last position and
// rejects turning the old vararg into a plain parameter.
func (c *PreconditionChecker) checkVarargPlacement(_ context.Context, model *SignatureModel, status *types.Status) {
	params := model.NewParameters()
	for i, p := range params {
		if p.OldVarargs && !p.IsNewVarargs() {
			status.AddEntry(types.SeverityFatal, CodeVarargConversion,
				fmt.Sprintf("Cannot convert vararg parameter '%s' into a parameter of type '%s'", p.OldName, p.NewTypeName), nil)
			return
		}
		if p.IsNewVarargs() && i != len(params)-1 {
			status.AddEntry(types.SeverityFatal, CodeVarargPlacement,
				fmt.Sprintf("Vararg parameter '%s' must be the last parameter", p.NewName), nil)
			return
		}
	}
}

// CheckRipple runs the checks that depend on the ripple set, in order:
// vararg compatibility of the members, then visibility, type variables,
// native members and parameter names. It stops after the vararg check if
// that check is Fatal.
func (c *PreconditionChecker) CheckRipple(ctx context.Context, model *SignatureModel, ripple RippleSet) *types.Status {
	status := types.NewStatus()
	c.checkRippleVarargs(model, ripple, status)
	if status.HasFatal() || ctx.Err() != nil {
		return status
	}
	c.checkVisibility(model, ripple, status)
	c.checkTypeVariables(model, ripple, status)
	if !model.IsOrderSame() {
		c.checkNativeMembers(ripple, status)
	}
	if !model.AreNamesSame() {
		c.checkRippleParameterNames(model, ripple, status)
	}
	return status
}

func (c *PreconditionChecker) checkRippleVarargs(model *SignatureModel, ripple RippleSet, status *types.Status) {
	for _, member := range ripple.Methods {
		idx := member.VarargIndex()
		if idx < 0 {
			continue
		}
		for _, p := range model.Params {
			if p.Deleted || p.OldIndex != idx || p.IsNewVarargs() {
				continue
			}
			status.AddEntry(types.SeverityFatal, CodeVarargConversion,
				fmt.Sprintf("Parameter '%s' is a vararg in %s.%s and cannot become a plain parameter",
					p.OldName, member.Declaring.Name, member.Signature()),
				member.File().NodeContext(member.Declaring.Node))
			return
		}
	}
}

func (c *PreconditionChecker) checkVisibility(model *SignatureModel, ripple RippleSet, status *types.Status) {
	if model.IsVisibilitySame() {
		return
	}
	if len(ripple.Methods) > 1 && model.NewVisibility == types.VisibilityPrivate {
		status.AddEntry(types.SeverityWarning, CodePrivateInRipple,
			"The method is overridden or implemented; making it private makes it non-virtual after the change", nil)
	}
	for _, member := range ripple.Methods {
		if !member.Declaring.IsInterface() {
			continue
		}
		allowed := model.NewVisibility == types.VisibilityPublic ||
			(model.NewVisibility == types.VisibilityPrivate && member.HasBody && len(ripple.Methods) == 1)
		if !allowed {
			status.AddEntry(types.SeverityFatal, CodeInterfaceVisibility,
				fmt.Sprintf("Method %s is declared in interface %s and must stay public", member.Signature(), member.Declaring.Name),
				member.File().NodeContext(member.Node))
			return
		}
	}
}

func (c *PreconditionChecker) checkTypeVariables(model *SignatureModel, ripple RippleSet, status *types.Status) {
	if len(ripple.Methods) <= 1 {
		return
	}
	m := model.Method
	if model.Return.IsChanged() && analysis.MentionsTypeVariable(m, model.Return.NewTypeName) {
		status.AddEntry(types.SeverityError, CodeTypeVariableInRipple,
			fmt.Sprintf("The return type '%s' uses a type variable and cannot be applied to overriding methods", model.Return.NewTypeName), nil)
	}
	for _, p := range model.NewParameters() {
		if !p.IsAdded() && !p.IsTypeNameChanged() {
			continue
		}
		if analysis.MentionsTypeVariable(m, p.NewElementTypeName()) {
			status.AddEntry(types.SeverityError, CodeTypeVariableInRipple,
				fmt.Sprintf("The type '%s' of parameter '%s' uses a type variable and cannot be applied to overriding methods", p.NewTypeName, p.NewName), nil)
		}
	}
}

func (c *PreconditionChecker) checkNativeMembers(ripple RippleSet, status *types.Status) {
	for _, member := range ripple.Methods {
		if member.IsNative() {
			status.AddEntry(types.SeverityError, CodeNativeReorder,
				fmt.Sprintf("Parameters of native method %s.%s cannot be reordered", member.Declaring.Name, member.Signature()),
				member.File().NodeContext(member.Node))
		}
	}
}

// checkRippleParameterNames reports new names that collide with a
// parameter of a ripple member at a different position.
func (c *PreconditionChecker) checkRippleParameterNames(model *SignatureModel, ripple RippleSet, status *types.Status) {
	changed := model.ParameterNamesChanged()
	if len(changed) == 0 {
		return
	}
	for _, member := range ripple.Methods {
		if member == model.Method {
			continue
		}
		for _, name := range changed {
			for i, p := range member.Params {
				if p.Name != name || memberParamKeepsName(model, i, name) {
					continue
				}
				status.AddEntry(types.SeverityError, CodeParameterNameClash,
					fmt.Sprintf("Parameter name '%s' is already used in %s.%s", name, member.Declaring.Name, member.Signature()),
					member.File().NodeContext(p.Node))
			}
		}
	}
}

// memberParamKeepsName reports whether the parameter at oldIndex ends up
// named name itself, which is no clash.
func memberParamKeepsName(model *SignatureModel, oldIndex int, name string) bool {
	for _, p := range model.Params {
		if p.OldIndex == oldIndex && !p.Deleted {
			return p.NewName == name
		}
	}
	return false
}

// resolveBindings fills the binding fields of the model where the
// hierarchy can resolve the type names.
func resolveBindings(model *SignatureModel, hierarchy analysis.HierarchyOracle) {
	scope := model.Method.Declaring
	for _, p := range model.Params {
		if !p.IsAdded() {
			p.OldBinding = hierarchy.ResolveType(scope, StripEllipsis(p.OldTypeName))
		}
		if !p.Deleted {
			p.NewBinding = hierarchy.ResolveType(scope, p.NewElementTypeName())
		}
	}
	if model.Return.IsChanged() && !model.Return.IsVoid() {
		model.Return.NewBinding = hierarchy.ResolveType(scope, model.Return.NewTypeName)
	}
	for _, e := range model.Exceptions {
		if e.Binding != nil {
			continue
		}
		if t := hierarchy.ResolveType(scope, e.TypeName); t != nil {
			e.Binding = t
			e.QualifiedName = t.QualifiedName
		}
	}
}
