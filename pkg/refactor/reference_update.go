package refactor

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/rewrite"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// updateCall renames a call and rewrites its argument list into the new
// parameter order.
func (e *OccurrenceUpdateEngine) updateCall(uc *updateContext, fr *fileRewrite, occ Occurrence) *types.Status {
	n := occ.Node
	model := uc.model
	if n.Type() == "method_invocation" && !model.IsNameSame() {
		fr.script.ReplaceNode(n.ChildByFieldName("name"), model.NewName, "Update call")
	}
	if model.IsOrderSame() {
		return nil
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		args = analysis.ChildByType(n, "argument_list")
	}
	if args == nil {
		return nil
	}
	elems := analysis.ListElements(args)

	recursive := e.enclosingRippleMember(uc, occ)
	var items []rewrite.ListItem
	for _, sl := range reshuffle(model.Params, len(elems), uc.oldVarargIndex) {
		if sl.Old >= 0 {
			items = append(items, rewrite.Keep(elems[sl.Old]))
			continue
		}
		if po := uc.paramObject; po != nil && sl.Param == po.param {
			items = append(items, po.argument(uc, fr, occ, elems, recursive))
			continue
		}
		if v := addedArgument(occ.File, sl.Param, recursive); v != "" {
			items = append(items, rewrite.New(v))
		}
	}
	fr.script.RewriteList(args, elems, items, "Update call arguments")
	return nil
}

// enclosingRippleMember returns the declaration a call is recursive in: the
// call has no receiver or a this receiver, and it resolves to the method
// whose body contains it. Constructor calls are never recursive.
func (e *OccurrenceUpdateEngine) enclosingRippleMember(uc *updateContext, occ Occurrence) *sitter.Node {
	call := occ.Node
	if call.Type() != "method_invocation" {
		return nil
	}
	if obj := call.ChildByFieldName("object"); obj != nil && obj.Type() != "this" {
		return nil
	}
	enclosing := analysis.EnclosingMethod(occ.File, call)
	if enclosing == nil || enclosing != occ.Method || !uc.ripple.Contains(enclosing) {
		return nil
	}
	return enclosing.Node
}

// addedArgument returns the argument passed for an added parameter: the new
// parameter itself inside a recursive call unless a local variable shadows
// it, the default value otherwise.
func addedArgument(file *types.File, p *ParameterInfo, recursive *sitter.Node) string {
	if recursive != nil && !analysis.DeclaresLocal(file, recursive, p.NewName) {
		return p.NewName
	}
	return strings.TrimSpace(p.DefaultValue)
}

// updateImplicitSuperCalls makes the implicit super() calls of direct
// subclasses explicit once the no-argument constructor gains parameters.
func (e *OccurrenceUpdateEngine) updateImplicitSuperCalls(ctx context.Context, uc *updateContext, rewrites *rewriteSet) (*types.Status, error) {
	ctor := uc.model.Method
	added := uc.model.NewParameters()
	if len(ctor.Params) > 0 || len(added) == 0 {
		return nil, nil
	}
	owner := ctor.Declaring
	subs, err := uc.hierarchy.SubTypes(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("subtypes of %s: %w", owner.QualifiedName, err)
	}

	var args []string
	for _, p := range added {
		if v := strings.TrimSpace(p.DefaultValue); v != "" {
			args = append(args, v)
		}
	}
	call := "super(" + strings.Join(args, ", ") + ");"

	status := types.NewStatus()
	for _, sub := range subs {
		if sub.Name == "" || sub.Kind != types.ClassType || sub.SuperClass == "" || uc.readOnly(sub.File.Path) {
			continue
		}
		if uc.hierarchy.ResolveType(sub, sub.SuperClass) != owner {
			continue
		}
		fr := rewrites.forFile(sub.File)
		ctors := sub.Constructors()
		if len(ctors) == 0 {
			addDefaultConstructor(fr.script, sub, call)
			status.AddInfo(fmt.Sprintf("Added constructor to '%s' calling the changed constructor", sub.QualifiedName),
				sub.File.NodeContext(sub.Node))
			continue
		}
		for _, c := range ctors {
			body := c.Body()
			if body == nil || hasExplicitConstructorCall(body) {
				continue
			}
			insertFirstStatement(fr.script, c.Node, body, call)
		}
	}
	e.logger.Debug("implicit super calls updated", "constructor", ctor.Handle(), "subtypes", len(subs))
	return status, nil
}

func hasExplicitConstructorCall(body *sitter.Node) bool {
	for _, c := range analysis.NamedChildren(body) {
		if c.Type() == "explicit_constructor_invocation" {
			return true
		}
	}
	return false
}

func insertFirstStatement(s *rewrite.Script, decl, body *sitter.Node, stmt string) {
	indent := analysis.LineIndent(s.File(), int(decl.StartByte()))
	s.Insert(int(body.StartByte())+1, "\n"+indent+indentStep(indent)+stmt, "Add super call")
}

func addDefaultConstructor(s *rewrite.Script, sub *types.TypeDecl, call string) {
	body := sub.Body()
	if body == nil {
		return
	}
	outer := analysis.LineIndent(s.File(), int(sub.Node.StartByte()))
	step := indentStep(outer)
	indent := outer + step
	mod := ""
	if kw := sub.Modifiers.Visibility().Keyword(); kw != "" {
		mod = kw + " "
	}
	text := fmt.Sprintf("\n%s%s%s() {\n%s%s%s\n%s}\n", indent, mod, sub.Name, indent, step, call, indent)
	s.Insert(int(body.StartByte())+1, text, "Add constructor")
}

func indentStep(indent string) string {
	if strings.Contains(indent, "\t") {
		return "\t"
	}
	return "    "
}
