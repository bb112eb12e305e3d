package refactor

import (
	"strings"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// updateDocReference rewrites a {@link T#m(..)} or @see reference.
func (e *OccurrenceUpdateEngine) updateDocReference(uc *updateContext, fr *fileRewrite, occ Occurrence) *types.Status {
	file := occ.File
	model := uc.model
	var ref *analysis.DocReference
	for _, r := range analysis.ParseDocReferences(file.Text(occ.Node), int(occ.Node.StartByte())) {
		if r.Start == occ.Start {
			ref = &r
			break
		}
	}
	if ref == nil {
		return nil
	}

	if !model.Method.Constructor && !model.IsNameSame() {
		fr.script.Replace(ref.NameStart, ref.NameEnd, model.NewName, "Update Javadoc reference")
	}
	if !ref.HasParams || !docParamsNeedUpdate(model, ref) {
		return nil
	}

	withNames := len(ref.Params) > 0 && ref.Params[0].Name != ""
	var parts []string
	for _, sl := range reshuffle(model.Params, len(ref.Params), uc.oldVarargIndex) {
		p := sl.Param
		var typeName string
		switch {
		case sl.Old >= 0 && !p.IsTypeNameChanged():
			typeName = ref.Params[sl.Old].Type
		case sl.Old >= 0:
			typeName = docTypeName(p, ref.Params[sl.Old].Type)
		default:
			typeName = docTypeName(p, "")
		}
		if withNames {
			typeName += " " + p.NewName
		}
		parts = append(parts, typeName)
	}
	fr.script.Replace(ref.ParamsStart, ref.ParamsEnd, strings.Join(parts, ", "), "Update Javadoc reference")
	return nil
}

// docParamsNeedUpdate reports whether the parameter list of a reference
// changes: the order or a type changed, or a parameter was renamed in a
// reference that spells out names.
func docParamsNeedUpdate(model *SignatureModel, ref *analysis.DocReference) bool {
	if !model.IsOrderSame() {
		return true
	}
	for _, p := range model.Params {
		if p.IsTypeNameChanged() {
			return true
		}
	}
	if len(ref.Params) > 0 && ref.Params[0].Name != "" {
		return !model.AreNamesSame()
	}
	return false
}

// docTypeName renders the erased new type of p for a reference. A vararg
// that was spelled as an array in the reference stays an array.
func docTypeName(p *ParameterInfo, written string) string {
	if !p.IsNewVarargs() {
		return types.Erasure(p.NewTypeName)
	}
	elem := types.Erasure(p.NewElementTypeName())
	if p.OldVarargs && strings.HasSuffix(strings.TrimSpace(written), "[]") {
		return elem + "[]"
	}
	return elem + "..."
}
