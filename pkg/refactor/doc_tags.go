package refactor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/rewrite"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// tagOrder is the conventional order of Javadoc block tags. Unknown tags
// sort after all of them.
var tagOrder = []string{
	"author", "version", "param", "return", "throws", "exception", "see",
	"since", "serial", "serialField", "serialData", "deprecated", "value",
}

func tagRank(name string) int {
	for i, n := range tagOrder {
		if n == name {
			return i
		}
	}
	return len(tagOrder)
}

// docItem is a block tag of the rewritten comment: an original tag, possibly
// with a renamed argument, or a new tag.
type docItem struct {
	name   string
	arg    string
	tag    *analysis.DocTag
	rename string
}

func (it docItem) segments() []rewrite.Segment {
	if it.tag == nil {
		text := "@" + it.name
		if it.arg != "" {
			text += " " + it.arg
		}
		return []rewrite.Segment{rewrite.Lit(text)}
	}
	t := it.tag
	if it.rename == "" || t.ArgEnd == 0 {
		return []rewrite.Segment{rewrite.Copy(t.Start, t.End)}
	}
	return []rewrite.Segment{rewrite.Copy(t.Start, t.ArgStart), rewrite.Lit(it.rename), rewrite.Copy(t.ArgEnd, t.End)}
}

// docTagEdit accumulates the block tag changes of one comment.
type docTagEdit struct {
	items   []docItem
	changed bool
}

func (d *docTagEdit) remove(keep func(docItem) bool) {
	out := d.items[:0]
	for _, it := range d.items {
		if keep(it) {
			out = append(out, it)
		} else {
			d.changed = true
		}
	}
	d.items = out
}

// insert places a new tag after the last tag ranked at or before it.
func (d *docTagEdit) insert(it docItem) {
	rank := tagRank(it.name)
	at := 0
	for i, cur := range d.items {
		if tagRank(cur.name) <= rank {
			at = i + 1
		}
	}
	d.items = append(d.items, docItem{})
	copy(d.items[at+1:], d.items[at:])
	d.items[at] = it
	d.changed = true
}

func (d *docTagEdit) has(name string, match func(arg string) bool) bool {
	for _, it := range d.items {
		if it.name == name && match(it.arg) {
			return true
		}
	}
	return false
}

// changeDocTags keeps the Javadoc block tags of a declaration in line with
// the new signature.
func (e *OccurrenceUpdateEngine) changeDocTags(uc *updateContext, fr *fileRewrite, m *types.MethodDecl, decl *sitter.Node) {
	file := fr.script.File()
	comment := analysis.Javadoc(decl, file.Content)
	if comment == nil {
		return
	}
	doc := analysis.ParseJavadoc(file, comment)
	model := uc.model

	if !doc.MultiLine {
		for _, t := range doc.TagsNamed("param") {
			if p := renamedParam(model, m, t.Arg); p != nil {
				fr.script.Replace(t.ArgStart, t.ArgEnd, p.NewName, "Update Javadoc tags")
			}
		}
		return
	}

	top := uc.tops[m]
	d := &docTagEdit{}
	for i := range doc.Tags {
		t := &doc.Tags[i]
		it := docItem{name: t.Name, arg: t.Arg, tag: t}
		if t.Name == "param" {
			if p := renamedParam(model, m, t.Arg); p != nil {
				it.rename = p.NewName
				d.changed = true
			}
		}
		d.items = append(d.items, it)
	}

	if model.Return.IsChanged() {
		switch {
		case model.Return.IsVoid():
			d.remove(func(it docItem) bool { return it.name != "return" })
		case model.Return.WasVoid() && top && !d.has("return", func(string) bool { return true }):
			d.insert(docItem{name: "return"})
		}
	}

	syncParamTags(d, model, m, top)
	syncThrowsTags(d, model, top)

	if !d.changed {
		return
	}
	const label = "Update Javadoc tags"
	if len(doc.Tags) == 0 {
		var b strings.Builder
		for _, it := range d.items {
			b.WriteString(doc.Prefix)
			b.WriteString(it.segments()[0].Text)
		}
		fr.script.Insert(doc.ContentEnd, b.String(), label)
		return
	}
	var segs []rewrite.Segment
	for i, it := range d.items {
		if i > 0 {
			segs = append(segs, rewrite.Lit(doc.Prefix))
		}
		segs = append(segs, it.segments()...)
	}
	fr.script.ReplaceSegments(doc.Tags[0].Start, doc.Tags[len(doc.Tags)-1].End, label, segs...)
}

// renamedParam returns the renamed parameter that m declares as name.
func renamedParam(model *SignatureModel, m *types.MethodDecl, name string) *ParameterInfo {
	for _, p := range model.Params {
		if p.Deleted || !p.IsRenamed() || p.OldIndex >= len(m.Params) {
			continue
		}
		if own := m.Params[p.OldIndex].Name; own == name && own == p.OldName {
			return p
		}
	}
	return nil
}

// syncParamTags removes the tags of deleted parameters and, when the order
// changed, sorts the @param block by the new order: type parameter tags
// first, unknown names last. Added parameters get a tag at the top of the
// ripple only.
func syncParamTags(d *docTagEdit, model *SignatureModel, m *types.MethodDecl, top bool) {
	memberName := func(p *ParameterInfo) string {
		if p.IsAdded() || p.OldIndex >= len(m.Params) {
			return ""
		}
		return m.Params[p.OldIndex].Name
	}
	deleted := make(map[string]bool)
	for _, p := range model.DeletedParameters() {
		if name := memberName(p); name != "" {
			deleted[name] = true
		}
	}
	d.remove(func(it docItem) bool { return it.name != "param" || !deleted[it.arg] })
	if model.IsOrderSame() {
		return
	}

	var typeParams, unknown []docItem
	byName := make(map[string]docItem)
	firstParam := -1
	for i, it := range d.items {
		if it.name != "param" {
			continue
		}
		if firstParam < 0 {
			firstParam = i
		}
		switch {
		case strings.HasPrefix(it.arg, "<"):
			typeParams = append(typeParams, it)
		case byName[it.arg].name != "":
			unknown = append(unknown, it)
		default:
			byName[it.arg] = it
		}
	}

	block := append([]docItem{}, typeParams...)
	used := make(map[string]bool)
	for _, p := range model.NewParameters() {
		if name := memberName(p); name != "" {
			if it, ok := byName[name]; ok {
				block = append(block, it)
				used[name] = true
			}
			continue
		}
		if p.IsAdded() && top {
			block = append(block, docItem{name: "param", arg: p.NewName})
		}
	}
	for _, it := range d.items {
		if it.name == "param" && !strings.HasPrefix(it.arg, "<") && byName[it.arg].tag == it.tag && !used[it.arg] {
			unknown = append(unknown, it)
		}
	}
	block = append(block, unknown...)

	var rest []docItem
	for _, it := range d.items {
		if it.name != "param" {
			rest = append(rest, it)
		}
	}
	if firstParam < 0 {
		d.items = rest
		for _, it := range block {
			d.insert(it)
		}
		return
	}
	before := 0
	for i := 0; i < firstParam; i++ {
		if d.items[i].name != "param" {
			before++
		}
	}
	items := append([]docItem{}, rest[:before]...)
	items = append(items, block...)
	items = append(items, rest[before:]...)
	if !sameItems(d.items, items) {
		d.changed = true
	}
	d.items = items
}

func sameItems(a, b []docItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].tag != b[i].tag || a[i].arg != b[i].arg {
			return false
		}
	}
	return true
}

// syncThrowsTags drops the tags of deleted exceptions and documents added
// ones at the top of the ripple.
func syncThrowsTags(d *docTagEdit, model *SignatureModel, top bool) {
	d.remove(func(it docItem) bool {
		if it.name != "throws" && it.name != "exception" {
			return true
		}
		return !matchesKind(model.Exceptions, it.arg, ExceptionDeleted)
	})
	if !top {
		return
	}
	for _, ex := range model.Exceptions {
		if ex.Kind != ExceptionAdded {
			continue
		}
		documented := func(arg string) bool { return ex.Matches(arg) }
		if d.has("throws", documented) || d.has("exception", documented) {
			continue
		}
		d.insert(docItem{name: "throws", arg: ex.SimpleName()})
	}
}
