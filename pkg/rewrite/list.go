package rewrite

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ListItem is one element of a rewritten comma list: an original element
// carried over (and possibly rewritten in place), new text, or a mix of both.
type ListItem struct {
	Node     *sitter.Node
	Text     string
	Segments []Segment
}

// Keep carries over an original element.
func Keep(n *sitter.Node) ListItem { return ListItem{Node: n} }

// New inserts literal text as an element.
func New(text string) ListItem { return ListItem{Text: text} }

// Compose builds an element from segments, so copied originals keep the
// edits recorded inside them.
func Compose(segs ...Segment) ListItem { return ListItem{Segments: segs} }

// RewriteList records the replacement of the contents of a parenthesized
// list node (formal_parameters, argument_list) with items. Nothing is
// recorded when items is the original element sequence. The separator of the
// original list is reused so multi-line lists keep their layout.
func (s *Script) RewriteList(list *sitter.Node, elems []*sitter.Node, items []ListItem, label string) {
	if sameElements(elems, items) {
		return
	}
	from, to := innerRange(list)
	sep := ", "
	if len(elems) > 1 {
		between := s.file.Slice(int(elems[0].EndByte()), int(elems[1].StartByte()))
		if strings.TrimSpace(between) == "," {
			sep = between
		}
	}
	// the whole list node is replaced so element edits always nest inside;
	// padding and comments around the elements are copied over
	segs := []Segment{Lit(s.file.Slice(int(list.StartByte()), from))}
	if len(elems) > 0 && len(items) > 0 {
		segs = append(segs, Copy(from, int(elems[0].StartByte())))
	}
	for i, it := range items {
		if i > 0 {
			segs = append(segs, Lit(sep))
		}
		switch {
		case it.Node != nil:
			segs = append(segs, CopyNode(it.Node))
		case it.Segments != nil:
			segs = append(segs, it.Segments...)
		default:
			segs = append(segs, Lit(it.Text))
		}
	}
	if len(elems) > 0 && len(items) > 0 {
		segs = append(segs, Copy(int(elems[len(elems)-1].EndByte()), to))
	}
	segs = append(segs, Lit(s.file.Slice(to, int(list.EndByte()))))
	s.ReplaceSegments(int(list.StartByte()), int(list.EndByte()), label, segs...)
}

func sameElements(elems []*sitter.Node, items []ListItem) bool {
	if len(elems) != len(items) {
		return false
	}
	for i, it := range items {
		if it.Node == nil || it.Node.StartByte() != elems[i].StartByte() || it.Node.EndByte() != elems[i].EndByte() {
			return false
		}
	}
	return true
}

// innerRange returns the offsets just inside the delimiters of a list node.
func innerRange(list *sitter.Node) (int, int) {
	start, end := int(list.StartByte()), int(list.EndByte())
	if list.ChildCount() > 0 {
		if first := list.Child(0); first != nil && !first.IsNamed() {
			start = int(first.EndByte())
		}
		if last := list.Child(int(list.ChildCount()) - 1); last != nil && !last.IsNamed() {
			end = int(last.StartByte())
		}
	}
	return start, end
}
