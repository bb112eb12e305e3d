// Package rewrite records source edits against the original text of a file
// and materializes them into changes. Edits may copy ranges of the original
// text; edits recorded inside a copied range are applied to the copy, which
// lets a moved argument carry its own rewrites along.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// Segment is either literal text or a copy of an original source range.
type Segment struct {
	Text  string
	Start int
	End   int
	Copy  bool
}

// Lit returns a literal segment.
func Lit(text string) Segment { return Segment{Text: text} }

// Copy returns a segment copying the original range [start, end).
func Copy(start, end int) Segment { return Segment{Start: start, End: end, Copy: true} }

// CopyNode returns a segment copying the text of n.
func CopyNode(n *sitter.Node) Segment {
	return Copy(int(n.StartByte()), int(n.EndByte()))
}

// Edit replaces the original range [Start, End) with its segments.
type Edit struct {
	Start    int
	End      int
	Segments []Segment
	Label    string
	seq      int
}

func (e *Edit) contains(o *Edit) bool {
	if e.Start == o.Start && e.End == o.End {
		return e.seq < o.seq && e.End > e.Start
	}
	if o.Start == o.End {
		// insertions at the boundary of a replacement are siblings
		return e.Start < o.Start && o.Start < e.End
	}
	return e.Start <= o.Start && o.End <= e.End
}

func (e *Edit) overlaps(o *Edit) bool {
	return e.Start < o.End && o.Start < e.End
}

// Script collects the edits of one file.
type Script struct {
	file    *types.File
	edits   []*Edit
	imports *ImportRewrite
}

// NewScript starts an empty script for file.
func NewScript(file *types.File) *Script {
	return &Script{file: file}
}

// File returns the file the script edits.
func (s *Script) File() *types.File { return s.file }

// Empty reports whether no edit has been recorded.
func (s *Script) Empty() bool { return len(s.edits) == 0 }

// Len returns the number of recorded edits.
func (s *Script) Len() int { return len(s.edits) }

// ReplaceSegments records an edit replacing [start, end) with segs.
func (s *Script) ReplaceSegments(start, end int, label string, segs ...Segment) {
	s.edits = append(s.edits, &Edit{Start: start, End: end, Segments: segs, Label: label, seq: len(s.edits)})
}

// Replace records a literal replacement of [start, end).
func (s *Script) Replace(start, end int, text, label string) {
	s.ReplaceSegments(start, end, label, Lit(text))
}

// ReplaceNode replaces the text of n.
func (s *Script) ReplaceNode(n *sitter.Node, text, label string) {
	s.Replace(int(n.StartByte()), int(n.EndByte()), text, label)
}

// Insert records an insertion at offset.
func (s *Script) Insert(offset int, text, label string) {
	s.Replace(offset, offset, text, label)
}

// Remove records the deletion of [start, end).
func (s *Script) Remove(start, end int, label string) {
	s.Replace(start, end, "", label)
}

// RemoveNode deletes the text of n.
func (s *Script) RemoveNode(n *sitter.Node, label string) {
	s.Remove(int(n.StartByte()), int(n.EndByte()), label)
}

// Render materializes the whole file.
func (s *Script) Render() (string, error) {
	return s.render(0, len(s.file.Content), nil)
}

// RenderRange materializes the original range [start, end) with every edit
// recorded inside it applied.
func (s *Script) RenderRange(start, end int) (string, error) {
	return s.render(start, end, nil)
}

// RenderNode materializes the text of n.
func (s *Script) RenderNode(n *sitter.Node) (string, error) {
	return s.render(int(n.StartByte()), int(n.EndByte()), nil)
}

// maximal returns the edits inside [start, end) that are not nested in any
// other edit inside the range, ordered by position.
func (s *Script) maximal(start, end int, active map[*Edit]bool) ([]*Edit, error) {
	var inside []*Edit
	for _, e := range s.edits {
		if active[e] || e.Start < start || e.End > end {
			continue
		}
		inside = append(inside, e)
	}
	var top []*Edit
	for _, e := range inside {
		nested := false
		for _, o := range inside {
			if o != e && o.contains(e) {
				nested = true
				break
			}
		}
		if !nested {
			top = append(top, e)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Start != top[j].Start {
			return top[i].Start < top[j].Start
		}
		if (top[i].Start == top[i].End) != (top[j].Start == top[j].End) {
			return top[i].Start == top[i].End
		}
		return top[i].seq < top[j].seq
	})
	for i := 1; i < len(top); i++ {
		if top[i-1].overlaps(top[i]) {
			return nil, fmt.Errorf("%s: overlapping edits %q [%d,%d) and %q [%d,%d)",
				s.file.Path, top[i-1].Label, top[i-1].Start, top[i-1].End, top[i].Label, top[i].Start, top[i].End)
		}
	}
	return top, nil
}

func (s *Script) render(start, end int, active map[*Edit]bool) (string, error) {
	if start < 0 || end > len(s.file.Content) || start > end {
		return "", fmt.Errorf("%s: invalid range [%d,%d)", s.file.Path, start, end)
	}
	top, err := s.maximal(start, end, active)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	pos := start
	for _, e := range top {
		b.Write(s.file.Content[pos:e.Start])
		text, err := s.renderEdit(e, active)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		pos = e.End
	}
	b.Write(s.file.Content[pos:end])
	return b.String(), nil
}

func (s *Script) renderEdit(e *Edit, active map[*Edit]bool) (string, error) {
	next := make(map[*Edit]bool, len(active)+1)
	for k := range active {
		next[k] = true
	}
	next[e] = true
	var b strings.Builder
	for _, seg := range e.Segments {
		if !seg.Copy {
			b.WriteString(seg.Text)
			continue
		}
		text, err := s.render(seg.Start, seg.End, next)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// Changes converts the outermost edits into serializer changes.
func (s *Script) Changes() ([]types.Change, error) {
	top, err := s.maximal(0, len(s.file.Content), nil)
	if err != nil {
		return nil, err
	}
	changes := make([]types.Change, 0, len(top))
	for _, e := range top {
		text, err := s.renderEdit(e, nil)
		if err != nil {
			return nil, err
		}
		old := s.file.Slice(e.Start, e.End)
		if old == text {
			continue
		}
		// insertions at one offset become one change, in render order
		if n := len(changes); n > 0 && e.Start == e.End && changes[n-1].Start == e.Start && changes[n-1].End == e.Start {
			changes[n-1].NewText += text
			continue
		}
		changes = append(changes, types.Change{
			File:        s.file.Path,
			Start:       e.Start,
			End:         e.End,
			OldText:     old,
			NewText:     text,
			Description: e.Label,
		})
	}
	return changes, nil
}

// Labels returns the distinct edit labels in recording order.
func (s *Script) Labels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.edits {
		if e.Label != "" && !seen[e.Label] {
			seen[e.Label] = true
			out = append(out, e.Label)
		}
	}
	return out
}
