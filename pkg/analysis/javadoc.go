package analysis

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// DocTag is one block tag of a Javadoc comment. Offsets are absolute.
type DocTag struct {
	Name     string // without the '@'
	Arg      string // first word after the name
	Start    int    // of the '@'
	End      int    // end of the last non-blank text of the tag
	ArgStart int
	ArgEnd   int
}

// DocComment is the block tag layout of a Javadoc comment.
type DocComment struct {
	Node       *sitter.Node
	Tags       []DocTag
	Prefix     string // line break and decoration that start a content line
	MultiLine  bool
	ContentEnd int // end of the last non-blank text before the closing */
}

// TagsNamed returns the tags with the given name.
func (d *DocComment) TagsNamed(name string) []DocTag {
	var out []DocTag
	for _, t := range d.Tags {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// ParseJavadoc splits a /** */ comment into block tags.
func ParseJavadoc(file *types.File, comment *sitter.Node) *DocComment {
	text := file.Text(comment)
	base := int(comment.StartByte())
	doc := &DocComment{
		Node:       comment,
		MultiLine:  strings.Contains(text, "\n"),
		ContentEnd: base + len("/**"),
	}
	if len(text) < len("/**")+len("*/") || !strings.HasPrefix(text, "/**") {
		return doc
	}
	innerEnd := len(text) - len("*/")

	var cur *DocTag
	flush := func() {
		if cur != nil {
			doc.Tags = append(doc.Tags, *cur)
			cur = nil
		}
	}
	lineStart := len("/**")
	for first := true; lineStart <= innerEnd; first = false {
		lineEnd := strings.IndexByte(text[lineStart:innerEnd], '\n')
		if lineEnd < 0 {
			lineEnd = innerEnd
		} else {
			lineEnd += lineStart
		}
		cs := lineStart
		for cs < lineEnd && isBlank(text[cs]) {
			cs++
		}
		starred := false
		if !first && cs < lineEnd && text[cs] == '*' {
			starred = true
			cs++
			for cs < lineEnd && isBlank(text[cs]) {
				cs++
			}
		}
		content := strings.TrimRight(text[cs:lineEnd], " \t\r")
		if starred && content != "" && doc.Prefix == "" {
			doc.Prefix = text[lineStart-1 : cs]
		}
		if content != "" {
			end := base + cs + len(content)
			doc.ContentEnd = end
			if content[0] == '@' {
				flush()
				cur = parseTagHead(content, base+cs)
			}
			if cur != nil {
				cur.End = end
			}
		}
		if lineEnd == innerEnd {
			break
		}
		lineStart = lineEnd + 1
	}
	flush()

	if doc.Prefix == "" {
		// closing line of only whitespace: align the stars with it
		if nl := strings.LastIndexByte(text, '\n'); nl >= 0 && strings.TrimSpace(text[nl+1:innerEnd]) == "" {
			doc.Prefix = "\n" + text[nl+1:innerEnd] + "* "
		} else {
			doc.Prefix = "\n" + LineIndent(file, base) + " * "
		}
	}
	return doc
}

func parseTagHead(content string, at int) *DocTag {
	i := 1
	for i < len(content) && !isBlank(content[i]) {
		i++
	}
	tag := &DocTag{Name: content[1:i], Start: at}
	for i < len(content) && isBlank(content[i]) {
		i++
	}
	j := i
	for j < len(content) && !isBlank(content[j]) {
		j++
	}
	if j > i {
		tag.Arg = content[i:j]
		tag.ArgStart = at + i
		tag.ArgEnd = at + j
	}
	return tag
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

// LineIndent returns the whitespace that starts the line containing offset.
func LineIndent(file *types.File, offset int) string {
	start := offset
	for start > 0 && file.Content[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(file.Content) && (file.Content[end] == ' ' || file.Content[end] == '\t') {
		end++
	}
	return string(file.Content[start:end])
}
