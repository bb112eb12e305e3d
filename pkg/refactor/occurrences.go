package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// OccurrenceKind is the shape of a site referencing the changed method.
type OccurrenceKind int

const (
	OccurrenceDeclaration OccurrenceKind = iota
	OccurrenceCall
	OccurrenceJavadocRef
	OccurrenceMethodReference
	OccurrenceLambda
	OccurrenceStaticImport
	OccurrenceUnrecognized
)

func (k OccurrenceKind) String() string {
	switch k {
	case OccurrenceDeclaration:
		return "declaration"
	case OccurrenceCall:
		return "call"
	case OccurrenceJavadocRef:
		return "javadoc-ref"
	case OccurrenceMethodReference:
		return "method-reference"
	case OccurrenceLambda:
		return "lambda"
	case OccurrenceStaticImport:
		return "static-import"
	case OccurrenceUnrecognized:
		return "unrecognized"
	default:
		return fmt.Sprintf("OccurrenceKind(%d)", int(k))
	}
}

// Occurrence is one site to update. Node is the site itself: the
// declaration, the call expression, the comment of a Javadoc reference, the
// method reference, the lambda or the imported name. Start and End delimit
// the matched text.
type Occurrence struct {
	Kind   OccurrenceKind
	File   *types.File
	Node   *sitter.Node
	Start  int
	End    int
	Method *types.MethodDecl
}

// FileOccurrences groups the occurrences of one file, declarations first.
type FileOccurrences struct {
	File        *types.File
	Occurrences []Occurrence
	Binary      []Occurrence
}

// OccurrenceFinder locates every site of a ripple set through a Searcher.
type OccurrenceFinder struct {
	searcher analysis.Searcher
	logger   *slog.Logger
}

func NewOccurrenceFinder(searcher analysis.Searcher, logger *slog.Logger) *OccurrenceFinder {
	return &OccurrenceFinder{searcher: searcher, logger: logger}
}

// Find searches the occurrences of every ripple member. Binary matches are
// kept per file and reported as one Warning.
func (f *OccurrenceFinder) Find(ctx context.Context, ripple RippleSet) ([]FileOccurrences, *types.Status, error) {
	var groups [][]analysis.FileMatches
	if len(ripple.Methods) == 1 && ripple.Methods[0].Constructor {
		ctor := ripple.Methods[0]
		decls, err := f.searcher.FindConstructorDeclarations(ctx, ctor)
		if err != nil {
			return nil, nil, fmt.Errorf("search constructor declarations: %w", err)
		}
		refs, err := f.searcher.FindConstructorReferences(ctx, ctor)
		if err != nil {
			return nil, nil, fmt.Errorf("search constructor references: %w", err)
		}
		groups = append(groups, decls, refs)
	} else {
		for _, m := range ripple.Methods {
			found, err := f.searcher.FindMethodOccurrences(ctx, []*types.MethodDecl{m})
			if err != nil {
				return nil, nil, fmt.Errorf("search occurrences of %s: %w", m.Handle(), err)
			}
			groups = append(groups, found)
		}
	}

	byFile := make(map[string]*FileOccurrences)
	seen := make(map[string]bool)
	binaryCount := 0
	for _, group := range groups {
		for _, fm := range group {
			fo := byFile[fm.File.Path]
			if fo == nil {
				fo = &FileOccurrences{File: fm.File}
				byFile[fm.File.Path] = fo
			}
			for _, match := range fm.Matches {
				occ := classify(match)
				if key := occurrenceKey(occ); !seen[key] {
					seen[key] = true
					fo.Occurrences = append(fo.Occurrences, occ)
				}
			}
			for _, match := range fm.BinaryMatches {
				occ := classify(match)
				if key := occurrenceKey(occ); !seen[key] {
					seen[key] = true
					fo.Binary = append(fo.Binary, occ)
					binaryCount++
				}
			}
		}
	}

	status := types.NewStatus()
	if binaryCount > 0 {
		status.AddEntry(types.SeverityWarning, CodeBinaryReferences,
			fmt.Sprintf("%d binary references cannot be updated", binaryCount), nil)
	}

	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]FileOccurrences, 0, len(paths))
	total := 0
	for _, p := range paths {
		fo := byFile[p]
		sortOccurrences(fo.Occurrences)
		total += len(fo.Occurrences)
		out = append(out, *fo)
	}
	f.logger.Info("occurrences found", "files", len(out), "occurrences", total, "binary", binaryCount)
	return out, status, nil
}

// classify maps a search match to an occurrence by the shape of its node.
func classify(match analysis.SearchMatch) Occurrence {
	occ := Occurrence{Kind: OccurrenceUnrecognized, File: match.File, Node: match.Node, Method: match.Method}
	n := match.Node
	occ.Start, occ.End = int(n.StartByte()), int(n.EndByte())
	parent := n.Parent()

	switch {
	case analysis.IsComment(n):
		occ.Kind = OccurrenceJavadocRef
		occ.Start, occ.End = match.Start, match.End
	case analysis.IsDeclarationNode(parent) && analysis.SameNode(parent.ChildByFieldName("name"), n):
		occ.Kind = OccurrenceDeclaration
		occ.Node = parent
	case n.Type() == "object_creation_expression", n.Type() == "explicit_constructor_invocation", n.Type() == "enum_constant":
		occ.Kind = OccurrenceCall
	case parent != nil && parent.Type() == "method_invocation" && analysis.SameNode(parent.ChildByFieldName("name"), n):
		occ.Kind = OccurrenceCall
		occ.Node = parent
	case parent != nil && parent.Type() == "method_reference":
		occ.Kind = OccurrenceMethodReference
	case n.Type() == "lambda_expression":
		occ.Kind = OccurrenceLambda
	case parent != nil && parent.Type() == "scoped_identifier" && analysis.Ancestor(n, "import_declaration") != nil:
		occ.Kind = OccurrenceStaticImport
	}
	return occ
}

func occurrenceKey(occ Occurrence) string {
	return fmt.Sprintf("%s:%d:%d:%s", occ.File.Path, occ.Start, occ.End, occ.Node.Type())
}

func sortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		di, dj := occs[i].Kind == OccurrenceDeclaration, occs[j].Kind == OccurrenceDeclaration
		if di != dj {
			return di
		}
		return occs[i].Start < occs[j].Start
	})
}
