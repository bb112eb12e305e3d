package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/rewrite"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// updateContext is the read-only state shared by every update strategy of
// one run. It is built once after the checks and never modified.
type updateContext struct {
	model          *SignatureModel
	ripple         RippleSet
	tops           map[*types.MethodDecl]bool
	oldVarargIndex int
	hierarchy      analysis.HierarchyOracle
	readOnly       func(path string) bool
	paramObject    *parameterObject
}

func newUpdateContext(ctx context.Context, model *SignatureModel, ripple RippleSet, hierarchy analysis.HierarchyOracle, ws *types.Workspace) (*updateContext, error) {
	tops, err := topsOfRipple(ctx, ripple, hierarchy)
	if err != nil {
		return nil, err
	}
	return &updateContext{
		model:          model,
		ripple:         ripple,
		tops:           tops,
		oldVarargIndex: model.OldVarargIndex(),
		hierarchy:      hierarchy,
		readOnly:       ws.IsReadOnly,
	}, nil
}

// fileRewrite is the edit script of one file with its import helper.
type fileRewrite struct {
	script  *rewrite.Script
	imports *rewrite.ImportRewrite
}

// rewriteSet holds one fileRewrite per touched file and the content of
// files the run creates.
type rewriteSet struct {
	files        map[string]*fileRewrite
	created      map[string]string
	createdTypes []string
}

func newRewriteSet() *rewriteSet {
	return &rewriteSet{files: make(map[string]*fileRewrite), created: make(map[string]string)}
}

// create records a new file holding the declaration of typeName.
func (s *rewriteSet) create(path, typeName, content string) {
	s.created[path] = content
	s.createdTypes = append(s.createdTypes, typeName)
}

func (s *rewriteSet) forFile(file *types.File) *fileRewrite {
	if fr, ok := s.files[file.Path]; ok {
		return fr
	}
	script := rewrite.NewScript(file)
	fr := &fileRewrite{script: script, imports: script.Imports()}
	s.files[file.Path] = fr
	return fr
}

// paths returns the touched files in lexical order.
func (s *rewriteSet) paths() []string {
	out := make([]string, 0, len(s.files))
	for p, fr := range s.files {
		if !fr.script.Empty() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// typeName returns typeName as it should be written in the file: a
// qualified outer type is imported and written by its simple name.
func (fr *fileRewrite) typeName(typeName string) string {
	typeName = strings.TrimSpace(typeName)
	end := strings.IndexAny(typeName, "<[. ")
	if end < 0 || typeName[end] != '.' || typeName[0] < 'a' || typeName[0] > 'z' {
		return typeName
	}
	end = strings.IndexAny(typeName, "<[ ")
	if strings.HasSuffix(typeName, "...") && end < 0 {
		end = len(typeName) - len("...")
	}
	if end < 0 {
		end = len(typeName)
	}
	return fr.imports.Add(typeName[:end]) + typeName[end:]
}

// OccurrenceUpdateEngine rewrites every located occurrence into the edit
// scripts of its file.
type OccurrenceUpdateEngine struct {
	logger *slog.Logger
}

func NewOccurrenceUpdateEngine(logger *slog.Logger) *OccurrenceUpdateEngine {
	return &OccurrenceUpdateEngine{logger: logger}
}

// Update records the edits of all occurrences. Declarations of a file are
// updated before its other occurrences.
func (e *OccurrenceUpdateEngine) Update(ctx context.Context, uc *updateContext, files []FileOccurrences, rewrites *rewriteSet) (*types.Status, error) {
	status := types.NewStatus()
	for _, fo := range files {
		if err := ctx.Err(); err != nil {
			return status, err
		}
		if len(fo.Occurrences) == 0 {
			continue
		}
		fr := rewrites.forFile(fo.File)
		for _, occ := range fo.Occurrences {
			status.Merge(e.update(uc, fr, occ))
		}
	}
	if uc.model.Method.Constructor {
		st, err := e.updateImplicitSuperCalls(ctx, uc, rewrites)
		if err != nil {
			return status, err
		}
		status.Merge(st)
	}
	return status, nil
}

func (e *OccurrenceUpdateEngine) update(uc *updateContext, fr *fileRewrite, occ Occurrence) *types.Status {
	e.logger.Debug("updating occurrence", "kind", occ.Kind, "file", occ.File.Path, "start", occ.Start)
	switch occ.Kind {
	case OccurrenceDeclaration:
		return e.updateDeclaration(uc, fr, occ)
	case OccurrenceCall:
		return e.updateCall(uc, fr, occ)
	case OccurrenceJavadocRef:
		return e.updateDocReference(uc, fr, occ)
	case OccurrenceMethodReference:
		return e.updateMethodReference(uc, fr, occ)
	case OccurrenceLambda:
		return e.updateLambda(uc, occ)
	case OccurrenceStaticImport:
		return e.updateStaticImport(uc, fr, occ)
	case OccurrenceUnrecognized:
		return e.reportUnrecognized(occ)
	default:
		panic(fmt.Sprintf("unhandled occurrence kind %v", occ.Kind))
	}
}

func (e *OccurrenceUpdateEngine) updateMethodReference(uc *updateContext, fr *fileRewrite, occ Occurrence) *types.Status {
	if !uc.model.IsNameSame() {
		fr.script.ReplaceNode(occ.Node, uc.model.NewName, "Update method reference")
	}
	return nil
}

// updateLambda leaves the lambda alone: its parameter list belongs to the
// lambda. A reordered signature is reported so the user can check it.
func (e *OccurrenceUpdateEngine) updateLambda(uc *updateContext, occ Occurrence) *types.Status {
	if uc.model.IsOrderSame() {
		return nil
	}
	status := types.NewStatus()
	status.AddEntry(types.SeverityWarning, CodeLambdaNotUpdated,
		fmt.Sprintf("The parameters of a lambda implementing %s were not updated", uc.model.Method.Signature()),
		occ.File.Context(occ.Start, occ.End))
	return status
}

func (e *OccurrenceUpdateEngine) updateStaticImport(uc *updateContext, fr *fileRewrite, occ Occurrence) *types.Status {
	if !uc.model.IsNameSame() {
		fr.script.ReplaceNode(occ.Node, uc.model.NewName, "Update static import")
	}
	return nil
}

func (e *OccurrenceUpdateEngine) reportUnrecognized(occ Occurrence) *types.Status {
	msg := fmt.Sprintf("Cannot update found node: nodeType=%s; [%d, %d] in %s",
		occ.Node.Type(), occ.Start, occ.End-occ.Start, occ.File.Path)
	e.logger.Error("unrecognized occurrence", "node", occ.Node.Type(), "file", occ.File.Path,
		"start", occ.Start, "length", occ.End-occ.Start, "text", occ.File.Slice(occ.Start, occ.End))
	status := types.NewStatus()
	status.AddEntry(types.SeverityError, CodeUnrecognizedOccurrence, msg, occ.File.Context(occ.Start, occ.End))
	return status
}
