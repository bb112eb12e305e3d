package refactor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	refactorTypes "github.com/mamaar/sigrefactor/pkg/types"
)

// SourceValidator re-parses a file with edits applied and reports the
// problems the edits introduce.
type SourceValidator struct {
	ws          *refactorTypes.Workspace
	parser      *analysis.JavaParser
	diagnostics *analysis.DiagnosticEngine
	logger      *slog.Logger
}

func NewSourceValidator(ws *refactorTypes.Workspace, hierarchy *analysis.TypeHierarchy, logger *slog.Logger) *SourceValidator {
	return &SourceValidator{
		ws:          ws,
		parser:      analysis.NewParser(logger),
		diagnostics: analysis.NewDiagnosticEngine(hierarchy),
		logger:      logger,
	}
}

// Validate returns the problems of original with edits applied that the
// original does not have. Problems are compared by kind and message so
// shifted positions do not count as new. Offsets of the returned problems
// address the edited content.
func (v *SourceValidator) Validate(ctx context.Context, path string, original []byte, edits []refactorTypes.Change) ([]refactorTypes.Problem, error) {
	if err := validateChanges(edits); err != nil {
		return nil, err
	}
	edited, err := ApplyToContent(original, edits)
	if err != nil {
		return nil, &refactorTypes.RefactorError{
			Type:    refactorTypes.ValidationFailure,
			Message: fmt.Sprintf("cannot apply edits: %v", err),
			File:    path,
			Cause:   err,
		}
	}

	before, err := v.problems(ctx, path, original)
	if err != nil {
		return nil, err
	}
	after, err := v.problems(ctx, path, edited)
	if err != nil {
		return nil, err
	}

	known := make(map[string]int)
	for _, p := range before {
		known[p.Key()]++
	}
	var introduced []refactorTypes.Problem
	for _, p := range after {
		if known[p.Key()] > 0 {
			known[p.Key()]--
			continue
		}
		introduced = append(introduced, p)
	}
	v.logger.Debug("validated edits", "file", path, "before", len(before), "after", len(after), "new", len(introduced))
	return introduced, nil
}

func (v *SourceValidator) problems(ctx context.Context, path string, content []byte) ([]refactorTypes.Problem, error) {
	file, err := v.parser.ParseSource(ctx, path, content)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return v.diagnostics.Problems(ctx, v.ws, file)
}

// validateChanges rejects edits with invalid bounds or overlapping ranges.
func validateChanges(changes []refactorTypes.Change) error {
	fileChanges := make(map[string][]refactorTypes.Change)
	for _, change := range changes {
		if change.Start < 0 || change.End < change.Start {
			return &refactorTypes.RefactorError{
				Type:    refactorTypes.ValidationFailure,
				Message: fmt.Sprintf("invalid change bounds: start=%d, end=%d", change.Start, change.End),
				File:    change.File,
			}
		}
		fileChanges[change.File] = append(fileChanges[change.File], change)
	}

	for fileName, changes := range fileChanges {
		if err := validateChangePositions(changes); err != nil {
			return &refactorTypes.RefactorError{
				Type:    refactorTypes.ValidationFailure,
				Message: fmt.Sprintf("overlapping changes detected in file %s", fileName),
				File:    fileName,
				Cause:   err,
			}
		}
	}
	return nil
}
