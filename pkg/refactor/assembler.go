package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// FileChange is the edit list of one file together with its materialized
// content.
type FileChange struct {
	Path    string
	Changes []types.Change
	Labels  []string
	Preview []byte
	Created bool
}

// ChangeSet is the result of a run. It is not modified after Assemble
// returns it.
type ChangeSet struct {
	ID         uuid.UUID
	Name       string
	Files      []FileChange
	Status     *types.Status
	Descriptor Descriptor
}

// Changes returns the edits of every file, file by file.
func (c *ChangeSet) Changes() []types.Change {
	var out []types.Change
	for _, f := range c.Files {
		out = append(out, f.Changes...)
	}
	return out
}

// Paths returns the files the change set touches.
func (c *ChangeSet) Paths() []string {
	out := make([]string, len(c.Files))
	for i, f := range c.Files {
		out[i] = f.Path
	}
	return out
}

// File returns the change of path.
func (c *ChangeSet) File(path string) (FileChange, bool) {
	for _, f := range c.Files {
		if f.Path == path {
			return f, true
		}
	}
	return FileChange{}, false
}

// AsPlan converts the change set into the plan the serializer applies.
func (c *ChangeSet) AsPlan() *types.RefactoringPlan {
	plan := &types.RefactoringPlan{
		ID:            c.ID.String(),
		Name:          c.Name,
		Changes:       c.Changes(),
		AffectedFiles: c.Paths(),
		Previews:      make(map[string][]byte, len(c.Files)),
		Status:        c.Status,
		Descriptor:    map[string]string(c.Descriptor),
	}
	for _, f := range c.Files {
		plan.Previews[f.Path] = f.Preview
	}
	return plan
}

// ChangeAssembler turns the edit scripts of a run into a ChangeSet and
// re-validates the declaring file.
type ChangeAssembler struct {
	validator      *SourceValidator
	skipValidation bool
	logger         *slog.Logger
}

func NewChangeAssembler(validator *SourceValidator, skipValidation bool, logger *slog.Logger) *ChangeAssembler {
	return &ChangeAssembler{validator: validator, skipValidation: skipValidation, logger: logger}
}

// Assemble materializes every script. New compile problems of the
// declaring file are reported as Errors.
func (a *ChangeAssembler) Assemble(ctx context.Context, model *SignatureModel, rewrites *rewriteSet) (*ChangeSet, *types.Status, error) {
	status := types.NewStatus()
	id := uuid.New()
	cs := &ChangeSet{
		ID:         id,
		Name:       fmt.Sprintf("Change signature of '%s'", model.OldName),
		Status:     status,
		Descriptor: EncodeDescriptor(model, id.String()),
	}

	declPath := model.Method.File().Path
	for _, path := range rewrites.paths() {
		if err := ctx.Err(); err != nil {
			return nil, status, err
		}
		fr := rewrites.files[path]
		changes, err := fr.script.Changes()
		if err != nil {
			return nil, status, fmt.Errorf("materialize edits of %s: %w", path, err)
		}
		preview, err := ApplyToContent(fr.script.File().Content, changes)
		if err != nil {
			return nil, status, fmt.Errorf("preview %s: %w", path, err)
		}
		cs.Files = append(cs.Files, FileChange{Path: path, Changes: changes, Labels: fr.script.Labels(), Preview: preview})

		if path != declPath || !a.validates(model.Method) {
			continue
		}
		problems, err := a.validator.Validate(ctx, path, fr.script.File().Content, changes)
		if err != nil {
			return nil, status, fmt.Errorf("validate %s: %w", path, err)
		}
		for _, p := range problems {
			if ignoredProblem(p, rewrites.createdTypes) {
				continue
			}
			status.AddEntry(types.SeverityError, CodeCompileError, p.Message, previewContext(path, preview, p))
		}
	}

	created := make([]string, 0, len(rewrites.created))
	for path := range rewrites.created {
		created = append(created, path)
	}
	sort.Strings(created)
	for _, path := range created {
		content := rewrites.created[path]
		cs.Files = append(cs.Files, FileChange{
			Path:    path,
			Changes: []types.Change{{File: path, NewText: content, Description: "Create file"}},
			Labels:  []string{"Create file"},
			Preview: []byte(content),
			Created: true,
		})
	}

	a.logger.Info("change assembled", "id", cs.ID, "files", len(cs.Files), "edits", len(cs.Changes()), "errors", status.HasError())
	return cs, status, nil
}

// validates reports whether the declaring file of m is re-checked. Bodyless
// declarations have nothing a signature change could break locally.
func (a *ChangeAssembler) validates(m *types.MethodDecl) bool {
	if a.skipValidation || a.validator == nil {
		return false
	}
	return !m.IsAbstract() && !m.IsNative() && !m.Declaring.IsInterface()
}

func ignoredProblem(p types.Problem, createdTypes []string) bool {
	switch p.Kind {
	case types.ProblemUnresolvedImport:
		return true
	case types.ProblemUndefinedType:
		for _, name := range createdTypes {
			if strings.HasPrefix(p.Message, name+" ") {
				return true
			}
		}
	}
	return false
}

func previewContext(path string, preview []byte, p types.Problem) *types.SourceContext {
	start, end := p.Start, p.End
	if start < 0 || start > len(preview) {
		start = len(preview)
	}
	if end < start || end > len(preview) {
		end = start
	}
	return &types.SourceContext{
		File:    path,
		Start:   start,
		End:     end,
		Line:    p.Line,
		Snippet: string(preview[start:end]),
	}
}
