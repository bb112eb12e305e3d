package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
	"github.com/mamaar/sigrefactor/pkg/watch"
)

// RefactorEngine is the entry point used by the command line: it loads
// workspaces, plans refactorings and applies them.
type RefactorEngine interface {
	// Workspace management
	LoadWorkspace(ctx context.Context, path string) (*types.Workspace, error)
	RefreshFiles(ctx context.Context, ws *types.Workspace, paths []string) error

	// Refactoring operations
	ChangeSignature(ctx context.Context, ws *types.Workspace, req *ChangeSignatureRequest) (*ChangeSet, *types.Status, types.Outcome, error)
	ReplayDescriptor(ctx context.Context, ws *types.Workspace, d Descriptor) (*ChangeSet, *types.Status, types.Outcome, error)
	IntroduceParameterObject(ctx context.Context, ws *types.Workspace, req ParameterObjectRequest) (*ChangeSet, *types.Status, types.Outcome, error)
	CheckDescriptor(ctx context.Context, ws *types.Workspace, d Descriptor) (*types.Status, types.Outcome, error)
	DescribeChange(ctx context.Context, ws *types.Workspace, req *ChangeSignatureRequest) (Descriptor, *types.Status)

	// Execution
	ValidateRefactoring(plan *types.RefactoringPlan) error
	ExecutePlan(plan *types.RefactoringPlan) error
	PreviewPlan(plan *types.RefactoringPlan) (string, error)
	DiffPlan(ws *types.Workspace, plan *types.RefactoringPlan) (string, error)
}

// DefaultEngine implements the Engine interface
type DefaultEngine struct {
	parser     *analysis.JavaParser
	serializer *Serializer
	config     *EngineConfig
	logger     *slog.Logger
}

// EngineConfig contains configuration options for the refactoring engine
type EngineConfig struct {
	SkipValidation bool
	AllowBreaking  bool
	Backup         bool
	Exclude        []string
	ReadOnlyRoots  []string
	Logger         *slog.Logger
	Metrics        *Metrics
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Exclude: []string{".git", "build", "target", "out", "node_modules"},
	}
}

func CreateEngine() RefactorEngine {
	return CreateEngineWithConfig(DefaultConfig())
}

func CreateEngineWithConfig(config *EngineConfig) RefactorEngine {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	parser := analysis.NewParser(logger)
	parser.SetExclude(config.Exclude)
	parser.SetReadOnlyRoots(config.ReadOnlyRoots)
	return &DefaultEngine{
		parser:     parser,
		serializer: NewSerializer(),
		config:     config,
		logger:     logger,
	}
}

// LoadWorkspace parses every Java file under path.
func (e *DefaultEngine) LoadWorkspace(ctx context.Context, path string) (*types.Workspace, error) {
	ws, err := e.parser.ParseWorkspace(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}
	e.logger.Info("workspace loaded", "root", ws.RootPath, "files", len(ws.Files), "types", len(ws.Types))
	return ws, nil
}

// RefreshFiles re-reads paths from disk. Missing files leave the workspace.
func (e *DefaultEngine) RefreshFiles(ctx context.Context, ws *types.Workspace, paths []string) error {
	return watch.NewUpdater(ws, e.parser, e.logger).Refresh(ctx, paths)
}

func (e *DefaultEngine) processor(ws *types.Workspace) *ChangeSignatureProcessor {
	return NewChangeSignatureProcessor(ws, ProcessorOptions{
		Logger:         e.logger,
		Metrics:        e.config.Metrics,
		SkipValidation: e.config.SkipValidation,
	})
}

// ChangeSignature plans the change req describes.
func (e *DefaultEngine) ChangeSignature(ctx context.Context, ws *types.Workspace, req *ChangeSignatureRequest) (*ChangeSet, *types.Status, types.Outcome, error) {
	p := e.processor(ws)
	op := &ChangeSignatureOperation{Request: req}
	model, status := op.Model(ctx, p, ws)
	if status.HasFatal() {
		return nil, status, types.OutcomeOf(ctx, status), nil
	}
	cs, st, outcome, err := p.Run(ctx, model)
	status.Merge(st)
	if cs != nil {
		cs.Status = status
	}
	return cs, status, outcome, err
}

// ReplayDescriptor plans the change a descriptor records.
func (e *DefaultEngine) ReplayDescriptor(ctx context.Context, ws *types.Workspace, d Descriptor) (*ChangeSet, *types.Status, types.Outcome, error) {
	model, status := DecodeDescriptor(ws, d)
	if status.HasFatal() {
		return nil, status, types.OutcomeRejected, nil
	}
	return e.processor(ws).Run(ctx, model)
}

// IntroduceParameterObject plans wrapping parameters into a new class.
func (e *DefaultEngine) IntroduceParameterObject(ctx context.Context, ws *types.Workspace, req ParameterObjectRequest) (*ChangeSet, *types.Status, types.Outcome, error) {
	return e.processor(ws).IntroduceParameterObject(ctx, req)
}

// CheckDescriptor runs the final checks of a descriptor without planning
// edits.
func (e *DefaultEngine) CheckDescriptor(ctx context.Context, ws *types.Workspace, d Descriptor) (*types.Status, types.Outcome, error) {
	model, status := DecodeDescriptor(ws, d)
	if status.HasFatal() {
		return status, types.OutcomeRejected, nil
	}
	return e.processor(ws).CheckFinalConditions(ctx, model)
}

// DescribeChange encodes the descriptor of req without checking or planning
// the change.
func (e *DefaultEngine) DescribeChange(ctx context.Context, ws *types.Workspace, req *ChangeSignatureRequest) (Descriptor, *types.Status) {
	op := &ChangeSignatureOperation{Request: req}
	model, status := op.Model(ctx, e.processor(ws), ws)
	if status.HasFatal() {
		return nil, status
	}
	return EncodeDescriptor(model, uuid.NewString()), status
}

// ValidateRefactoring refuses plans whose status carries a Fatal, or an
// Error unless breaking changes are allowed, and plans with conflicting
// edits.
func (e *DefaultEngine) ValidateRefactoring(plan *types.RefactoringPlan) error {
	if plan.Status.HasFatal() || (plan.Status.HasError() && !e.config.AllowBreaking) {
		return &types.ValidationError{Status: plan.Status}
	}
	return validateChanges(plan.Changes)
}

// ExecutePlan applies a refactoring plan to the workspace
func (e *DefaultEngine) ExecutePlan(plan *types.RefactoringPlan) error {
	// Final validation before execution
	if err := e.ValidateRefactoring(plan); err != nil {
		return err // Return the validation error directly to preserve its type
	}
	if len(plan.Changes) == 0 {
		return nil
	}

	originals := snapshotFiles(plan.AffectedFiles)
	backups := make(map[string]string)
	if e.config.Backup {
		for _, path := range plan.AffectedFiles {
			backup, err := e.serializer.BackupFile(path)
			if err != nil {
				e.restore(backups)
				return &types.RefactorError{Type: types.FileSystemError, Message: "failed to back up file", File: path, Cause: err}
			}
			backups[path] = backup
		}
	}

	if err := e.serializer.ApplyChanges(plan.Changes); err != nil {
		e.rollback(backups, originals, plan.AffectedFiles)
		return fmt.Errorf("failed to apply changes: %w", err)
	}
	if path, err := e.checkWritten(plan.AffectedFiles, originals); err != nil {
		e.rollback(backups, originals, plan.AffectedFiles)
		e.logger.Error("plan rolled back", "id", plan.ID, "file", path, "error", err)
		return &types.RefactorError{Type: types.ValidationFailure, Message: "refactoring produced a file that does not parse", File: path, Cause: err}
	}
	e.logger.Info("plan applied", "id", plan.ID, "files", len(plan.AffectedFiles), "changes", len(plan.Changes))
	return nil
}

// snapshotFiles reads the current content of paths. Files that do not
// exist are absent from the result.
func snapshotFiles(paths []string) map[string][]byte {
	out := make(map[string][]byte, len(paths))
	for _, path := range paths {
		if content, err := os.ReadFile(path); err == nil {
			out[path] = content
		}
	}
	return out
}

// checkWritten re-parses every written Java file. A syntax error already
// present in the original content is not blamed on the plan.
func (e *DefaultEngine) checkWritten(paths []string, originals map[string][]byte) (string, error) {
	if e.config.SkipValidation {
		return "", nil
	}
	ctx := context.Background()
	for _, path := range paths {
		err := e.serializer.ValidateFileStructure(ctx, path)
		if err == nil {
			continue
		}
		if original, ok := originals[path]; ok && checkSyntax(ctx, path, original) != nil {
			e.logger.Warn("file had syntax errors before the refactoring", "file", path)
			continue
		}
		return path, err
	}
	return "", nil
}

// rollback puts affected files back, from backups when they were taken and
// from the in-memory snapshot otherwise.
func (e *DefaultEngine) rollback(backups map[string]string, originals map[string][]byte, paths []string) {
	if len(backups) > 0 {
		e.restore(backups)
		return
	}
	for _, path := range paths {
		original, ok := originals[path]
		var err error
		if ok {
			err = os.WriteFile(path, original, 0644)
		} else if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
		if err != nil {
			e.logger.Error("failed to roll back file", "file", path, "error", err)
		}
	}
}

func (e *DefaultEngine) restore(backups map[string]string) {
	for path, backup := range backups {
		if err := e.serializer.RestoreFromBackup(path, backup); err != nil {
			e.logger.Error("failed to restore backup", "file", path, "error", err)
		}
	}
}

// PreviewPlan generates a preview of the changes without applying them
func (e *DefaultEngine) PreviewPlan(plan *types.RefactoringPlan) (string, error) {
	return e.serializer.PreviewChanges(plan.Changes)
}

// DiffPlan renders the plan as a unified diff with paths relative to the
// workspace root.
func (e *DefaultEngine) DiffPlan(ws *types.Workspace, plan *types.RefactoringPlan) (string, error) {
	var b strings.Builder
	for _, path := range plan.AffectedFiles {
		var original string
		if f, ok := ws.Files[path]; ok {
			original = string(f.Content)
		}
		name := path
		if rel, err := filepath.Rel(ws.RootPath, path); err == nil {
			name = rel
		}
		d, err := e.serializer.GenerateDiff(name, original, string(plan.Previews[path]))
		if err != nil {
			return "", err
		}
		b.WriteString(d)
	}
	return b.String(), nil
}
