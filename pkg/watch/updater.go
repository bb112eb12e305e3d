package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// WorkspaceUpdater keeps a parsed workspace in step with files on disk.
type WorkspaceUpdater struct {
	workspace *types.Workspace
	parser    *analysis.JavaParser
	logger    *slog.Logger
}

// NewUpdater creates a WorkspaceUpdater that reparses with parser.
func NewUpdater(ws *types.Workspace, parser *analysis.JavaParser, logger *slog.Logger) *WorkspaceUpdater {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WorkspaceUpdater{
		workspace: ws,
		parser:    parser,
		logger:    logger,
	}
}

// HandleChanges applies a batch of changes. Files that fail to reparse are
// logged and keep their previous parse.
func (u *WorkspaceUpdater) HandleChanges(ctx context.Context, changes []Change) {
	start := time.Now()
	applied := 0
	for _, c := range changes {
		if ctx.Err() != nil {
			return
		}
		// removals and renames are detected by the missing file
		if err := u.refresh(ctx, c.Path); err != nil {
			u.logger.Error("re-evaluation failed", "file", c.Path, "op", c.Op, "error", err)
			continue
		}
		applied++
	}

	u.logger.Info("batch complete",
		"files", len(changes),
		"applied", applied,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// Refresh re-reads paths from disk. Missing files leave the workspace and
// non-Java paths are ignored.
func (u *WorkspaceUpdater) Refresh(ctx context.Context, paths []string) error {
	for _, path := range paths {
		if err := u.refresh(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (u *WorkspaceUpdater) refresh(ctx context.Context, path string) error {
	if !strings.HasSuffix(path, ".java") {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(u.workspace.RootPath, path)
	}
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if f := u.workspace.RemoveFile(path); f != nil {
			f.Close()
			u.logger.Debug("file removed", "file", path)
		}
		return nil
	}
	if err != nil {
		return &types.RefactorError{Type: types.FileSystemError, Message: "failed to read file", File: path, Cause: err}
	}
	if _, err := u.parser.Reparse(ctx, u.workspace, path, content); err != nil {
		return fmt.Errorf("reparse %s: %w", path, err)
	}
	u.logger.Debug("file reparsed", "file", path)
	return nil
}

// FileCount returns the number of files currently in the workspace.
func (u *WorkspaceUpdater) FileCount() int {
	return len(u.workspace.Files)
}

// Workspace returns the workspace being updated.
func (u *WorkspaceUpdater) Workspace() *types.Workspace {
	return u.workspace
}

// String implements fmt.Stringer for logging convenience.
func (u *WorkspaceUpdater) String() string {
	return fmt.Sprintf("WorkspaceUpdater{files=%d, types=%d}", len(u.workspace.Files), len(u.workspace.Types))
}
