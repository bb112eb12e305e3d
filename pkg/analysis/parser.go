package analysis

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"golang.org/x/sync/errgroup"

	"github.com/mamaar/sigrefactor/pkg/types"
)

// JavaParser parses Java sources into workspace files
type JavaParser struct {
	logger        *slog.Logger
	exclude       []string
	readOnlyRoots []string
}

func NewParser(logger *slog.Logger) *JavaParser {
	return &JavaParser{
		logger:  logger,
		exclude: []string{"build", "target", "out", "node_modules"},
	}
}

// SetExclude replaces the directory names skipped during workspace discovery.
func (p *JavaParser) SetExclude(dirs []string) {
	p.exclude = dirs
}

// SetReadOnlyRoots marks directories whose matches cannot be rewritten.
func (p *JavaParser) SetReadOnlyRoots(roots []string) {
	p.readOnlyRoots = roots
}

// ParseTree parses Java source with a fresh tree-sitter parser. Parsers are
// not safe for concurrent use, trees are.
func ParseTree(ctx context.Context, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("parser returned no tree")
	}
	return tree, nil
}

// ParseFile reads and parses a single Java file
func (p *JavaParser) ParseFile(ctx context.Context, filename string) (*types.File, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to read file: %v", err),
			File:    filename,
			Cause:   err,
		}
	}
	return p.ParseSource(ctx, filename, content)
}

// ParseSource parses content as the compilation unit at filename.
func (p *JavaParser) ParseSource(ctx context.Context, filename string, content []byte) (*types.File, error) {
	tree, err := ParseTree(ctx, content)
	if err != nil {
		return nil, &types.RefactorError{
			Type:    types.ParseError,
			Message: fmt.Sprintf("failed to parse file: %v", err),
			File:    filename,
			Cause:   err,
		}
	}

	file := &types.File{
		Path:    filename,
		Content: content,
		Tree:    tree,
	}
	extractDeclarations(file)
	return file, nil
}

// ParseWorkspace parses every .java file below rootPath.
// Files are discovered sequentially, then parsed in parallel with a bounded
// errgroup.
func (p *JavaParser) ParseWorkspace(ctx context.Context, rootPath string) (*types.Workspace, error) {
	p.logger.Info("parsing workspace", "path", rootPath)

	absRootPath, err := filepath.Abs(rootPath)
	if err != nil {
		p.logger.Error("failed to get absolute path", "path", rootPath, "err", err)
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to get absolute path for workspace: %v", err),
			File:    rootPath,
		}
	}

	workspace := types.NewWorkspace(absRootPath)
	workspace.ReadOnlyRoots = p.readOnlyRoots

	var paths []string
	err = filepath.WalkDir(absRootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRootPath && p.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".java") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("workspace discovery failed", "path", rootPath, "err", err)
		return nil, &types.RefactorError{
			Type:    types.FileSystemError,
			Message: fmt.Sprintf("failed to parse workspace: %v", err),
			File:    rootPath,
			Cause:   err,
		}
	}

	p.logger.Debug("discovered java files", "count", len(paths))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, path := range paths {
		g.Go(func() error {
			file, err := p.ParseFile(gctx, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("failed to parse file", "file", path, "err", err)
				return nil
			}
			mu.Lock()
			workspace.AddFile(file)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse workspace: %w", err)
	}

	p.logger.Info("workspace parsed successfully", "files", len(workspace.Files), "types", len(workspace.Types))
	return workspace, nil
}

func (p *JavaParser) skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, ex := range p.exclude {
		if ex == name {
			return true
		}
	}
	return false
}

// NewWorkspaceFromSources builds an in-memory workspace from path -> source
// pairs. Paths are taken relative to root.
func NewWorkspaceFromSources(ctx context.Context, root string, sources map[string]string) (*types.Workspace, error) {
	p := NewParser(slog.New(slog.DiscardHandler))
	ws := types.NewWorkspace(root)
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, name)
		}
		file, err := p.ParseSource(ctx, path, []byte(sources[name]))
		if err != nil {
			return nil, err
		}
		ws.AddFile(file)
	}
	return ws, nil
}

// Reparse replaces the file at path with a fresh parse of content and
// returns the new file.
func (p *JavaParser) Reparse(ctx context.Context, ws *types.Workspace, path string, content []byte) (*types.File, error) {
	file, err := p.ParseSource(ctx, path, content)
	if err != nil {
		return nil, err
	}
	if old := ws.RemoveFile(path); old != nil {
		old.Close()
	}
	ws.AddFile(file)
	return file, nil
}
