// Package watch keeps a parsed workspace in sync with the file system and
// reports batches of changed Java sources.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of a file change.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the string representation of Op
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one observed change of a source file.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives the debounced changes of a batch, at most one change
// per path.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	Debounce   time.Duration
	Exclude    []string // directory names and glob patterns
	Extensions []string
	BufferSize int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		Exclude:    []string{".git", "build", "target", "out", "node_modules", "*.swp", "*.tmp", "*.backup", "*.created"},
		Extensions: []string{".java"},
		BufferSize: 1024,
	}
}

// Watcher watches a directory tree and hands batches of source changes to
// a handler. The handler is called from a single goroutine.
type Watcher struct {
	root    string
	opts    Options
	watcher *fsnotify.Watcher
	handler Handler
	logger  *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for root. Call Run to start it.
func New(root string, handler Handler, opts *Options, logger *slog.Logger) (*Watcher, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    root,
		opts:    *opts,
		watcher: w,
		handler: handler,
		logger:  logger,
		changes: make(chan Change, opts.BufferSize),
		done:    make(chan struct{}),
	}, nil
}

// Run watches until ctx ends or Stop is called. It returns ctx.Err() when
// the context ends and nil after Stop.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	w.debounceLoop(ctx)
	return ctx.Err()
}

// Stop ends watching.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.opts.Exclude {
		if base == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) relevant(path string) bool {
	if w.ignored(path) {
		return false
	}
	return slices.ContainsFunc(w.opts.Extensions, func(ext string) bool { return strings.HasSuffix(path, ext) })
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) && !w.ignored(event.Name) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("cannot watch directory", "dir", event.Name, "error", err)
				}
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			select {
			case w.changes <- Change{Path: event.Name, Op: convertOp(event.Op), Time: time.Now()}:
			default:
				w.logger.Warn("change buffer full, dropping event", "file", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// debounceLoop collects changes until the debounce window passes quietly,
// then hands the batch to the handler.
func (w *Watcher) debounceLoop(ctx context.Context) {
	pending := make(map[string]Change)
	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]Change, 0, len(pending))
		for _, c := range pending {
			batch = append(batch, c)
		}
		slices.SortFunc(batch, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
		clear(pending)
		w.logger.Debug("change batch ready", "files", len(batch))
		w.handler(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case c := <-w.changes:
			pending[c.Path] = c
			timer.Reset(w.opts.Debounce)
		case <-timer.C:
			flush()
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// Paths returns the paths of changes.
func Paths(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
