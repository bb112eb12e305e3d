package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// startWatcher runs a watcher on dir and returns the channel of batches it
// hands to its handler.
func startWatcher(t *testing.T, dir string, debounce time.Duration, timeout time.Duration) (<-chan []Change, context.Context) {
	t.Helper()
	out := make(chan []Change, 10)
	opts := DefaultOptions()
	opts.Debounce = debounce
	w, err := New(dir, func(_ context.Context, changes []Change) { out <- changes }, &opts, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	go func() { _ = w.Run(ctx) }()
	// let the watcher register its directories
	time.Sleep(50 * time.Millisecond)
	return out, ctx
}

func TestWatcher_CreateFileTriggersEvent(t *testing.T) {
	dir := t.TempDir()
	writeJavaFile(t, dir, "Init.java", "class Init {}\n")
	out, _ := startWatcher(t, dir, 50*time.Millisecond, 3*time.Second)

	writeJavaFile(t, dir, "New.java", "class New { void m() {} }\n")

	batch := waitForBatch(t, out, 2*time.Second)
	assertContainsPath(t, batch, filepath.Join(dir, "New.java"))
}

func TestWatcher_ModifyFileTriggersEvent(t *testing.T) {
	dir := t.TempDir()
	writeJavaFile(t, dir, "Main.java", "class Main {}\n")
	out, _ := startWatcher(t, dir, 50*time.Millisecond, 3*time.Second)

	writeJavaFile(t, dir, "Main.java", "class Main { void hello() {} }\n")

	batch := waitForBatch(t, out, 2*time.Second)
	assertContainsPath(t, batch, filepath.Join(dir, "Main.java"))
}

func TestWatcher_DeleteFileTriggersEvent(t *testing.T) {
	dir := t.TempDir()
	writeJavaFile(t, dir, "Del.java", "class Del {}\n")
	out, _ := startWatcher(t, dir, 50*time.Millisecond, 3*time.Second)

	require.NoError(t, os.Remove(filepath.Join(dir, "Del.java")))

	batch := waitForBatch(t, out, 2*time.Second)
	assertContainsPath(t, batch, filepath.Join(dir, "Del.java"))
}

func TestWatcher_NonJavaFileIgnored(t *testing.T) {
	dir := t.TempDir()
	writeJavaFile(t, dir, "Init.java", "class Init {}\n")
	out, ctx := startWatcher(t, dir, 50*time.Millisecond, time.Second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("hello"), 0644))

	select {
	case batch := <-out:
		t.Fatalf("expected no events for .md file, got %d", len(batch))
	case <-ctx.Done():
	}
}

func TestWatcher_ExcludedDirectoryIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build"), 0755))
	out, ctx := startWatcher(t, dir, 50*time.Millisecond, time.Second)

	writeJavaFile(t, filepath.Join(dir, "build"), "Gen.java", "class Gen {}\n")

	select {
	case batch := <-out:
		t.Fatalf("expected no events under build/, got %v", batch)
	case <-ctx.Done():
	}
}

func TestWatcher_DebounceCoalescesEvents(t *testing.T) {
	dir := t.TempDir()
	writeJavaFile(t, dir, "Init.java", "class Init {}\n")
	out, _ := startWatcher(t, dir, 200*time.Millisecond, 3*time.Second)

	for i := 0; i < 5; i++ {
		writeJavaFile(t, dir, "Rapid.java", "class Rapid {}\n// v"+string(rune('0'+i))+"\n")
		time.Sleep(20 * time.Millisecond)
	}

	batch := waitForBatch(t, out, 2*time.Second)
	count := 0
	for _, c := range batch {
		if filepath.Base(c.Path) == "Rapid.java" {
			count++
		}
	}
	assert.Equal(t, 1, count, "rapid edits coalesce into one change")
}

func TestWatcher_ContextCancellationStops(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, func(context.Context, []Change) {}, nil, testLogger())
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestWatcher_StopEndsRun(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, func(context.Context, []Change) {}, nil, testLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = w.Run(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()
	wg.Wait()
	assert.NoError(t, runErr)
}

func TestPaths(t *testing.T) {
	changes := []Change{{Path: "/a/A.java", Op: OpWrite}, {Path: "/a/B.java", Op: OpRemove}}
	assert.Equal(t, []string{"/a/A.java", "/a/B.java"}, Paths(changes))
	assert.Equal(t, "remove", OpRemove.String())
}

// --- helpers ---

func writeJavaFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func waitForBatch(t *testing.T, ch <-chan []Change, timeout time.Duration) []Change {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func assertContainsPath(t *testing.T, batch []Change, path string) {
	t.Helper()
	for _, c := range batch {
		if c.Path == path {
			return
		}
	}
	t.Fatalf("batch does not contain %s; got %v", path, batch)
}
