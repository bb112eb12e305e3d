package refactor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	refactorTypes "github.com/mamaar/sigrefactor/pkg/types"
)

// diffContext is the number of unchanged lines around each hunk.
const diffContext = 3

// Serializer applies refactoring changes to files while preserving formatting
type Serializer struct{}

func NewSerializer() *Serializer {
	return &Serializer{}
}

// ApplyChanges applies a list of changes to the workspace files
func (s *Serializer) ApplyChanges(changes []refactorTypes.Change) error {
	if len(changes) == 0 {
		return nil // No changes to apply
	}

	for _, filePath := range changedFiles(changes) {
		if err := s.applyChangesToFile(filePath, changesFor(changes, filePath)); err != nil {
			return &refactorTypes.RefactorError{
				Type:    refactorTypes.FileSystemError,
				Message: fmt.Sprintf("failed to apply changes to file %s: %v", filePath, err),
				File:    filePath,
				Cause:   err,
			}
		}
	}

	return nil
}

// ApplyToContent returns content with changes applied. Changes address the
// original content and must not overlap.
func ApplyToContent(content []byte, changes []refactorTypes.Change) ([]byte, error) {
	sorted := append([]refactorTypes.Change(nil), changes...)
	// reverse order so earlier offsets stay valid
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start > sorted[j].Start
	})
	if err := validateChangePositions(sorted); err != nil {
		return nil, fmt.Errorf("invalid change positions: %w", err)
	}

	modified := string(content)
	for _, change := range sorted {
		var err error
		modified, err = applyChange(modified, change)
		if err != nil {
			return nil, fmt.Errorf("failed to apply change: %w", err)
		}
	}
	return []byte(modified), nil
}

// PreviewChanges generates a preview of what changes would be applied
func (s *Serializer) PreviewChanges(changes []refactorTypes.Change) (string, error) {
	if len(changes) == 0 {
		return "No changes to preview", nil
	}

	var preview strings.Builder
	files := changedFiles(changes)
	fmt.Fprintf(&preview, "Preview of %d changes across %d files:\n\n", len(changes), len(files))

	for _, file := range files {
		changesForFile := changesFor(changes, file)
		fmt.Fprintf(&preview, "File: %s\n", file)
		preview.WriteString(strings.Repeat("-", len(file)+6) + "\n")

		sort.Slice(changesForFile, func(i, j int) bool {
			return changesForFile[i].Start < changesForFile[j].Start
		})

		for i, change := range changesForFile {
			fmt.Fprintf(&preview, "%d. %s\n", i+1, change.Description)
			fmt.Fprintf(&preview, "   Position: %d-%d\n", change.Start, change.End)

			if change.OldText != "" {
				fmt.Fprintf(&preview, "   - %s\n", truncateText(change.OldText))
			}
			if change.NewText != "" {
				fmt.Fprintf(&preview, "   + %s\n", truncateText(change.NewText))
			}
			preview.WriteString("\n")
		}
		preview.WriteString("\n")
	}

	return preview.String(), nil
}

func changedFiles(changes []refactorTypes.Change) []string {
	seen := make(map[string]bool)
	var files []string
	for _, c := range changes {
		if !seen[c.File] {
			seen[c.File] = true
			files = append(files, c.File)
		}
	}
	sort.Strings(files)
	return files
}

func changesFor(changes []refactorTypes.Change, file string) []refactorTypes.Change {
	var out []refactorTypes.Change
	for _, c := range changes {
		if c.File == file {
			out = append(out, c)
		}
	}
	return out
}

// applyChangesToFile applies changes to a single file
func (s *Serializer) applyChangesToFile(filePath string, changes []refactorTypes.Change) error {
	// Read the current file content, or start with empty content for new files
	content, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read file: %w", err)
		}
		content = nil
		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	modified, err := ApplyToContent(content, changes)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, modified, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// applyChange applies a single change to the content
func applyChange(content string, change refactorTypes.Change) (string, error) {
	if change.Start < 0 || change.End > len(content) || change.Start > change.End {
		return "", fmt.Errorf("invalid change bounds: start=%d, end=%d, content length=%d",
			change.Start, change.End, len(content))
	}

	// Verify that the old text matches what we expect (if provided)
	if change.OldText != "" {
		actualOldText := content[change.Start:change.End]
		if actualOldText != change.OldText {
			return "", fmt.Errorf("old text mismatch: expected '%s', found '%s'",
				change.OldText, actualOldText)
		}
	}

	return content[:change.Start] + change.NewText + content[change.End:], nil
}

// validateChangePositions ensures changes don't overlap
func validateChangePositions(changes []refactorTypes.Change) error {
	for i := 0; i < len(changes); i++ {
		for j := i + 1; j < len(changes); j++ {
			if changesOverlap(changes[i], changes[j]) {
				return fmt.Errorf("overlapping changes detected: [%d-%d] and [%d-%d]",
					changes[i].Start, changes[i].End, changes[j].Start, changes[j].End)
			}
		}
	}
	return nil
}

// changesOverlap checks if two changes overlap. Two insertions at the same
// offset would apply in an unspecified order and count as overlapping.
func changesOverlap(change1, change2 refactorTypes.Change) bool {
	if change1.Start == change1.End && change2.Start == change2.End {
		return change1.Start == change2.Start
	}
	return change1.Start < change2.End && change2.Start < change1.End
}

// truncateText truncates text for display in previews
func truncateText(text string) string {
	const length = 80

	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= length {
		return text
	}
	return text[:length-3] + "..."
}

// createdSuffix marks a file that did not exist before the refactoring.
const createdSuffix = ".created"

// BackupFile creates a backup of a file before modifications. For a file
// that does not exist yet it writes a created marker instead, so restoring
// removes the file.
func (s *Serializer) BackupFile(filePath string) (string, error) {
	backupPath := filePath + ".backup"

	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
				return "", fmt.Errorf("failed to create directory: %w", err)
			}
			markerPath := filePath + createdSuffix
			if err := os.WriteFile(markerPath, nil, 0644); err != nil {
				return "", fmt.Errorf("failed to mark new file: %w", err)
			}
			return markerPath, nil
		}
		return "", fmt.Errorf("failed to read original file: %w", err)
	}

	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	return backupPath, nil
}

// RestoreFromBackup restores a file from its backup
func (s *Serializer) RestoreFromBackup(filePath, backupPath string) error {
	if strings.HasSuffix(backupPath, createdSuffix) {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove created file: %w", err)
		}
		return os.Remove(backupPath)
	}

	content, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("failed to restore file: %w", err)
	}
	return os.Remove(backupPath)
}

// GenerateDiff generates a unified diff between original and modified content
func (s *Serializer) GenerateDiff(filePath string, originalContent, modifiedContent string) (string, error) {
	fd := &diff.FileDiff{
		OrigName: "a/" + filepath.ToSlash(filePath),
		NewName:  "b/" + filepath.ToSlash(filePath),
		Hunks:    lineHunks(originalContent, modifiedContent),
	}
	if len(fd.Hunks) == 0 {
		return "", nil
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("failed to render diff for %s: %w", filePath, err)
	}
	return string(out), nil
}

// DiffStat counts the added and deleted lines of a unified diff.
func DiffStat(unified string) (added, deleted int, err error) {
	fds, err := diff.ParseMultiFileDiff([]byte(unified))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse diff: %w", err)
	}
	for _, fd := range fds {
		st := fd.Stat()
		added += int(st.Added + st.Changed)
		deleted += int(st.Deleted + st.Changed)
	}
	return added, deleted, nil
}

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// lineHunks computes line based hunks with diffContext lines of context.
func lineHunks(a, b string) []*diff.Hunk {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var all []diffLine
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		for _, l := range strings.Split(text, "\n") {
			all = append(all, diffLine{op: d.Type, text: l})
		}
	}

	var hunks []*diff.Hunk
	for i := 0; i < len(all); {
		if all[i].op == diffmatchpatch.DiffEqual {
			i++
			continue
		}
		start := max(i-diffContext, 0)
		end := i
		for end < len(all) {
			if all[end].op != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(all) && all[run].op == diffmatchpatch.DiffEqual {
				run++
			}
			if run == len(all) || run-end > 2*diffContext {
				end = min(end+diffContext, len(all))
				break
			}
			end = run
		}
		hunks = append(hunks, buildHunk(all, start, end))
		i = end
	}
	return hunks
}

func buildHunk(all []diffLine, start, end int) *diff.Hunk {
	origLine, newLine := int32(1), int32(1)
	for _, l := range all[:start] {
		if l.op != diffmatchpatch.DiffInsert {
			origLine++
		}
		if l.op != diffmatchpatch.DiffDelete {
			newLine++
		}
	}
	h := &diff.Hunk{OrigStartLine: origLine, NewStartLine: newLine}
	var body strings.Builder
	for _, l := range all[start:end] {
		switch l.op {
		case diffmatchpatch.DiffEqual:
			body.WriteString(" ")
			h.OrigLines++
			h.NewLines++
		case diffmatchpatch.DiffDelete:
			body.WriteString("-")
			h.OrigLines++
		case diffmatchpatch.DiffInsert:
			body.WriteString("+")
			h.NewLines++
		}
		body.WriteString(l.text)
		body.WriteString("\n")
	}
	h.Body = []byte(body.String())
	return h
}

// ValidateFileStructure reports whether a written Java file still parses
// without syntax errors.
func (s *Serializer) ValidateFileStructure(ctx context.Context, filePath string) error {
	if !strings.HasSuffix(filePath, ".java") {
		return nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file for validation: %w", err)
	}
	return checkSyntax(ctx, filePath, content)
}

func checkSyntax(ctx context.Context, filePath string, content []byte) error {
	tree, err := analysis.ParseTree(ctx, content)
	if err != nil {
		return fmt.Errorf("file structure validation failed: %w", err)
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		return fmt.Errorf("file structure validation failed: %s has syntax errors", filePath)
	}
	return nil
}
