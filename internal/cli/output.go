package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mamaar/sigrefactor/pkg/refactor"
	"github.com/mamaar/sigrefactor/pkg/types"
)

var (
	fatalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func severityStyle(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeverityFatal:
		return fatalStyle
	case types.SeverityError:
		return errorStyle
	case types.SeverityWarning:
		return warningStyle
	case types.SeverityInfo:
		return infoStyle
	default:
		return okStyle
	}
}

// printStatus renders the entries of status as a table. Locations are shown
// relative to root.
func printStatus(w io.Writer, root string, status *types.Status) {
	if status == nil || status.Len() == 0 {
		fmt.Fprintln(w, okStyle.Render("No problems found"))
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Code", "Message", "Location"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	for _, e := range status.Entries() {
		table.Append([]string{
			severityStyle(e.Severity).Render(e.Severity.String()),
			e.Code,
			e.Message,
			location(root, e.Context),
		})
	}
	table.Render()
}

func location(root string, ctx *types.SourceContext) string {
	if ctx == nil || ctx.File == "" {
		return ""
	}
	return relPath(root, ctx.File) + ":" + strconv.Itoa(ctx.Line)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}

// printSummary renders one row per changed file with its edit count and
// diff stat.
func printSummary(w io.Writer, root string, cs *refactor.ChangeSet, diffs map[string]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Edits", "+", "-"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})

	var edits, added, deleted int
	for _, f := range cs.Files {
		a, d, _ := refactor.DiffStat(diffs[f.Path])
		name := relPath(root, f.Path)
		if f.Created {
			name += " (new)"
		}
		table.Append([]string{name, strconv.Itoa(len(f.Changes)), strconv.Itoa(a), strconv.Itoa(d)})
		edits += len(f.Changes)
		added += a
		deleted += d
	}
	table.SetFooter([]string{fmt.Sprintf("%d files", len(cs.Files)), strconv.Itoa(edits), strconv.Itoa(added), strconv.Itoa(deleted)})
	table.Render()
}

// report is the JSON form of a run.
type report struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Outcome    string            `json:"outcome"`
	Severity   string            `json:"severity"`
	Entries    []reportEntry     `json:"entries"`
	Files      []string          `json:"files,omitempty"`
	Descriptor map[string]string `json:"descriptor,omitempty"`
	Diff       string            `json:"diff,omitempty"`
	Applied    bool              `json:"applied"`
}

type reportEntry struct {
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

func newReport(root string, status *types.Status, outcome types.Outcome) *report {
	r := &report{Outcome: outcome.String(), Severity: status.Severity().String(), Entries: []reportEntry{}}
	if status == nil {
		return r
	}
	for _, e := range status.Entries() {
		r.Entries = append(r.Entries, reportEntry{
			Severity: e.Severity.String(),
			Code:     e.Code,
			Message:  e.Message,
			Location: location(root, e.Context),
		})
	}
	return r
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// result is what a planning command hands to processResult.
type result struct {
	cs            *refactor.ChangeSet
	status        *types.Status
	outcome       types.Outcome
	descriptorOut string
}

// processResult reports the status of a run, then previews or applies its
// change set.
func (app *App) processResult(cmd *cobra.Command, ws *types.Workspace, res result) error {
	out := cmd.OutOrStdout()
	var rep *report
	if app.flags.JSON {
		rep = newReport(ws.RootPath, res.status, res.outcome)
	} else {
		printStatus(out, ws.RootPath, res.status)
	}
	emit := func(err error) error {
		if rep != nil {
			if jerr := outputJSON(out, rep); jerr != nil {
				return jerr
			}
		}
		return err
	}

	switch res.outcome {
	case types.OutcomeCancelled:
		return emit(errCancelled)
	case types.OutcomeRejected:
		return emit(errRejected)
	}

	plan := res.cs.AsPlan()
	if res.descriptorOut != "" {
		if err := writeDescriptorFile(out, res.descriptorOut, res.cs.Descriptor); err != nil {
			return emit(err)
		}
	}
	diffs := make(map[string]string, len(plan.AffectedFiles))
	var all string
	for _, path := range plan.AffectedFiles {
		single := *plan
		single.AffectedFiles = []string{path}
		d, err := app.engine.DiffPlan(ws, &single)
		if err != nil {
			return emit(err)
		}
		diffs[path] = d
		all += d
	}
	if rep != nil {
		rep.ID, rep.Name, rep.Files, rep.Descriptor = plan.ID, plan.Name, plan.AffectedFiles, plan.Descriptor
		if app.flags.DryRun || app.flags.Verbose {
			rep.Diff = all
		}
	} else {
		fmt.Fprintln(out)
		fmt.Fprintln(out, headerStyle.Render(plan.Name))
		printSummary(out, ws.RootPath, res.cs, diffs)
		if app.flags.DryRun || app.flags.Verbose {
			fmt.Fprintln(out)
			fmt.Fprint(out, all)
		}
	}

	if app.flags.DryRun {
		if rep == nil {
			fmt.Fprintln(out, infoStyle.Render("Dry run mode - no changes applied"))
		}
		return emit(nil)
	}
	if err := app.engine.ExecutePlan(plan); err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			return emit(fmt.Errorf("%w: status is %s, use --allow-breaking to apply anyway", errRejected, verr.Status.Severity()))
		}
		return emit(err)
	}
	if rep != nil {
		rep.Applied = true
		return emit(nil)
	}
	fmt.Fprintf(out, "%s Modified %d files\n", okStyle.Render("Refactoring completed successfully."), len(plan.AffectedFiles))
	return nil
}

// writeDescriptorFile writes d to path, or to stdout when path is "-".
func writeDescriptorFile(stdout io.Writer, path string, d refactor.Descriptor) error {
	if path == "-" {
		return refactor.WriteDescriptor(stdout, d)
	}
	f, err := os.Create(path)
	if err != nil {
		return &types.RefactorError{Type: types.FileSystemError, Message: "failed to create descriptor file", File: path, Cause: err}
	}
	if err := refactor.WriteDescriptor(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readDescriptorFile(path string) (refactor.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.RefactorError{Type: types.FileSystemError, Message: "failed to open descriptor file", File: path, Cause: err}
	}
	defer f.Close()
	d, err := refactor.ReadDescriptor(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// commandContext returns the command's context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
