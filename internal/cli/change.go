package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamaar/sigrefactor/pkg/refactor"
	"github.com/mamaar/sigrefactor/pkg/types"
)

// changeFlags are the flags describing a signature change in terms of the
// old signature.
type changeFlags struct {
	method           string
	name             string
	returnType       string
	visibility       string
	add              []string
	remove           []string
	rename           []string
	retype           []string
	move             []string
	addExceptions    []string
	deleteExceptions []string
	delegate         bool
	deprecate        bool
}

func (f *changeFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.method, "method", "m", "", "Method handle, e.g. com.acme.Shop#order(String,int)")
	fl.StringVar(&f.name, "name", "", "New method name")
	fl.StringVar(&f.returnType, "return", "", "New return type")
	fl.StringVar(&f.visibility, "visibility", "", "New visibility: public, protected, package or private")
	fl.StringArrayVar(&f.add, "add", nil, `Add a parameter: "Type name[=default][@index]" (repeatable)`)
	fl.StringArrayVar(&f.remove, "delete", nil, "Delete the named parameter (repeatable)")
	fl.StringArrayVar(&f.rename, "rename", nil, "Rename a parameter: old=new (repeatable)")
	fl.StringArrayVar(&f.retype, "retype", nil, "Change a parameter type: name=Type (repeatable)")
	fl.StringArrayVar(&f.move, "move", nil, "Move a parameter: from:to, zero-based (repeatable)")
	fl.StringArrayVar(&f.addExceptions, "add-exception", nil, "Add a thrown exception (repeatable)")
	fl.StringArrayVar(&f.deleteExceptions, "delete-exception", nil, "Remove a thrown exception (repeatable)")
	fl.BoolVar(&f.delegate, "delegate", false, "Keep the old signature as a delegate to the new one")
	fl.BoolVar(&f.deprecate, "deprecate", false, "Mark the delegate @deprecated")
	_ = cmd.MarkFlagRequired("method")
}

// request builds the change request the flags describe.
func (f *changeFlags) request(deprecateDelegates bool) (*refactor.ChangeSignatureRequest, error) {
	req := &refactor.ChangeSignatureRequest{
		Method:           f.method,
		NewName:          f.name,
		ReturnType:       f.returnType,
		Visibility:       f.visibility,
		Delete:           f.remove,
		AddExceptions:    f.addExceptions,
		DeleteExceptions: f.deleteExceptions,
		Delegate:         f.delegate,
		Deprecate:        f.deprecate || (f.delegate && deprecateDelegates),
	}
	var err error
	if req.Rename, err = refactor.ParsePairs(f.rename); err != nil {
		return nil, fmt.Errorf("--rename: %w", err)
	}
	if req.Retype, err = refactor.ParsePairs(f.retype); err != nil {
		return nil, fmt.Errorf("--retype: %w", err)
	}
	for _, s := range f.add {
		a, err := refactor.ParseParameterAddition(s)
		if err != nil {
			return nil, fmt.Errorf("--add: %w", err)
		}
		req.Add = append(req.Add, a)
	}
	for _, s := range f.move {
		m, err := refactor.ParseParameterMove(s)
		if err != nil {
			return nil, fmt.Errorf("--move: %w", err)
		}
		req.Move = append(req.Move, m)
	}
	return req, nil
}

func (app *App) newChangeCmd() *cobra.Command {
	var flags changeFlags
	var descriptorOut string
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change the signature of a method or constructor",
		Long: `Change the name, return type, visibility, parameters or thrown exceptions
of a method and update its ripple, call sites and Javadoc references.

Parameters are addressed by their old names; --move indexes refer to the
parameter list after additions.`,
		Example: `  sigrefactor change -m 'com.acme.Shop#order(String,int)' --add 'boolean express=false' --rename count=quantity
  sigrefactor change -m 'com.acme.Shop#order(String,int)' --move 1:0 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(app.cfg.Refactor.DeprecateDelegates)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			ws, err := app.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			cs, status, outcome, err := app.engine.ChangeSignature(ctx, ws, req)
			if err != nil {
				return err
			}
			return app.processResult(cmd, ws, result{cs: cs, status: status, outcome: outcome, descriptorOut: descriptorOut})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&descriptorOut, "descriptor-out", "", "Write the replayable descriptor to this file (- for stdout)")
	return cmd
}

func (app *App) newDescriptorCmd() *cobra.Command {
	var flags changeFlags
	var out string
	cmd := &cobra.Command{
		Use:   "descriptor",
		Short: "Write the descriptor of a signature change without applying it",
		Long: `Encode a signature change as a YAML descriptor. The descriptor can be
checked with 'sigrefactor check' and applied with 'sigrefactor replay'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(app.cfg.Refactor.DeprecateDelegates)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			ws, err := app.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			d, status := app.engine.DescribeChange(ctx, ws, req)
			if status.HasFatal() {
				printStatus(cmd.ErrOrStderr(), ws.RootPath, status)
				return errRejected
			}
			return writeDescriptorFile(cmd.OutOrStdout(), out, d)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Descriptor file (- for stdout)")
	return cmd
}

func (app *App) newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <descriptor>",
		Short: "Apply a signature change recorded in a descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDescriptorFile(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			ws, err := app.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			cs, status, outcome, err := app.engine.ReplayDescriptor(ctx, ws, d)
			if err != nil {
				return err
			}
			return app.processResult(cmd, ws, result{cs: cs, status: status, outcome: outcome})
		},
	}
}

func (app *App) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <descriptor>",
		Short: "Check a descriptor against the workspace without planning edits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDescriptorFile(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			ws, err := app.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			status, outcome, err := app.engine.CheckDescriptor(ctx, ws, d)
			if err != nil {
				return err
			}
			return app.reportCheck(cmd, ws.RootPath, status, outcome)
		},
	}
}

// reportCheck prints the status of a check and fails unless it completed.
func (app *App) reportCheck(cmd *cobra.Command, root string, status *types.Status, outcome types.Outcome) error {
	if app.flags.JSON {
		if err := outputJSON(cmd.OutOrStdout(), newReport(root, status, outcome)); err != nil {
			return err
		}
	} else {
		printStatus(cmd.OutOrStdout(), root, status)
	}
	switch outcome {
	case types.OutcomeCancelled:
		return errCancelled
	case types.OutcomeRejected:
		return errRejected
	}
	return nil
}
