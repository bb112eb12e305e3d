package cli

import (
	"github.com/spf13/cobra"

	"github.com/mamaar/sigrefactor/pkg/refactor"
)

func (app *App) newParameterObjectCmd() *cobra.Command {
	var (
		method    string
		params    []string
		className string
		paramName string
		nested    bool
		getters   bool
		setters   bool
	)
	cmd := &cobra.Command{
		Use:   "parameter-object",
		Short: "Replace parameters of a method with a new parameter class",
		Long: `Move the selected parameters of a method into a new class and pass an
instance of it instead. The class is created next to the declaring type, or
nested in it with --nested. Call sites construct the object from their
arguments and method bodies read the values through it.`,
		Example: `  sigrefactor parameter-object -m 'com.acme.Shop#order(String,int,boolean)' -p item -p count --class OrderLine`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			po := app.cfg.Refactor.ParameterObject
			req := refactor.ParameterObjectRequest{
				Method:        method,
				Parameters:    params,
				ClassName:     className,
				ParameterName: paramName,
				TopLevel:      po.TopLevel,
				Getters:       po.Getters,
				Setters:       po.Setters,
			}
			if req.ParameterName == "" {
				req.ParameterName = po.ParameterName
			}
			set := cmd.Flags().Changed
			if set("nested") {
				req.TopLevel = !nested
			}
			if set("getters") {
				req.Getters = getters
			}
			if set("setters") {
				req.Setters = setters
			}

			ctx := commandContext(cmd)
			ws, err := app.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			cs, status, outcome, err := app.engine.IntroduceParameterObject(ctx, ws, req)
			if err != nil {
				return err
			}
			return app.processResult(cmd, ws, result{cs: cs, status: status, outcome: outcome})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&method, "method", "m", "", "Method handle, e.g. com.acme.Shop#order(String,int)")
	fl.StringArrayVarP(&params, "param", "p", nil, "Parameter to move into the class (repeatable, default all)")
	fl.StringVar(&className, "class", "", "Name of the new class (default <Method>Parameter)")
	fl.StringVar(&paramName, "name", "", "Name of the new parameter")
	fl.BoolVar(&nested, "nested", false, "Create the class nested in the declaring type")
	fl.BoolVar(&getters, "getters", true, "Generate getters and read values through them")
	fl.BoolVar(&setters, "setters", false, "Generate setters")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}
