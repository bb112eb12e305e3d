package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mamaar/sigrefactor/pkg/refactor"
	"github.com/mamaar/sigrefactor/pkg/types"
	"github.com/mamaar/sigrefactor/pkg/watch"
)

func (app *App) newWatchCmd() *cobra.Command {
	var descriptorPath string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check a descriptor whenever Java sources change",
		Long: `Keep the workspace index current while files change and re-run the final
checks of a descriptor after every batch of changes. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := readDescriptorFile(descriptorPath)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			ws, err := app.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			check := func(ctx context.Context) {
				status, outcome, err := app.engine.CheckDescriptor(ctx, ws, d)
				if err != nil {
					app.logger.Error("check failed", "error", err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", headerStyle.Render(d[refactor.AttrInput]), severityStyle(status.Severity()).Render(outcome.String()))
				printStatus(cmd.OutOrStdout(), ws.RootPath, status)
			}
			check(ctx)

			handler := func(ctx context.Context, changes []watch.Change) {
				if err := app.engine.RefreshFiles(ctx, ws, watch.Paths(changes)); err != nil {
					app.logger.Error("refresh failed", "error", err)
					return
				}
				app.logger.Info("workspace refreshed", "files", len(changes), "types", len(ws.Types))
				check(ctx)
			}
			w, err := watch.New(ws.RootPath, handler, app.cfg.WatchOptions(), app.logger)
			if err != nil {
				return &types.RefactorError{Type: types.FileSystemError, Message: "failed to start watcher", File: ws.RootPath, Cause: err}
			}
			defer w.Stop()
			app.logger.Info("watching", "root", ws.RootPath, "method", d[refactor.AttrInput])
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&descriptorPath, "descriptor", "d", "", "Descriptor to re-check")
	_ = cmd.MarkFlagRequired("descriptor")
	return cmd
}
