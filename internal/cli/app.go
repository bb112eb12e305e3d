// Package cli implements the sigrefactor command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mamaar/sigrefactor/internal/config"
	"github.com/mamaar/sigrefactor/pkg/refactor"
	"github.com/mamaar/sigrefactor/pkg/types"
)

var (
	errRejected  = errors.New("refactoring rejected")
	errCancelled = errors.New("refactoring cancelled")
)

// App holds the state shared by the commands of one invocation.
type App struct {
	flags   *Flags
	cfg     *config.Config
	logger  *slog.Logger
	metrics *refactor.Metrics
	engine  refactor.RefactorEngine
}

// NewApp creates a new application instance
func NewApp() *App {
	return &App{flags: &Flags{}}
}

// NewRootCmd builds the command tree of a fresh App.
func NewRootCmd() *cobra.Command {
	return NewApp().rootCmd()
}

func (app *App) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sigrefactor",
		Short: "Change the signature of Java methods across a source tree",
		Long: `sigrefactor rewrites the signature of a Java method or constructor and
updates every declaration in its ripple (overriding and overridden methods),
every call site and every Javadoc reference in the workspace.

Changes are planned, checked and validated before anything is written.
Use --dry-run to print the unified diff instead of applying it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.writeMetrics()
		},
	}
	app.flags.register(cmd)

	cmd.AddCommand(
		app.newChangeCmd(),
		app.newDescriptorCmd(),
		app.newReplayCmd(),
		app.newCheckCmd(),
		app.newParameterObjectCmd(),
		app.newWatchCmd(),
		newVersionCmd(),
	)
	return cmd
}

// initialize loads the config, applies flag overrides and builds the engine.
func (app *App) initialize(cmd *cobra.Command) error {
	cfg, err := config.Load(app.flags.Config)
	if err != nil {
		return err
	}
	app.flags.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.cfg = cfg
	app.logger = cfg.Logger(cmd.ErrOrStderr())
	app.metrics = refactor.NewMetrics()
	app.engine = refactor.CreateEngineWithConfig(cfg.EngineConfig(app.logger, app.metrics))
	return nil
}

func (app *App) writeMetrics() error {
	if app.cfg == nil || app.cfg.Metrics.Textfile == "" {
		return nil
	}
	return app.metrics.WriteTextfile(app.cfg.Metrics.Textfile)
}

func (app *App) loadWorkspace(ctx context.Context) (*types.Workspace, error) {
	root := app.cfg.WorkspaceRoot(app.flags.Config)
	ws, err := app.engine.LoadWorkspace(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("loading workspace %s: %w", root, err)
	}
	return ws, nil
}

// Execute runs the command line and exits non-zero on failure. SIGINT and
// SIGTERM cancel the running refactoring.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(cmd.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	if errors.Is(err, errRejected) || errors.Is(err, errCancelled) {
		fmt.Fprintln(w, errorStyle.Render(err.Error()))
		return
	}
	fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Error:"), err)
}
