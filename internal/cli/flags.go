package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mamaar/sigrefactor/internal/config"
)

// Flags holds the persistent command line flags. Flags that were set
// explicitly override the config file.
type Flags struct {
	Workspace      string
	Config         string
	DryRun         bool
	JSON           bool
	Verbose        bool
	LogFormat      string
	Backup         bool
	SkipValidation bool
	AllowBreaking  bool
}

func (f *Flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.Workspace, "workspace", "w", ".", "Path to workspace root (defaults to current directory)")
	pf.StringVarP(&f.Config, "config", "c", "", "Path to config file (defaults to ./"+config.FileName+" when present)")
	pf.BoolVarP(&f.DryRun, "dry-run", "n", false, "Preview changes without applying them")
	pf.BoolVar(&f.JSON, "json", false, "Output results in JSON format")
	pf.BoolVarP(&f.Verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&f.LogFormat, "log-format", "text", "Log format: text or json")
	pf.BoolVar(&f.Backup, "backup", false, "Create backup files before making changes")
	pf.BoolVar(&f.SkipValidation, "skip-validation", false, "Skip re-parse validation of the declaring file")
	pf.BoolVar(&f.AllowBreaking, "allow-breaking", false, "Apply changes whose status carries errors")
}

// apply writes the explicitly set flags over cfg.
func (f *Flags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("workspace") {
		// relative to the working directory, not to the config file
		root, err := filepath.Abs(f.Workspace)
		if err != nil {
			root = f.Workspace
		}
		cfg.Workspace.Root = root
	}
	if set("verbose") && f.Verbose {
		cfg.Log.Level = "debug"
	}
	if set("log-format") {
		cfg.Log.Format = f.LogFormat
	}
	if set("backup") {
		cfg.Refactor.Backup = f.Backup
	}
	if set("skip-validation") {
		cfg.Refactor.SkipValidation = f.SkipValidation
	}
	if set("allow-breaking") {
		cfg.Refactor.AllowBreaking = f.AllowBreaking
	}
}
