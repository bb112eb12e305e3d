// Package config loads the .sigrefactor.yaml project settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mamaar/sigrefactor/pkg/analysis"
	"github.com/mamaar/sigrefactor/pkg/refactor"
	"github.com/mamaar/sigrefactor/pkg/types"
	"github.com/mamaar/sigrefactor/pkg/watch"
)

// FileName is the name of the config file looked up in the workspace root.
const FileName = ".sigrefactor.yaml"

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("javaident", func(fl validator.FieldLevel) bool {
		return analysis.IsValidIdentifier(fl.Field().String())
	})
}

// Config holds all project settings. CLI flags override loaded values.
type Config struct {
	Workspace WorkspaceConfig `yaml:"workspace"`
	Refactor  RefactorConfig  `yaml:"refactor"`
	Log       LogConfig       `yaml:"log"`
	Watch     WatchConfig     `yaml:"watch"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type WorkspaceConfig struct {
	Root          string   `yaml:"root" validate:"required"`
	Exclude       []string `yaml:"exclude" validate:"dive,required"`
	ReadOnlyRoots []string `yaml:"read_only_roots" validate:"dive,required"`
}

type RefactorConfig struct {
	AllowBreaking      bool                  `yaml:"allow_breaking"`
	SkipValidation     bool                  `yaml:"skip_validation"`
	Backup             bool                  `yaml:"backup"`
	DeprecateDelegates bool                  `yaml:"deprecate_delegates"`
	ParameterObject    ParameterObjectConfig `yaml:"parameter_object"`
}

type ParameterObjectConfig struct {
	ParameterName string `yaml:"parameter_name" validate:"required,javaident"`
	Getters       bool   `yaml:"getters"`
	Setters       bool   `yaml:"setters"`
	TopLevel      bool   `yaml:"top_level"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=10ms,lte=1m"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the settings used when no config file exists.
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:    ".",
			Exclude: []string{".git", "build", "target", "out", "node_modules"},
		},
		Refactor: RefactorConfig{
			ParameterObject: ParameterObjectConfig{
				ParameterName: "parameterObject",
				Getters:       true,
				TopLevel:      true,
			},
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Watch: WatchConfig{Debounce: 200 * time.Millisecond},
	}
}

// Load reads the config at path over the defaults. An empty path looks for
// FileName in the current directory and falls back to the defaults when it
// does not exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return nil, configError(path, "failed to read config", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var re *types.RefactorError
		if errors.As(err, &re) {
			re.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, configError("", "invalid config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return configError("", "invalid config", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", yamlPath(fe.Namespace()), fe.Tag()))
	}
	return configError("", strings.Join(msgs, "; "), err)
}

// yamlPath turns "Config.log.level" into "log.level".
func yamlPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return rest
}

func configError(file, msg string, cause error) error {
	return &types.RefactorError{Type: types.ConfigError, Message: msg, File: file, Cause: cause}
}

// WorkspaceRoot returns the workspace root resolved against the directory
// of the config file.
func (c *Config) WorkspaceRoot(configPath string) string {
	if filepath.IsAbs(c.Workspace.Root) || configPath == "" {
		return c.Workspace.Root
	}
	return filepath.Join(filepath.Dir(configPath), c.Workspace.Root)
}

// Logger builds the slog logger the settings describe, writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) level() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EngineConfig returns the engine settings.
func (c *Config) EngineConfig(logger *slog.Logger, metrics *refactor.Metrics) *refactor.EngineConfig {
	return &refactor.EngineConfig{
		SkipValidation: c.Refactor.SkipValidation,
		AllowBreaking:  c.Refactor.AllowBreaking,
		Backup:         c.Refactor.Backup,
		Exclude:        c.Workspace.Exclude,
		ReadOnlyRoots:  c.Workspace.ReadOnlyRoots,
		Logger:         logger,
		Metrics:        metrics,
	}
}

// WatchOptions returns the watcher settings.
func (c *Config) WatchOptions() *watch.Options {
	opts := watch.DefaultOptions()
	opts.Debounce = c.Watch.Debounce
	opts.Exclude = append(opts.Exclude, c.Workspace.Exclude...)
	return &opts
}
