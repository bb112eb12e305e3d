package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamaar/sigrefactor/pkg/types"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
workspace:
  root: src
  read_only_roots: [lib]
refactor:
  allow_breaking: true
  parameter_object:
    parameter_name: request
    setters: true
log:
  level: debug
  format: json
watch:
  debounce: 500ms
metrics:
  textfile: /tmp/sigrefactor.prom
`))
	require.NoError(t, err)

	assert.Equal(t, "src", cfg.Workspace.Root)
	assert.Equal(t, []string{"lib"}, cfg.Workspace.ReadOnlyRoots)
	assert.Equal(t, Default().Workspace.Exclude, cfg.Workspace.Exclude)
	assert.True(t, cfg.Refactor.AllowBreaking)
	assert.Equal(t, "request", cfg.Refactor.ParameterObject.ParameterName)
	assert.True(t, cfg.Refactor.ParameterObject.Setters)
	assert.True(t, cfg.Refactor.ParameterObject.Getters, "unset keys keep their defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "/tmp/sigrefactor.prom", cfg.Metrics.Textfile)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown level", "log:\n  level: loud\n", "log.level"},
		{"unknown format", "log:\n  format: xml\n", "log.format"},
		{"debounce too short", "watch:\n  debounce: 1ms\n", "watch.debounce"},
		{"bad parameter name", "refactor:\n  parameter_object:\n    parameter_name: 1st\n", "refactor.parameter_object.parameter_name"},
		{"empty root", "workspace:\n  root: \"\"\n", "workspace.root"},
		{"unknown key", "refactor:\n  colour: red\n", "invalid config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var re *types.RefactorError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, types.ConfigError, re.Type)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("workspace:\n  root: java\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "java"), cfg.WorkspaceRoot(path))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err, "an explicit config must exist")
}

func TestLoad_ImplicitMissingFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLogger_Format(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "json"
	var buf bytes.Buffer
	cfg.Logger(&buf).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.Log.Format = "text"
	cfg.Log.Level = "warn"
	cfg.Logger(&buf).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestEngineAndWatchSettings(t *testing.T) {
	cfg := Default()
	cfg.Refactor.Backup = true
	cfg.Workspace.Exclude = append(cfg.Workspace.Exclude, "generated")
	cfg.Watch.Debounce = time.Second

	ec := cfg.EngineConfig(nil, nil)
	assert.True(t, ec.Backup)
	assert.Contains(t, ec.Exclude, "generated")

	wo := cfg.WatchOptions()
	assert.Equal(t, time.Second, wo.Debounce)
	assert.Contains(t, wo.Exclude, "generated")
}
