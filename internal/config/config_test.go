package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaults(t *testing.T) {
	isolate(t)
	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Output.Format)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Plugins)
	assert.False(t, cfg.Verbose)
}

func TestEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("DBASCODE_DATABASE_URL", "postgres://localhost/app")
	t.Setenv("DBASCODE_STATE_HISTORY_URL", "sqlite:///tmp/history.db")
	t.Setenv("DBASCODE_OUTPUT_FORMAT", "markdown")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.Equal(t, "sqlite:///tmp/history.db", cfg.State.HistoryURL)
	assert.Equal(t, "markdown", cfg.Output.Format)
}

func TestConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  url: postgres://db/app
plugins: [rls, defaultrows]
output:
  format: sql
  file: plan.sql
verbose: true
`), 0o644))

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/app", cfg.Database.URL)
	assert.Equal(t, []string{"rls", "defaultrows"}, cfg.Plugins)
	assert.Equal(t, "sql", cfg.Output.Format)
	assert.Equal(t, "plan.sql", cfg.Output.File)
	assert.True(t, cfg.Verbose)
}

func TestHomeConfigFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dbascode.yaml"), []byte("verbose: true\n"), 0o644))

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
}

func TestErrors(t *testing.T) {
	dir := isolate(t)

	_, err := New(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	t.Setenv("DBASCODE_OUTPUT_FORMAT", "html")
	v, err := New("")
	require.NoError(t, err)
	_, err = Load(v)
	assert.ErrorContains(t, err, "unsupported output format: html")
}
