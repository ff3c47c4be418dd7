package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbascode"
	"github.com/tordrt/dbascode/internal/db"
)

func TestPluginNames(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "empty", in: nil, want: nil},
		{name: "list", in: []string{"rls", "defaultrows"}, want: []string{"rls", "defaultrows"}},
		{name: "comma separated", in: []string{"rls, defaultrows"}, want: []string{"rls", "defaultrows"}},
		{name: "blanks dropped", in: []string{"", " rls ,", " "}, want: []string{"rls"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pluginNames(tt.in))
		})
	}
}

func testMigration(t *testing.T) *dbascode.Migration {
	t.Helper()
	cur, err := dbascode.LoadBytes([]byte("schemas: {app: {comment: data}}"), "", nil)
	require.NoError(t, err)
	m, err := dbascode.Plan(nil, cur, nil)
	require.NoError(t, err)
	return m
}

func TestWriteReport(t *testing.T) {
	m := testMigration(t)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "sql", m))
	assert.Equal(t, "CREATE SCHEMA \"app\";\nCOMMENT ON SCHEMA \"app\" IS 'data';\n", buf.String())

	buf.Reset()
	require.NoError(t, writeReport(&buf, "text", m))
	assert.Contains(t, buf.String(), "CREATE     schemas.app (schema)")

	buf.Reset()
	require.NoError(t, writeReport(&buf, "markdown", m))
	assert.Contains(t, buf.String(), "# Migration Plan")

	assert.ErrorContains(t, writeReport(&buf, "html", m), "invalid format: html")

	empty, err := dbascode.Plan(nil, nil, nil)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, writeReport(&buf, "sql", empty))
	assert.Empty(t, buf.String())
}

func TestHistoryEntry(t *testing.T) {
	e := historyEntry(testMigration(t))
	assert.Equal(t, 2, e.Statements)
	assert.Equal(t, 1, e.Creates)
	assert.Zero(t, e.Alters)
	assert.Zero(t, e.Drops)
	assert.Equal(t, "CREATE SCHEMA \"app\";\nCOMMENT ON SCHEMA \"app\" IS 'data';", e.Script)
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	writeHistory(&buf, nil)
	assert.Equal(t, "No migrations recorded\n", buf.String())

	buf.Reset()
	id := uuid.MustParse("5f0c6d2a-3b3e-4d51-9a43-0c1f3a1d7e11")
	writeHistory(&buf, []db.Entry{{
		ID:         id,
		AppliedAt:  time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
		Checksum:   db.Checksum("SELECT 1;"),
		Statements: 3,
		Creates:    2,
		Drops:      1,
	}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], id.String())
	assert.Contains(t, lines[1], "2024-05-01 12:30:00")
	assert.Contains(t, lines[1], db.Checksum("SELECT 1;")[:12]+"  ")
	assert.True(t, strings.HasSuffix(lines[1], "    3      2      0      1"))
}

func TestShortChecksum(t *testing.T) {
	assert.Equal(t, "abc", shortChecksum("abc"))
	assert.Equal(t, "0123456789ab", shortChecksum("0123456789abcdef"))
}

// resetFlags restores the defaults of flags set by an earlier run
func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			var def []string
			if d := strings.Trim(f.DefValue, "[]"); d != "" {
				def = strings.Split(d, ",")
			}
			_ = sv.Replace(def)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

// run executes the root command with fresh flag state
func run(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestPlanCommand(t *testing.T) {
	dir := t.TempDir()
	prev := filepath.Join(dir, "prev.yaml")
	cur := filepath.Join(dir, "cur.yaml")
	out := filepath.Join(dir, "plan.sql")
	require.NoError(t, os.WriteFile(prev, []byte("schemas: {old: {}}\n"), 0o644))
	require.NoError(t, os.WriteFile(cur, []byte("schemas: {app: {tables: {t: {rowLevelSecurity: on}}}}\n"), 0o644))

	require.NoError(t, run(t, "plan", cur, "--previous", prev, "--plugins", "rls", "--output", out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "CREATE SCHEMA \"app\";\n"+
		"CREATE TABLE \"app\".\"t\" ();\n"+
		"ALTER TABLE \"app\".\"t\" ENABLE ROW LEVEL SECURITY;\n"+
		"DROP SCHEMA \"old\";\n", string(got))

	err = run(t, "plan", cur, "--previous", prev)
	assert.ErrorContains(t, err, "rowLevelSecurity")
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	cur := filepath.Join(dir, "cur.yaml")
	require.NoError(t, os.WriteFile(cur, []byte("roles: {app: {}}\nschemas: {app: {}}\n"), 0o644))
	reportDir := filepath.Join(dir, "report")

	require.NoError(t, run(t, "report", cur, "--format", "markdown", "--output-dir", reportDir))
	for _, name := range []string{"_overview.md", "_global.md", "app.md", "migration.sql"} {
		assert.FileExists(t, filepath.Join(reportDir, name))
	}

	err := run(t, "report", cur, "--format", "sql", "--output-dir", reportDir)
	assert.ErrorContains(t, err, "--output-dir needs the text or markdown format")

	err = run(t, "report", cur, "--output-dir", reportDir, "--output", filepath.Join(dir, "x.txt"))
	assert.ErrorContains(t, err, "cannot use both")
}
