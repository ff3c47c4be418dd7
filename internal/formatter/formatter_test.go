package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbascode/internal/changes"
	"github.com/tordrt/dbascode/internal/loader"
	"github.com/tordrt/dbascode/internal/schema"
)

func migration(t *testing.T, prev, cur string) *changes.Migration {
	t.Helper()
	load := func(src string) *schema.Database {
		raw, err := loader.Parse([]byte(src), "")
		require.NoError(t, err)
		d, err := schema.NewCatalog(nil).Load(raw)
		require.NoError(t, err)
		return d
	}
	m, err := changes.Plan(load(prev), load(cur), nil)
	require.NoError(t, err)
	return m
}

func sample(t *testing.T) *changes.Migration {
	return migration(t, `
schemas:
  public:
    tables:
      T1:
        comment: old
        columns:
          value: {type: text, allowNull: false}
      gone: {}
`, `
roles:
  app: {}
schemas:
  public:
    tables:
      T1:
        comment: new
        columns:
          value: {type: text}
      added: {}
`)
}

func TestEntries(t *testing.T) {
	entries := Entries(sample(t))

	byPath := make(map[string]Entry)
	for _, e := range entries {
		byPath[string(e.Op)+" "+e.Path] = e
	}
	assert.Len(t, entries, 5)
	assert.Contains(t, byPath, "create roles.app")
	assert.Contains(t, byPath, "create schemas.public.tables.added")
	assert.Contains(t, byPath, "drop schemas.public.tables.gone")

	alter := byPath["alter schemas.public.tables.T1.columns.value"]
	assert.Equal(t, "column", alter.Type)
	assert.Equal(t, []PropChange{{Name: "allowNull", Old: false, Cur: true}}, alter.Changes)

	comment := byPath["comment schemas.public.tables.T1"]
	assert.Equal(t, "table", comment.Type)
	assert.Equal(t, "public", comment.Schema())
	assert.Equal(t, "", byPath["create roles.app"].Schema())
}

func TestEntrySchema(t *testing.T) {
	assert.Equal(t, "s", Entry{Path: "schemas.s"}.Schema())
	assert.Equal(t, "s", Entry{Path: "schemas.s.tables.t"}.Schema())
	assert.Equal(t, "", Entry{Path: "roles.r"}.Schema())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, `"a"`, formatValue("a"))
	assert.Equal(t, "2.5", formatValue(2.5))
	assert.Equal(t, "true", formatValue(true))
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(sample(t)))
	out := buf.String()

	assert.Contains(t, out, "ALTER      schemas.public.tables.T1.columns.value (column)\n  allowNull: false -> true\n")
	assert.Contains(t, out, "COMMENT    schemas.public.tables.T1 (table)\n  comment: \"old\" -> \"new\"\n")
	assert.Contains(t, out, "DROP       schemas.public.tables.gone (table)\n")
	assert.Contains(t, out, "\nSQL:\n")
	assert.Contains(t, out, `COMMENT ON TABLE "public"."T1" IS 'new';`)
}

func TestTextFormatterNoChanges(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(migration(t, "", "")))
	assert.Equal(t, "No changes\n", buf.String())
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(sample(t)))
	out := buf.String()

	assert.Contains(t, out, "# Migration Plan\n\n## Changes\n\n| Operation | Object | Type | Changes |\n")
	assert.Contains(t, out, "| ALTER | `schemas.public.tables.T1.columns.value` | column | allowNull: false → true |\n")
	assert.Contains(t, out, "## SQL\n\n```sql\n")

	buf.Reset()
	require.NoError(t, NewMarkdownFormatter(&buf).Format(migration(t, "", "")))
	assert.Equal(t, "# Migration Plan\n\nNo changes.\n", buf.String())
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\|b c`, escape("a|b\nc"))
}

func TestMultiFileFormatter(t *testing.T) {
	for _, format := range []string{formatText, formatMarkdown} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "report")
			m := sample(t)
			require.NoError(t, NewMultiFileFormatter(dir, format).Format(m))

			ext := ".txt"
			if format == formatMarkdown {
				ext = ".md"
			}
			overview, err := os.ReadFile(filepath.Join(dir, "_overview"+ext))
			require.NoError(t, err)
			assert.Contains(t, string(overview), "_global: 1 created, 0 altered, 0 dropped, 0 comments, 0 permissions")
			assert.Contains(t, string(overview), "public: 1 created, 1 altered, 1 dropped, 1 comments, 0 permissions")

			public, err := os.ReadFile(filepath.Join(dir, "public"+ext))
			require.NoError(t, err)
			assert.Contains(t, string(public), "schemas.public.tables.gone")
			assert.NotContains(t, string(public), "roles.app")

			global, err := os.ReadFile(filepath.Join(dir, "_global"+ext))
			require.NoError(t, err)
			assert.Contains(t, string(global), "roles.app")

			script, err := os.ReadFile(filepath.Join(dir, ScriptFile))
			require.NoError(t, err)
			assert.Equal(t, m.SQL()+"\n", string(script))
		})
	}
}

func TestMultiFileFormatterNoChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewMultiFileFormatter(dir, formatText).Format(migration(t, "", "")))

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "No changes")

	script, err := os.ReadFile(filepath.Join(dir, ScriptFile))
	require.NoError(t, err)
	assert.Empty(t, script)
}
