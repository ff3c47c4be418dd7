package defaultrows_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbascode/internal/changes"
	"github.com/tordrt/dbascode/internal/loader"
	"github.com/tordrt/dbascode/internal/plugin"
	"github.com/tordrt/dbascode/internal/plugin/defaultrows"
	"github.com/tordrt/dbascode/internal/schema"
	"github.com/tordrt/dbascode/internal/tree"
)

func load(t *testing.T, rows string) (*schema.Database, error) {
	t.Helper()
	reg, err := plugin.New(defaultrows.New())
	require.NoError(t, err)
	src := `
schemas:
  public:
    tables:
      status:
        columns:
          id: {type: integer}
          label: {type: text}
        rows: ` + rows + `
`
	raw, err := loader.Parse([]byte(src), "")
	require.NoError(t, err)
	return schema.NewCatalog(reg).Load(raw)
}

func mustLoad(t *testing.T, rows string) *schema.Database {
	t.Helper()
	d, err := load(t, rows)
	require.NoError(t, err)
	return d
}

func TestCreate(t *testing.T) {
	d := mustLoad(t, `[{id: 1, label: new}, {id: 2, label: "it's paid"}]`)
	assert.Equal(t, []string{
		"CREATE TABLE \"public\".\"status\" (\n  \"id\" integer,\n  \"label\" text\n);",
		`INSERT INTO "public"."status" ("id", "label") VALUES (1, 'new') ON CONFLICT DO NOTHING;`,
		`INSERT INTO "public"."status" ("id", "label") VALUES (2, 'it''s paid') ON CONFLICT DO NOTHING;`,
	}, d.Table("status", "public").CreateSQL())
}

func TestAlter(t *testing.T) {
	prev := mustLoad(t, `[{id: 1, label: new}, {id: 2, label: old}]`)
	cur := mustLoad(t, `[{id: 1, label: new}, {id: 3, label: ~}]`)
	m, err := changes.Plan(prev, cur, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"DELETE FROM \"public\".\"status\" WHERE \"id\" = 2 AND \"label\" = 'old';\n"+
			"INSERT INTO \"public\".\"status\" (\"id\", \"label\") VALUES (3, NULL) ON CONFLICT DO NOTHING;",
		m.SQL())
}

func TestReorderedRows(t *testing.T) {
	prev := mustLoad(t, `[{id: 1, label: a}, {id: 2, label: b}]`)
	cur := mustLoad(t, `[{id: 2, label: b}, {id: 1, label: a}, {label: a, id: 1}]`)
	assert.Equal(t, prev.Table("status", "public").Prop("rows"), cur.Table("status", "public").Prop("rows"))

	m, err := changes.Plan(prev, cur, nil)
	require.NoError(t, err)
	assert.True(t, m.Empty())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		rows string
	}{
		{"not a mapping", "[1]"},
		{"empty row", "[{}]"},
		{"unknown column", "[{nope: 1}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.rows)
			assert.ErrorIs(t, err, tree.ErrInvalidValue)
		})
	}
}
