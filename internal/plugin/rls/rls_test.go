package rls_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbascode/internal/changes"
	"github.com/tordrt/dbascode/internal/loader"
	"github.com/tordrt/dbascode/internal/plugin"
	"github.com/tordrt/dbascode/internal/plugin/rls"
	"github.com/tordrt/dbascode/internal/schema"
	"github.com/tordrt/dbascode/internal/tree"
)

func load(t *testing.T, mode string) (*schema.Database, error) {
	t.Helper()
	reg, err := plugin.New(rls.New())
	require.NoError(t, err)
	src := "schemas: {public: {tables: {t: {}}}}"
	if mode != "" {
		src = "schemas: {public: {tables: {t: {rowLevelSecurity: " + mode + "}}}}"
	}
	raw, err := loader.Parse([]byte(src), "")
	require.NoError(t, err)
	return schema.NewCatalog(reg).Load(raw)
}

func mustLoad(t *testing.T, mode string) *schema.Database {
	t.Helper()
	d, err := load(t, mode)
	require.NoError(t, err)
	return d
}

func TestCreate(t *testing.T) {
	tests := []struct {
		mode string
		want []string
	}{
		{mode: "", want: []string{`CREATE TABLE "public"."t" ();`}},
		{mode: "off", want: []string{`CREATE TABLE "public"."t" ();`}},
		{mode: "true", want: []string{
			`CREATE TABLE "public"."t" ();`,
			`ALTER TABLE "public"."t" ENABLE ROW LEVEL SECURITY;`,
		}},
		{mode: "FORCE", want: []string{
			`CREATE TABLE "public"."t" ();`,
			`ALTER TABLE "public"."t" ENABLE ROW LEVEL SECURITY;`,
			`ALTER TABLE "public"."t" FORCE ROW LEVEL SECURITY;`,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			d := mustLoad(t, tt.mode)
			assert.Equal(t, tt.want, d.Table("t", "public").CreateSQL())
		})
	}
}

func TestAlter(t *testing.T) {
	tests := []struct {
		from, to string
		want     string
	}{
		{"off", "on", `ALTER TABLE "public"."t" ENABLE ROW LEVEL SECURITY;`},
		{"on", "off", `ALTER TABLE "public"."t" DISABLE ROW LEVEL SECURITY;`},
		{"on", "force", `ALTER TABLE "public"."t" FORCE ROW LEVEL SECURITY;`},
		{"force", "on", `ALTER TABLE "public"."t" NO FORCE ROW LEVEL SECURITY;`},
		{"force", "off", "ALTER TABLE \"public\".\"t\" NO FORCE ROW LEVEL SECURITY;\n" +
			"ALTER TABLE \"public\".\"t\" DISABLE ROW LEVEL SECURITY;"},
		{"on", "true", ""},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			m, err := changes.Plan(mustLoad(t, tt.from), mustLoad(t, tt.to), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.SQL())
		})
	}
}

func TestInvalidMode(t *testing.T) {
	_, err := load(t, "sometimes")
	assert.ErrorIs(t, err, tree.ErrInvalidValue)
}
