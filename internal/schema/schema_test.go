package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbascode/internal/changes"
	"github.com/tordrt/dbascode/internal/loader"
	"github.com/tordrt/dbascode/internal/schema"
	"github.com/tordrt/dbascode/internal/tree"
)

func load(t *testing.T, src string) *schema.Database {
	t.Helper()
	d, err := loadErr(src)
	require.NoError(t, err)
	return d
}

func loadErr(src string) (*schema.Database, error) {
	raw, err := loader.Parse([]byte(src), "")
	if err != nil {
		return nil, err
	}
	return schema.NewCatalog(nil).Load(raw)
}

func planSQL(t *testing.T, prev, cur string) (string, error) {
	t.Helper()
	var p tree.Node
	if prev != "" {
		p = load(t, prev)
	}
	m, err := changes.Plan(p, load(t, cur), nil)
	if err != nil {
		return "", err
	}
	return m.SQL(), nil
}

func TestNodeTypes(t *testing.T) {
	nodes := []tree.Node{
		&schema.Database{}, &schema.Role{}, &schema.Schema{}, &schema.Table{},
		&schema.Column{}, &schema.PrimaryKey{}, &schema.ForeignKey{}, &schema.Index{},
		&schema.Sequence{}, &schema.Enum{}, &schema.Function{},
	}
	for _, n := range nodes {
		assert.Same(t, n.Base(), n.Base().Base(), "%T", n)
	}
}

func TestIdentAndLiteral(t *testing.T) {
	assert.Equal(t, `"public"."users"`, schema.Ident("public", "users"))
	assert.Equal(t, `"a""b"`, schema.Ident(`a"b`))
	assert.Equal(t, `'it''s'`, schema.Literal("it's"))
	assert.Equal(t, `NULL`, schema.Value(nil))
	assert.Equal(t, `TRUE`, schema.Value(true))
	assert.Equal(t, `2.5`, schema.Value(2.5))
	assert.Equal(t, `42`, schema.Value(42))
	assert.Equal(t, `'x'`, schema.Value("x"))
}

func TestPlanSQL(t *testing.T) {
	tests := []struct {
		name string
		prev string
		cur  string
		want string
	}{
		{
			name: "create role",
			cur: `
roles:
  app: {login: true, password: secret, memberOf: [pg_read_all_data]}
`,
			want: "CREATE ROLE \"app\" WITH LOGIN INHERIT NOCREATEDB NOCREATEROLE PASSWORD 'secret';\n" +
				"GRANT \"pg_read_all_data\" TO \"app\";",
		},
		{
			name: "alter role",
			prev: "roles: {app: {login: true, memberOf: [a]}}",
			cur:  "roles: {app: {memberOf: [b]}}",
			want: "ALTER ROLE \"app\" WITH NOLOGIN;\n" +
				"GRANT \"b\" TO \"app\";\n" +
				"REVOKE \"a\" FROM \"app\";",
		},
		{
			name: "create sequence",
			cur:  "schemas: {public: {sequences: {s: {start: 100, cycle: true}}}}",
			want: "CREATE SCHEMA \"public\";\n" +
				"CREATE SEQUENCE \"public\".\"s\" INCREMENT BY 1 START WITH 100 CYCLE;",
		},
		{
			name: "alter sequence",
			prev: "schemas: {public: {sequences: {s: {}}}}",
			cur:  "schemas: {public: {sequences: {s: {increment: 5, maxValue: 1000}}}}",
			want: `ALTER SEQUENCE "public"."s" INCREMENT BY 5 MAXVALUE 1000;`,
		},
		{
			name: "enum values added in place",
			prev: "schemas: {public: {types: {e: {values: [a, c]}}}}",
			cur:  "schemas: {public: {types: {e: {values: [a, b, c, d]}}}}",
			want: "ALTER TYPE \"public\".\"e\" ADD VALUE 'b' BEFORE 'c';\n" +
				"ALTER TYPE \"public\".\"e\" ADD VALUE 'd' AFTER 'c';",
		},
		{
			name: "enum reordered is recreated",
			prev: "schemas: {public: {types: {e: {values: [a, b], comment: old}}}}",
			cur:  "schemas: {public: {types: {e: {values: [b, a], comment: new}}}}",
			want: "DROP TYPE \"public\".\"e\";\n" +
				"CREATE TYPE \"public\".\"e\" AS ENUM ('b', 'a');\n" +
				"COMMENT ON TYPE \"public\".\"e\" IS 'new';",
		},
		{
			name: "function body with dollar quotes",
			cur: `
schemas:
  public:
    functions:
      f:
        returns: text
        language: sql
        body: select '$$'
`,
			want: "CREATE SCHEMA \"public\";\n" +
				"CREATE OR REPLACE FUNCTION \"public\".\"f\"() RETURNS text LANGUAGE sql VOLATILE AS $fn0$\nselect '$$'\n$fn0$;",
		},
		{
			name: "function replaced in place",
			prev: "schemas: {public: {functions: {f: {language: sql, body: select 1}}}}",
			cur:  "schemas: {public: {functions: {f: {language: sql, body: select 2, grant: {execute: [app]}}}}}",
			want: "CREATE OR REPLACE FUNCTION \"public\".\"f\"() RETURNS void LANGUAGE sql VOLATILE AS $$\nselect 2\n$$;\n" +
				"GRANT EXECUTE ON FUNCTION \"public\".\"f\"() TO \"app\";",
		},
		{
			name: "function signature change",
			prev: "schemas: {public: {functions: {f: {language: sql, body: select 1}}}}",
			cur:  "schemas: {public: {functions: {f: {language: sql, body: select 1, arguments: [a integer]}}}}",
			want: "DROP FUNCTION \"public\".\"f\"();\n" +
				"CREATE OR REPLACE FUNCTION \"public\".\"f\"(a integer) RETURNS void LANGUAGE sql VOLATILE AS $$\nselect 1\n$$;",
		},
		{
			name: "column changes",
			prev: "schemas: {public: {tables: {t: {columns: {c: {type: integer}, gone: {}}}}}}",
			cur:  "schemas: {public: {tables: {t: {columns: {c: {type: bigint, default: '0', allowNull: false}, d: {}}}}}}",
			want: "ALTER TABLE \"public\".\"t\" ADD COLUMN \"d\" text;\n" +
				"ALTER TABLE \"public\".\"t\" ALTER COLUMN \"c\" TYPE bigint;\n" +
				"ALTER TABLE \"public\".\"t\" ALTER COLUMN \"c\" SET DEFAULT 0;\n" +
				"ALTER TABLE \"public\".\"t\" ALTER COLUMN \"c\" SET NOT NULL;\n" +
				"ALTER TABLE \"public\".\"t\" DROP COLUMN \"gone\";",
		},
		{
			name: "grants",
			prev: "schemas: {public: {tables: {t: {grant: {select: [a, b]}}}}}",
			cur:  "schemas: {public: {tables: {t: {grant: {select: [a], insert: [public]}}}}}",
			want: "GRANT INSERT ON TABLE \"public\".\"t\" TO PUBLIC;\n" +
				"REVOKE SELECT ON TABLE \"public\".\"t\" FROM \"b\";",
		},
		{
			name: "reordered grants are no change",
			prev: "schemas: {public: {tables: {t: {grant: {select: [a, b]}}}}}",
			cur:  "schemas: {public: {tables: {t: {grant: {SELECT: [b, a, a]}}}}}",
			want: "",
		},
		{
			name: "indexes",
			cur: `
schemas:
  public:
    tables:
      t:
        columns:
          a: {type: integer}
          doc: {type: jsonb}
        indexes:
          t_a_key: {columns: [a], unique: true, where: a > 0}
          t_doc_idx: {columns: [doc], method: gin}
`,
			want: "CREATE SCHEMA \"public\";\n" +
				"CREATE TABLE \"public\".\"t\" (\n  \"a\" integer,\n  \"doc\" jsonb\n);\n" +
				"CREATE UNIQUE INDEX \"t_a_key\" ON \"public\".\"t\" (\"a\") WHERE a > 0;\n" +
				"CREATE INDEX \"t_doc_idx\" ON \"public\".\"t\" USING gin (\"doc\");",
		},
		{
			name: "primary key replaced",
			prev: "schemas: {public: {tables: {t: {columns: {a: {}, b: {}}, primaryKey: {columns: [a]}}}}}",
			cur:  "schemas: {public: {tables: {t: {columns: {a: {}, b: {}}, primaryKey: {columns: [a, b]}}}}}",
			want: "ALTER TABLE \"public\".\"t\" DROP CONSTRAINT \"t_pkey\";\n" +
				"ALTER TABLE \"public\".\"t\" ADD CONSTRAINT \"t_pkey\" PRIMARY KEY (\"a\", \"b\");",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := planSQL(t, tt.prev, tt.cur)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnsupportedChange(t *testing.T) {
	_, err := planSQL(t,
		"schemas: {public: {sequences: {s: {start: 10}}}}",
		"schemas: {public: {sequences: {s: {}}}}")
	assert.ErrorIs(t, err, schema.ErrUnsupportedChange)
}

func TestGrantNormalization(t *testing.T) {
	d := load(t, "schemas: {public: {grant: {USAGE: [b, a, a], create: app}}}")
	assert.Equal(t, map[string]any{
		"usage":  []any{"a", "b"},
		"create": []any{"app"},
	}, d.Schema("public").Prop("grant"))

	d = load(t, "schemas: {public: {grant: {usage: [], create: ~}}}")
	assert.Equal(t, map[string]any{}, d.Schema("public").Prop("grant"))

	sql, err := planSQL(t,
		"schemas: {public: {grant: {}}}",
		"schemas: {public: {grant: {usage: []}}}")
	require.NoError(t, err)
	assert.Empty(t, sql)
}

func TestExtends(t *testing.T) {
	d := load(t, `
schemas:
  public:
    tables:
      base:
        columns:
          id: {type: integer}
      child:
        extends: base
        columns:
          extra: {}
`)
	child := d.Table("child", "public")
	require.NotNil(t, child)

	var names []string
	for _, c := range child.Columns() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"id", "extra"}, names)
	assert.True(t, child.Columns()[0].Inherited())
	assert.Equal(t, []string{
		"CREATE TABLE \"public\".\"child\" (\n  \"extra\" text\n) INHERITS (\"public\".\"base\");",
	}, child.CreateSQL())

	deps, err := tree.CollectDependencies(d)
	require.NoError(t, err)
	assert.Contains(t, deps["schemas.public.tables.child"], "schemas.public.tables.base")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name:    "missing ancestor",
			src:     "schemas: {public: {tables: {t: {extends: nowhere}}}}",
			wantErr: schema.ErrAncestorNotFound,
		},
		{
			name:    "inheritance cycle",
			src:     "schemas: {public: {tables: {a: {extends: b}, b: {extends: a}}}}",
			wantErr: schema.ErrInheritanceCycle,
		},
		{
			name:    "primary key without columns",
			src:     "schemas: {public: {tables: {t: {primaryKey: {}}}}}",
			wantErr: tree.ErrInvalidValue,
		},
		{
			name:    "index on unknown column",
			src:     "schemas: {public: {tables: {t: {indexes: {i: {columns: [nope]}}}}}}",
			wantErr: tree.ErrUnresolvedDependency,
		},
		{
			name:    "primary key on unknown column",
			src:     "schemas: {public: {tables: {t: {columns: {id: {}}, primaryKey: {columns: [nope]}}}}}",
			wantErr: tree.ErrUnresolvedDependency,
		},
		{
			name:    "unknown field",
			src:     "schemas: {public: {tables: {t: {colums: {}}}}}",
			wantErr: tree.ErrUnknownField,
		},
		{
			name:    "invalid grant",
			src:     "schemas: {public: {grant: {usage: {a: b}}}}",
			wantErr: tree.ErrInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadErr(tt.src)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDependencies(t *testing.T) {
	d := load(t, `
roles:
  reader: {}
  app: {memberOf: [reader, pg_monitor]}
schemas:
  app:
    sequences:
      order_seq: {}
    types:
      status: {values: [new]}
    functions:
      set_status: {arguments: [s status], language: sql, body: select 1}
    tables:
      customers:
        columns:
          id: {type: integer}
      orders:
        columns:
          id: {type: integer, default: "nextval('app.order_seq'::regclass)"}
          state: {type: "status[]"}
          customer_id: {type: integer}
        foreignKeys:
          orders_fk: {columns: [customer_id], references: customers, refColumns: [id]}
`)
	deps, err := tree.CollectDependencies(d)
	require.NoError(t, err)

	assert.Equal(t, []string{"roles.reader"}, deps["roles.app"])
	assert.ElementsMatch(t, []string{
		"schemas.app",
		"schemas.app.tables.customers",
		"schemas.app.sequences.order_seq",
		"schemas.app.types.status",
	}, dedupe(deps["schemas.app.tables.orders"]))
	assert.ElementsMatch(t, []string{"schemas.app", "schemas.app.types.status"},
		deps["schemas.app.functions.set_status"])
	assert.Contains(t, deps["schemas.app.tables.orders.foreignKeys.orders_fk"], "schemas.app.tables.customers.columns.id")
}

func dedupe(list []string) []string {
	seen := map[string]bool{}
	var res []string
	for _, s := range list {
		if !seen[s] {
			seen[s] = true
			res = append(res, s)
		}
	}
	return res
}
