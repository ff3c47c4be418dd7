// Package schema implements the PostgreSQL object model: the node types a
// declarative configuration is built from and the SQL each of them renders.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/dbascode/internal/plugin"
	"github.com/tordrt/dbascode/internal/tree"
)

// Type names of the object model, as used by plugins
const (
	TypeDatabase   = "database"
	TypeRole       = "role"
	TypeSchema     = "schema"
	TypeTable      = "table"
	TypeColumn     = "column"
	TypePrimaryKey = "primaryKey"
	TypeForeignKey = "foreignKey"
	TypeIndex      = "index"
	TypeSequence   = "sequence"
	TypeEnum       = "enum"
	TypeFunction   = "function"
)

var (
	// ErrAncestorNotFound is returned when a table extends a table that is
	// not declared.
	ErrAncestorNotFound = errors.New("ancestor table not found")
	// ErrInheritanceCycle is returned when tables extend each other
	ErrInheritanceCycle = errors.New("table inheritance cycle")
	// ErrUnsupportedChange is returned for property changes that cannot be
	// expressed as an ALTER statement.
	ErrUnsupportedChange = errors.New("unsupported change")
)

// Catalog holds the node types of the object model, extended by the
// properties the registered plugins declare.
type Catalog struct {
	reg   *plugin.Registry
	types map[string]*tree.Type
	root  *tree.Type
}

// NewCatalog builds the node types. reg may be nil.
func NewCatalog(reg *plugin.Registry) *Catalog {
	c := &Catalog{reg: reg, types: make(map[string]*tree.Type)}

	securable := tree.NewType(tree.TypeSpec{
		Name:  "securable",
		Props: append([]tree.PropDef{commentProp}, grantProps...),
	})

	column := c.define(tree.NewType(tree.TypeSpec{
		Name:  TypeColumn,
		New:   func() tree.Node { return &Column{cat: c} },
		Flags: tree.CreatedByParent | tree.DroppedByParent | tree.AlterWithParent,
		Props: []tree.PropDef{
			{Name: "type", Kind: tree.KindString, Default: "text"},
			{Name: "allowNull", Kind: tree.KindBool, Default: true},
			{Name: "default", Kind: tree.KindString, AllowNull: true},
			commentProp,
		},
	}))
	primaryKey := c.define(tree.NewType(tree.TypeSpec{
		Name:  TypePrimaryKey,
		New:   func() tree.Node { return &PrimaryKey{cat: c} },
		Flags: tree.CreatedByParent | tree.DroppedByParent | tree.FullAlter,
		Props: []tree.PropDef{
			{Name: "name", Kind: tree.KindString, Default: ""},
			{Name: "columns", Kind: tree.KindArray, Default: []any{}},
		},
	}))
	foreignKey := c.define(tree.NewType(tree.TypeSpec{
		Name:  TypeForeignKey,
		New:   func() tree.Node { return &ForeignKey{cat: c} },
		Flags: tree.DroppedByParent | tree.FullAlter,
		Props: []tree.PropDef{
			{Name: "columns", Kind: tree.KindArray, Default: []any{}},
			{Name: "references", Kind: tree.KindString, Default: ""},
			{Name: "refColumns", Kind: tree.KindArray, Default: []any{}},
			{Name: "onDelete", Kind: tree.KindString, Default: "", Normalize: upper},
			{Name: "onUpdate", Kind: tree.KindString, Default: "", Normalize: upper},
		},
	}))
	index := c.define(tree.NewType(tree.TypeSpec{
		Name:  TypeIndex,
		New:   func() tree.Node { return &Index{cat: c} },
		Flags: tree.DroppedByParent | tree.FullAlter,
		Props: []tree.PropDef{
			{Name: "columns", Kind: tree.KindArray, Default: []any{}},
			{Name: "unique", Kind: tree.KindBool, Default: false},
			{Name: "method", Kind: tree.KindString, Default: "btree"},
			{Name: "where", Kind: tree.KindString, Default: ""},
			commentProp,
		},
	}))
	table := c.define(securable.Extend(tree.TypeSpec{
		Name: TypeTable,
		New:  func() tree.Node { return &Table{cat: c} },
		Props: append([]tree.PropDef{
			{Name: "extends", Kind: tree.KindString, Default: "", RecreateOnChange: true},
		}, reg.Props(TypeTable)...),
		Children: []tree.ChildDef{
			{Name: "columns", Kind: tree.ChildMap, Type: column},
			{Name: "primaryKey", Kind: tree.ChildSingle, Type: primaryKey},
			{Name: "foreignKeys", Kind: tree.ChildMap, Type: foreignKey},
			{Name: "indexes", Kind: tree.ChildMap, Type: index},
		},
	}))
	sequence := c.define(securable.Extend(tree.TypeSpec{
		Name: TypeSequence,
		New:  func() tree.Node { return &Sequence{cat: c} },
		Props: []tree.PropDef{
			{Name: "increment", Kind: tree.KindNumber, Default: float64(1)},
			{Name: "start", Kind: tree.KindNumber, AllowNull: true},
			{Name: "minValue", Kind: tree.KindNumber, AllowNull: true},
			{Name: "maxValue", Kind: tree.KindNumber, AllowNull: true},
			{Name: "cycle", Kind: tree.KindBool, Default: false},
		},
	}))
	enum := c.define(securable.Extend(tree.TypeSpec{
		Name: TypeEnum,
		New:  func() tree.Node { return &Enum{cat: c} },
		Props: []tree.PropDef{
			{Name: "values", Kind: tree.KindArray, Default: []any{}},
		},
	}))
	function := c.define(securable.Extend(tree.TypeSpec{
		Name:  TypeFunction,
		New:   func() tree.Node { return &Function{cat: c} },
		Flags: tree.FullAlter,
		Props: []tree.PropDef{
			{Name: "arguments", Kind: tree.KindArray, Default: []any{}},
			{Name: "returns", Kind: tree.KindString, Default: "void"},
			{Name: "language", Kind: tree.KindString, Default: "plpgsql"},
			{Name: "body", Kind: tree.KindString, Default: ""},
			{Name: "volatility", Kind: tree.KindString, Default: "VOLATILE", Normalize: upper},
		},
	}))
	schema := c.define(securable.Extend(tree.TypeSpec{
		Name: TypeSchema,
		New:  func() tree.Node { return &Schema{cat: c} },
		Children: []tree.ChildDef{
			{Name: "tables", Kind: tree.ChildMap, Type: table},
			{Name: "sequences", Kind: tree.ChildMap, Type: sequence},
			{Name: "types", Kind: tree.ChildMap, Type: enum},
			{Name: "functions", Kind: tree.ChildMap, Type: function},
		},
	}))
	role := c.define(tree.NewType(tree.TypeSpec{
		Name: TypeRole,
		New:  func() tree.Node { return &Role{cat: c} },
		Props: []tree.PropDef{
			commentProp,
			{Name: "login", Kind: tree.KindBool, Default: false},
			{Name: "inherit", Kind: tree.KindBool, Default: true},
			{Name: "createDb", Kind: tree.KindBool, Default: false},
			{Name: "createRole", Kind: tree.KindBool, Default: false},
			{Name: "password", Kind: tree.KindString, AllowNull: true},
			{Name: "memberOf", Kind: tree.KindArray, Default: []any{}, Normalize: sortedStrings},
		},
	}))
	c.root = c.define(tree.NewType(tree.TypeSpec{
		Name: TypeDatabase,
		New:  func() tree.Node { return &Database{cat: c} },
		Children: []tree.ChildDef{
			{Name: "roles", Kind: tree.ChildMap, Type: role},
			{Name: "schemas", Kind: tree.ChildMap, Type: schema},
		},
	}))
	return c
}

func (c *Catalog) define(t *tree.Type) *tree.Type {
	c.types[t.Name()] = t
	return t
}

// Type returns the node type registered under name
func (c *Catalog) Type(name string) (*tree.Type, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Registry returns the plugin registry the catalog was built with
func (c *Catalog) Registry() *plugin.Registry { return c.reg }

// Load builds a database tree from declarative input, resolves table
// inheritance, declares and checks dependencies and runs the plugin validations and
// tree ready hooks.
func (c *Catalog) Load(raw any) (*Database, error) {
	n, err := tree.Build(c.root, raw)
	if err != nil {
		return nil, err
	}
	db := n.(*Database)
	if err := resolveExtends(db); err != nil {
		return nil, err
	}
	if err := tree.SetupDependencies(db); err != nil {
		return nil, err
	}
	if _, err := tree.CollectDependencies(db); err != nil {
		return nil, err
	}
	if err := c.reg.ValidateTree(db); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := c.reg.TreeReady(db); err != nil {
		return nil, fmt.Errorf("tree ready hook failed: %w", err)
	}
	return db, nil
}

// resolveExtends copies the columns of ancestor tables into the tables
// extending them, ancestors first.
func resolveExtends(db *Database) error {
	done := make(map[*Table]bool)
	active := make(map[*Table]bool)
	var resolve func(t *Table) error
	resolve = func(t *Table) error {
		if done[t] {
			return nil
		}
		if active[t] {
			return fmt.Errorf("%s: %w", t.Path(), ErrInheritanceCycle)
		}
		parent, err := t.Ancestor()
		if err != nil || parent == nil {
			done[t] = true
			return err
		}
		active[t] = true
		if err := resolve(parent); err != nil {
			return err
		}
		delete(active, t)
		if err := tree.Inherit(t, "columns", parent.Map("columns").Nodes()); err != nil {
			return fmt.Errorf("%s: %w", t.Path(), err)
		}
		done[t] = true
		return nil
	}
	for _, t := range db.Tables() {
		if err := resolve(t); err != nil {
			return err
		}
	}
	return nil
}

// splitName splits "schema.name" into its parts, using def as the schema of
// unqualified names.
func splitName(ref, def string) (string, string) {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return def, ref
}

func upper(v any) (any, error) {
	return strings.ToUpper(strings.TrimSpace(v.(string))), nil
}

func sortedStrings(v any) (any, error) {
	list := tree.StringList(v)
	sort.Strings(list)
	res := make([]any, 0, len(list))
	for i, s := range list {
		if i == 0 || list[i-1] != s {
			res = append(res, s)
		}
	}
	return res, nil
}
