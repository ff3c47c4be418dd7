package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Table is a table with its columns, constraints and indexes
type Table struct {
	tree.Object
	cat *Catalog
}

// QualifiedName returns the quoted schema qualified name
func (t *Table) QualifiedName() string {
	return Ident(t.SchemaName(), t.Name())
}

// SchemaName returns the name of the schema holding the table
func (t *Table) SchemaName() string {
	if s := schemaOf(t); s != nil {
		return s.Name()
	}
	return ""
}

// Columns returns the columns, inherited ones first
func (t *Table) Columns() []*Column {
	var res []*Column
	for _, n := range t.Map("columns").Nodes() {
		res = append(res, n.(*Column))
	}
	return res
}

// Ancestor returns the table named by extends, or nil if the table extends
// nothing.
func (t *Table) Ancestor() (*Table, error) {
	ref := t.Str("extends")
	if ref == "" {
		return nil, nil
	}
	a := database(t).Table(ref, t.SchemaName())
	if a == nil {
		return nil, fmt.Errorf("%s: %w: %s", t.Path(), ErrAncestorNotFound, ref)
	}
	return a, nil
}

func (t *Table) AlterTarget() string { return "TABLE " + t.QualifiedName() }

func (t *Table) CreateSQL() []string {
	var defs []string
	for _, c := range t.Columns() {
		if !c.Inherited() {
			defs = append(defs, c.definition())
		}
	}
	if pk, ok := t.Single("primaryKey").(*PrimaryKey); ok {
		defs = append(defs, pk.constraint())
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE " + t.QualifiedName() + " (")
	if len(defs) > 0 {
		b.WriteString("\n  " + strings.Join(defs, ",\n  ") + "\n")
	}
	b.WriteString(")")
	if a, _ := t.Ancestor(); a != nil {
		b.WriteString(" INHERITS (" + a.QualifiedName() + ")")
	}
	b.WriteString(";")
	return append([]string{b.String()}, t.cat.reg.AfterCreateSQL(t)...)
}

func (t *Table) DropSQL() []string {
	return []string{"DROP TABLE " + t.QualifiedName() + ";"}
}

// AlterSQL renders changes of plugin properties. Table level properties
// without a registered handler cannot be altered.
func (t *Table) AlterSQL(prev tree.Node, changed tree.Deltas) ([]string, error) {
	res, rest := t.cat.reg.AlterSQL(t, prev, changed)
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %s of table %s", ErrUnsupportedChange, strings.Join(rest.Props(), ", "), t.QualifiedName())
	}
	return res, nil
}

func (t *Table) CommentSQL(prev tree.Node) []string {
	return commentSQL(t.AlterTarget(), t, prev)
}

func (t *Table) PermissionSQL(prev tree.Node) []string {
	return permissionSQL(t.AlterTarget(), t, prev)
}

// SetupDependencies declares the schema, the ancestor table, referenced
// tables and the types and sequences the columns use.
func (t *Table) SetupDependencies() error {
	if s := schemaOf(t); s != nil {
		t.AddDependency(s.Path())
	}
	a, err := t.Ancestor()
	if err != nil {
		return err
	}
	if a != nil {
		t.AddDependency(a.Path())
	}
	db := database(t)
	for _, n := range t.Map("foreignKeys").Nodes() {
		ref := db.Table(n.Base().Str("references"), t.SchemaName())
		if ref != nil && ref != t {
			t.AddDependency(ref.Path())
		}
	}
	for _, c := range t.Columns() {
		for _, d := range c.typeDependencies() {
			t.AddDependency(d)
		}
	}
	for _, d := range t.cat.reg.Dependencies(t) {
		t.AddDependency(d)
	}
	return nil
}
