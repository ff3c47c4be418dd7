package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// PrimaryKey is the primary key constraint of a table
type PrimaryKey struct {
	tree.Object
	cat *Catalog
}

func (p *PrimaryKey) table() *Table {
	t, _ := p.Parent().(*Table)
	return t
}

// ConstraintName returns the declared name or the PostgreSQL default
func (p *PrimaryKey) ConstraintName() string {
	if n := p.Str("name"); n != "" {
		return n
	}
	return p.table().Name() + "_pkey"
}

func (p *PrimaryKey) constraint() string {
	return fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", Ident(p.ConstraintName()), quoteList(p.Strings("columns")))
}

func (p *PrimaryKey) CreateSQL() []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD %s;", p.table().QualifiedName(), p.constraint())}
}

func (p *PrimaryKey) DropSQL() []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", p.table().QualifiedName(), Ident(p.ConstraintName()))}
}

func (p *PrimaryKey) SetupDependencies() error {
	if len(p.Strings("columns")) == 0 {
		return fmt.Errorf("%w: primary key without columns", tree.ErrInvalidValue)
	}
	for _, c := range p.Strings("columns") {
		p.AddDependency(tree.JoinPath(tree.JoinPath(p.table().Path(), "columns"), c))
	}
	return nil
}

// ForeignKey is a foreign key constraint, keyed by its constraint name
type ForeignKey struct {
	tree.Object
	cat *Catalog
}

func (f *ForeignKey) table() *Table {
	t, _ := f.Parent().(*Table)
	return t
}

// referenced returns the schema and name of the referenced table
func (f *ForeignKey) referenced() (string, string) {
	return splitName(f.Str("references"), f.table().SchemaName())
}

func (f *ForeignKey) CreateSQL() []string {
	schema, name := f.referenced()
	refCols := f.Strings("refColumns")
	if len(refCols) == 0 {
		refCols = f.Strings("columns")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		f.table().QualifiedName(), Ident(f.Name()), quoteList(f.Strings("columns")),
		Ident(schema, name), quoteList(refCols))
	if a := f.Str("onDelete"); a != "" {
		b.WriteString(" ON DELETE " + a)
	}
	if a := f.Str("onUpdate"); a != "" {
		b.WriteString(" ON UPDATE " + a)
	}
	b.WriteString(";")
	return []string{b.String()}
}

func (f *ForeignKey) DropSQL() []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", f.table().QualifiedName(), Ident(f.Name()))}
}

// SetupDependencies declares the table, the constrained columns and the
// referenced table and columns. A reference to an undeclared table is an
// authoring error.
func (f *ForeignKey) SetupDependencies() error {
	t := f.table()
	if f.Str("references") == "" {
		return fmt.Errorf("%w: foreign key %s has no references", tree.ErrInvalidValue, f.Name())
	}
	ref := database(f).Table(f.Str("references"), t.SchemaName())
	if ref == nil {
		schema, name := f.referenced()
		return fmt.Errorf("%w: table %s.%s", tree.ErrUnresolvedDependency, schema, name)
	}
	f.AddDependency(t.Path())
	for _, c := range f.Strings("columns") {
		f.AddDependency(tree.JoinPath(tree.JoinPath(t.Path(), "columns"), c))
	}
	if ref != t {
		f.AddDependency(ref.Path())
	}
	refCols := f.Strings("refColumns")
	if len(refCols) == 0 {
		refCols = f.Strings("columns")
	}
	for _, c := range refCols {
		f.AddDependency(tree.JoinPath(tree.JoinPath(ref.Path(), "columns"), c))
	}
	for _, d := range f.cat.reg.Dependencies(f) {
		f.AddDependency(d)
	}
	return nil
}
