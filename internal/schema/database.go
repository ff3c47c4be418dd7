package schema

import (
	"github.com/tordrt/dbascode/internal/tree"
)

// Database is the root of a configuration tree. It renders no SQL itself.
type Database struct {
	tree.Object
	cat *Catalog
}

// Catalog returns the catalog the tree was built with
func (d *Database) Catalog() *Catalog { return d.cat }

// Schema returns the schema name or nil
func (d *Database) Schema(name string) *Schema {
	n, ok := d.Map("schemas").Get(name)
	if !ok {
		return nil
	}
	return n.(*Schema)
}

// Role returns the role name or nil
func (d *Database) Role(name string) *Role {
	n, ok := d.Map("roles").Get(name)
	if !ok {
		return nil
	}
	return n.(*Role)
}

// Schemas returns the schemas in declaration order
func (d *Database) Schemas() []*Schema {
	var res []*Schema
	for _, n := range d.Map("schemas").Nodes() {
		res = append(res, n.(*Schema))
	}
	return res
}

// Tables returns the tables of all schemas
func (d *Database) Tables() []*Table {
	var res []*Table
	for _, s := range d.Schemas() {
		res = append(res, s.Tables()...)
	}
	return res
}

// lookup resolves a possibly schema qualified name in the collection coll of
// a schema. Unqualified names are looked up in def.
func (d *Database) lookup(coll, ref, def string) tree.Node {
	schemaName, name := splitName(ref, def)
	s := d.Schema(schemaName)
	if s == nil {
		return nil
	}
	n, _ := s.Map(coll).Get(name)
	return n
}

// Table resolves a table reference such as "public.users"
func (d *Database) Table(ref, defSchema string) *Table {
	t, _ := d.lookup("tables", ref, defSchema).(*Table)
	return t
}

// Enum resolves a type reference. Array suffixes are ignored.
func (d *Database) Enum(ref, defSchema string) *Enum {
	for len(ref) > 2 && ref[len(ref)-2:] == "[]" {
		ref = ref[:len(ref)-2]
	}
	e, _ := d.lookup("types", unquote(ref), defSchema).(*Enum)
	return e
}

// Sequence resolves a sequence reference
func (d *Database) Sequence(ref, defSchema string) *Sequence {
	s, _ := d.lookup("sequences", unquote(ref), defSchema).(*Sequence)
	return s
}

func database(n tree.Node) *Database {
	db, _ := tree.Root(n).(*Database)
	return db
}

func unquote(ref string) string {
	res := make([]byte, 0, len(ref))
	for i := 0; i < len(ref); i++ {
		if ref[i] != '"' {
			res = append(res, ref[i])
		}
	}
	return string(res)
}
