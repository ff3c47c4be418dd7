package schema

import (
	"github.com/tordrt/dbascode/internal/tree"
)

// Schema is a namespace holding tables, sequences, types and functions
type Schema struct {
	tree.Object
	cat *Catalog
}

// Tables returns the tables in declaration order
func (s *Schema) Tables() []*Table {
	var res []*Table
	for _, n := range s.Map("tables").Nodes() {
		res = append(res, n.(*Table))
	}
	return res
}

func (s *Schema) AlterTarget() string { return "SCHEMA " + Ident(s.Name()) }

func (s *Schema) CreateSQL() []string {
	return []string{"CREATE SCHEMA " + Ident(s.Name()) + ";"}
}

func (s *Schema) DropSQL() []string {
	return []string{"DROP SCHEMA " + Ident(s.Name()) + ";"}
}

func (s *Schema) CommentSQL(prev tree.Node) []string {
	return commentSQL(s.AlterTarget(), s, prev)
}

func (s *Schema) PermissionSQL(prev tree.Node) []string {
	return permissionSQL(s.AlterTarget(), s, prev)
}

func (s *Schema) SetupDependencies() error {
	for _, d := range s.cat.reg.Dependencies(s) {
		s.AddDependency(d)
	}
	return nil
}

// schemaOf returns the schema n belongs to
func schemaOf(n tree.Node) *Schema {
	s, _ := tree.Ancestor(n, TypeSchema).(*Schema)
	return s
}
