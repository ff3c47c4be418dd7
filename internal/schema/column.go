package schema

import (
	"fmt"
	"regexp"

	"github.com/tordrt/dbascode/internal/tree"
)

// Column is a table column. Its changes are rendered as clauses of an
// ALTER TABLE statement.
type Column struct {
	tree.Object
	cat *Catalog
}

var nextvalRe = regexp.MustCompile(`(?i)nextval\(\s*'([^']+)'`)

func (c *Column) table() *Table {
	t, _ := c.Parent().(*Table)
	return t
}

func (c *Column) definition() string {
	def := Ident(c.Name()) + " " + c.Str("type")
	if !c.Bool("allowNull") {
		def += " NOT NULL"
	}
	if d, ok := c.Prop("default").(string); ok {
		def += " DEFAULT " + d
	}
	return def
}

func (c *Column) CreateSQL() []string {
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", c.table().QualifiedName(), c.definition())}
}

func (c *Column) DropSQL() []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", c.table().QualifiedName(), Ident(c.Name()))}
}

// AlterSQL returns ALTER COLUMN clauses for the parent table
func (c *Column) AlterSQL(prev tree.Node, changed tree.Deltas) ([]string, error) {
	name := Ident(c.Name())
	var res []string
	for _, p := range changed.Props() {
		switch p {
		case "type", "allowNull", "default":
		default:
			return nil, fmt.Errorf("%w: %s of column %s", ErrUnsupportedChange, p, c.Name())
		}
	}
	if changed.Has("type") {
		res = append(res, fmt.Sprintf("ALTER COLUMN %s TYPE %s", name, c.Str("type")))
	}
	if changed.Has("default") {
		if d, ok := c.Prop("default").(string); ok {
			res = append(res, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", name, d))
		} else {
			res = append(res, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", name))
		}
	}
	if changed.Has("allowNull") {
		if c.Bool("allowNull") {
			res = append(res, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", name))
		} else {
			res = append(res, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", name))
		}
	}
	return res, nil
}

func (c *Column) CommentSQL(prev tree.Node) []string {
	return commentSQL("COLUMN "+Ident(c.table().SchemaName(), c.table().Name(), c.Name()), c, prev)
}

// typeDependencies returns the paths of the declared enum type and of a
// sequence used by a nextval default.
func (c *Column) typeDependencies() []string {
	db := database(c)
	schema := c.table().SchemaName()
	var res []string
	if e := db.Enum(c.Str("type"), schema); e != nil {
		res = append(res, e.Path())
	}
	if d, ok := c.Prop("default").(string); ok {
		if m := nextvalRe.FindStringSubmatch(d); m != nil {
			if s := db.Sequence(m[1], schema); s != nil {
				res = append(res, s.Path())
			}
		}
	}
	return res
}

func (c *Column) SetupDependencies() error {
	for _, d := range c.typeDependencies() {
		c.AddDependency(d)
	}
	for _, d := range c.cat.reg.Dependencies(c) {
		c.AddDependency(d)
	}
	return nil
}
