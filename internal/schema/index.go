package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Index is a table index, keyed by its name
type Index struct {
	tree.Object
	cat *Catalog
}

func (i *Index) table() *Table {
	t, _ := i.Parent().(*Table)
	return t
}

func (i *Index) qualifiedName() string {
	return Ident(i.table().SchemaName(), i.Name())
}

func (i *Index) CreateSQL() []string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if i.Bool("unique") {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s", Ident(i.Name()), i.table().QualifiedName())
	if m := i.Str("method"); m != "" && !strings.EqualFold(m, "btree") {
		b.WriteString(" USING " + m)
	}
	b.WriteString(" (" + quoteList(i.Strings("columns")) + ")")
	if w := i.Str("where"); w != "" {
		b.WriteString(" WHERE " + w)
	}
	b.WriteString(";")
	return []string{b.String()}
}

func (i *Index) DropSQL() []string {
	return []string{"DROP INDEX " + i.qualifiedName() + ";"}
}

func (i *Index) CommentSQL(prev tree.Node) []string {
	return commentSQL("INDEX "+i.qualifiedName(), i, prev)
}

func (i *Index) SetupDependencies() error {
	t := i.table()
	if len(i.Strings("columns")) == 0 {
		return fmt.Errorf("%w: index %s without columns", tree.ErrInvalidValue, i.Name())
	}
	i.AddDependency(t.Path())
	for _, c := range i.Strings("columns") {
		i.AddDependency(tree.JoinPath(tree.JoinPath(t.Path(), "columns"), c))
	}
	return nil
}
