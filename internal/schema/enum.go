package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Enum is an enumerated type, declared in the types collection of a schema
type Enum struct {
	tree.Object
	cat *Catalog
}

func (e *Enum) qualifiedName() string {
	return Ident(schemaOf(e).Name(), e.Name())
}

func (e *Enum) AlterTarget() string { return "TYPE " + e.qualifiedName() }

func (e *Enum) CreateSQL() []string {
	values := e.Strings("values")
	lits := make([]string, len(values))
	for i, v := range values {
		lits[i] = Literal(v)
	}
	return []string{fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", e.qualifiedName(), strings.Join(lits, ", "))}
}

func (e *Enum) DropSQL() []string {
	return []string{"DROP TYPE " + e.qualifiedName() + ";"}
}

// AlterSQL adds new values in place when all existing values are kept in
// their order. Otherwise the type is dropped and created again.
func (e *Enum) AlterSQL(prev tree.Node, changed tree.Deltas) ([]string, error) {
	for _, p := range changed.Props() {
		if p != "values" {
			return nil, fmt.Errorf("%w: %s of type %s", ErrUnsupportedChange, p, e.qualifiedName())
		}
	}
	cur, old := e.Strings("values"), prev.Base().Strings("values")
	if !isSubsequence(old, cur) {
		res := append(prev.(*Enum).DropSQL(), e.CreateSQL()...)
		res = append(res, e.CommentSQL(nil)...)
		return append(res, e.PermissionSQL(nil)...), nil
	}
	var res []string
	for i, v := range cur {
		if contains(old, v) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TYPE %s ADD VALUE %s", e.qualifiedName(), Literal(v))
		if next := nextExisting(cur[i+1:], old); next != "" {
			stmt += " BEFORE " + Literal(next)
		} else if i > 0 {
			stmt += " AFTER " + Literal(cur[i-1])
		}
		res = append(res, stmt+";")
	}
	return res, nil
}

// Replaces reports whether AlterSQL drops and creates the type
func (e *Enum) Replaces(prev tree.Node, changed tree.Deltas) bool {
	return changed.Has("values") && !isSubsequence(prev.Base().Strings("values"), e.Strings("values"))
}

func (e *Enum) CommentSQL(prev tree.Node) []string {
	return commentSQL(e.AlterTarget(), e, prev)
}

func (e *Enum) PermissionSQL(prev tree.Node) []string {
	return permissionSQL(e.AlterTarget(), e, prev)
}

func (e *Enum) SetupDependencies() error {
	e.AddDependency(schemaOf(e).Path())
	return nil
}

// isSubsequence reports whether all elements of a appear in b in the same
// order.
func isSubsequence(a, b []string) bool {
	i := 0
	for _, s := range b {
		if i < len(a) && a[i] == s {
			i++
		}
	}
	return i == len(a)
}

func nextExisting(rest, old []string) string {
	for _, s := range rest {
		if contains(old, s) {
			return s
		}
	}
	return ""
}
