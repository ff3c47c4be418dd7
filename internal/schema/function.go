package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Function is a stored function. Any change replaces it.
type Function struct {
	tree.Object
	cat *Catalog
}

func (f *Function) signature() string {
	return Ident(schemaOf(f).Name(), f.Name()) + "(" + strings.Join(f.Strings("arguments"), ", ") + ")"
}

func (f *Function) AlterTarget() string { return "FUNCTION " + f.signature() }

func (f *Function) CreateSQL() []string {
	body := f.Str("body")
	tag := "$$"
	for i := 0; strings.Contains(body, tag); i++ {
		tag = fmt.Sprintf("$fn%d$", i)
	}
	return []string{fmt.Sprintf("CREATE OR REPLACE FUNCTION %s RETURNS %s LANGUAGE %s %s AS %s\n%s\n%s;",
		f.signature(), f.Str("returns"), f.Str("language"), f.Str("volatility"), tag, strings.TrimSpace(body), tag)}
}

func (f *Function) DropSQL() []string {
	return []string{"DROP FUNCTION " + f.signature() + ";"}
}

// FullAlterSQL replaces the function in place while the signature is kept.
// A changed signature or return type needs the old function dropped, which
// also drops its grants.
func (f *Function) FullAlterSQL(prev tree.Node) []string {
	p := prev.(*Function)
	if p.signature() == f.signature() && p.Str("returns") == f.Str("returns") {
		res := append(f.CreateSQL(), f.CommentSQL(prev)...)
		return append(res, f.PermissionSQL(prev)...)
	}
	res := append(p.DropSQL(), f.CreateSQL()...)
	res = append(res, f.CommentSQL(nil)...)
	return append(res, f.PermissionSQL(nil)...)
}

func (f *Function) CommentSQL(prev tree.Node) []string {
	return commentSQL(f.AlterTarget(), f, prev)
}

func (f *Function) PermissionSQL(prev tree.Node) []string {
	return permissionSQL(f.AlterTarget(), f, prev)
}

// SetupDependencies declares the schema and the enum types used in the
// signature.
func (f *Function) SetupDependencies() error {
	s := schemaOf(f)
	f.AddDependency(s.Path())
	db := database(f)
	words := strings.Fields(f.Str("returns"))
	for _, a := range f.Strings("arguments") {
		words = append(words, strings.Fields(a)...)
	}
	for _, w := range words {
		if e := db.Enum(strings.Trim(w, ","), s.Name()); e != nil {
			f.AddDependency(e.Path())
		}
	}
	for _, d := range f.cat.reg.Dependencies(f) {
		f.AddDependency(d)
	}
	return nil
}
