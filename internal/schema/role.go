package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Role is a database role
type Role struct {
	tree.Object
	cat *Catalog
}

func (r *Role) AlterTarget() string { return "ROLE " + Ident(r.Name()) }

func (r *Role) options(prev *Role) []string {
	flag := func(name, on, off string) string {
		if r.Bool(name) {
			return on
		}
		return off
	}
	var opts []string
	add := func(name, on, off string) {
		if prev == nil || prev.Bool(name) != r.Bool(name) {
			opts = append(opts, flag(name, on, off))
		}
	}
	add("login", "LOGIN", "NOLOGIN")
	add("inherit", "INHERIT", "NOINHERIT")
	add("createDb", "CREATEDB", "NOCREATEDB")
	add("createRole", "CREATEROLE", "NOCREATEROLE")
	pw, set := r.Prop("password").(string)
	if prev == nil {
		if set {
			opts = append(opts, "PASSWORD "+Literal(pw))
		}
	} else if prev.Prop("password") != r.Prop("password") {
		if set {
			opts = append(opts, "PASSWORD "+Literal(pw))
		} else {
			opts = append(opts, "PASSWORD NULL")
		}
	}
	return opts
}

func (r *Role) CreateSQL() []string {
	res := []string{"CREATE ROLE " + Ident(r.Name()) + " WITH " + strings.Join(r.options(nil), " ") + ";"}
	for _, m := range r.Strings("memberOf") {
		res = append(res, fmt.Sprintf("GRANT %s TO %s;", Ident(m), Ident(r.Name())))
	}
	return res
}

func (r *Role) DropSQL() []string {
	return []string{"DROP ROLE " + Ident(r.Name()) + ";"}
}

func (r *Role) AlterSQL(prev tree.Node, changed tree.Deltas) ([]string, error) {
	p := prev.(*Role)
	var res []string
	if opts := r.options(p); len(opts) > 0 {
		res = append(res, "ALTER ROLE "+Ident(r.Name())+" WITH "+strings.Join(opts, " ")+";")
	}
	if changed.Has("memberOf") {
		cur, old := r.Strings("memberOf"), p.Strings("memberOf")
		for _, m := range missing(cur, old) {
			res = append(res, fmt.Sprintf("GRANT %s TO %s;", Ident(m), Ident(r.Name())))
		}
		for _, m := range missing(old, cur) {
			res = append(res, fmt.Sprintf("REVOKE %s FROM %s;", Ident(m), Ident(r.Name())))
		}
	}
	return res, nil
}

func (r *Role) CommentSQL(prev tree.Node) []string {
	return commentSQL(r.AlterTarget(), r, prev)
}

// SetupDependencies makes the role depend on the declared roles it is a
// member of. Roles managed outside the configuration, like the built-in pg_
// roles, are assumed to exist.
func (r *Role) SetupDependencies() error {
	db := database(r)
	for _, m := range r.Strings("memberOf") {
		if db.Role(m) != nil {
			r.AddDependency(tree.JoinPath("roles", m))
		}
	}
	for _, d := range r.cat.reg.Dependencies(r) {
		r.AddDependency(d)
	}
	return nil
}
