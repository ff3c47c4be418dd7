package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/tordrt/dbascode/internal/tree"
)

// Ident quotes and joins identifier parts, e.g. "public"."users"
func Ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

// Literal quotes a string literal
func Literal(s string) string {
	return pq.QuoteLiteral(s)
}

// Value renders a plain value as SQL literal
func Value(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return Literal(v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatNumber(v)
	}
	return Literal(fmt.Sprint(v))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func roleIdent(role string) string {
	if strings.EqualFold(role, "public") {
		return "PUBLIC"
	}
	return Ident(role)
}

var commentProp = tree.PropDef{Name: "comment", Kind: tree.KindString, Default: ""}

var grantProps = []tree.PropDef{
	{Name: "grant", Kind: tree.KindMap, Default: map[string]any{}, Normalize: normalizeGrants},
	{Name: "revoke", Kind: tree.KindMap, Default: map[string]any{}, Normalize: normalizeGrants},
}

// normalizeGrants lowercases privileges and sorts the role lists, so that
// reordering roles is not a change. Privileges granted to nobody are removed.
func normalizeGrants(v any) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected privilege map, got %T", tree.ErrInvalidValue, v)
	}
	res := make(map[string]any, len(m))
	for op, roles := range m {
		var list []string
		switch r := roles.(type) {
		case string:
			list = []string{r}
		case []any:
			for _, e := range r {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("%w: role of %s must be a string, got %T", tree.ErrInvalidValue, op, e)
				}
				list = append(list, s)
			}
		case nil:
		default:
			return nil, fmt.Errorf("%w: roles of %s must be a list, got %T", tree.ErrInvalidValue, op, roles)
		}
		if len(list) == 0 {
			continue
		}
		sort.Strings(list)
		uniq := make([]any, 0, len(list))
		for i, s := range list {
			if i == 0 || list[i-1] != s {
				uniq = append(uniq, s)
			}
		}
		res[strings.ToLower(op)] = uniq
	}
	return res, nil
}

func privileges(n tree.Node, prop string) map[string][]string {
	res := make(map[string][]string)
	if n == nil {
		return res
	}
	m, _ := n.Prop(prop).(map[string]any)
	for op, roles := range m {
		res[op] = tree.StringList(roles)
	}
	return res
}

// permissionSQL renders GRANT and REVOKE statements for the privilege
// differences between prev and cur on target.
func permissionSQL(target string, cur, prev tree.Node) []string {
	var res []string
	res = append(res, privilegeDiff(target, privileges(cur, "grant"), privileges(prev, "grant"), true)...)
	res = append(res, privilegeDiff(target, privileges(cur, "revoke"), privileges(prev, "revoke"), false)...)
	return res
}

func privilegeDiff(target string, cur, prev map[string][]string, grant bool) []string {
	ops := make([]string, 0, len(cur)+len(prev))
	for op := range cur {
		ops = append(ops, op)
	}
	for op := range prev {
		if _, ok := cur[op]; !ok {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	var res []string
	for _, op := range ops {
		for _, role := range missing(cur[op], prev[op]) {
			res = append(res, privilegeSQL(grant, op, target, role))
		}
		for _, role := range missing(prev[op], cur[op]) {
			res = append(res, privilegeSQL(!grant, op, target, role))
		}
	}
	return res
}

func privilegeSQL(grant bool, op, target, role string) string {
	if grant {
		return fmt.Sprintf("GRANT %s ON %s TO %s;", strings.ToUpper(op), target, roleIdent(role))
	}
	return fmt.Sprintf("REVOKE %s ON %s FROM %s;", strings.ToUpper(op), target, roleIdent(role))
}

// missing returns the elements of a not in b, keeping the order of a
func missing(a, b []string) []string {
	var res []string
outer:
	for _, s := range a {
		for _, t := range b {
			if s == t {
				continue outer
			}
		}
		res = append(res, s)
	}
	return res
}

// commentSQL renders the comment of cur on target if it differs from prev
func commentSQL(target string, cur, prev tree.Node) []string {
	c := cur.Base().Str("comment")
	if prev != nil && prev.Base().Str("comment") == c {
		return nil
	}
	if c == "" {
		if prev == nil {
			return nil
		}
		return []string{fmt.Sprintf("COMMENT ON %s IS NULL;", target)}
	}
	return []string{fmt.Sprintf("COMMENT ON %s IS %s;", target, Literal(c))}
}

func quoteList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = Ident(n)
	}
	return strings.Join(parts, ", ")
}
