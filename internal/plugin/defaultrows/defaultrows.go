// Package defaultrows lets tables declare rows that must exist, like lookup
// values or a system user.
package defaultrows

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/plugin"
	"github.com/tordrt/dbascode/internal/schema"
	"github.com/tordrt/dbascode/internal/tree"
)

// Name is the plugin name used in the configuration
const Name = "defaultrows"

const prop = "rows"

// Plugin is the default rows plugin
type Plugin struct{}

// New returns the plugin
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Register(r *plugin.Registry) error {
	r.AddProps(schema.TypeTable, tree.PropDef{Name: prop, Kind: tree.KindArray, Default: []any{}, Normalize: normalize})
	r.Validate(schema.TypeTable, validate)
	r.AfterCreate(schema.TypeTable, func(n tree.Node) []string {
		t := n.(*schema.Table)
		var res []string
		for _, row := range rows(t) {
			res = append(res, insertSQL(t, row))
		}
		return res
	})
	r.OnAlter(schema.TypeTable, prop, alter)
	return nil
}

// normalize sorts rows by content and removes duplicates, so that only
// added and removed rows are changes. Lists holding other values are left
// for validate to report.
func normalize(v any) (any, error) {
	list, _ := v.([]any)
	keys := make(map[string]any, len(list))
	for _, e := range list {
		row, ok := e.(map[string]any)
		if !ok {
			return v, nil
		}
		keys[rowKey(row)] = row
	}
	res := make([]any, 0, len(keys))
	for _, k := range tree.SortedKeys(keys) {
		res = append(res, keys[k])
	}
	return res, nil
}

func rowKey(row map[string]any) string {
	cols := tree.SortedKeys(row)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = schema.Ident(c) + "=" + schema.Value(row[c])
	}
	return strings.Join(parts, ",")
}

func rows(n tree.Node) []map[string]any {
	list, _ := n.Prop(prop).([]any)
	res := make([]map[string]any, 0, len(list))
	for _, e := range list {
		if m, ok := e.(map[string]any); ok {
			res = append(res, m)
		}
	}
	return res
}

// validate checks that every row is a mapping of declared columns
func validate(n tree.Node) error {
	t := n.(*schema.Table)
	list, _ := n.Prop(prop).([]any)
	for i, e := range list {
		row, ok := e.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s[%d] must be a mapping of column values", tree.ErrInvalidValue, prop, i)
		}
		if len(row) == 0 {
			return fmt.Errorf("%w: %s[%d] is empty", tree.ErrInvalidValue, prop, i)
		}
		for col := range row {
			if _, ok := t.Map("columns").Get(col); !ok {
				return fmt.Errorf("%w: %s[%d] sets unknown column %q", tree.ErrInvalidValue, prop, i, col)
			}
		}
	}
	return nil
}

func insertSQL(t *schema.Table, row map[string]any) string {
	cols := tree.SortedKeys(row)
	vals := make([]string, len(cols))
	for i, c := range cols {
		vals[i] = schema.Value(row[c])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING;",
		t.QualifiedName(), quoteList(cols), strings.Join(vals, ", "))
}

func deleteSQL(t *schema.Table, row map[string]any) string {
	cols := tree.SortedKeys(row)
	conds := make([]string, len(cols))
	for i, c := range cols {
		if row[c] == nil {
			conds[i] = schema.Ident(c) + " IS NULL"
		} else {
			conds[i] = schema.Ident(c) + " = " + schema.Value(row[c])
		}
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s;", t.QualifiedName(), strings.Join(conds, " AND "))
}

// alter inserts added rows and deletes removed ones. Rows are matched by
// their complete content.
func alter(n, prev tree.Node) []string {
	t := n.(*schema.Table)
	cur, old := rows(n), rows(prev)
	oldKeys := make(map[string]bool, len(old))
	for _, r := range old {
		oldKeys[insertSQL(t, r)] = true
	}
	curKeys := make(map[string]bool, len(cur))
	var res []string
	for _, r := range cur {
		k := insertSQL(t, r)
		curKeys[k] = true
		if !oldKeys[k] {
			res = append(res, k)
		}
	}
	var dels []string
	for _, r := range old {
		if !curKeys[insertSQL(t, r)] {
			dels = append(dels, deleteSQL(t, r))
		}
	}
	return append(dels, res...)
}

func quoteList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = schema.Ident(n)
	}
	return strings.Join(parts, ", ")
}
