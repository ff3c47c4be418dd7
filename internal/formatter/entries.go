// Package formatter renders planned migrations as human readable reports.
package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/dbascode/internal/changes"
	"github.com/tordrt/dbascode/internal/tree"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// Entry is one reported object change
type Entry struct {
	Op      changes.Op
	Path    string
	Type    string
	Changes []PropChange
}

// PropChange is a changed property of an altered object
type PropChange struct {
	Name string
	Old  any
	Cur  any
}

// Schema returns the name of the schema the object belongs to, or "" for
// objects outside schemas like roles.
func (e Entry) Schema() string {
	rest, ok := strings.CutPrefix(e.Path, "schemas.")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Entries lists the changes of m: creates, alters and drops, then comment
// and permission changes of existing objects.
func Entries(m *changes.Migration) []Entry {
	var res []Entry
	add := func(op changes.Op, records []*changes.Record, onlyChanged bool) {
		for _, r := range records {
			if onlyChanged && (r.Create || len(r.Changed) == 0) {
				continue
			}
			res = append(res, Entry{Op: op, Path: r.Path, Type: r.Node().Type().Name(), Changes: propChanges(r.Changed)})
		}
	}
	b := m.Buckets
	add(changes.OpCreate, b.Create, false)
	add(changes.OpAlter, b.Alter, false)
	add(changes.OpDrop, b.Drop, false)
	add(changes.OpComment, b.Comment, true)
	add(changes.OpPermission, b.Permission, true)
	return res
}

func propChanges(d tree.Deltas) []PropChange {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	res := make([]PropChange, len(names))
	for i, k := range names {
		res[i] = PropChange{Name: k, Old: d[k].Old, Cur: d[k].Cur}
	}
	return res
}

// formatValue renders a property value for reports
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%v", v)
}

func opLabel(op changes.Op) string {
	return strings.ToUpper(string(op))
}
