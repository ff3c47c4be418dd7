// Package rls adds row level security settings to tables.
//
// A table declares rowLevelSecurity as off, on or force. Booleans are
// accepted as off and on.
package rls

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/plugin"
	"github.com/tordrt/dbascode/internal/schema"
	"github.com/tordrt/dbascode/internal/tree"
)

// Name is the plugin name used in the configuration
const Name = "rls"

const prop = "rowLevelSecurity"

// Row level security modes
const (
	Off   = "off"
	On    = "on"
	Force = "force"
)

// Plugin is the row level security plugin
type Plugin struct{}

// New returns the plugin
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Register(r *plugin.Registry) error {
	r.AddProps(schema.TypeTable, tree.PropDef{Name: prop, Kind: tree.KindString, Default: Off, Normalize: normalize})
	r.AfterCreate(schema.TypeTable, afterCreate)
	r.OnAlter(schema.TypeTable, prop, alter)
	return nil
}

func normalize(v any) (any, error) {
	switch s := strings.ToLower(strings.TrimSpace(v.(string))); s {
	case Off, "false", "":
		return Off, nil
	case On, "true":
		return On, nil
	case Force:
		return Force, nil
	default:
		return nil, fmt.Errorf("%w: %s must be off, on or force, got %q", tree.ErrInvalidValue, prop, s)
	}
}

func mode(n tree.Node) string {
	if n == nil {
		return Off
	}
	s, _ := n.Prop(prop).(string)
	if s == "" {
		return Off
	}
	return s
}

func afterCreate(n tree.Node) []string {
	return transition(n.(*schema.Table), Off, mode(n))
}

func alter(n, prev tree.Node) []string {
	return transition(n.(*schema.Table), mode(prev), mode(n))
}

func transition(t *schema.Table, from, to string) []string {
	if from == to {
		return nil
	}
	stmt := func(action string) string {
		return fmt.Sprintf("ALTER TABLE %s %s ROW LEVEL SECURITY;", t.QualifiedName(), action)
	}
	var res []string
	if from == Force {
		res = append(res, stmt("NO FORCE"))
	}
	switch to {
	case Off:
		res = append(res, stmt("DISABLE"))
	case On:
		if from == Off {
			res = append(res, stmt("ENABLE"))
		}
	case Force:
		if from == Off {
			res = append(res, stmt("ENABLE"))
		}
		res = append(res, stmt("FORCE"))
	}
	return res
}
