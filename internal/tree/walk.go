package tree

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrUnresolvedDependency is returned when a declared dependency path does not
// exist anywhere in the tree.
var ErrUnresolvedDependency = errors.New("unresolved dependency")

// ChildNodes returns the direct children of n in declaration order
func ChildNodes(n Node) []Node {
	var res []Node
	for _, d := range n.Type().Children() {
		switch v := n.Child(d.Name).(type) {
		case Node:
			res = append(res, v)
		case *Map:
			res = append(res, v.Nodes()...)
		case []Node:
			res = append(res, v...)
		}
	}
	return res
}

// Walk calls fn for n and all its descendants, parents before children
func Walk(n Node, fn func(Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range ChildNodes(n) {
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// Index maps every node path of the tree to its node
func Index(root Node) map[string]Node {
	idx := make(map[string]Node)
	_ = Walk(root, func(n Node) error {
		idx[n.Path()] = n
		return nil
	})
	return idx
}

// Field returns the declared property or child collection key of n. The
// boolean result is false if key is not declared by the node type.
func Field(n Node, key string) (any, bool) {
	if _, ok := n.Type().Prop(key); ok {
		return n.Prop(key), true
	}
	if _, ok := n.Type().Child(key); ok {
		return n.Child(key), true
	}
	return nil, false
}

// Apply resolves the step against v. Missing keys and out of range indices
// resolve to nil; undeclared node fields return ErrUnknownField.
func (s Step) Apply(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s.Indexed {
		switch l := v.(type) {
		case []Node:
			if s.Index < len(l) {
				return l[s.Index], nil
			}
			return nil, nil
		case []any:
			if s.Index < len(l) {
				return l[s.Index], nil
			}
			return nil, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if s.Index < rv.Len() {
				return rv.Index(s.Index).Interface(), nil
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: index %d on %T", ErrUnknownField, s.Index, v)
	}
	switch m := v.(type) {
	case Node:
		f, ok := Field(m, s.Key)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %s", ErrUnknownField, s.Key, m.Type().Name())
		}
		return f, nil
	case *Map:
		n, ok := m.Get(s.Key)
		if !ok {
			return nil, nil
		}
		return n, nil
	case map[string]any:
		return m[s.Key], nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		e := rv.MapIndex(reflect.ValueOf(s.Key).Convert(rv.Type().Key()))
		if !e.IsValid() {
			return nil, nil
		}
		return e.Interface(), nil
	}
	return nil, fmt.Errorf("%w: key %q on %T", ErrUnknownField, s.Key, v)
}

// Snapshot flattens a node into plain maps for reporting. The result holds the
// class name, all declared properties and the children as nested snapshots.
func Snapshot(n Node) map[string]any {
	if n == nil {
		return nil
	}
	res := map[string]any{"$class": n.Type().Name()}
	if n.Name() != "" {
		res["$name"] = n.Name()
	}
	for _, d := range n.Type().Props() {
		res[d.Name] = copyValue(n.Prop(d.Name))
	}
	for _, d := range n.Type().Children() {
		switch v := n.Child(d.Name).(type) {
		case Node:
			res[d.Name] = Snapshot(v)
		case *Map:
			m := make(map[string]any, v.Len())
			for _, c := range v.Nodes() {
				m[c.Name()] = Snapshot(c)
			}
			res[d.Name] = m
		case []Node:
			l := make([]any, len(v))
			for i, c := range v {
				l[i] = Snapshot(c)
			}
			res[d.Name] = l
		}
	}
	return res
}

// Inherit clones the src nodes into the map collection coll of parent. The
// clones and all their descendants are flagged as inherited. Keys already
// present in the collection are skipped, the clones precede local entries.
func Inherit(parent Node, coll string, src []Node) error {
	def, ok := parent.Type().Child(coll)
	if !ok || def.Kind != ChildMap {
		return fmt.Errorf("%w: %q is not a map collection of %s", ErrUnknownField, coll, parent.Type().Name())
	}
	old := parent.Base().Map(coll)
	m := &Map{}
	for _, s := range src {
		if _, ok := old.Get(s.Name()); ok {
			continue
		}
		if _, ok := m.Get(s.Name()); ok {
			continue
		}
		m.Set(s.Name(), clone(s, parent, coll))
	}
	for _, k := range old.Keys() {
		n, _ := old.Get(k)
		m.Set(k, n)
	}
	parent.Base().children[coll] = m
	return nil
}

func clone(src Node, parent Node, coll string) Node {
	so := src.Base()
	n := so.typ.factory()
	o := n.Base()
	*o = Object{
		typ:       so.typ,
		name:      so.name,
		parent:    parent,
		coll:      coll,
		index:     so.index,
		props:     make(map[string]any, len(so.props)),
		children:  make(map[string]any, len(so.children)),
		inherited: true,
	}
	for k, v := range so.props {
		o.props[k] = copyValue(v)
	}
	for _, d := range so.typ.children {
		switch v := so.children[d.Name].(type) {
		case Node:
			o.children[d.Name] = clone(v, n, d.Name)
		case *Map:
			m := &Map{}
			for _, c := range v.Nodes() {
				m.Set(c.Name(), clone(c, n, d.Name))
			}
			o.children[d.Name] = m
		case []Node:
			l := make([]Node, len(v))
			for i, c := range v {
				l[i] = clone(c, n, d.Name)
			}
			o.children[d.Name] = l
		default:
			o.children[d.Name] = v
		}
	}
	return n
}

// DependencySetter is implemented by nodes that declare dependencies
type DependencySetter interface {
	SetupDependencies() error
}

// SetupDependencies runs the dependency declaration pass over the tree
func SetupDependencies(root Node) error {
	return Walk(root, func(n Node) error {
		if s, ok := n.(DependencySetter); ok {
			if err := s.SetupDependencies(); err != nil {
				return fmt.Errorf("%s: %w", n.Path(), err)
			}
		}
		return nil
	})
}

// Dependencies maps node paths to the paths they depend on
type Dependencies map[string][]string

// CollectDependencies gathers the declared dependencies of every node. Each
// dependency path must exist in the tree.
func CollectDependencies(root Node) (Dependencies, error) {
	if root == nil {
		return Dependencies{}, nil
	}
	idx := Index(root)
	deps := make(Dependencies)
	err := Walk(root, func(n Node) error {
		list := n.Dependencies()
		for _, d := range list {
			if _, ok := idx[d]; !ok {
				return fmt.Errorf("%s: %w: %s", n.Path(), ErrUnresolvedDependency, d)
			}
		}
		if len(list) > 0 {
			deps[n.Path()] = list
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// Delta is the old and current value of a changed property
type Delta struct {
	Old any
	Cur any
}

// Deltas maps property paths relative to an object to their changes
type Deltas map[string]Delta

// Props returns the distinct top level property names, sorted
func (d Deltas) Props() []string {
	seen := make(map[string]bool)
	var res []string
	for k := range d {
		p := HeadKey(k)
		if !seen[p] {
			seen[p] = true
			res = append(res, p)
		}
	}
	sort.Strings(res)
	return res
}

// Has reports whether any change affects the top level property name
func (d Deltas) Has(name string) bool {
	for k := range d {
		if HeadKey(k) == name {
			return true
		}
	}
	return false
}

// HeadKey returns the first key segment of a property path
func HeadKey(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' || path[i] == '[' {
			return path[:i]
		}
	}
	return path
}
