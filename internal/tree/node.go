package tree

import (
	"strconv"
	"strings"
)

// Node is a declared database object in a configuration tree.
//
// Concrete node types embed Object, which implements every method of the
// interface, and add their own behavior on top.
type Node interface {
	Name() string
	Path() string
	Steps() []Step
	Parent() Node
	Type() *Type
	Inherited() bool
	Prop(name string) any
	Child(name string) any
	Dependencies() []string
	Base() *Object
}

// Object holds the state shared by all nodes
type Object struct {
	typ       *Type
	name      string
	parent    Node
	coll      string
	index     int
	props     map[string]any
	children  map[string]any
	inherited bool
	deps      []string
}

// Base returns the receiver, it lets embedding types satisfy Node
func (o *Object) Base() *Object { return o }

func (o *Object) Name() string    { return o.name }
func (o *Object) Parent() Node    { return o.parent }
func (o *Object) Type() *Type     { return o.typ }
func (o *Object) Inherited() bool { return o.inherited }

// Prop returns the property value or nil if it is undeclared
func (o *Object) Prop(name string) any { return o.props[name] }

// Child returns the child collection value: a Node or nil for single
// collections, a *Map for map collections and a []Node for arrays.
func (o *Object) Child(name string) any { return o.children[name] }

// Str returns a string property or the empty string
func (o *Object) Str(name string) string {
	s, _ := o.props[name].(string)
	return s
}

// Bool returns a bool property or false
func (o *Object) Bool(name string) bool {
	b, _ := o.props[name].(bool)
	return b
}

// Number returns a number property and whether it is set
func (o *Object) Number(name string) (float64, bool) {
	f, ok := o.props[name].(float64)
	return f, ok
}

// Strings returns an array property of strings
func (o *Object) Strings(name string) []string {
	return StringList(o.props[name])
}

// Map returns the map child collection name, never nil
func (o *Object) Map(name string) *Map {
	if m, ok := o.children[name].(*Map); ok {
		return m
	}
	return &Map{}
}

// Single returns the single child of collection name or nil
func (o *Object) Single(name string) Node {
	n, _ := o.children[name].(Node)
	return n
}

// Dependencies returns the paths this node requires to exist first
func (o *Object) Dependencies() []string {
	return append([]string(nil), o.deps...)
}

// AddDependency declares that the node requires path to exist first
func (o *Object) AddDependency(path string) {
	for _, d := range o.deps {
		if d == path {
			return
		}
	}
	o.deps = append(o.deps, path)
}

// Steps returns the path steps from the root to this node
func (o *Object) Steps() []Step {
	if o.parent == nil {
		return nil
	}
	steps := o.parent.Steps()
	steps = append(steps, KeyStep(o.coll))
	def, _ := o.parent.Type().Child(o.coll)
	switch def.Kind {
	case ChildMap:
		steps = append(steps, KeyStep(o.name))
	case ChildArray:
		steps = append(steps, IndexStep(o.index))
	}
	return steps
}

// Path returns the dot separated address of the node, the root is ""
func (o *Object) Path() string { return FormatPath(o.Steps()) }

// Root returns the root of the tree n belongs to
func Root(n Node) Node {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return n
}

// Ancestor returns the closest ancestor of n of type name or nil
func Ancestor(n Node, name string) Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type().Name() == name {
			return p
		}
	}
	return nil
}

// Map is a name keyed child collection that remembers insertion order
type Map struct {
	keys  []string
	nodes map[string]Node
}

// NewMap returns a map holding nodes keyed by their names
func NewMap(nodes ...Node) *Map {
	m := &Map{}
	for _, n := range nodes {
		m.Set(n.Name(), n)
	}
	return m
}

// Set adds or replaces the node stored under key
func (m *Map) Set(key string, n Node) {
	if m.nodes == nil {
		m.nodes = make(map[string]Node)
	}
	if _, ok := m.nodes[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.nodes[key] = n
}

func (m *Map) Get(key string) (Node, bool) {
	n, ok := m.nodes[key]
	return n, ok
}

func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order
func (m *Map) Keys() []string { return append([]string(nil), m.keys...) }

// Nodes returns the nodes in insertion order
func (m *Map) Nodes() []Node {
	res := make([]Node, 0, len(m.keys))
	for _, k := range m.keys {
		res = append(res, m.nodes[k])
	}
	return res
}

// Step is one segment of a path, either a key or an array index
type Step struct {
	Key     string
	Index   int
	Indexed bool
}

func KeyStep(key string) Step { return Step{Key: key} }
func IndexStep(idx int) Step  { return Step{Index: idx, Indexed: true} }

func (s Step) String() string {
	if s.Indexed {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// FormatPath renders steps as a path string: keys are joined with dots and
// indices are appended as [i].
func FormatPath(steps []Step) string {
	var b strings.Builder
	for i, s := range steps {
		if !s.Indexed && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// JoinPath appends a key to a path
func JoinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
