// Package plugin provides the extension points through which add-ons change
// how database objects are declared, validated and rendered.
//
// A plugin registers callbacks against a node type name at startup. Node
// types consult the registry when they render or set up their dependencies,
// so every extension is an explicit entry in an ordered chain.
package plugin

import (
	"fmt"
	"sort"

	"github.com/tordrt/dbascode/internal/tree"
)

// Plugin registers its extensions with a registry
type Plugin interface {
	Name() string
	Register(r *Registry) error
}

// SQLHook renders additional statements for a node
type SQLHook func(n tree.Node) []string

// AlterHook renders the change of one property from prev to n
type AlterHook func(n, prev tree.Node) []string

// DependencyHook returns additional dependency paths of a node
type DependencyHook func(n tree.Node) []string

// ValidateHook checks a node after the tree is built
type ValidateHook func(n tree.Node) error

// TreeHook runs once a tree is completely initialized
type TreeHook func(root tree.Node) error

// CompareHook observes primitive comparisons
type CompareHook func(path string, old, cur any, equal bool)

type alterKey struct {
	typ  string
	prop string
}

// Registry holds the registered extensions. It is populated at startup and
// read-only afterwards.
type Registry struct {
	names       []string
	props       map[string][]tree.PropDef
	afterCreate map[string][]SQLHook
	alter       map[alterKey][]AlterHook
	deps        map[string][]DependencyHook
	validate    map[string][]ValidateHook
	treeReady   []TreeHook
	compared    []CompareHook
}

// New returns a registry with the given plugins registered in order
func New(plugins ...Plugin) (*Registry, error) {
	r := &Registry{
		props:       make(map[string][]tree.PropDef),
		afterCreate: make(map[string][]SQLHook),
		alter:       make(map[alterKey][]AlterHook),
		deps:        make(map[string][]DependencyHook),
		validate:    make(map[string][]ValidateHook),
	}
	for _, p := range plugins {
		if err := r.Use(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Use registers p
func (r *Registry) Use(p Plugin) error {
	for _, n := range r.names {
		if n == p.Name() {
			return fmt.Errorf("plugin %s registered twice", n)
		}
	}
	if err := p.Register(r); err != nil {
		return fmt.Errorf("failed to register plugin %s: %w", p.Name(), err)
	}
	r.names = append(r.names, p.Name())
	return nil
}

// Plugins returns the names of the registered plugins
func (r *Registry) Plugins() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// AddProps declares additional properties for a node type
func (r *Registry) AddProps(typ string, defs ...tree.PropDef) {
	r.props[typ] = append(r.props[typ], defs...)
}

// AfterCreate adds statements rendered after the node's definition
func (r *Registry) AfterCreate(typ string, h SQLHook) {
	r.afterCreate[typ] = append(r.afterCreate[typ], h)
}

// OnAlter handles changes of a property added by a plugin
func (r *Registry) OnAlter(typ, prop string, h AlterHook) {
	k := alterKey{typ, prop}
	r.alter[k] = append(r.alter[k], h)
}

// AddDependencies declares additional dependencies for a node type
func (r *Registry) AddDependencies(typ string, h DependencyHook) {
	r.deps[typ] = append(r.deps[typ], h)
}

// Validate adds a node validation
func (r *Registry) Validate(typ string, h ValidateHook) {
	r.validate[typ] = append(r.validate[typ], h)
}

// OnTreeReady adds a hook called after a tree is fully initialized
func (r *Registry) OnTreeReady(h TreeHook) {
	r.treeReady = append(r.treeReady, h)
}

// OnCompared adds a hook called for each primitive comparison
func (r *Registry) OnCompared(h CompareHook) {
	r.compared = append(r.compared, h)
}

// Props returns the additional properties of a node type
func (r *Registry) Props(typ string) []tree.PropDef {
	if r == nil {
		return nil
	}
	return r.props[typ]
}

// AfterCreateSQL renders the registered additional statements for n
func (r *Registry) AfterCreateSQL(n tree.Node) []string {
	if r == nil {
		return nil
	}
	var res []string
	for _, h := range r.afterCreate[n.Type().Name()] {
		res = append(res, h(n)...)
	}
	return res
}

// AlterSQL renders the changes handled by plugins and returns the deltas no
// plugin handled.
func (r *Registry) AlterSQL(n, prev tree.Node, changed tree.Deltas) ([]string, tree.Deltas) {
	if r == nil {
		return nil, changed
	}
	var res []string
	rest := make(tree.Deltas, len(changed))
	for k, v := range changed {
		rest[k] = v
	}
	for _, prop := range changed.Props() {
		hooks := r.alter[alterKey{n.Type().Name(), prop}]
		if len(hooks) == 0 {
			continue
		}
		for _, h := range hooks {
			res = append(res, h(n, prev)...)
		}
		for k := range rest {
			if tree.HeadKey(k) == prop {
				delete(rest, k)
			}
		}
	}
	return res, rest
}

// Dependencies returns the additional dependencies of n
func (r *Registry) Dependencies(n tree.Node) []string {
	if r == nil {
		return nil
	}
	var res []string
	for _, h := range r.deps[n.Type().Name()] {
		res = append(res, h(n)...)
	}
	return res
}

// ValidateTree runs the registered validations on every node of root
func (r *Registry) ValidateTree(root tree.Node) error {
	if r == nil || len(r.validate) == 0 {
		return nil
	}
	return tree.Walk(root, func(n tree.Node) error {
		for _, h := range r.validate[n.Type().Name()] {
			if err := h(n); err != nil {
				return fmt.Errorf("%s: %w", n.Path(), err)
			}
		}
		return nil
	})
}

// TreeReady runs the tree ready hooks
func (r *Registry) TreeReady(root tree.Node) error {
	if r == nil {
		return nil
	}
	for _, h := range r.treeReady {
		if err := h(root); err != nil {
			return err
		}
	}
	return nil
}

// Compared returns a function calling all compare hooks, or nil if there are
// none.
func (r *Registry) Compared() func(path string, old, cur any, equal bool) {
	if r == nil || len(r.compared) == 0 {
		return nil
	}
	hooks := r.compared
	return func(path string, old, cur any, equal bool) {
		for _, h := range hooks {
			h(path, old, cur, equal)
		}
	}
}

// Types returns the type names with registered extensions, sorted
func (r *Registry) Types() []string {
	seen := make(map[string]bool)
	for k := range r.props {
		seen[k] = true
	}
	for k := range r.afterCreate {
		seen[k] = true
	}
	for k := range r.deps {
		seen[k] = true
	}
	for k := range r.validate {
		seen[k] = true
	}
	for k := range r.alter {
		seen[k.typ] = true
	}
	res := make([]string, 0, len(seen))
	for k := range seen {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
