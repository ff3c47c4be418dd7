// Package changes detects the differences between two configuration trees and
// turns them into an ordered migration script.
//
// The pipeline has four stages: Compare fills a Context with raw change
// tuples, Classify groups the tuples into object level records, Order sorts
// the create and drop records by dependency and Emit asks every affected node
// to render its SQL. Plan runs all of them.
package changes

import "github.com/tordrt/dbascode/internal/tree"

// Change is a raw difference found by Compare. Old and Cur are primitive
// values or node snapshots and are meant for reporting only.
type Change struct {
	Path  string
	Steps []tree.Step
	Old   any
	Cur   any
}

// CompareFunc observes every primitive comparison made by Compare
type CompareFunc func(path string, old, cur any, equal bool)

// Context accumulates the changes of one comparison run. A context must not
// be shared between runs.
type Context struct {
	// Deep makes node comparisons descend into child collections
	Deep bool
	// OnCompared is called for each primitive comparison
	OnCompared CompareFunc

	changes  []Change
	path     []tree.Step
	stackCur []tree.Node
	stackOld []tree.Node
}

// NewContext returns a context for a deep comparison
func NewContext() *Context {
	return &Context{Deep: true}
}

// Changes returns the recorded changes in discovery order
func (c *Context) Changes() []Change { return c.changes }

// Len returns the number of recorded changes
func (c *Context) Len() int { return len(c.changes) }

// Path returns the current comparison path
func (c *Context) Path() string { return tree.FormatPath(c.path) }

func (c *Context) add(old, cur any) {
	c.changes = append(c.changes, Change{
		Path:  c.Path(),
		Steps: append([]tree.Step(nil), c.path...),
		Old:   logValue(old),
		Cur:   logValue(cur),
	})
}

func (c *Context) enter(s tree.Step) { c.path = append(c.path, s) }
func (c *Context) leave()            { c.path = c.path[:len(c.path)-1] }

func (c *Context) visiting(cur, old tree.Node) bool {
	for _, n := range c.stackCur {
		if n == cur {
			return true
		}
	}
	for _, n := range c.stackOld {
		if n == old {
			return true
		}
	}
	return false
}

func (c *Context) push(cur, old tree.Node) {
	c.stackCur = append(c.stackCur, cur)
	c.stackOld = append(c.stackOld, old)
}

func (c *Context) pop() {
	c.stackCur = c.stackCur[:len(c.stackCur)-1]
	c.stackOld = c.stackOld[:len(c.stackOld)-1]
}

func logValue(v any) any {
	switch v := v.(type) {
	case tree.Node:
		return tree.Snapshot(v)
	case *tree.Map:
		m := make(map[string]any, v.Len())
		for _, n := range v.Nodes() {
			m[n.Name()] = tree.Snapshot(n)
		}
		return m
	case []tree.Node:
		l := make([]any, len(v))
		for i, n := range v {
			l[i] = tree.Snapshot(n)
		}
		return l
	}
	return v
}
