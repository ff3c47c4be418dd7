package changes

import (
	"reflect"
	"sort"

	"github.com/tordrt/dbascode/internal/tree"
)

// Compare records the differences between the current and the previous node
// in ctx. Either node may be nil, in which case a single change for the whole
// object is recorded.
func Compare(cur, prev tree.Node, ctx *Context) {
	ctx.compare(nodeValue(cur), nodeValue(prev))
}

// Changed reports whether the properties of two nodes differ, without looking
// at their children.
func Changed(cur, prev tree.Node) bool {
	ctx := &Context{}
	Compare(cur, prev, ctx)
	return ctx.Len() > 0
}

// nodeValue avoids storing a typed nil node in an interface value
func nodeValue(n tree.Node) any {
	if n == nil {
		return nil
	}
	return n
}

func (c *Context) compare(cur, old any) {
	curNode, curIsNode := cur.(tree.Node)
	oldNode, oldIsNode := old.(tree.Node)
	if curIsNode || oldIsNode {
		if curIsNode && oldIsNode {
			c.compareNodes(curNode, oldNode)
			return
		}
		c.add(old, cur)
		return
	}
	if cur == nil && old == nil {
		return
	}
	if isFunc(cur) && isFunc(old) {
		return
	}
	if cl, ok := listLen(cur); ok {
		if ol, ok := listLen(old); ok {
			for i := 0; i < max(cl, ol); i++ {
				s := tree.IndexStep(i)
				c.enter(s)
				c.compare(at(cur, s), at(old, s))
				c.leave()
			}
			return
		}
	}
	if ck, ok := mapKeys(cur); ok {
		if keys, ok := mapKeys(old); ok {
			for _, k := range merge(ck, keys) {
				s := tree.KeyStep(k)
				c.enter(s)
				c.compare(at(cur, s), at(old, s))
				c.leave()
			}
			return
		}
	}
	equal := equalValues(cur, old)
	if c.OnCompared != nil {
		c.OnCompared(c.Path(), old, cur, equal)
	}
	if !equal {
		c.add(old, cur)
	}
}

func (c *Context) compareNodes(cur, old tree.Node) {
	if cur.Inherited() && old.Inherited() {
		return
	}
	if c.visiting(cur, old) {
		return
	}
	c.push(cur, old)
	defer c.pop()
	for _, name := range merge(c.fieldNames(cur), c.fieldNames(old)) {
		curVal, _ := tree.Field(cur, name)
		oldVal, _ := tree.Field(old, name)
		c.enter(tree.KeyStep(name))
		c.compare(curVal, oldVal)
		c.leave()
	}
}

// fieldNames returns the comparing property set of a node
func (c *Context) fieldNames(n tree.Node) []string {
	t := n.Type()
	names := make([]string, 0, len(t.Props())+len(t.Children()))
	for _, d := range t.Props() {
		names = append(names, d.Name)
	}
	if c.Deep {
		for _, d := range t.Children() {
			names = append(names, d.Name)
		}
	}
	return names
}

func at(v any, s tree.Step) any {
	// only undeclared node fields fail, and nodes are never indexed here
	r, _ := s.Apply(v)
	return r
}

// merge returns a followed by the elements of b missing in a
func merge(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	res := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, k := range list {
			if !seen[k] {
				seen[k] = true
				res = append(res, k)
			}
		}
	}
	return res
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

func listLen(v any) (int, bool) {
	switch l := v.(type) {
	case []tree.Node:
		return len(l), true
	case []any:
		return len(l), true
	case nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}

func mapKeys(v any) ([]string, bool) {
	switch m := v.(type) {
	case *tree.Map:
		return m.Keys(), true
	case map[string]any:
		return tree.SortedKeys(m), true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys, true
}

func equalValues(a, b any) bool {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
