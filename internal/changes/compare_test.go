package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbascode/internal/tree"
)

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name      string
		cur, old  any
		wantPaths []string
	}{
		{name: "equal strings", cur: "a", old: "a"},
		{name: "different strings", cur: "a", old: "b", wantPaths: []string{""}},
		{name: "int and float are equal", cur: 1, old: 1.0},
		{name: "both nil", cur: nil, old: nil},
		{name: "nil against value", cur: nil, old: "x", wantPaths: []string{""}},
		{name: "functions are ignored", cur: func() {}, old: func() {}},
		{
			name:      "lists compare per index",
			cur:       []any{"a", "b", "c"},
			old:       []any{"a", "x"},
			wantPaths: []string{"[1]", "[2]"},
		},
		{
			name:      "maps compare per key",
			cur:       map[string]any{"a": 1.0, "b": map[string]any{"c": true}},
			old:       map[string]any{"a": 1.0, "b": map[string]any{"c": false}, "d": "x"},
			wantPaths: []string{"b.c", "d"},
		},
		{
			name:      "typed slices",
			cur:       []string{"a"},
			old:       []string{"b"},
			wantPaths: []string{"[0]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext()
			ctx.compare(tt.cur, tt.old)
			var paths []string
			for _, c := range ctx.Changes() {
				paths = append(paths, c.Path)
			}
			assert.Equal(t, tt.wantPaths, paths)
		})
	}
}

func TestCompareOnCompared(t *testing.T) {
	type call struct {
		path  string
		equal bool
	}
	var calls []call
	ctx := NewContext()
	ctx.OnCompared = func(path string, old, cur any, equal bool) {
		calls = append(calls, call{path, equal})
	}
	ctx.compare(map[string]any{"a": "x", "b": "y"}, map[string]any{"a": "x", "b": "z"})

	assert.Equal(t, []call{{"a", true}, {"b", false}}, calls)
	require.Equal(t, 1, ctx.Len())
	assert.Equal(t, "z", ctx.Changes()[0].Old)
	assert.Equal(t, "y", ctx.Changes()[0].Cur)
}

// loopNode is a node whose child collection refers back to itself
type loopNode struct {
	tree.Object
	typ   *tree.Type
	value string
}

func (n *loopNode) Type() *tree.Type      { return n.typ }
func (n *loopNode) Inherited() bool       { return false }
func (n *loopNode) Child(name string) any { return n }
func (n *loopNode) Prop(name string) any {
	if name == "value" {
		return n.value
	}
	return nil
}

func TestCompareCycleGuard(t *testing.T) {
	leaf := tree.NewType(tree.TypeSpec{Name: "leaf"})
	typ := tree.NewType(tree.TypeSpec{
		Name:     "loop",
		Props:    []tree.PropDef{{Name: "value", Kind: tree.KindString}},
		Children: []tree.ChildDef{{Name: "next", Kind: tree.ChildSingle, Type: leaf}},
	})
	cur := &loopNode{typ: typ, value: "a"}
	old := &loopNode{typ: typ, value: "b"}

	ctx := NewContext()
	Compare(cur, old, ctx)

	require.Equal(t, 1, ctx.Len())
	assert.Equal(t, "value", ctx.Changes()[0].Path)
}

func TestChangedIgnoresChildren(t *testing.T) {
	leaf := tree.NewType(tree.TypeSpec{Name: "leaf"})
	typ := tree.NewType(tree.TypeSpec{
		Name:     "loop",
		Props:    []tree.PropDef{{Name: "value", Kind: tree.KindString}},
		Children: []tree.ChildDef{{Name: "next", Kind: tree.ChildSingle, Type: leaf}},
	})
	assert.False(t, Changed(&loopNode{typ: typ, value: "a"}, &loopNode{typ: typ, value: "a"}))
	assert.True(t, Changed(&loopNode{typ: typ, value: "a"}, &loopNode{typ: typ, value: "b"}))
}

func TestMerge(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, merge([]string{"a", "b"}, []string{"b", "c", "a"}))
	assert.Equal(t, []string{}, merge(nil, nil))
}
