package tree

import "fmt"

// PropKind is the value kind of a declared property
type PropKind int

const (
	KindString PropKind = iota
	KindNumber
	KindBool
	KindMap
	KindArray
)

func (k PropKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindArray:
		return "array"
	}
	panic(fmt.Sprintf("tree: unknown property kind %d", int(k)))
}

// ChildKind is the cardinality of a child collection
type ChildKind int

const (
	// ChildSingle holds zero or one child
	ChildSingle ChildKind = iota
	// ChildMap holds name-keyed children, in declaration order
	ChildMap
	// ChildArray holds an ordered list of children
	ChildArray
)

// Flags control how an object's lifecycle SQL relates to its parent
type Flags uint8

const (
	// CreatedByParent objects are rendered inside the parent's CREATE
	CreatedByParent Flags = 1 << iota
	// DroppedByParent objects disappear with the parent's DROP
	DroppedByParent
	// AlterWithParent objects are altered through an ALTER on the parent
	AlterWithParent
	// FullAlter objects are recreated on any property change
	FullAlter
)

// PropDef declares a scalar or collection valued property
type PropDef struct {
	Name             string
	Kind             PropKind
	Default          any
	AllowNull        bool
	RecreateOnChange bool
	// Normalize is applied to the kind-checked raw value
	Normalize func(v any) (any, error)
}

// ChildDef declares a child collection
type ChildDef struct {
	Name string
	Kind ChildKind
	Type *Type
}

// TypeSpec describes a Type, see NewType and Type.Extend
type TypeSpec struct {
	Name     string
	New      func() Node
	Flags    Flags
	Props    []PropDef
	Children []ChildDef
}

// Type is the immutable schema descriptor of a node class
type Type struct {
	name     string
	factory  func() Node
	flags    Flags
	props    []PropDef
	children []ChildDef
}

// NewType builds a type descriptor from spec. A spec without constructor
// describes an abstract type that can only be extended.
func NewType(spec TypeSpec) *Type {
	t := &Type{name: spec.Name, factory: spec.New, flags: spec.Flags}
	t.props = mergeProps(nil, spec.Props)
	t.children = mergeChildren(nil, spec.Children)
	return t
}

// Extend returns a new type with the receiver's definitions followed by the
// ones in spec. Definitions with an existing name replace the inherited one.
// Name, constructor and flags are taken from spec when set.
func (t *Type) Extend(spec TypeSpec) *Type {
	e := &Type{name: t.name, factory: t.factory, flags: t.flags | spec.Flags}
	if spec.Name != "" {
		e.name = spec.Name
	}
	if spec.New != nil {
		e.factory = spec.New
	}
	e.props = mergeProps(t.props, spec.Props)
	e.children = mergeChildren(t.children, spec.Children)
	return e
}

func mergeProps(base, add []PropDef) []PropDef {
	res := make([]PropDef, 0, len(base)+len(add))
	res = append(res, base...)
outer:
	for _, d := range add {
		for i := range res {
			if res[i].Name == d.Name {
				res[i] = d
				continue outer
			}
		}
		res = append(res, d)
	}
	return res
}

func mergeChildren(base, add []ChildDef) []ChildDef {
	res := make([]ChildDef, 0, len(base)+len(add))
	res = append(res, base...)
outer:
	for _, d := range add {
		if d.Type == nil {
			panic("tree: child collection " + d.Name + " has no type")
		}
		for i := range res {
			if res[i].Name == d.Name {
				res[i] = d
				continue outer
			}
		}
		res = append(res, d)
	}
	return res
}

// Name returns the class name
func (t *Type) Name() string { return t.name }

// Flags returns the lifecycle flags
func (t *Type) Flags() Flags { return t.flags }

// Has reports whether all bits of f are set
func (t *Type) Has(f Flags) bool { return t.flags&f == f }

// Props returns the property definitions. The slice must not be modified.
func (t *Type) Props() []PropDef { return t.props }

// Children returns the child definitions. The slice must not be modified.
func (t *Type) Children() []ChildDef { return t.children }

// Prop looks up a property definition by name
func (t *Type) Prop(name string) (PropDef, bool) {
	for _, d := range t.props {
		if d.Name == name {
			return d, true
		}
	}
	return PropDef{}, false
}

// Child looks up a child definition by name
func (t *Type) Child(name string) (ChildDef, bool) {
	for _, d := range t.children {
		if d.Name == name {
			return d, true
		}
	}
	return ChildDef{}, false
}

func (t *Type) String() string { return t.name }
