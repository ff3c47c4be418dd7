package tree

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

var (
	// ErrUnknownField is returned for input keys or path steps that are
	// neither a declared property nor a declared child collection.
	ErrUnknownField = errors.New("unknown property or child collection")
	// ErrInvalidValue is returned for input that does not fit a definition
	ErrInvalidValue = errors.New("invalid value")
)

// Fields is an ordered mapping read from declarative input
type Fields struct {
	Keys   []string
	Values map[string]any
}

// NewFields builds fields from alternating key value arguments
func NewFields(kv ...any) *Fields {
	f := &Fields{Values: make(map[string]any, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Set(kv[i].(string), kv[i+1])
	}
	return f
}

// Set adds or replaces a value, keeping the first insertion position
func (f *Fields) Set(key string, v any) {
	if f.Values == nil {
		f.Values = make(map[string]any)
	}
	if _, ok := f.Values[key]; !ok {
		f.Keys = append(f.Keys, key)
	}
	f.Values[key] = v
}

// Build constructs a root node of type t from raw input, which must be nil or
// a *Fields value.
func Build(t *Type, raw any) (Node, error) {
	return build(t, "", raw, nil, "", 0)
}

func build(t *Type, name string, raw any, parent Node, coll string, idx int) (Node, error) {
	fields, err := asFields(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(parent, coll, name, idx), err)
	}
	if t.factory == nil {
		panic("tree: cannot build abstract type " + t.name)
	}
	n := t.factory()
	o := n.Base()
	*o = Object{
		typ:      t,
		name:     name,
		parent:   parent,
		coll:     coll,
		index:    idx,
		props:    make(map[string]any, len(t.props)),
		children: make(map[string]any, len(t.children)),
	}
	for _, k := range fields.Keys {
		if _, ok := t.Prop(k); ok {
			continue
		}
		if _, ok := t.Child(k); ok {
			continue
		}
		return nil, fmt.Errorf("%s: %w: %q on %s", o.Path(), ErrUnknownField, k, t.name)
	}
	for _, d := range t.props {
		v, set := fields.Values[d.Name]
		val, err := d.value(v, set)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", JoinPath(o.Path(), d.Name), err)
		}
		o.props[d.Name] = val
	}
	for _, d := range t.children {
		v, err := buildChildren(d, fields.Values[d.Name], n)
		if err != nil {
			return nil, err
		}
		o.children[d.Name] = v
	}
	return n, nil
}

func buildChildren(d ChildDef, raw any, parent Node) (any, error) {
	switch d.Kind {
	case ChildSingle:
		if raw == nil {
			return nil, nil
		}
		return build(d.Type, d.Name, raw, parent, d.Name, 0)
	case ChildMap:
		m := &Map{}
		if raw == nil {
			return m, nil
		}
		fields, ok := raw.(*Fields)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s must be a mapping", JoinPath(parent.Path(), d.Name), ErrInvalidValue, d.Name)
		}
		for _, k := range fields.Keys {
			c, err := build(d.Type, k, fields.Values[k], parent, d.Name, 0)
			if err != nil {
				return nil, err
			}
			m.Set(k, c)
		}
		return m, nil
	case ChildArray:
		if raw == nil {
			return []Node(nil), nil
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s must be a list", JoinPath(parent.Path(), d.Name), ErrInvalidValue, d.Name)
		}
		res := make([]Node, 0, len(list))
		for i, v := range list {
			c, err := build(d.Type, "", v, parent, d.Name, i)
			if err != nil {
				return nil, err
			}
			res = append(res, c)
		}
		return res, nil
	}
	panic(fmt.Sprintf("tree: unknown child kind %d", int(d.Kind)))
}

func asFields(raw any) (*Fields, error) {
	switch v := raw.(type) {
	case nil:
		return &Fields{}, nil
	case *Fields:
		return v, nil
	}
	return nil, fmt.Errorf("%w: expected a mapping, got %T", ErrInvalidValue, raw)
}

func describe(parent Node, coll, name string, idx int) string {
	if parent == nil {
		return "root"
	}
	p := JoinPath(parent.Path(), coll)
	def, _ := parent.Type().Child(coll)
	switch def.Kind {
	case ChildMap:
		return JoinPath(p, name)
	case ChildArray:
		return p + IndexStep(idx).String()
	}
	return p
}

func (d PropDef) value(raw any, set bool) (any, error) {
	if !set || raw == nil {
		if set && d.AllowNull {
			return nil, nil
		}
		return copyValue(d.Default), nil
	}
	v, err := d.Kind.coerce(raw)
	if err != nil {
		return nil, err
	}
	if d.Normalize != nil {
		return d.Normalize(v)
	}
	return v, nil
}

func (k PropKind) coerce(raw any) (any, error) {
	switch k {
	case KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int:
			return strconv.Itoa(v), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case KindNumber:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				break
			}
			return v, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err == nil {
				return f, nil
			}
		}
	case KindBool:
		if v, ok := raw.(bool); ok {
			return v, nil
		}
	case KindMap:
		switch v := raw.(type) {
		case *Fields:
			return plain(v).(map[string]any), nil
		case map[string]any:
			return v, nil
		}
	case KindArray:
		switch v := raw.(type) {
		case []any:
			return plain(v), nil
		case string, int, float64, bool:
			return []any{v}, nil
		}
	default:
		panic(fmt.Sprintf("tree: unknown property kind %d", int(k)))
	}
	return nil, fmt.Errorf("%w: expected %s, got %T", ErrInvalidValue, k, raw)
}

// plain converts nested Fields into plain maps
func plain(v any) any {
	switch v := v.(type) {
	case *Fields:
		m := make(map[string]any, len(v.Keys))
		for _, k := range v.Keys {
			m[k] = plain(v.Values[k])
		}
		return m
	case []any:
		res := make([]any, len(v))
		for i, e := range v {
			res[i] = plain(e)
		}
		return res
	}
	return v
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = copyValue(e)
		}
		return m
	case []any:
		res := make([]any, len(v))
		for i, e := range v {
			res[i] = copyValue(e)
		}
		return res
	case []string:
		return append([]string(nil), v...)
	}
	return v
}

// StringList converts an array value to strings, ignoring other elements
func StringList(v any) []string {
	switch v := v.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		res := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				res = append(res, s)
			}
		}
		return res
	case string:
		return []string{v}
	}
	return nil
}

// SortedKeys returns the keys of a plain map in sorted order
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
