// Package loader reads declarative YAML configurations into the ordered
// input the object model is built from.
//
// Mapping keys keep their document order. A mapping key $include names a
// file, a glob pattern or a list of them, relative to the including file. The included
// mappings are merged into the including mapping, local keys win.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/dbascode/internal/tree"
)

// IncludeKey is the mapping key naming files to include
const IncludeKey = "$include"

// ErrInclude is returned for includes that cannot be resolved
var ErrInclude = errors.New("include failed")

// LoadFile reads and decodes the YAML file at path
func LoadFile(path string) (any, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	l := &loader{active: make(map[string]bool)}
	return l.file(abs)
}

// Parse decodes YAML data. Includes are resolved relative to dir.
func Parse(data []byte, dir string) (any, error) {
	l := &loader{active: make(map[string]bool)}
	return l.parse(data, dir, "<input>")
}

type loader struct {
	active map[string]bool
}

func (l *loader) file(path string) (any, error) {
	if l.active[path] {
		return nil, fmt.Errorf("%w: %s includes itself", ErrInclude, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	l.active[path] = true
	defer delete(l.active, path)
	return l.parse(data, filepath.Dir(path), path)
}

func (l *loader) parse(data []byte, dir, name string) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	v, err := l.decode(doc.Content[0], dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func (l *loader) decode(n *yaml.Node, dir string) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return l.decode(n.Content[0], dir)
	case yaml.AliasNode:
		return l.decode(n.Alias, dir)
	case yaml.SequenceNode:
		res := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := l.decode(c, dir)
			if err != nil {
				return nil, err
			}
			res = append(res, v)
		}
		return res, nil
	case yaml.MappingNode:
		return l.mapping(n, dir)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}

func (l *loader) mapping(n *yaml.Node, dir string) (*tree.Fields, error) {
	res := &tree.Fields{}
	local := &tree.Fields{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, vn := n.Content[i], n.Content[i+1]
		switch k.Value {
		case IncludeKey:
			if err := l.include(res, vn, dir); err != nil {
				return nil, err
			}
			continue
		case "<<":
			v, err := l.decode(vn, dir)
			if err != nil {
				return nil, err
			}
			if err := mergeInto(res, v); err != nil {
				return nil, fmt.Errorf("line %d: %w", k.Line, err)
			}
			continue
		}
		v, err := l.decode(vn, dir)
		if err != nil {
			return nil, err
		}
		local.Set(k.Value, v)
	}
	_ = mergeInto(res, local)
	return res, nil
}

func (l *loader) include(dst *tree.Fields, n *yaml.Node, dir string) error {
	var paths []string
	switch n.Kind {
	case yaml.ScalarNode:
		paths = []string{n.Value}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("%w: line %d: %s entries must be file names", ErrInclude, c.Line, IncludeKey)
			}
			paths = append(paths, c.Value)
		}
	default:
		return fmt.Errorf("%w: line %d: %s must be a file name or a list of file names", ErrInclude, n.Line, IncludeKey)
	}
	files, err := expand(paths, dir)
	if err != nil {
		return err
	}
	for _, p := range files {
		v, err := l.file(p)
		if err != nil {
			if errors.Is(err, ErrInclude) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrInclude, err)
		}
		if err := mergeInto(dst, v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInclude, p, err)
		}
	}
	return nil
}

// expand resolves include names relative to dir. Names with glob patterns
// expand to their sorted matches and must match at least one file.
func expand(names []string, dir string) ([]string, error) {
	var res []string
	for _, p := range names {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if !strings.ContainsAny(p, "*?[") {
			res = append(res, p)
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInclude, p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %s matches no files", ErrInclude, p)
		}
		sort.Strings(matches)
		res = append(res, matches...)
	}
	return res, nil
}

// mergeInto merges the mapping v into dst. Nested mappings are merged key by
// key, other values replace existing ones.
func mergeInto(dst *tree.Fields, v any) error {
	if v == nil {
		return nil
	}
	src, ok := v.(*tree.Fields)
	if !ok {
		return fmt.Errorf("expected a mapping, got %T", v)
	}
	for _, k := range src.Keys {
		sv := src.Values[k]
		if dv, ok := dst.Values[k].(*tree.Fields); ok {
			if sf, ok := sv.(*tree.Fields); ok {
				merged := &tree.Fields{}
				_ = mergeInto(merged, dv)
				_ = mergeInto(merged, sf)
				dst.Set(k, merged)
				continue
			}
		}
		dst.Set(k, sv)
	}
	return nil
}

// Marshal encodes decoded input back to YAML, keeping the key order
func Marshal(v any) ([]byte, error) {
	n, err := encode(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(n)
}

func encode(v any) (*yaml.Node, error) {
	switch v := v.(type) {
	case *tree.Fields:
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range v.Keys {
			c, err := encode(v.Values[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, c)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, e := range v {
			c, err := encode(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}
