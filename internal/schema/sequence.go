package schema

import (
	"fmt"
	"strings"

	"github.com/tordrt/dbascode/internal/tree"
)

// Sequence is a number generator
type Sequence struct {
	tree.Object
	cat *Catalog
}

func (s *Sequence) qualifiedName() string {
	return Ident(schemaOf(s).Name(), s.Name())
}

func (s *Sequence) AlterTarget() string { return "SEQUENCE " + s.qualifiedName() }

func (s *Sequence) option(name string) string {
	v, set := s.Number(name)
	switch name {
	case "increment":
		return "INCREMENT BY " + formatNumber(v)
	case "start":
		if set {
			return "START WITH " + formatNumber(v)
		}
	case "minValue":
		if set {
			return "MINVALUE " + formatNumber(v)
		}
		return "NO MINVALUE"
	case "maxValue":
		if set {
			return "MAXVALUE " + formatNumber(v)
		}
		return "NO MAXVALUE"
	case "cycle":
		if s.Bool("cycle") {
			return "CYCLE"
		}
		return "NO CYCLE"
	}
	return ""
}

var sequenceOptions = []string{"increment", "start", "minValue", "maxValue", "cycle"}

func (s *Sequence) CreateSQL() []string {
	opts := []string{"CREATE SEQUENCE " + s.qualifiedName(), s.option("increment")}
	for _, name := range []string{"start", "minValue", "maxValue"} {
		if _, set := s.Number(name); set {
			opts = append(opts, s.option(name))
		}
	}
	if s.Bool("cycle") {
		opts = append(opts, "CYCLE")
	}
	return []string{strings.Join(opts, " ") + ";"}
}

func (s *Sequence) DropSQL() []string {
	return []string{"DROP SEQUENCE " + s.qualifiedName() + ";"}
}

func (s *Sequence) AlterSQL(prev tree.Node, changed tree.Deltas) ([]string, error) {
	var opts []string
	for _, name := range sequenceOptions {
		if !changed.Has(name) {
			continue
		}
		o := s.option(name)
		if o == "" {
			return nil, fmt.Errorf("%w: cannot unset %s of sequence %s", ErrUnsupportedChange, name, s.qualifiedName())
		}
		opts = append(opts, o)
	}
	for _, p := range changed.Props() {
		if !contains(sequenceOptions, p) {
			return nil, fmt.Errorf("%w: %s of sequence %s", ErrUnsupportedChange, p, s.qualifiedName())
		}
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return []string{"ALTER SEQUENCE " + s.qualifiedName() + " " + strings.Join(opts, " ") + ";"}, nil
}

func (s *Sequence) CommentSQL(prev tree.Node) []string {
	return commentSQL(s.AlterTarget(), s, prev)
}

func (s *Sequence) PermissionSQL(prev tree.Node) []string {
	return permissionSQL(s.AlterTarget(), s, prev)
}

func (s *Sequence) SetupDependencies() error {
	s.AddDependency(schemaOf(s).Path())
	return nil
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
